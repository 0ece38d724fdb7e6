package methods

import (
	"fmt"

	id "loankyc/pkg/domain"
	dErrors "loankyc/pkg/domain-errors"
)

// Registry is the fixed mapping from method id to handler. It is built once at
// startup and is read-only afterwards, so it is safe for concurrent use.
type Registry struct {
	methods map[id.MethodID]Method
}

// NewRegistry registers the given handlers. Handlers must use ids from the
// method set and each id may be registered only once.
func NewRegistry(ms ...Method) (*Registry, error) {
	r := &Registry{methods: make(map[id.MethodID]Method, len(ms))}
	for _, m := range ms {
		mid := m.ID()
		if !mid.IsValid() {
			return nil, fmt.Errorf("method %q is not a supported verification method", mid)
		}
		if _, exists := r.methods[mid]; exists {
			return nil, fmt.Errorf("method %s already registered", mid)
		}
		r.methods[mid] = m
	}
	return r, nil
}

// Resolve maps a method id to its handler.
//
// Errors: CodeUnknownMethod when the id is outside the method set or not registered.
func (r *Registry) Resolve(methodID string) (Method, error) {
	mid, err := id.ParseMethodID(methodID)
	if err != nil {
		return nil, err
	}
	m, ok := r.methods[mid]
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnknownMethod, "verification method not available: "+methodID)
	}
	return m, nil
}

// Descriptors lists the registered methods in presentation order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.methods))
	for _, mid := range id.AllMethods {
		if m, ok := r.methods[mid]; ok {
			out = append(out, m.Describe())
		}
	}
	return out
}
