package methods

import (
	"errors"
	"fmt"

	id "loankyc/pkg/domain"
)

// FailureCategory is the normalized taxonomy of method failures.
type FailureCategory string

const (
	// FailureInvalidInput: the applicant supplied data the method cannot use.
	FailureInvalidInput FailureCategory = "invalid_input"
	// FailureAbandoned: the applicant stopped part way through a multi-stage method.
	FailureAbandoned FailureCategory = "abandoned"
	// FailureTimeout: the method did not complete in time.
	FailureTimeout FailureCategory = "timeout"
	// FailureProviderOutage: the upstream provider could not be reached.
	FailureProviderOutage FailureCategory = "provider_outage"
	// FailureNotVerified: the provider answered but did not verify the subject.
	FailureNotVerified FailureCategory = "not_verified"
	FailureInternal    FailureCategory = "internal"
)

// MethodError wraps method failures with a normalized category.
// Message is safe to show the applicant and becomes the failure reason.
type MethodError struct {
	Category   FailureCategory
	Method     id.MethodID
	Message    string
	Underlying error
}

func (e *MethodError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("method %s [%s]: %s: %v", e.Method, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("method %s [%s]: %s", e.Method, e.Category, e.Message)
}

func (e *MethodError) Unwrap() error {
	return e.Underlying
}

func NewMethodError(category FailureCategory, method id.MethodID, message string, underlying error) *MethodError {
	return &MethodError{
		Category:   category,
		Method:     method,
		Message:    message,
		Underlying: underlying,
	}
}

// CategoryOf extracts the failure category from an error.
func CategoryOf(err error) FailureCategory {
	var me *MethodError
	if errors.As(err, &me) {
		return me.Category
	}
	return FailureInternal
}

// FailureReason converts an error from Begin into the reason recorded on the lifecycle.
func FailureReason(err error) string {
	var me *MethodError
	if errors.As(err, &me) && me.Message != "" {
		return me.Message
	}
	return "verification could not be started"
}
