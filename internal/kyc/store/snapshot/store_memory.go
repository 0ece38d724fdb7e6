package snapshot

import (
	"context"
	"sync"

	"loankyc/internal/kyc/models"
	id "loankyc/pkg/domain"
	"loankyc/pkg/platform/sentinel"
)

// InMemoryStore keeps encoded snapshots in a map. Stored values are bytes, so
// callers never share state with the store.
type InMemoryStore struct {
	mu        sync.RWMutex
	snapshots map[id.ApplicationID]stored
}

type stored struct {
	version int64
	data    []byte
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{snapshots: make(map[id.ApplicationID]stored)}
}

// Save stores the snapshot. Returns sentinel.ErrConflict when the stored
// version is not older than s.Version.
func (m *InMemoryStore) Save(_ context.Context, s *models.Snapshot) error {
	data, err := encode(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.snapshots[s.ApplicationID]; ok && cur.version >= s.Version {
		return sentinel.ErrConflict
	}
	m.snapshots[s.ApplicationID] = stored{version: s.Version, data: data}
	return nil
}

func (m *InMemoryStore) Load(_ context.Context, applicationID id.ApplicationID) (*models.Snapshot, error) {
	m.mu.RLock()
	cur, ok := m.snapshots[applicationID]
	m.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return decode(cur.data)
}
