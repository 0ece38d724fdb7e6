// Package snapshot persists loan application snapshots. Every backend keeps the
// snapshot as one JSON document and refuses writes that do not advance the version.
package snapshot

import (
	"encoding/json"
	"fmt"

	"loankyc/internal/kyc/models"
)

func encode(s *models.Snapshot) ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return b, nil
}

func decode(b []byte) (*models.Snapshot, error) {
	var s models.Snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &s, nil
}
