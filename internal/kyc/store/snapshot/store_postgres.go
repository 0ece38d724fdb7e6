package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"loankyc/internal/kyc/models"
	id "loankyc/pkg/domain"
	"loankyc/pkg/platform/sentinel"
	txcontext "loankyc/pkg/platform/tx"
)

// PostgresStore keeps snapshots as jsonb, one row per application.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS kyc_applications (
	application_id UUID PRIMARY KEY,
	version        BIGINT      NOT NULL,
	snapshot       JSONB       NOT NULL,
	ready          BOOLEAN     NOT NULL DEFAULT FALSE,
	updated_at     TIMESTAMPTZ NOT NULL
);
`

// EnsureSchema creates the snapshot table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create snapshot schema: %w", err)
	}
	return nil
}

type dbQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) querier(ctx context.Context) dbQuerier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Save upserts the snapshot. The row is locked while its version is compared.
//
// Returns sentinel.ErrConflict when the stored version is not older than snap.Version.
func (s *PostgresStore) Save(ctx context.Context, snap *models.Snapshot) error {
	data, err := encode(snap)
	if err != nil {
		return err
	}
	ready := allVerified(snap)

	return txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		q := s.querier(ctx)
		var current int64
		err := q.QueryRowContext(ctx,
			`SELECT version FROM kyc_applications WHERE application_id = $1 FOR UPDATE`,
			uuid.UUID(snap.ApplicationID),
		).Scan(&current)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			res, err := q.ExecContext(ctx, `
				INSERT INTO kyc_applications (application_id, version, snapshot, ready, updated_at)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (application_id) DO NOTHING
			`, uuid.UUID(snap.ApplicationID), snap.Version, data, ready, snap.UpdatedAt)
			if err != nil {
				return fmt.Errorf("insert snapshot: %w", err)
			}
			// a concurrent first save won the insert
			if n, err := res.RowsAffected(); err == nil && n == 0 {
				return sentinel.ErrConflict
			}
			return nil
		case err != nil:
			return fmt.Errorf("lock snapshot: %w", err)
		case current >= snap.Version:
			return sentinel.ErrConflict
		}
		_, err = q.ExecContext(ctx, `
			UPDATE kyc_applications
			SET version = $2, snapshot = $3, ready = $4, updated_at = $5
			WHERE application_id = $1
		`, uuid.UUID(snap.ApplicationID), snap.Version, data, ready, snap.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update snapshot: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) Load(ctx context.Context, applicationID id.ApplicationID) (*models.Snapshot, error) {
	var data []byte
	err := s.querier(ctx).QueryRowContext(ctx,
		`SELECT snapshot FROM kyc_applications WHERE application_id = $1`,
		uuid.UUID(applicationID),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return decode(data)
}

func allVerified(s *models.Snapshot) bool {
	for _, a := range s.Applicants {
		if a.State() != models.StateVerified {
			return false
		}
	}
	return len(s.Applicants) > 0
}
