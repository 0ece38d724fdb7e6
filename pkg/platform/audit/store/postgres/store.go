package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "loankyc/pkg/domain"
	audit "loankyc/pkg/platform/audit"
	txcontext "loankyc/pkg/platform/tx"
)

// Store implements audit.Store on PostgreSQL. Appends join a transaction on the
// context when one is present so an audit row commits with the change it describes.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id              UUID PRIMARY KEY,
	category        TEXT        NOT NULL,
	timestamp       TIMESTAMPTZ NOT NULL,
	application_id  UUID        NOT NULL,
	applicant_id    UUID,
	attempt_id      UUID,
	action          TEXT        NOT NULL,
	method          TEXT        NOT NULL DEFAULT '',
	decision        TEXT        NOT NULL DEFAULT '',
	reason          TEXT        NOT NULL DEFAULT '',
	verification_id TEXT        NOT NULL DEFAULT '',
	request_id      TEXT        NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS audit_events_application_idx ON audit_events (application_id, timestamp);
`

// EnsureSchema creates the audit table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create audit schema: %w", err)
	}
	return nil
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Append inserts one audit event.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	query := `
		INSERT INTO audit_events (
			id, category, timestamp, application_id, applicant_id, attempt_id,
			action, method, decision, reason, verification_id, request_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.New(),
		string(event.Category),
		event.Timestamp,
		uuid.UUID(event.ApplicationID),
		nullableUUID(uuid.UUID(event.ApplicantID)),
		nullableUUID(uuid.UUID(event.AttemptID)),
		event.Action,
		event.Method,
		event.Decision,
		event.Reason,
		event.VerificationID,
		event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByApplication returns events for one application, oldest first.
func (s *Store) ListByApplication(ctx context.Context, applicationID id.ApplicationID) ([]audit.Event, error) {
	query := `
		SELECT category, timestamp, application_id, applicant_id, attempt_id,
			   action, method, decision, reason, verification_id, request_id
		FROM audit_events
		WHERE application_id = $1
		ORDER BY timestamp ASC
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(applicationID))
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return s.scanEvents(rows)
}

func (s *Store) scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event

	for rows.Next() {
		var (
			category    string
			event       audit.Event
			appID       uuid.UUID
			applicantID *uuid.UUID
			attemptID   *uuid.UUID
		)
		err := rows.Scan(
			&category,
			&event.Timestamp,
			&appID,
			&applicantID,
			&attemptID,
			&event.Action,
			&event.Method,
			&event.Decision,
			&event.Reason,
			&event.VerificationID,
			&event.RequestID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}

		event.Category = audit.EventCategory(category)
		event.ApplicationID = id.ApplicationID(appID)
		if applicantID != nil {
			event.ApplicantID = id.ApplicantID(*applicantID)
		}
		if attemptID != nil {
			event.AttemptID = id.AttemptID(*attemptID)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

func nullableUUID(u uuid.UUID) *uuid.UUID {
	if u == uuid.Nil {
		return nil
	}
	return &u
}
