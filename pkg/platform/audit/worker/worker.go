package worker

import (
	"context"
	"log/slog"

	audit "loankyc/pkg/platform/audit"
)

// Appender is the write side of an audit store.
type Appender interface {
	Append(ctx context.Context, event audit.Event) error
}

// Worker consumes audit events from a channel and persists them until the
// channel is closed, so closing the inbox drains everything already buffered.
type Worker struct {
	store  Appender
	inbox  <-chan audit.Event
	logger *slog.Logger
}

func NewWorker(store Appender, inbox <-chan audit.Event, logger *slog.Logger) *Worker {
	return &Worker{store: store, inbox: inbox, logger: logger}
}

// Run blocks until the inbox is closed. A failed append is logged and the
// worker moves on to the next event.
func (w *Worker) Run(ctx context.Context) {
	for event := range w.inbox {
		if err := w.store.Append(ctx, event); err != nil {
			w.logger.ErrorContext(ctx, "failed to persist audit event",
				"action", event.Action,
				"application_id", event.ApplicationID.String(),
				"error", err,
			)
		}
	}
}
