package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	audit "loankyc/pkg/platform/audit"
)

type flakyStore struct {
	mu     sync.Mutex
	events []audit.Event
}

func (s *flakyStore) Append(_ context.Context, e audit.Event) error {
	if e.Action == "fail" {
		return errors.New("disk full")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func TestWorker_DrainsUntilInboxCloses(t *testing.T) {
	store := &flakyStore{}
	inbox := make(chan audit.Event, 3)
	inbox <- audit.Event{Action: string(audit.EventApplicantAdded)}
	inbox <- audit.Event{Action: "fail"}
	inbox <- audit.Event{Action: string(audit.EventVerificationStarted)}
	close(inbox)

	NewWorker(store, inbox, slog.New(slog.NewTextHandler(io.Discard, nil))).Run(context.Background())

	assert.Len(t, store.events, 2, "a failed append must not stop the worker")
}
