package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"loankyc/internal/kyc/callback"
	"loankyc/internal/kyc/methods"
	"loankyc/internal/kyc/methods/simulated"
	"loankyc/internal/kyc/metrics"
	"loankyc/internal/kyc/models"
	"loankyc/internal/kyc/store/snapshot"
	id "loankyc/pkg/domain"
	dErrors "loankyc/pkg/domain-errors"
	"loankyc/pkg/platform/audit"
	"loankyc/pkg/platform/audit/publisher"
	auditmemory "loankyc/pkg/platform/audit/store/memory"
	"loankyc/pkg/platform/sentinel"
)

var taxInputs = map[string]string{
	"pan_number": "ABCDE1234F",
	"name":       "Rajesh Kumar",
	"dob":        "15/05/1985",
}

var registryInputs = map[string]string{
	"ckyc_number": "12345678901234",
	"pan_number":  "ABCDE1234F",
}

// deferredScheduler queues simulated provider completions until Flush.
type deferredScheduler struct {
	mu      sync.Mutex
	pending []func()
}

func (d *deferredScheduler) Schedule(_ time.Duration, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = append(d.pending, fn)
}

func (d *deferredScheduler) Flush() {
	d.mu.Lock()
	pending := d.pending
	d.pending = nil
	d.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
}

type failingStore struct {
	loadErr error
	saveErr error
}

func (f failingStore) Save(context.Context, *models.Snapshot) error { return f.saveErr }

func (f failingStore) Load(context.Context, id.ApplicationID) (*models.Snapshot, error) {
	return nil, f.loadErr
}

// flakyStore fails every Save while failing is set.
type flakyStore struct {
	*snapshot.InMemoryStore
	mu      sync.Mutex
	failing bool
}

func (f *flakyStore) setFailing(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = v
}

func (f *flakyStore) Save(ctx context.Context, snap *models.Snapshot) error {
	f.mu.Lock()
	failing := f.failing
	f.mu.Unlock()
	if failing {
		return errors.New("connection reset by peer")
	}
	return f.InMemoryStore.Save(ctx, snap)
}

type ServiceSuite struct {
	suite.Suite
	ctx       context.Context
	store     *snapshot.InMemoryStore
	scheduler *deferredScheduler
	tokens    *callback.Tokens
	registry  *methods.Registry
	publisher *publisher.Publisher
	metrics   *metrics.Metrics
	service   *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = snapshot.NewInMemoryStore()
	s.scheduler = &deferredScheduler{}
	var err error
	s.registry, err = methods.NewRegistry(simulated.All(
		simulated.WithScheduler(s.scheduler.Schedule),
		simulated.WithCallbackMethods(id.MethodRegistryFetch),
	)...)
	s.Require().NoError(err)
	s.tokens, err = callback.NewTokens([]byte("0123456789abcdef0123456789abcdef"), time.Hour)
	s.Require().NoError(err)
	s.publisher = publisher.NewPublisher(auditmemory.NewInMemoryStore())
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.service = s.newService()
}

func (s *ServiceSuite) newService() *Service {
	return s.newServiceWith(s.store)
}

func (s *ServiceSuite) newServiceWith(store SnapshotStore) *Service {
	svc, err := New(store, s.registry,
		WithAuditPublisher(s.publisher),
		WithAuditTrail(s.publisher),
		WithMetrics(s.metrics),
		WithCallbackIssuer(s.tokens),
	)
	s.Require().NoError(err)
	return svc
}

func (s *ServiceSuite) stored(applicationID id.ApplicationID) *models.Snapshot {
	snap, err := s.store.Load(s.ctx, applicationID)
	s.Require().NoError(err)
	return snap
}

func (s *ServiceSuite) TestNew() {
	s.Run("nil store returns error", func() {
		_, err := New(nil, s.registry)
		s.ErrorContains(err, "snapshot store is required")
	})

	s.Run("nil catalog returns error", func() {
		_, err := New(s.store, nil)
		s.ErrorContains(err, "method catalog is required")
	})
}

func (s *ServiceSuite) TestMethods() {
	descs := s.service.Methods()
	s.Require().Len(descs, len(id.AllMethods))
	for i, d := range descs {
		s.Equal(id.AllMethods[i], d.ID)
	}
}

func (s *ServiceSuite) TestCreateApplication() {
	s.Run("stores the first snapshot", func() {
		view, err := s.service.CreateApplication(s.ctx, "Rajesh Kumar")
		s.Require().NoError(err)
		s.False(view.Ready)
		s.Len(view.Snapshot.Applicants, 1)

		snap := s.stored(view.Snapshot.ApplicationID)
		s.Equal(int64(1), snap.Version)
		s.Equal("Rajesh Kumar", snap.Applicants[0].DisplayName)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.SessionsLoaded))
	})

	s.Run("invalid primary name", func() {
		_, err := s.service.CreateApplication(s.ctx, "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("store failure is internal", func() {
		svc, err := New(failingStore{saveErr: errors.New("disk full")}, s.registry)
		s.Require().NoError(err)
		_, err = svc.CreateApplication(s.ctx, "Rajesh Kumar")
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *ServiceSuite) TestGet() {
	s.Run("unknown application is not found", func() {
		_, err := s.service.Get(s.ctx, id.NewApplicationID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("load failure is internal", func() {
		svc, err := New(failingStore{loadErr: errors.New("connection reset")}, s.registry)
		s.Require().NoError(err)
		_, err = svc.Get(s.ctx, id.NewApplicationID())
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("store not found sentinel maps to not found", func() {
		svc, err := New(failingStore{loadErr: sentinel.ErrNotFound}, s.registry)
		s.Require().NoError(err)
		_, err = svc.Get(s.ctx, id.NewApplicationID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestAsyncCompletionIsPersisted() {
	view, err := s.service.CreateApplication(s.ctx, "Rajesh Kumar")
	s.Require().NoError(err)
	appID := view.Snapshot.ApplicationID
	primaryID := view.Snapshot.Applicants[0].ID

	_, applicant, err := s.service.StartVerification(s.ctx, appID, primaryID, "tax-id", taxInputs)
	s.Require().NoError(err)
	s.Equal(models.StateInProgress, applicant.State())
	s.Equal(models.StateInProgress, s.stored(appID).Applicants[0].State())

	s.scheduler.Flush()

	snap := s.stored(appID)
	s.Equal(models.StateVerified, snap.Applicants[0].State())
	s.Equal(int64(3), snap.Version)
	s.Len(snap.SeenVerificationIDs, 1)

	status, ready, err := s.service.Status(s.ctx, appID)
	s.Require().NoError(err)
	s.True(ready)
	s.Equal(models.StateVerified, status[primaryID])
}

func (s *ServiceSuite) TestRestoreFromStore() {
	view, err := s.service.CreateApplication(s.ctx, "Rajesh Kumar")
	s.Require().NoError(err)
	appID := view.Snapshot.ApplicationID
	primaryID := view.Snapshot.Applicants[0].ID
	co, err := s.service.AddCoApplicant(s.ctx, appID, "Priya Singh")
	s.Require().NoError(err)
	attemptID, _, err := s.service.StartVerification(s.ctx, appID, co.ID, "registry-fetch", registryInputs)
	s.Require().NoError(err)
	pendingTax, _, err := s.service.StartVerification(s.ctx, appID, primaryID, "tax-id", taxInputs)
	s.Require().NoError(err)

	// a second instance sharing the store, as after a restart
	other := s.newService()
	restored, err := other.Get(s.ctx, appID)
	s.Require().NoError(err)
	s.Equal(view.Snapshot.ApplicationID, restored.Snapshot.ApplicationID)
	s.Len(restored.Snapshot.Applicants, 2)

	s.Run("a provider callback for the pending attempt applies on the restored session", func() {
		result := &models.VerificationResult{VerificationID: "CKYC-EXT00001", Timestamp: time.Now()}
		applied, err := other.CompleteVerification(s.ctx, appID, co.ID, models.Success(attemptID, result))
		s.Require().NoError(err)
		s.True(applied)
		s.Equal(models.StateVerified, s.stored(appID).Applicants[1].State())
	})

	s.Run("the stale instance fails with a conflict instead of overwriting", func() {
		_, err := s.service.Select(s.ctx, appID, co.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Equal(models.StateVerified, s.stored(appID).Applicants[1].State())
		s.Equal(primaryID, s.stored(appID).SelectedApplicantID)

		// the stale session was evicted; a retry reloads and succeeds
		selected, err := s.service.Select(s.ctx, appID, co.ID)
		s.Require().NoError(err)
		s.Equal(models.StateVerified, selected.State())
		s.Equal(co.ID, s.stored(appID).SelectedApplicantID)
	})

	s.Run("an in-process completion reaches the reloaded session", func() {
		s.scheduler.Flush()
		snap := s.stored(appID)
		s.Equal(models.StateVerified, snap.Applicants[0].State())
		s.Equal(pendingTax, snap.Applicants[0].Lifecycle.AttemptID)
	})
}

func (s *ServiceSuite) TestForgedCallbackIsRefused() {
	view, err := s.service.CreateApplication(s.ctx, "Rajesh Kumar")
	s.Require().NoError(err)
	appID := view.Snapshot.ApplicationID
	primaryID := view.Snapshot.Applicants[0].ID

	attemptID, _, err := s.service.StartVerification(s.ctx, appID, primaryID, "video", map[string]string{
		"location_confirmed": "false",
	})
	s.Require().NoError(err)

	forged := &models.VerificationResult{VerificationID: "FORGED-1", Timestamp: time.Now()}
	applied, err := s.service.CompleteVerification(s.ctx, appID, primaryID, models.Success(attemptID, forged))
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	s.False(applied)
	s.Equal(models.StateInProgress, s.stored(appID).Applicants[0].State())

	s.scheduler.Flush()
	snap := s.stored(appID)
	s.Equal(models.StateRejected, snap.Applicants[0].State())
	s.Empty(snap.SeenVerificationIDs)
}

func (s *ServiceSuite) TestFailedSaveFailsTheOperation() {
	store := &flakyStore{InMemoryStore: snapshot.NewInMemoryStore()}
	svc := s.newServiceWith(store)
	view, err := svc.CreateApplication(s.ctx, "Rajesh Kumar")
	s.Require().NoError(err)
	appID := view.Snapshot.ApplicationID
	primaryID := view.Snapshot.Applicants[0].ID

	s.Run("a mutation that is not stored returns internal", func() {
		store.setFailing(true)
		_, err := svc.AddCoApplicant(s.ctx, appID, "Priya Singh")
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
		store.setFailing(false)

		current, err := svc.Get(s.ctx, appID)
		s.Require().NoError(err)
		s.Len(current.Snapshot.Applicants, 1, "the unstored applicant is gone after reload")
	})

	s.Run("an attempt that is not stored never starts", func() {
		store.setFailing(true)
		_, _, err := svc.StartVerification(s.ctx, appID, primaryID, "tax-id", taxInputs)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
		store.setFailing(false)
		s.Empty(s.scheduler.pending)

		_, applicant, err := svc.StartVerification(s.ctx, appID, primaryID, "tax-id", taxInputs)
		s.Require().NoError(err)
		s.Equal(models.StateInProgress, applicant.State())
	})
}

func (s *ServiceSuite) TestRosterOperations() {
	view, err := s.service.CreateApplication(s.ctx, "Rajesh Kumar")
	s.Require().NoError(err)
	appID := view.Snapshot.ApplicationID
	primaryID := view.Snapshot.Applicants[0].ID

	co, err := s.service.AddCoApplicant(s.ctx, appID, "Priya Singh")
	s.Require().NoError(err)
	s.False(co.IsPrimary)

	selected, err := s.service.Select(s.ctx, appID, co.ID)
	s.Require().NoError(err)
	s.Equal(co.ID, selected.ID)

	after, err := s.service.RemoveApplicant(s.ctx, appID, co.ID)
	s.Require().NoError(err)
	s.Len(after.Snapshot.Applicants, 1)
	s.Equal(primaryID, after.Snapshot.SelectedApplicantID)

	_, err = s.service.RemoveApplicant(s.ctx, appID, primaryID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	events, err := s.service.AuditTrail(s.ctx, appID)
	s.Require().NoError(err)
	actions := make([]string, 0, len(events))
	for _, e := range events {
		actions = append(actions, e.Action)
	}
	s.Equal([]string{
		string(audit.EventApplicantAdded),
		string(audit.EventApplicantSelected),
		string(audit.EventApplicantRemoved),
		string(audit.EventApplicantSelected),
	}, actions)
}

func (s *ServiceSuite) TestResetVerification() {
	view, err := s.service.CreateApplication(s.ctx, "Rajesh Kumar")
	s.Require().NoError(err)
	appID := view.Snapshot.ApplicationID
	primaryID := view.Snapshot.Applicants[0].ID

	_, err = s.service.ResetVerification(s.ctx, appID, primaryID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))

	_, _, err = s.service.StartVerification(s.ctx, appID, primaryID, "tax-id", taxInputs)
	s.Require().NoError(err)
	s.scheduler.Flush()

	applicant, err := s.service.ResetVerification(s.ctx, appID, primaryID)
	s.Require().NoError(err)
	s.Equal(models.StateNotStarted, applicant.State())
	s.Equal(models.StateNotStarted, s.stored(appID).Applicants[0].State())
}
