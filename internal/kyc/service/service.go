// Package service hosts one orchestrator per loan application. Sessions are
// restored from the snapshot store on first use and every mutation, including
// asynchronous method completions, is written back as a new snapshot version.
// A mutation that cannot be written back fails, and its session is dropped so
// the next request reloads the last stored version.
package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"loankyc/internal/kyc/methods"
	"loankyc/internal/kyc/metrics"
	"loankyc/internal/kyc/models"
	"loankyc/internal/kyc/orchestrator"
	id "loankyc/pkg/domain"
	dErrors "loankyc/pkg/domain-errors"
	"loankyc/pkg/platform/audit"
	"loankyc/pkg/platform/sentinel"
)

const persistTimeout = 5 * time.Second

type SnapshotStore interface {
	Save(ctx context.Context, snapshot *models.Snapshot) error
	Load(ctx context.Context, applicationID id.ApplicationID) (*models.Snapshot, error)
}

// MethodCatalog resolves methods and describes them. *methods.Registry satisfies it.
type MethodCatalog interface {
	Resolve(methodID string) (methods.Method, error)
	Descriptors() []methods.Descriptor
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type AuditTrail interface {
	List(ctx context.Context, applicationID id.ApplicationID) ([]audit.Event, error)
}

// View is an application snapshot with its derived aggregate status.
type View struct {
	Snapshot models.Snapshot
	Status   map[id.ApplicantID]models.State
	Ready    bool
}

type Service struct {
	store   SnapshotStore
	catalog MethodCatalog

	logger         *slog.Logger
	auditPublisher AuditPublisher
	auditTrail     AuditTrail
	metrics        *metrics.Metrics
	now            func() time.Time
	callbacks      orchestrator.CallbackIssuer
	tracerProvider trace.TracerProvider

	mu       sync.RWMutex
	sessions map[id.ApplicationID]*orchestrator.Orchestrator
	loads    singleflight.Group
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithAuditTrail(trail AuditTrail) Option {
	return func(s *Service) {
		s.auditTrail = trail
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithCallbackIssuer signs provider callback tokens for callback methods.
func WithCallbackIssuer(issuer orchestrator.CallbackIssuer) Option {
	return func(s *Service) {
		s.callbacks = issuer
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		s.tracerProvider = tp
	}
}

func New(store SnapshotStore, catalog MethodCatalog, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("snapshot store is required")
	}
	if catalog == nil {
		return nil, errors.New("method catalog is required")
	}
	s := &Service{
		store:    store,
		catalog:  catalog,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
		sessions: make(map[id.ApplicationID]*orchestrator.Orchestrator),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Methods lists the verification methods an applicant can choose from.
func (s *Service) Methods() []methods.Descriptor {
	return s.catalog.Descriptors()
}

// CreateApplication starts a session with its primary applicant and stores
// the first snapshot.
//
// Errors: CodeValidation for an invalid primary name, CodeInternal when the
// snapshot cannot be stored.
func (s *Service) CreateApplication(ctx context.Context, primaryName string) (*View, error) {
	o, err := orchestrator.New(primaryName, s.catalog, s.orchestratorOptions()...)
	if err != nil {
		return nil, err
	}
	snap := o.Snapshot()
	if err := s.store.Save(ctx, &snap); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store application")
	}
	s.track(o)
	s.logger.InfoContext(ctx, "loan application created",
		"application_id", o.ApplicationID().String(),
	)
	return viewOf(o), nil
}

// Get returns the current view of an application.
//
// Errors: CodeNotFound when the application does not exist.
func (s *Service) Get(ctx context.Context, applicationID id.ApplicationID) (*View, error) {
	o, err := s.session(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	return viewOf(o), nil
}

// Status returns the state of every applicant and whether all are verified.
func (s *Service) Status(ctx context.Context, applicationID id.ApplicationID) (map[id.ApplicantID]models.State, bool, error) {
	o, err := s.session(ctx, applicationID)
	if err != nil {
		return nil, false, err
	}
	return o.AggregateStatus(), o.ReadyToProceed(), nil
}

func (s *Service) AddCoApplicant(ctx context.Context, applicationID id.ApplicationID, name string) (models.Applicant, error) {
	o, err := s.session(ctx, applicationID)
	if err != nil {
		return models.Applicant{}, err
	}
	applicantID, err := o.AddCoApplicant(ctx, name)
	if err != nil {
		return models.Applicant{}, err
	}
	return o.Applicant(applicantID)
}

func (s *Service) RemoveApplicant(ctx context.Context, applicationID id.ApplicationID, applicantID id.ApplicantID) (*View, error) {
	o, err := s.session(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if err := o.RemoveApplicant(ctx, applicantID); err != nil {
		return nil, err
	}
	return viewOf(o), nil
}

func (s *Service) Select(ctx context.Context, applicationID id.ApplicationID, applicantID id.ApplicantID) (models.Applicant, error) {
	o, err := s.session(ctx, applicationID)
	if err != nil {
		return models.Applicant{}, err
	}
	return o.Select(ctx, applicantID)
}

// StartVerification chooses a method for an applicant. The returned applicant
// reflects any outcome the method reported synchronously.
func (s *Service) StartVerification(ctx context.Context, applicationID id.ApplicationID, applicantID id.ApplicantID, methodID string, inputs map[string]string) (id.AttemptID, models.Applicant, error) {
	o, err := s.session(ctx, applicationID)
	if err != nil {
		return id.AttemptID{}, models.Applicant{}, err
	}
	attemptID, err := o.ChooseMethod(ctx, applicantID, methodID, inputs)
	if err != nil {
		return id.AttemptID{}, models.Applicant{}, err
	}
	a, err := o.Applicant(applicantID)
	return attemptID, a, err
}

func (s *Service) ResetVerification(ctx context.Context, applicationID id.ApplicationID, applicantID id.ApplicantID) (models.Applicant, error) {
	o, err := s.session(ctx, applicationID)
	if err != nil {
		return models.Applicant{}, err
	}
	if err := o.ResetVerification(ctx, applicantID); err != nil {
		return models.Applicant{}, err
	}
	return o.Applicant(applicantID)
}

// CompleteVerification delivers an outcome reported by a provider callback.
// Stale or duplicate outcomes return applied=false without error. The caller
// authenticates the provider; attempts of in-process methods are refused
// with CodeForbidden.
func (s *Service) CompleteVerification(ctx context.Context, applicationID id.ApplicationID, applicantID id.ApplicantID, outcome models.Outcome) (bool, error) {
	o, err := s.session(ctx, applicationID)
	if err != nil {
		return false, err
	}
	return o.OnProviderCallback(ctx, applicantID, outcome)
}

// deliver routes an in-process method outcome to the live session, which may
// have been reloaded since the attempt started.
func (s *Service) deliver(ctx context.Context, applicationID id.ApplicationID, applicantID id.ApplicantID, outcome models.Outcome) (bool, error) {
	o, err := s.session(ctx, applicationID)
	if err != nil {
		return false, err
	}
	return o.OnMethodCompleted(ctx, applicantID, outcome)
}

// AuditTrail lists the audit events recorded for an application.
func (s *Service) AuditTrail(ctx context.Context, applicationID id.ApplicationID) ([]audit.Event, error) {
	if _, err := s.session(ctx, applicationID); err != nil {
		return nil, err
	}
	if s.auditTrail == nil {
		return []audit.Event{}, nil
	}
	events, err := s.auditTrail.List(ctx, applicationID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit events")
	}
	return events, nil
}

// session returns the live orchestrator of an application, restoring it from
// the store when this process has not loaded it yet.
func (s *Service) session(ctx context.Context, applicationID id.ApplicationID) (*orchestrator.Orchestrator, error) {
	s.mu.RLock()
	o, ok := s.sessions[applicationID]
	s.mu.RUnlock()
	if ok {
		return o, nil
	}

	v, err, _ := s.loads.Do(applicationID.String(), func() (any, error) {
		s.mu.RLock()
		o, ok := s.sessions[applicationID]
		s.mu.RUnlock()
		if ok {
			return o, nil
		}
		snap, err := s.store.Load(ctx, applicationID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.New(dErrors.CodeNotFound, "application not found")
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load application")
		}
		o, err = orchestrator.Restore(snap, s.catalog, s.orchestratorOptions()...)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "stored application is inconsistent")
		}
		s.track(o)
		s.logger.InfoContext(ctx, "loan application restored",
			"application_id", applicationID.String(),
			"version", snap.Version,
		)
		return o, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*orchestrator.Orchestrator), nil
}

func (s *Service) track(o *orchestrator.Orchestrator) {
	s.mu.Lock()
	s.sessions[o.ApplicationID()] = o
	n := len(s.sessions)
	s.mu.Unlock()
	s.metrics.SetSessionsLoaded(n)
}

func (s *Service) evict(applicationID id.ApplicationID) {
	s.mu.Lock()
	delete(s.sessions, applicationID)
	n := len(s.sessions)
	s.mu.Unlock()
	s.metrics.SetSessionsLoaded(n)
}

func (s *Service) orchestratorOptions() []orchestrator.Option {
	opts := []orchestrator.Option{
		orchestrator.WithLogger(s.logger),
		orchestrator.WithMetrics(s.metrics),
		orchestrator.WithClock(s.now),
		orchestrator.WithChangeHook(s.persist),
		orchestrator.WithCompletionRouter(s.deliver),
		orchestrator.WithTracerProvider(s.tracerProvider),
	}
	if s.auditPublisher != nil {
		opts = append(opts, orchestrator.WithAuditPublisher(s.auditPublisher))
	}
	if s.callbacks != nil {
		opts = append(opts, orchestrator.WithCallbackIssuer(s.callbacks))
	}
	return opts
}

// persist runs under the orchestrator lock. It outlives request cancellation
// so a completed mutation is not lost when the client disconnects. On failure
// the session is evicted and reloaded from the store on next access.
func (s *Service) persist(ctx context.Context, snap models.Snapshot) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	err := s.store.Save(ctx, &snap)
	if err == nil {
		return nil
	}
	s.evict(snap.ApplicationID)
	if errors.Is(err, sentinel.ErrConflict) {
		// another instance owns a newer version
		s.logger.WarnContext(ctx, "snapshot version conflict, evicting session",
			"application_id", snap.ApplicationID.String(),
			"version", snap.Version,
		)
		return dErrors.Wrap(err, dErrors.CodeConflict, "application was changed concurrently; retry")
	}
	s.logger.ErrorContext(ctx, "failed to persist application snapshot",
		"application_id", snap.ApplicationID.String(),
		"version", snap.Version,
		"error", err,
	)
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist application")
}

func viewOf(o *orchestrator.Orchestrator) *View {
	snap := o.Snapshot()
	status := make(map[id.ApplicantID]models.State, len(snap.Applicants))
	ready := true
	for _, a := range snap.Applicants {
		status[a.ID] = a.State()
		if a.State() != models.StateVerified {
			ready = false
		}
	}
	return &View{Snapshot: snap, Status: status, Ready: ready}
}
