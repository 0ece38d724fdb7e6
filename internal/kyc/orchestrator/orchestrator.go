// Package orchestrator owns the state of one loan application: the applicant
// roster, each applicant's verification lifecycle, and the attempts in flight.
//
// All mutation is serialized behind one mutex. Method handlers are started
// outside the lock so they may report their outcome synchronously from Begin.
// Completions that no longer match a live attempt are discarded, never applied.
//
// Every mutation is handed to the change hook before it is acknowledged. When
// the hook fails the session is detached: the caller gets the error and every
// later mutation is refused with CodeConflict until the session is reloaded.
package orchestrator

//go:generate mockgen -source=orchestrator.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"maps"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"loankyc/internal/kyc/callback"
	"loankyc/internal/kyc/methods"
	"loankyc/internal/kyc/metrics"
	"loankyc/internal/kyc/models"
	"loankyc/internal/kyc/roster"
	id "loankyc/pkg/domain"
	dErrors "loankyc/pkg/domain-errors"
	"loankyc/pkg/platform/audit"
	"loankyc/pkg/requestcontext"
)

const tracerName = "loankyc/internal/kyc/orchestrator"

// MethodResolver maps a method id to its handler. *methods.Registry satisfies it.
type MethodResolver interface {
	Resolve(methodID string) (methods.Method, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// ChangeHook receives the snapshot after every applied mutation. It runs while
// the orchestrator lock is held, so snapshots arrive in mutation order. An
// error fails the mutation and detaches the session.
type ChangeHook func(ctx context.Context, snapshot models.Snapshot) error

// CallbackIssuer signs the token a provider presents on the callback route.
// *callback.Tokens satisfies it.
type CallbackIssuer interface {
	Issue(grant callback.Grant) (string, error)
}

// CompletionRouter delivers an in-process method outcome to whichever session
// currently owns the application. Without one, outcomes go to the session that
// started the attempt.
type CompletionRouter func(ctx context.Context, applicationID id.ApplicationID, applicantID id.ApplicantID, outcome models.Outcome) (bool, error)

// Reasons a completion is discarded.
const (
	DiscardUnknownAttempt    = "unknown_attempt"
	DiscardApplicantMismatch = "applicant_mismatch"
	DiscardAlreadyResolved   = "already_resolved"
	DiscardSuperseded        = "superseded"
	DiscardApplicantRemoved  = "applicant_removed"
)

type attemptStatus int

const (
	attemptPending attemptStatus = iota
	attemptResolved
	// superseded: a newer attempt or a reset replaced the resolved outcome
	attemptSuperseded
	// moot: the applicant was removed
	attemptMoot
)

type attemptRecord struct {
	applicantID id.ApplicantID
	method      id.MethodID
	startedAt   time.Time
	status      attemptStatus
}

type Orchestrator struct {
	mu sync.Mutex

	applicationID id.ApplicationID
	roster        *roster.Roster
	resolver      MethodResolver
	attempts      map[id.AttemptID]*attemptRecord
	seen          map[string]struct{}
	seenOrder     []string
	version       int64
	updatedAt     time.Time
	// detached is set once the change hook fails; the session no longer
	// matches what was persisted.
	detached bool

	logger    *slog.Logger
	auditor   AuditPublisher
	metrics   *metrics.Metrics
	now       func() time.Time
	onChange  ChangeHook
	callbacks CallbackIssuer
	router    CompletionRouter
	tracer    trace.Tracer
}

type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(o *Orchestrator) {
		o.auditor = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

func WithChangeHook(hook ChangeHook) Option {
	return func(o *Orchestrator) {
		o.onChange = hook
	}
}

// WithCallbackIssuer enables methods that report through the provider callback route.
func WithCallbackIssuer(issuer CallbackIssuer) Option {
	return func(o *Orchestrator) {
		o.callbacks = issuer
	}
}

func WithCompletionRouter(router CompletionRouter) Option {
	return func(o *Orchestrator) {
		o.router = router
	}
}

// WithTracerProvider sets where spans go. Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *Orchestrator) {
		if tp != nil {
			o.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithApplicationID fixes the application id of a new session. Ignored by Restore.
func WithApplicationID(applicationID id.ApplicationID) Option {
	return func(o *Orchestrator) {
		if !applicationID.IsNil() {
			o.applicationID = applicationID
		}
	}
}

func newOrchestrator(resolver MethodResolver, opts []Option) *Orchestrator {
	o := &Orchestrator{
		applicationID: id.NewApplicationID(),
		resolver:      resolver,
		attempts:      make(map[id.AttemptID]*attemptRecord),
		seen:          make(map[string]struct{}),
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:           time.Now,
		tracer:        otel.GetTracerProvider().Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// New starts a session whose roster holds only the primary applicant, selected.
//
// Errors: CodeValidation when primaryName is empty or too long.
func New(primaryName string, resolver MethodResolver, opts ...Option) (*Orchestrator, error) {
	if resolver == nil {
		return nil, errors.New("method resolver is required")
	}
	o := newOrchestrator(resolver, opts)
	now := o.now()
	r, err := roster.New(primaryName, now)
	if err != nil {
		return nil, err
	}
	o.roster = r
	o.version = 1
	o.updatedAt = now
	o.metrics.IncrementApplicantAdded()
	return o, nil
}

// Restore rebuilds a session from a persisted snapshot. Attempts that were in
// progress stay pending and accept a completion for their attempt id.
//
// Errors: CodeInvariantViolation when the snapshot breaks a roster or lifecycle rule.
func Restore(snapshot *models.Snapshot, resolver MethodResolver, opts ...Option) (*Orchestrator, error) {
	if resolver == nil {
		return nil, errors.New("method resolver is required")
	}
	o := newOrchestrator(resolver, opts)
	r, err := roster.FromSnapshot(snapshot)
	if err != nil {
		return nil, err
	}
	o.applicationID = snapshot.ApplicationID
	o.roster = r
	o.version = snapshot.Version
	o.updatedAt = snapshot.UpdatedAt
	for _, vid := range snapshot.SeenVerificationIDs {
		o.markSeen(vid)
	}
	for _, a := range r.List() {
		lc := a.Lifecycle
		if lc.AttemptID.IsNil() {
			continue
		}
		status := attemptResolved
		if lc.State == models.StateInProgress {
			status = attemptPending
		}
		o.attempts[lc.AttemptID] = &attemptRecord{
			applicantID: a.ID,
			method:      lc.Method,
			startedAt:   lc.UpdatedAt,
			status:      status,
		}
		if lc.Result != nil {
			o.markSeen(lc.Result.VerificationID)
		}
	}
	return o, nil
}

func (o *Orchestrator) ApplicationID() id.ApplicationID {
	return o.applicationID
}

// AddCoApplicant appends a non-primary applicant in NotStarted. The selection
// does not change.
//
// Errors: CodeValidation when name is empty or longer than 128 characters.
func (o *Orchestrator) AddCoApplicant(ctx context.Context, name string) (id.ApplicantID, error) {
	ctx, span := o.startSpan(ctx, "orchestrator.AddCoApplicant")
	defer span.End()

	o.mu.Lock()
	if err := o.checkAttachedLocked(); err != nil {
		o.mu.Unlock()
		return id.ApplicantID{}, recordErr(span, err)
	}
	applicantID, err := o.roster.AddCoApplicant(name, o.now())
	if err != nil {
		o.mu.Unlock()
		return id.ApplicantID{}, recordErr(span, err)
	}
	err = o.commitLocked(ctx)
	o.mu.Unlock()
	if err != nil {
		return id.ApplicantID{}, recordErr(span, err)
	}

	o.metrics.IncrementApplicantAdded()
	o.emit(ctx, audit.Event{
		Action:      string(audit.EventApplicantAdded),
		ApplicantID: applicantID,
	})
	o.logger.InfoContext(ctx, "co-applicant added",
		"application_id", o.applicationID.String(),
		"applicant_id", applicantID.String(),
	)
	return applicantID, nil
}

// RemoveApplicant deletes a co-applicant. Completions for its attempts are
// discarded from now on. A removed selection falls back to the primary.
//
// Errors: CodeInvariantViolation for the primary or an applicant not on the roster.
func (o *Orchestrator) RemoveApplicant(ctx context.Context, applicantID id.ApplicantID) error {
	ctx, span := o.startSpan(ctx, "orchestrator.RemoveApplicant", attribute.String("applicant_id", applicantID.String()))
	defer span.End()

	o.mu.Lock()
	if err := o.checkAttachedLocked(); err != nil {
		o.mu.Unlock()
		return recordErr(span, err)
	}
	reselected, err := o.roster.Remove(applicantID)
	if err != nil {
		o.mu.Unlock()
		return recordErr(span, err)
	}
	for _, rec := range o.attempts {
		if rec.applicantID == applicantID {
			rec.status = attemptMoot
		}
	}
	primaryID := o.roster.Primary().ID
	err = o.commitLocked(ctx)
	o.mu.Unlock()
	if err != nil {
		return recordErr(span, err)
	}

	o.metrics.IncrementApplicantRemoved()
	o.emit(ctx, audit.Event{
		Action:      string(audit.EventApplicantRemoved),
		ApplicantID: applicantID,
	})
	if reselected {
		o.emit(ctx, audit.Event{
			Action:      string(audit.EventApplicantSelected),
			ApplicantID: primaryID,
			Reason:      "selected applicant was removed",
		})
	}
	o.logger.InfoContext(ctx, "co-applicant removed",
		"application_id", o.applicationID.String(),
		"applicant_id", applicantID.String(),
		"reselected_primary", reselected,
	)
	return nil
}

// Select makes applicantID the active applicant and returns a copy of it.
//
// Errors: CodeNotFound when the applicant is not on the roster.
func (o *Orchestrator) Select(ctx context.Context, applicantID id.ApplicantID) (models.Applicant, error) {
	ctx, span := o.startSpan(ctx, "orchestrator.Select", attribute.String("applicant_id", applicantID.String()))
	defer span.End()

	o.mu.Lock()
	if err := o.checkAttachedLocked(); err != nil {
		o.mu.Unlock()
		return models.Applicant{}, recordErr(span, err)
	}
	a, err := o.roster.Select(applicantID)
	if err != nil {
		o.mu.Unlock()
		return models.Applicant{}, recordErr(span, err)
	}
	err = o.commitLocked(ctx)
	o.mu.Unlock()
	if err != nil {
		return models.Applicant{}, recordErr(span, err)
	}

	o.emit(ctx, audit.Event{
		Action:      string(audit.EventApplicantSelected),
		ApplicantID: applicantID,
	})
	return a, nil
}

// ChooseMethod starts a verification attempt for an applicant in NotStarted or
// Rejected and returns its attempt id. The lifecycle is checked before the
// method is resolved. When the handler cannot start, the attempt is recorded
// as Rejected with the handler's reason and no error is returned.
//
// Errors:
//   - CodeNotFound when the applicant is not on the roster
//   - CodeInvalidTransition when the applicant is InProgress or Verified
//   - CodeUnknownMethod when methodID is not a registered method
func (o *Orchestrator) ChooseMethod(ctx context.Context, applicantID id.ApplicantID, methodID string, inputs map[string]string) (id.AttemptID, error) {
	ctx, span := o.startSpan(ctx, "orchestrator.ChooseMethod",
		attribute.String("applicant_id", applicantID.String()),
		attribute.String("method", methodID),
	)
	defer span.End()

	o.mu.Lock()
	if err := o.checkAttachedLocked(); err != nil {
		o.mu.Unlock()
		return id.AttemptID{}, recordErr(span, err)
	}
	applicant, ok := o.roster.Get(applicantID)
	if !ok {
		o.mu.Unlock()
		return id.AttemptID{}, recordErr(span, dErrors.New(dErrors.CodeNotFound, "applicant not found"))
	}
	if err := applicant.Lifecycle.CanBegin(); err != nil {
		o.mu.Unlock()
		return id.AttemptID{}, recordErr(span, err)
	}
	method, err := o.resolver.Resolve(methodID)
	if err != nil {
		o.mu.Unlock()
		return id.AttemptID{}, recordErr(span, err)
	}

	now := o.now()
	attemptID := id.NewAttemptID()
	var token string
	if method.Describe().Callback {
		token, err = o.issueCallbackLocked(applicantID, attemptID, method.ID())
		if err != nil {
			o.mu.Unlock()
			return id.AttemptID{}, recordErr(span, err)
		}
	}
	if err := applicant.Lifecycle.Begin(method.ID(), attemptID, now); err != nil {
		o.mu.Unlock()
		return id.AttemptID{}, recordErr(span, err)
	}
	o.supersedeLocked(applicantID)
	o.attempts[attemptID] = &attemptRecord{
		applicantID: applicantID,
		method:      method.ID(),
		startedAt:   now,
		status:      attemptPending,
	}
	attempt := methods.NewAttempt(attemptID, method.ID(),
		methods.Subject{ApplicantID: applicantID, DisplayName: applicant.DisplayName},
		maps.Clone(inputs), now, o.reporter(applicantID))
	attempt.CallbackToken = token
	err = o.commitLocked(ctx)
	o.mu.Unlock()
	if err != nil {
		// not persisted, so the method is never started
		return id.AttemptID{}, recordErr(span, err)
	}

	span.SetAttributes(attribute.String("attempt_id", attemptID.String()))
	o.metrics.IncrementAttemptStarted(string(method.ID()))
	o.emit(ctx, audit.Event{
		Action:      string(audit.EventVerificationStarted),
		ApplicantID: applicantID,
		AttemptID:   attemptID,
		Method:      string(method.ID()),
		Decision:    string(models.StateInProgress),
	})
	o.logger.InfoContext(ctx, "verification started",
		"application_id", o.applicationID.String(),
		"applicant_id", applicantID.String(),
		"attempt_id", attemptID.String(),
		"method", method.ID(),
	)

	if err := method.Begin(ctx, attempt); err != nil {
		o.logger.WarnContext(ctx, "verification method failed to start",
			"application_id", o.applicationID.String(),
			"attempt_id", attemptID.String(),
			"method", method.ID(),
			"category", methods.CategoryOf(err),
			"error", err,
		)
		if _, ferr := o.OnMethodCompleted(ctx, applicantID, models.Failure(attemptID, methods.FailureReason(err))); ferr != nil {
			return attemptID, recordErr(span, ferr)
		}
	}
	return attemptID, nil
}

// OnProviderCallback applies an outcome reported from outside the process.
// Only attempts of callback methods accept one; in-process methods report
// through their attempt handle. Outcomes for unknown attempts are discarded
// as in OnMethodCompleted.
//
// Errors: CodeForbidden when the attempt belongs to an in-process method,
// otherwise as OnMethodCompleted.
func (o *Orchestrator) OnProviderCallback(ctx context.Context, applicantID id.ApplicantID, outcome models.Outcome) (bool, error) {
	ctx, span := o.startSpan(ctx, "orchestrator.OnProviderCallback",
		attribute.String("applicant_id", applicantID.String()),
		attribute.String("attempt_id", outcome.AttemptID.String()),
	)
	defer span.End()

	o.mu.Lock()
	rec, ok := o.attempts[outcome.AttemptID]
	var mid id.MethodID
	if ok {
		mid = rec.method
	}
	o.mu.Unlock()

	if ok {
		method, err := o.resolver.Resolve(string(mid))
		if err != nil || !method.Describe().Callback {
			o.logger.WarnContext(ctx, "provider callback refused for in-process method",
				"application_id", o.applicationID.String(),
				"applicant_id", applicantID.String(),
				"attempt_id", outcome.AttemptID.String(),
				"method", mid,
			)
			return false, recordErr(span, dErrors.New(dErrors.CodeForbidden, "method "+string(mid)+" does not accept provider callbacks"))
		}
	}
	applied, err := o.OnMethodCompleted(ctx, applicantID, outcome)
	if err != nil {
		return false, recordErr(span, err)
	}
	return applied, nil
}

// OnMethodCompleted applies the outcome of an attempt and reports whether it
// was applied. Completions for unknown, resolved, superseded, or removed
// attempts are discarded and return (false, nil).
//
// Errors: CodeValidation when a success outcome carries no result, a result
// without verification id or timestamp, or a verification id already used in
// this application. The attempt stays pending.
func (o *Orchestrator) OnMethodCompleted(ctx context.Context, applicantID id.ApplicantID, outcome models.Outcome) (bool, error) {
	ctx, span := o.startSpan(ctx, "orchestrator.OnMethodCompleted",
		attribute.String("applicant_id", applicantID.String()),
		attribute.String("attempt_id", outcome.AttemptID.String()),
		attribute.Bool("ok", outcome.OK),
	)
	defer span.End()

	o.mu.Lock()
	event, discard, err := o.completeLocked(ctx, applicantID, outcome)
	o.mu.Unlock()

	if err != nil {
		o.logger.WarnContext(ctx, "verification outcome refused",
			"application_id", o.applicationID.String(),
			"applicant_id", applicantID.String(),
			"attempt_id", outcome.AttemptID.String(),
			"error", err,
		)
		return false, recordErr(span, err)
	}
	if discard != "" {
		span.SetAttributes(attribute.String("discarded", discard))
		o.metrics.IncrementDiscarded(discard)
		o.logger.WarnContext(ctx, "completion discarded",
			"application_id", o.applicationID.String(),
			"applicant_id", applicantID.String(),
			"attempt_id", outcome.AttemptID.String(),
			"reason", discard,
		)
		o.emit(ctx, audit.Event{
			Action:      string(audit.EventCompletionDiscarded),
			ApplicantID: applicantID,
			AttemptID:   outcome.AttemptID,
			Reason:      discard,
		})
		return false, nil
	}

	o.emit(ctx, event)
	o.logger.InfoContext(ctx, "verification outcome applied",
		"application_id", o.applicationID.String(),
		"applicant_id", applicantID.String(),
		"attempt_id", outcome.AttemptID.String(),
		"state", event.Decision,
	)
	return true, nil
}

// completeLocked applies an outcome. It returns the audit event to emit, or the
// discard reason, or a validation or persistence error.
func (o *Orchestrator) completeLocked(ctx context.Context, applicantID id.ApplicantID, outcome models.Outcome) (audit.Event, string, error) {
	if err := o.checkAttachedLocked(); err != nil {
		return audit.Event{}, "", err
	}
	rec, ok := o.attempts[outcome.AttemptID]
	if !ok {
		return audit.Event{}, DiscardUnknownAttempt, nil
	}
	if rec.applicantID != applicantID {
		return audit.Event{}, DiscardApplicantMismatch, nil
	}
	switch rec.status {
	case attemptResolved:
		return audit.Event{}, DiscardAlreadyResolved, nil
	case attemptSuperseded:
		return audit.Event{}, DiscardSuperseded, nil
	case attemptMoot:
		return audit.Event{}, DiscardApplicantRemoved, nil
	}
	applicant, ok := o.roster.Get(applicantID)
	if !ok {
		rec.status = attemptMoot
		return audit.Event{}, DiscardApplicantRemoved, nil
	}

	now := o.now()
	event := audit.Event{
		ApplicantID: applicantID,
		AttemptID:   outcome.AttemptID,
		Method:      string(rec.method),
	}
	if outcome.OK {
		if outcome.Result == nil {
			return audit.Event{}, "", dErrors.New(dErrors.CodeValidation, "success outcome has no result")
		}
		if err := outcome.Result.Validate(); err != nil {
			return audit.Event{}, "", err
		}
		vid := outcome.Result.VerificationID
		if _, dup := o.seen[vid]; dup {
			return audit.Event{}, "", dErrors.New(dErrors.CodeValidation, "verification_id "+vid+" was already used in this application")
		}
		if err := applicant.Lifecycle.Succeed(outcome.AttemptID, outcome.Result, now); err != nil {
			return audit.Event{}, "", err
		}
		o.markSeen(vid)
		event.Action = string(audit.EventVerificationVerified)
		event.VerificationID = vid
	} else {
		if err := applicant.Lifecycle.Fail(outcome.AttemptID, outcome.Reason, now); err != nil {
			return audit.Event{}, "", err
		}
		event.Action = string(audit.EventVerificationRejected)
		event.Reason = applicant.Lifecycle.FailureReason
	}
	rec.status = attemptResolved
	event.Decision = string(applicant.Lifecycle.State)

	if err := o.commitLocked(ctx); err != nil {
		return audit.Event{}, "", err
	}
	o.metrics.ObserveOutcome(string(rec.method), event.Decision, rec.startedAt)
	return event, "", nil
}

// ResetVerification returns a verified applicant to NotStarted so a different
// method can be chosen. Late completions of the reset attempt are discarded.
//
// Errors: CodeNotFound for an unknown applicant, CodeInvalidTransition unless Verified.
func (o *Orchestrator) ResetVerification(ctx context.Context, applicantID id.ApplicantID) error {
	ctx, span := o.startSpan(ctx, "orchestrator.ResetVerification", attribute.String("applicant_id", applicantID.String()))
	defer span.End()

	o.mu.Lock()
	if err := o.checkAttachedLocked(); err != nil {
		o.mu.Unlock()
		return recordErr(span, err)
	}
	applicant, ok := o.roster.Get(applicantID)
	if !ok {
		o.mu.Unlock()
		return recordErr(span, dErrors.New(dErrors.CodeNotFound, "applicant not found"))
	}
	method := applicant.Lifecycle.Method
	if err := applicant.Lifecycle.Reset(o.now()); err != nil {
		o.mu.Unlock()
		return recordErr(span, err)
	}
	o.supersedeLocked(applicantID)
	err := o.commitLocked(ctx)
	o.mu.Unlock()
	if err != nil {
		return recordErr(span, err)
	}

	o.emit(ctx, audit.Event{
		Action:      string(audit.EventVerificationReset),
		ApplicantID: applicantID,
		Method:      string(method),
		Decision:    string(models.StateNotStarted),
	})
	return nil
}

// Selected returns a copy of the active applicant.
func (o *Orchestrator) Selected() models.Applicant {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.roster.Selected()
}

// List returns copies of all applicants, primary first.
func (o *Orchestrator) List() []models.Applicant {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.roster.List()
}

// Applicant returns a copy of one applicant.
//
// Errors: CodeNotFound when the applicant is not on the roster.
func (o *Orchestrator) Applicant(applicantID id.ApplicantID) (models.Applicant, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.roster.Applicant(applicantID)
}

// AggregateStatus maps every applicant to its lifecycle state.
func (o *Orchestrator) AggregateStatus() map[id.ApplicantID]models.State {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[id.ApplicantID]models.State, o.roster.Len())
	for _, a := range o.roster.List() {
		out[a.ID] = a.State()
	}
	return out
}

// ReadyToProceed reports whether every applicant is Verified.
func (o *Orchestrator) ReadyToProceed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, a := range o.roster.List() {
		if a.State() != models.StateVerified {
			return false
		}
	}
	return true
}

// Snapshot returns the persistable state of the session.
func (o *Orchestrator) Snapshot() models.Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

func (o *Orchestrator) snapshotLocked() models.Snapshot {
	return models.Snapshot{
		ApplicationID:       o.applicationID,
		Version:             o.version,
		SelectedApplicantID: o.roster.SelectedID(),
		Applicants:          o.roster.List(),
		SeenVerificationIDs: append([]string(nil), o.seenOrder...),
		UpdatedAt:           o.updatedAt,
	}
}

func (o *Orchestrator) commitLocked(ctx context.Context) error {
	o.version++
	o.updatedAt = o.now()
	if o.onChange == nil {
		return nil
	}
	if err := o.onChange(ctx, o.snapshotLocked()); err != nil {
		o.detached = true
		o.logger.ErrorContext(ctx, "application change not persisted, session detached",
			"application_id", o.applicationID.String(),
			"version", o.version,
			"error", err,
		)
		return err
	}
	return nil
}

func (o *Orchestrator) checkAttachedLocked() error {
	if o.detached {
		return dErrors.New(dErrors.CodeConflict, "application session is out of date; retry")
	}
	return nil
}

func (o *Orchestrator) issueCallbackLocked(applicantID id.ApplicantID, attemptID id.AttemptID, method id.MethodID) (string, error) {
	if o.callbacks == nil {
		return "", dErrors.New(dErrors.CodeInternal, "method "+string(method)+" needs provider callbacks, which are not configured")
	}
	return o.callbacks.Issue(callback.Grant{
		ApplicationID: o.applicationID,
		ApplicantID:   applicantID,
		AttemptID:     attemptID,
		Method:        method,
	})
}

// supersedeLocked marks the resolved attempts of an applicant as replaced.
func (o *Orchestrator) supersedeLocked(applicantID id.ApplicantID) {
	for _, rec := range o.attempts {
		if rec.applicantID == applicantID && rec.status == attemptResolved {
			rec.status = attemptSuperseded
		}
	}
}

func (o *Orchestrator) markSeen(vid string) {
	if _, ok := o.seen[vid]; ok {
		return
	}
	o.seen[vid] = struct{}{}
	o.seenOrder = append(o.seenOrder, vid)
}

func (o *Orchestrator) reporter(applicantID id.ApplicantID) methods.Reporter {
	return func(ctx context.Context, outcome models.Outcome) (bool, error) {
		if o.router != nil {
			return o.router(ctx, o.applicationID, applicantID, outcome)
		}
		return o.OnMethodCompleted(ctx, applicantID, outcome)
	}
}

func (o *Orchestrator) emit(ctx context.Context, event audit.Event) {
	if o.auditor == nil {
		return
	}
	event.ApplicationID = o.applicationID
	event.RequestID = requestcontext.RequestID(ctx)
	if event.Timestamp.IsZero() {
		event.Timestamp = o.now()
	}
	if err := o.auditor.Emit(ctx, event); err != nil {
		o.logger.ErrorContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"application_id", o.applicationID.String(),
			"error", err,
		)
	}
}

func (o *Orchestrator) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("application_id", o.applicationID.String()))
	return o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func recordErr(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, dErrors.MessageOf(err))
	return err
}
