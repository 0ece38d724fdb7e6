// Package simulated provides stand-in implementations of every verification
// method. They check input shape, wait a configurable latency, and report a
// synthetic result. Any method fails with the value of the simulate_failure input.
//
// Methods named in WithCallbackMethods behave like an external provider
// instead: Begin only validates the input and the outcome is expected on the
// provider callback route.
package simulated

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"loankyc/internal/kyc/methods"
	"loankyc/internal/kyc/models"
	id "loankyc/pkg/domain"
)

// InputSimulateFailure forces the method to fail with the given reason.
const InputSimulateFailure = "simulate_failure"

// Scheduler runs fn after d. The default uses time.AfterFunc.
type Scheduler func(d time.Duration, fn func())

// Immediate runs fn synchronously. Useful in tests.
func Immediate(_ time.Duration, fn func()) { fn() }

func afterFunc(d time.Duration, fn func()) { time.AfterFunc(d, fn) }

// refusedReason is reported when the orchestrator refuses a simulated result,
// so the attempt does not stay in progress.
const refusedReason = "verification result was refused"

type config struct {
	latency   time.Duration
	schedule  Scheduler
	now       func() time.Time
	logger    *slog.Logger
	callbacks map[id.MethodID]bool
}

type Option func(*config)

func WithLatency(d time.Duration) Option {
	return func(c *config) { c.latency = d }
}

func WithScheduler(s Scheduler) Option {
	return func(c *config) {
		if s != nil {
			c.schedule = s
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCallbackMethods switches the named methods to provider callback mode.
func WithCallbackMethods(mids ...id.MethodID) Option {
	return func(c *config) {
		if c.callbacks == nil {
			c.callbacks = make(map[id.MethodID]bool, len(mids))
		}
		for _, mid := range mids {
			c.callbacks[mid] = true
		}
	}
}

func newConfig(opts []Option) config {
	c := config{
		latency:  1500 * time.Millisecond,
		schedule: afterFunc,
		now:      time.Now,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// All returns all five simulated methods sharing the same options.
func All(opts ...Option) []methods.Method {
	return []methods.Method{
		NewDocumentOTP(opts...),
		NewTaxID(opts...),
		NewVideo(opts...),
		NewOfflineUpload(opts...),
		NewRegistryFetch(opts...),
	}
}

// method is the shared skeleton: validate synchronously, complete later.
type method struct {
	desc     methods.Descriptor
	cfg      config
	validate func(a *methods.Attempt) error
	// complete builds the result, or returns a non-nil error to fail the attempt.
	complete func(a *methods.Attempt, verificationID string, now time.Time) (*models.VerificationResult, error)
}

func (m *method) ID() id.MethodID { return m.desc.ID }

func (m *method) Describe() methods.Descriptor {
	d := m.desc
	d.Callback = m.cfg.callbacks[m.desc.ID]
	return d
}

func (m *method) Begin(ctx context.Context, a *methods.Attempt) error {
	if m.validate != nil {
		if err := m.validate(a); err != nil {
			return err
		}
	}
	if m.cfg.callbacks[m.desc.ID] {
		if a.CallbackToken == "" {
			return methods.NewMethodError(methods.FailureInternal, m.desc.ID, "provider callback token missing", nil)
		}
		m.cfg.logger.InfoContext(ctx, "awaiting provider callback",
			"method", m.desc.ID,
			"attempt_id", a.ID.String(),
		)
		return nil
	}
	// the attempt outlives the request that started it
	ctx = context.WithoutCancel(ctx)
	m.cfg.schedule(m.cfg.latency, func() {
		m.finish(ctx, a)
	})
	return nil
}

func (m *method) finish(ctx context.Context, a *methods.Attempt) {
	logger := m.cfg.logger.With("method", m.desc.ID, "attempt_id", a.ID.String())

	if reason := a.Input(InputSimulateFailure); reason != "" {
		if err := a.Fail(ctx, reason); err != nil {
			logger.WarnContext(ctx, "failed to report simulated failure", "error", err)
		}
		return
	}

	result, err := m.complete(a, m.newVerificationID(), m.cfg.now())
	if err != nil {
		if ferr := a.Fail(ctx, methods.FailureReason(err)); ferr != nil {
			logger.WarnContext(ctx, "failed to report method failure", "error", ferr)
		}
		return
	}
	if err := a.Succeed(ctx, result); err != nil {
		logger.WarnContext(ctx, "verification result refused", "error", err)
		if ferr := a.Fail(ctx, refusedReason); ferr != nil {
			logger.ErrorContext(ctx, "failed to reject refused attempt", "error", ferr)
		}
		return
	}
	logger.DebugContext(ctx, "simulated verification completed", "verification_id", result.VerificationID)
}

func (m *method) newVerificationID() string {
	s := ulid.Make().String()
	return m.desc.ResultPrefix + s[len(s)-8:]
}

func invalidInput(mid id.MethodID, msg string) error {
	return methods.NewMethodError(methods.FailureInvalidInput, mid, msg, nil)
}
