package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the KYC orchestration module.
// All methods are nil-safe so components can run without metrics.
type Metrics struct {
	AttemptsStarted      *prometheus.CounterVec
	AttemptOutcomes      *prometheus.CounterVec
	AttemptDuration      *prometheus.HistogramVec
	DiscardedCompletions *prometheus.CounterVec
	ApplicantsAdded      prometheus.Counter
	ApplicantsRemoved    prometheus.Counter
	SessionsLoaded       prometheus.Gauge
}

// New creates the KYC metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		AttemptsStarted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "loankyc_verification_attempts_started_total",
			Help: "Verification attempts started by method",
		}, []string{"method"}),

		AttemptOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "loankyc_verification_outcomes_total",
			Help: "Applied verification outcomes by method and resulting state",
		}, []string{"method", "state"}),

		AttemptDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "loankyc_verification_attempt_duration_seconds",
			Help:    "Time from starting an attempt to applying its outcome",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
		}, []string{"method"}),

		DiscardedCompletions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "loankyc_discarded_completions_total",
			Help: "Completion callbacks discarded as stale, duplicate, or unknown",
		}, []string{"reason"}), // reason: unknown_attempt, already_resolved, superseded, applicant_removed, applicant_mismatch

		ApplicantsAdded: f.NewCounter(prometheus.CounterOpts{
			Name: "loankyc_applicants_added_total",
			Help: "Applicants added to loan applications, primary applicants included",
		}),

		ApplicantsRemoved: f.NewCounter(prometheus.CounterOpts{
			Name: "loankyc_applicants_removed_total",
			Help: "Co-applicants removed from loan applications",
		}),

		SessionsLoaded: f.NewGauge(prometheus.GaugeOpts{
			Name: "loankyc_sessions_loaded",
			Help: "Loan application sessions currently held in memory",
		}),
	}
}

func (m *Metrics) IncrementAttemptStarted(method string) {
	if m != nil {
		m.AttemptsStarted.WithLabelValues(method).Inc()
	}
}

// ObserveOutcome records an applied outcome and the attempt's duration.
func (m *Metrics) ObserveOutcome(method, state string, startedAt time.Time) {
	if m == nil {
		return
	}
	m.AttemptOutcomes.WithLabelValues(method, state).Inc()
	m.AttemptDuration.WithLabelValues(method).Observe(time.Since(startedAt).Seconds())
}

func (m *Metrics) IncrementDiscarded(reason string) {
	if m != nil {
		m.DiscardedCompletions.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) IncrementApplicantAdded() {
	if m != nil {
		m.ApplicantsAdded.Inc()
	}
}

func (m *Metrics) IncrementApplicantRemoved() {
	if m != nil {
		m.ApplicantsRemoved.Inc()
	}
}

func (m *Metrics) SetSessionsLoaded(n int) {
	if m != nil {
		m.SessionsLoaded.Set(float64(n))
	}
}
