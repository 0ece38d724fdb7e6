package models

import (
	"strings"
	"time"

	id "loankyc/pkg/domain"
	dErrors "loankyc/pkg/domain-errors"
)

// DefaultFailureReason is recorded when a method fails without saying why.
const DefaultFailureReason = "verification failed"

// Lifecycle is the verification state machine of one applicant.
//
// Invariants:
//   - Method is set in every state except NotStarted
//   - Result is set only in Verified, FailureReason only in Rejected
//   - AttemptID identifies the in-flight attempt while InProgress and the
//     last resolved attempt afterwards; reset clears it
//   - LastResultAt never decreases, including across resets
type Lifecycle struct {
	State         State               `json:"state"`
	Method        id.MethodID         `json:"method,omitempty"`
	AttemptID     id.AttemptID        `json:"attempt_id,omitzero"`
	Result        *VerificationResult `json:"result,omitempty"`
	FailureReason string              `json:"failure_reason,omitempty"`
	UpdatedAt     time.Time           `json:"updated_at"`
	LastResultAt  time.Time           `json:"last_result_at,omitzero"`
}

func NewLifecycle(now time.Time) Lifecycle {
	return Lifecycle{State: StateNotStarted, UpdatedAt: now}
}

// CanBegin checks whether a new attempt may start.
func (l *Lifecycle) CanBegin() error {
	if l.State.CanTransitionTo(StateInProgress) {
		return nil
	}
	switch l.State {
	case StateInProgress:
		return dErrors.New(dErrors.CodeInvalidTransition, "verification already in progress")
	case StateVerified:
		return dErrors.New(dErrors.CodeInvalidTransition, "applicant is already verified; reset verification first")
	default:
		return dErrors.New(dErrors.CodeInvalidTransition, "cannot begin verification from state "+l.State.String())
	}
}

func (l *Lifecycle) applyBegin(method id.MethodID, attemptID id.AttemptID, now time.Time) {
	l.State = StateInProgress
	l.Method = method
	l.AttemptID = attemptID
	l.Result = nil
	l.FailureReason = ""
	l.UpdatedAt = now
}

// Begin validates and applies the begin transition in one call.
func (l *Lifecycle) Begin(method id.MethodID, attemptID id.AttemptID, now time.Time) error {
	if err := l.CanBegin(); err != nil {
		return err
	}
	l.applyBegin(method, attemptID, now)
	return nil
}

// CanComplete checks that attemptID is the attempt currently in flight.
func (l *Lifecycle) CanComplete(attemptID id.AttemptID) error {
	if l.State != StateInProgress {
		return dErrors.New(dErrors.CodeInvalidTransition, "no verification in progress")
	}
	if l.AttemptID != attemptID {
		return dErrors.New(dErrors.CodeInvalidTransition, "attempt is not the one in progress")
	}
	return nil
}

// Succeed records a verified result. A result timestamp earlier than a previous
// result of this applicant is raised to that earlier high-water mark.
func (l *Lifecycle) Succeed(attemptID id.AttemptID, result *VerificationResult, now time.Time) error {
	if err := l.CanComplete(attemptID); err != nil {
		return err
	}
	if err := result.Validate(); err != nil {
		return err
	}
	r := result.Clone()
	if r.Timestamp.Before(l.LastResultAt) {
		r.Timestamp = l.LastResultAt
	}
	l.State = StateVerified
	l.Result = r
	l.FailureReason = ""
	l.LastResultAt = r.Timestamp
	l.UpdatedAt = now
	return nil
}

// Fail records a rejected attempt with its reason.
func (l *Lifecycle) Fail(attemptID id.AttemptID, reason string, now time.Time) error {
	if err := l.CanComplete(attemptID); err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultFailureReason
	}
	l.State = StateRejected
	l.Result = nil
	l.FailureReason = reason
	l.UpdatedAt = now
	return nil
}

func (l *Lifecycle) CanReset() error {
	if l.State != StateVerified {
		return dErrors.New(dErrors.CodeInvalidTransition, "only a verified applicant can be reset")
	}
	return nil
}

// Reset returns a verified applicant to NotStarted so another method can be used.
func (l *Lifecycle) Reset(now time.Time) error {
	if err := l.CanReset(); err != nil {
		return err
	}
	l.State = StateNotStarted
	l.Method = ""
	l.AttemptID = id.AttemptID{}
	l.Result = nil
	l.FailureReason = ""
	l.UpdatedAt = now
	return nil
}

// Validate checks the state/field consistency rules. Used when restoring
// persisted snapshots.
func (l *Lifecycle) Validate() error {
	if !l.State.IsValid() {
		return invariant("unknown lifecycle state " + string(l.State))
	}
	if l.State != StateNotStarted && !l.Method.IsValid() {
		return invariant("lifecycle in state " + l.State.String() + " has no valid method")
	}
	switch l.State {
	case StateNotStarted:
		if l.Method != "" || l.Result != nil || l.FailureReason != "" || !l.AttemptID.IsNil() {
			return invariant("not started lifecycle carries attempt data")
		}
	case StateInProgress:
		if l.AttemptID.IsNil() {
			return invariant("in progress lifecycle has no attempt")
		}
		if l.Result != nil || l.FailureReason != "" {
			return invariant("in progress lifecycle carries an outcome")
		}
	case StateVerified:
		if l.FailureReason != "" {
			return invariant("verified lifecycle carries a failure reason")
		}
		if err := l.Result.Validate(); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInvariantViolation, "verified lifecycle has an invalid result")
		}
	case StateRejected:
		if l.Result != nil || l.FailureReason == "" {
			return invariant("rejected lifecycle must carry only a failure reason")
		}
	}
	return nil
}

// Clone returns a deep copy.
func (l Lifecycle) Clone() Lifecycle {
	l.Result = l.Result.Clone()
	return l
}

func invariant(msg string) error {
	return dErrors.New(dErrors.CodeInvariantViolation, msg)
}
