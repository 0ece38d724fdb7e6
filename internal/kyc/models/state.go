package models

// State is the verification state of one applicant.
type State string

const (
	StateNotStarted State = "not_started"
	StateInProgress State = "in_progress"
	StateVerified   State = "verified"
	StateRejected   State = "rejected"
)

func (s State) IsValid() bool {
	switch s {
	case StateNotStarted, StateInProgress, StateVerified, StateRejected:
		return true
	}
	return false
}

// CanTransitionTo encodes the lifecycle graph:
//
//	not_started -> in_progress -> verified | rejected
//	verified    -> not_started   (reset)
//	rejected    -> in_progress   (retry with any method)
func (s State) CanTransitionTo(next State) bool {
	switch s {
	case StateNotStarted:
		return next == StateInProgress
	case StateInProgress:
		return next == StateVerified || next == StateRejected
	case StateVerified:
		return next == StateNotStarted
	case StateRejected:
		return next == StateInProgress
	}
	return false
}

func (s State) String() string {
	return string(s)
}
