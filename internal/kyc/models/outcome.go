package models

import (
	id "loankyc/pkg/domain"
)

// Outcome is the terminal report of one attempt: either a result or a reason.
type Outcome struct {
	AttemptID id.AttemptID        `json:"attempt_id"`
	OK        bool                `json:"ok"`
	Result    *VerificationResult `json:"result,omitempty"`
	Reason    string              `json:"reason,omitempty"`
}

func Success(attemptID id.AttemptID, result *VerificationResult) Outcome {
	return Outcome{AttemptID: attemptID, OK: true, Result: result}
}

func Failure(attemptID id.AttemptID, reason string) Outcome {
	return Outcome{AttemptID: attemptID, Reason: reason}
}
