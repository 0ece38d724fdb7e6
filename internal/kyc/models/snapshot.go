package models

import (
	"time"

	id "loankyc/pkg/domain"
	dErrors "loankyc/pkg/domain-errors"
)

// Snapshot is the persisted and presented form of one application's roster.
// Version increases by one on every mutation.
type Snapshot struct {
	ApplicationID       id.ApplicationID `json:"application_id"`
	Version             int64            `json:"version"`
	SelectedApplicantID id.ApplicantID   `json:"selected_applicant_id"`
	Applicants          []Applicant      `json:"applicants"`
	// SeenVerificationIDs keeps every verification id accepted in the session,
	// including ones whose result was later reset.
	SeenVerificationIDs []string  `json:"seen_verification_ids,omitempty"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Validate checks the roster invariants of a snapshot before it is restored.
func (s *Snapshot) Validate() error {
	if s.ApplicationID.IsNil() {
		return invariant("snapshot has no application id")
	}
	if len(s.Applicants) == 0 {
		return invariant("snapshot has no applicants")
	}
	if !s.Applicants[0].IsPrimary {
		return invariant("first applicant must be the primary")
	}
	seen := make(map[id.ApplicantID]struct{}, len(s.Applicants))
	selected := false
	for i := range s.Applicants {
		a := &s.Applicants[i]
		if a.ID.IsNil() {
			return invariant("applicant without id")
		}
		if _, dup := seen[a.ID]; dup {
			return invariant("duplicate applicant id " + a.ID.String())
		}
		seen[a.ID] = struct{}{}
		if i > 0 && a.IsPrimary {
			return invariant("more than one primary applicant")
		}
		if _, err := NormalizeDisplayName(a.DisplayName); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInvariantViolation, "applicant "+a.ID.String()+" has an invalid name")
		}
		if err := a.Lifecycle.Validate(); err != nil {
			return err
		}
		if a.ID == s.SelectedApplicantID {
			selected = true
		}
	}
	if !selected {
		return invariant("selected applicant is not on the roster")
	}
	return nil
}
