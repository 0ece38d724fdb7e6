package models

import (
	"time"

	id "loankyc/pkg/domain"
)

// Applicant is one person on a loan application. The primary applicant is
// fixed at creation and can never be removed or replaced.
type Applicant struct {
	ID          id.ApplicantID `json:"id"`
	DisplayName string         `json:"display_name"`
	IsPrimary   bool           `json:"is_primary"`
	Lifecycle   Lifecycle      `json:"lifecycle"`
	CreatedAt   time.Time      `json:"created_at"`
}

// NewApplicant validates the display name and creates an applicant in NotStarted.
func NewApplicant(applicantID id.ApplicantID, name string, primary bool, now time.Time) (*Applicant, error) {
	name, err := NormalizeDisplayName(name)
	if err != nil {
		return nil, err
	}
	return &Applicant{
		ID:          applicantID,
		DisplayName: name,
		IsPrimary:   primary,
		Lifecycle:   NewLifecycle(now),
		CreatedAt:   now,
	}, nil
}

func (a *Applicant) State() State {
	return a.Lifecycle.State
}

// Clone returns a deep copy safe to hand to readers.
func (a *Applicant) Clone() Applicant {
	c := *a
	c.Lifecycle = a.Lifecycle.Clone()
	return c
}
