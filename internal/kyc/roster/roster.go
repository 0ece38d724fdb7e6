// Package roster keeps the ordered applicants of one loan application.
//
// Invariants:
//   - There is always at least one applicant, and the first is the primary
//   - The primary is set at construction and can never be removed
//   - Applicant IDs are unique
//   - The selection always references a live applicant
//
// Roster is not safe for concurrent use; the orchestrator serializes access.
package roster

import (
	"slices"
	"time"

	"loankyc/internal/kyc/models"
	id "loankyc/pkg/domain"
	dErrors "loankyc/pkg/domain-errors"
)

type Roster struct {
	applicants []*models.Applicant
	selected   id.ApplicantID
}

// New creates a roster holding only the primary applicant, which is also selected.
func New(primaryName string, now time.Time) (*Roster, error) {
	primary, err := models.NewApplicant(id.NewApplicantID(), primaryName, true, now)
	if err != nil {
		return nil, err
	}
	return &Roster{
		applicants: []*models.Applicant{primary},
		selected:   primary.ID,
	}, nil
}

// FromSnapshot rebuilds a roster from persisted state after validating it.
func FromSnapshot(s *models.Snapshot) (*Roster, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	r := &Roster{
		applicants: make([]*models.Applicant, 0, len(s.Applicants)),
		selected:   s.SelectedApplicantID,
	}
	for i := range s.Applicants {
		a := s.Applicants[i].Clone()
		r.applicants = append(r.applicants, &a)
	}
	return r, nil
}

// AddCoApplicant appends a non-primary applicant. The selection is unchanged.
func (r *Roster) AddCoApplicant(name string, now time.Time) (id.ApplicantID, error) {
	a, err := models.NewApplicant(id.NewApplicantID(), name, false, now)
	if err != nil {
		return id.ApplicantID{}, err
	}
	r.applicants = append(r.applicants, a)
	return a.ID, nil
}

// Remove deletes a co-applicant. When the removed applicant was selected the
// selection falls back to the primary and reselected is true.
func (r *Roster) Remove(applicantID id.ApplicantID) (reselected bool, err error) {
	idx := r.indexOf(applicantID)
	if idx < 0 {
		return false, dErrors.New(dErrors.CodeInvariantViolation, "applicant is not on the roster")
	}
	if r.applicants[idx].IsPrimary {
		return false, dErrors.New(dErrors.CodeInvariantViolation, "the primary applicant cannot be removed")
	}
	r.applicants = slices.Delete(r.applicants, idx, idx+1)
	if r.selected == applicantID {
		r.selected = r.Primary().ID
		return true, nil
	}
	return false, nil
}

// Select makes applicantID the active applicant.
func (r *Roster) Select(applicantID id.ApplicantID) (models.Applicant, error) {
	a, ok := r.Get(applicantID)
	if !ok {
		return models.Applicant{}, dErrors.New(dErrors.CodeNotFound, "applicant not found")
	}
	r.selected = applicantID
	return a.Clone(), nil
}

func (r *Roster) SelectedID() id.ApplicantID {
	return r.selected
}

func (r *Roster) Selected() models.Applicant {
	a, _ := r.Get(r.selected)
	return a.Clone()
}

func (r *Roster) Primary() *models.Applicant {
	return r.applicants[0]
}

// Get returns the live applicant for in-place lifecycle updates.
// Callers outside the orchestrator should use List or Applicant.
func (r *Roster) Get(applicantID id.ApplicantID) (*models.Applicant, bool) {
	idx := r.indexOf(applicantID)
	if idx < 0 {
		return nil, false
	}
	return r.applicants[idx], true
}

// Applicant returns a copy of one applicant.
func (r *Roster) Applicant(applicantID id.ApplicantID) (models.Applicant, error) {
	a, ok := r.Get(applicantID)
	if !ok {
		return models.Applicant{}, dErrors.New(dErrors.CodeNotFound, "applicant not found")
	}
	return a.Clone(), nil
}

// List returns deep copies of all applicants in insertion order.
func (r *Roster) List() []models.Applicant {
	out := make([]models.Applicant, 0, len(r.applicants))
	for _, a := range r.applicants {
		out = append(out, a.Clone())
	}
	return out
}

func (r *Roster) Len() int {
	return len(r.applicants)
}

func (r *Roster) indexOf(applicantID id.ApplicantID) int {
	return slices.IndexFunc(r.applicants, func(a *models.Applicant) bool {
		return a.ID == applicantID
	})
}
