package roster

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"loankyc/internal/kyc/models"
	id "loankyc/pkg/domain"
	dErrors "loankyc/pkg/domain-errors"
)

type RosterSuite struct {
	suite.Suite
	now    time.Time
	roster *Roster
}

func TestRosterSuite(t *testing.T) {
	suite.Run(t, new(RosterSuite))
}

func (s *RosterSuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	r, err := New("Asha Rao", s.now)
	s.Require().NoError(err)
	s.roster = r
}

// TestPrimary verifies the first applicant is the only primary and starts selected.
func (s *RosterSuite) TestPrimary() {
	s.Run("first applicant is primary and selected", func() {
		list := s.roster.List()
		s.Require().Len(list, 1)
		s.True(list[0].IsPrimary)
		s.Equal(list[0].ID, s.roster.SelectedID())
		s.Equal(models.StateNotStarted, list[0].Lifecycle.State)
	})

	s.Run("co-applicants are never primary", func() {
		for _, name := range []string{"B", "C", "D"} {
			_, err := s.roster.AddCoApplicant(name, s.now)
			s.Require().NoError(err)
		}
		primaries := 0
		for _, a := range s.roster.List() {
			if a.IsPrimary {
				primaries++
			}
		}
		s.Equal(1, primaries)
		s.True(s.roster.List()[0].IsPrimary)
	})

	s.Run("blank primary name is rejected", func() {
		_, err := New("  ", s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *RosterSuite) TestAddCoApplicant() {
	s.Run("appends in order without changing selection", func() {
		selected := s.roster.SelectedID()
		first, err := s.roster.AddCoApplicant("  Vikram Rao ", s.now)
		s.Require().NoError(err)
		second, err := s.roster.AddCoApplicant("Meera Rao", s.now)
		s.Require().NoError(err)

		list := s.roster.List()
		s.Require().Len(list, 3)
		s.Equal(first, list[1].ID)
		s.Equal("Vikram Rao", list[1].DisplayName)
		s.Equal(second, list[2].ID)
		s.Equal(selected, s.roster.SelectedID())
	})

	s.Run("rejects invalid names", func() {
		before := s.roster.Len()
		for _, name := range []string{"", "   ", strings.Repeat("x", 129)} {
			_, err := s.roster.AddCoApplicant(name, s.now)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		}
		s.Equal(before, s.roster.Len())
	})
}

func (s *RosterSuite) TestRemove() {
	s.Run("primary cannot be removed", func() {
		_, err := s.roster.Remove(s.roster.Primary().ID)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		s.Equal(1, s.roster.Len())
	})

	s.Run("unknown applicant is an invariant violation", func() {
		_, err := s.roster.Remove(id.NewApplicantID())
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("removing the selected co-applicant falls back to the primary", func() {
		co, err := s.roster.AddCoApplicant("Vikram Rao", s.now)
		s.Require().NoError(err)
		_, err = s.roster.Select(co)
		s.Require().NoError(err)

		before := s.roster.Len()
		reselected, err := s.roster.Remove(co)
		s.Require().NoError(err)
		s.True(reselected)
		s.Equal(before-1, s.roster.Len())
		s.Equal(s.roster.Primary().ID, s.roster.SelectedID())
		_, ok := s.roster.Get(co)
		s.False(ok)
	})

	s.Run("removing an unselected co-applicant keeps the selection", func() {
		a, _ := s.roster.AddCoApplicant("A", s.now)
		b, _ := s.roster.AddCoApplicant("B", s.now)
		_, err := s.roster.Select(a)
		s.Require().NoError(err)

		reselected, err := s.roster.Remove(b)
		s.Require().NoError(err)
		s.False(reselected)
		s.Equal(a, s.roster.SelectedID())
	})
}

func (s *RosterSuite) TestSelect() {
	s.Run("unknown applicant is not found", func() {
		_, err := s.roster.Select(id.NewApplicantID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("returns the selected applicant", func() {
		co, _ := s.roster.AddCoApplicant("Vikram Rao", s.now)
		a, err := s.roster.Select(co)
		s.Require().NoError(err)
		s.Equal("Vikram Rao", a.DisplayName)
		s.Equal(co, s.roster.Selected().ID)
	})
}

// TestListReturnsCopies verifies callers cannot mutate roster state through List.
func (s *RosterSuite) TestListReturnsCopies() {
	list := s.roster.List()
	list[0].DisplayName = "Mallory"
	list[0].Lifecycle.State = models.StateVerified

	fresh := s.roster.List()
	s.Equal("Asha Rao", fresh[0].DisplayName)
	s.Equal(models.StateNotStarted, fresh[0].Lifecycle.State)
}

func (s *RosterSuite) TestFromSnapshot() {
	co, _ := s.roster.AddCoApplicant("Vikram Rao", s.now)
	_, _ = s.roster.Select(co)
	snap := &models.Snapshot{
		ApplicationID:       id.NewApplicationID(),
		SelectedApplicantID: s.roster.SelectedID(),
		Applicants:          s.roster.List(),
	}

	restored, err := FromSnapshot(snap)
	s.Require().NoError(err)
	s.Equal(s.roster.List(), restored.List())
	s.Equal(co, restored.SelectedID())

	snap.SelectedApplicantID = id.NewApplicantID()
	_, err = FromSnapshot(snap)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}
