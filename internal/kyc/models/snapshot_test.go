package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "loankyc/pkg/domain"
	dErrors "loankyc/pkg/domain-errors"
)

func validSnapshot(t *testing.T) Snapshot {
	t.Helper()
	primary, err := NewApplicant(id.NewApplicantID(), "Asha Rao", true, t0)
	require.NoError(t, err)
	co, err := NewApplicant(id.NewApplicantID(), "Vikram Rao", false, t0)
	require.NoError(t, err)
	attempt := id.NewAttemptID()
	require.NoError(t, co.Lifecycle.Begin(id.MethodTaxID, attempt, t0))
	require.NoError(t, co.Lifecycle.Succeed(attempt, &VerificationResult{
		VerificationID: "NSDL-ABCD1234",
		Timestamp:      t0,
		MethodFields:   map[string]any{"pan_status": "valid"},
	}, t0))
	return Snapshot{
		ApplicationID:       id.NewApplicationID(),
		Version:             3,
		SelectedApplicantID: co.ID,
		Applicants:          []Applicant{*primary, *co},
		SeenVerificationIDs: []string{"NSDL-ABCD1234"},
		UpdatedAt:           t0,
	}
}

func TestSnapshot_Validate(t *testing.T) {
	t.Run("valid snapshot passes", func(t *testing.T) {
		s := validSnapshot(t)
		assert.NoError(t, s.Validate())
	})

	tests := []struct {
		name   string
		mutate func(s *Snapshot)
	}{
		{"no applicants", func(s *Snapshot) { s.Applicants = nil }},
		{"primary not first", func(s *Snapshot) { s.Applicants[0], s.Applicants[1] = s.Applicants[1], s.Applicants[0] }},
		{"two primaries", func(s *Snapshot) { s.Applicants[1].IsPrimary = true }},
		{"duplicate ids", func(s *Snapshot) { s.Applicants[1].ID = s.Applicants[0].ID }},
		{"selection off roster", func(s *Snapshot) { s.SelectedApplicantID = id.NewApplicantID() }},
		{"blank name", func(s *Snapshot) { s.Applicants[1].DisplayName = " " }},
		{"broken lifecycle", func(s *Snapshot) { s.Applicants[1].Lifecycle.Result = nil }},
		{"missing application id", func(s *Snapshot) { s.ApplicationID = id.ApplicationID{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSnapshot(t)
			tt.mutate(&s)
			assert.True(t, dErrors.HasCode(s.Validate(), dErrors.CodeInvariantViolation))
		})
	}
}

func TestSnapshot_JSONShape(t *testing.T) {
	s := validSnapshot(t)
	raw, err := json.Marshal(s)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	applicants := decoded["applicants"].([]any)
	primary := applicants[0].(map[string]any)
	lifecycle := primary["lifecycle"].(map[string]any)
	assert.Equal(t, "not_started", lifecycle["state"])
	assert.NotContains(t, lifecycle, "attempt_id")
	assert.NotContains(t, lifecycle, "result")

	co := applicants[1].(map[string]any)["lifecycle"].(map[string]any)
	assert.Equal(t, "verified", co["state"])
	assert.Equal(t, "tax-id", co["method"])

	var back Snapshot
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.NoError(t, back.Validate())
	assert.Equal(t, s.SelectedApplicantID, back.SelectedApplicantID)
}
