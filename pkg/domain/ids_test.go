package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "loankyc/pkg/domain-errors"
)

// TestParseApplicantID_Invariants covers the rejection rules shared by every typed ID.
// Valid-input parsing is exercised by the HTTP handler tests.
func TestParseApplicantID_Invariants(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty string", ""},
		{"nil UUID", uuid.Nil.String()},
		{"not a UUID", "alice"},
		{"truncated UUID", "550e8400-e29b-41d4-a716"},
		{"oversized input", "550e8400-e29b-41d4-a716-446655440000-extra-bits"},
		{"null byte", "550e8400-e29b-41d4-a716-44665544000\x00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseApplicantID(tt.input)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		})
	}
}

func TestParseIDs_Consistency(t *testing.T) {
	valid := uuid.New().String()

	appID, err := ParseApplicationID(valid)
	require.NoError(t, err)
	assert.Equal(t, valid, appID.String())

	applicantID, err := ParseApplicantID(valid)
	require.NoError(t, err)
	assert.Equal(t, valid, applicantID.String())

	attemptID, err := ParseAttemptID(valid)
	require.NoError(t, err)
	assert.Equal(t, valid, attemptID.String())

	for _, parse := range []func(string) error{
		func(s string) error { _, err := ParseApplicationID(s); return err },
		func(s string) error { _, err := ParseApplicantID(s); return err },
		func(s string) error { _, err := ParseAttemptID(s); return err },
	} {
		assert.True(t, dErrors.HasCode(parse(""), dErrors.CodeInvalidInput))
		assert.True(t, dErrors.HasCode(parse(uuid.Nil.String()), dErrors.CodeInvalidInput))
	}
}

func TestApplicantID_JSONMapKey(t *testing.T) {
	id := NewApplicantID()
	raw, err := json.Marshal(map[ApplicantID]string{id: "verified"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"`+id.String()+`":"verified"}`, string(raw))

	var back map[ApplicantID]string
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, "verified", back[id])
}

func TestNewIDs_AreNotNil(t *testing.T) {
	assert.False(t, NewApplicationID().IsNil())
	assert.False(t, NewApplicantID().IsNil())
	assert.False(t, NewAttemptID().IsNil())
	assert.True(t, ApplicantID{}.IsNil())
}
