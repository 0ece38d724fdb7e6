package domain

import (
	"github.com/google/uuid"

	dErrors "loankyc/pkg/domain-errors"
)

// Typed identifiers keep application, applicant, and attempt IDs from being
// mixed up at compile time. All are UUIDs; the nil UUID is never a valid ID.
type (
	ApplicationID uuid.UUID
	ApplicantID   uuid.UUID
	AttemptID     uuid.UUID
)

func NewApplicationID() ApplicationID { return ApplicationID(uuid.New()) }
func NewApplicantID() ApplicantID     { return ApplicantID(uuid.New()) }
func NewAttemptID() AttemptID         { return AttemptID(uuid.New()) }

// ParseApplicationID parses an application ID from external input.
//
// Errors: returns CodeInvalidInput when the value is empty, malformed, or the nil UUID.
func ParseApplicationID(s string) (ApplicationID, error) {
	u, err := parseUUID(s, "application_id")
	return ApplicationID(u), err
}

// ParseApplicantID parses an applicant ID from external input.
func ParseApplicantID(s string) (ApplicantID, error) {
	u, err := parseUUID(s, "applicant_id")
	return ApplicantID(u), err
}

// ParseAttemptID parses an attempt ID from external input.
func ParseAttemptID(s string) (AttemptID, error) {
	u, err := parseUUID(s, "attempt_id")
	return AttemptID(u), err
}

func parseUUID(s, field string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+field)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" cannot be nil")
	}
	return u, nil
}

func (i ApplicationID) String() string { return uuid.UUID(i).String() }
func (i ApplicationID) IsNil() bool    { return uuid.UUID(i) == uuid.Nil }
func (i ApplicationID) MarshalText() ([]byte, error) {
	return uuid.UUID(i).MarshalText()
}
func (i *ApplicationID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(i).UnmarshalText(b)
}

func (i ApplicantID) String() string { return uuid.UUID(i).String() }
func (i ApplicantID) IsNil() bool    { return uuid.UUID(i) == uuid.Nil }
func (i ApplicantID) MarshalText() ([]byte, error) {
	return uuid.UUID(i).MarshalText()
}
func (i *ApplicantID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(i).UnmarshalText(b)
}

func (i AttemptID) String() string { return uuid.UUID(i).String() }
func (i AttemptID) IsNil() bool    { return uuid.UUID(i) == uuid.Nil }
func (i AttemptID) MarshalText() ([]byte, error) {
	return uuid.UUID(i).MarshalText()
}
func (i *AttemptID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(i).UnmarshalText(b)
}
