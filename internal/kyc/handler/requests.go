package handler

import (
	"strings"

	"loankyc/internal/kyc/models"
	id "loankyc/pkg/domain"
	dErrors "loankyc/pkg/domain-errors"
)

const (
	maxInputs     = 32
	maxInputValue = 512
)

// CreateApplicationRequest is the body of POST /applications.
// Name rules are enforced by the domain so the message matches every entry point.
type CreateApplicationRequest struct {
	PrimaryName string `json:"primary_name"`
}

func (r *CreateApplicationRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.PrimaryName = strings.TrimSpace(r.PrimaryName)
	return nil
}

// AddApplicantRequest is the body of POST /applications/{applicationID}/applicants.
type AddApplicantRequest struct {
	Name string `json:"name"`
}

func (r *AddApplicantRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Name = strings.TrimSpace(r.Name)
	return nil
}

// SelectApplicantRequest is the body of PUT /applications/{applicationID}/selection.
type SelectApplicantRequest struct {
	ApplicantID string `json:"applicant_id"`

	parsedApplicantID id.ApplicantID
}

func (r *SelectApplicantRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	applicantID, err := id.ParseApplicantID(strings.TrimSpace(r.ApplicantID))
	if err != nil {
		return err
	}
	r.parsedApplicantID = applicantID
	return nil
}

// StartVerificationRequest is the body of
// POST /applications/{applicationID}/applicants/{applicantID}/verification.
type StartVerificationRequest struct {
	Method string            `json:"method"`
	Inputs map[string]string `json:"inputs"`
}

func (r *StartVerificationRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Method = strings.TrimSpace(r.Method)
	if r.Method == "" {
		return dErrors.New(dErrors.CodeValidation, "method is required")
	}
	if len(r.Inputs) > maxInputs {
		return dErrors.New(dErrors.CodeValidation, "too many inputs")
	}
	for k, v := range r.Inputs {
		if len(v) > maxInputValue {
			return dErrors.New(dErrors.CodeValidation, "input "+k+" is too long")
		}
		r.Inputs[k] = strings.TrimSpace(v)
	}
	return nil
}

// CallbackRequest is the body of
// POST /applications/{applicationID}/applicants/{applicantID}/verification/callback,
// used by providers that report their outcome out of band.
type CallbackRequest struct {
	AttemptID string                     `json:"attempt_id"`
	OK        bool                       `json:"ok"`
	Result    *models.VerificationResult `json:"result"`
	Reason    string                     `json:"reason"`

	parsedAttemptID id.AttemptID
}

func (r *CallbackRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	attemptID, err := id.ParseAttemptID(strings.TrimSpace(r.AttemptID))
	if err != nil {
		return err
	}
	r.parsedAttemptID = attemptID
	if r.OK && r.Result == nil {
		return dErrors.New(dErrors.CodeValidation, "result is required when ok is true")
	}
	if !r.OK && r.Result != nil {
		return dErrors.New(dErrors.CodeValidation, "result must be omitted when ok is false")
	}
	return nil
}

// Outcome converts the callback into the orchestrator's outcome.
func (r *CallbackRequest) Outcome() models.Outcome {
	if r.OK {
		return models.Success(r.parsedAttemptID, r.Result)
	}
	return models.Failure(r.parsedAttemptID, r.Reason)
}
