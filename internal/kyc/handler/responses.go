package handler

import (
	"time"

	"loankyc/internal/kyc/methods"
	"loankyc/internal/kyc/models"
	"loankyc/internal/kyc/service"
	id "loankyc/pkg/domain"
	"loankyc/pkg/platform/audit"
)

// ApplicantResponse flattens an applicant and its lifecycle.
type ApplicantResponse struct {
	ID            string                     `json:"id"`
	DisplayName   string                     `json:"display_name"`
	IsPrimary     bool                       `json:"is_primary"`
	State         string                     `json:"state"`
	Method        string                     `json:"method,omitempty"`
	AttemptID     string                     `json:"attempt_id,omitempty"`
	Result        *models.VerificationResult `json:"result,omitempty"`
	FailureReason string                     `json:"failure_reason,omitempty"`
	UpdatedAt     time.Time                  `json:"updated_at"`
}

func toApplicantResponse(a models.Applicant) ApplicantResponse {
	resp := ApplicantResponse{
		ID:            a.ID.String(),
		DisplayName:   a.DisplayName,
		IsPrimary:     a.IsPrimary,
		State:         string(a.State()),
		Method:        string(a.Lifecycle.Method),
		Result:        a.Lifecycle.Result,
		FailureReason: a.Lifecycle.FailureReason,
		UpdatedAt:     a.Lifecycle.UpdatedAt,
	}
	if !a.Lifecycle.AttemptID.IsNil() {
		resp.AttemptID = a.Lifecycle.AttemptID.String()
	}
	return resp
}

// ApplicationResponse is the full view of one loan application.
type ApplicationResponse struct {
	ApplicationID       string              `json:"application_id"`
	Version             int64               `json:"version"`
	SelectedApplicantID string              `json:"selected_applicant_id"`
	Applicants          []ApplicantResponse `json:"applicants"`
	Status              map[string]string   `json:"status"`
	Ready               bool                `json:"ready_to_proceed"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

func toApplicationResponse(v *service.View) ApplicationResponse {
	applicants := make([]ApplicantResponse, 0, len(v.Snapshot.Applicants))
	for _, a := range v.Snapshot.Applicants {
		applicants = append(applicants, toApplicantResponse(a))
	}
	return ApplicationResponse{
		ApplicationID:       v.Snapshot.ApplicationID.String(),
		Version:             v.Snapshot.Version,
		SelectedApplicantID: v.Snapshot.SelectedApplicantID.String(),
		Applicants:          applicants,
		Status:              statusStrings(v.Status),
		Ready:               v.Ready,
		UpdatedAt:           v.Snapshot.UpdatedAt,
	}
}

// StatusResponse is the aggregate status of an application.
type StatusResponse struct {
	Applicants map[string]string `json:"applicants"`
	Ready      bool              `json:"ready_to_proceed"`
}

func statusStrings(status map[id.ApplicantID]models.State) map[string]string {
	out := make(map[string]string, len(status))
	for applicantID, state := range status {
		out[applicantID.String()] = string(state)
	}
	return out
}

type VerificationStartedResponse struct {
	AttemptID string            `json:"attempt_id"`
	Applicant ApplicantResponse `json:"applicant"`
}

type CallbackResponse struct {
	Applied bool `json:"applied"`
}

type MethodsResponse struct {
	Methods []methods.Descriptor `json:"methods"`
}

type AuditResponse struct {
	Events []audit.Event `json:"events"`
}
