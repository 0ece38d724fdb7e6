package simulated

import (
	"regexp"
	"strings"
	"time"

	"loankyc/internal/kyc/methods"
	"loankyc/internal/kyc/models"
	id "loankyc/pkg/domain"
)

var (
	aadhaarPattern = regexp.MustCompile(`^[0-9]{12}$`)
	otpPattern     = regexp.MustCompile(`^[0-9]{6}$`)
	panPattern     = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	dobPattern     = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)
)

const sampleAddress = "123 MG Road, Bangalore, Karnataka - 560001"

// NewDocumentOTP simulates identity-document OTP verification: an OTP is
// requested for the document number and then confirmed.
func NewDocumentOTP(opts ...Option) methods.Method {
	return &method{
		cfg: newConfig(opts),
		desc: methods.Descriptor{
			ID:           id.MethodDocumentOTP,
			Label:        "Aadhaar OTP",
			Description:  "Verify with a one-time password sent to the mobile number linked to the identity document",
			ResultPrefix: "UIDAI-",
			Inputs: []methods.InputField{
				{Name: "aadhaar_number", Required: true, Description: "12 digit document number"},
				{Name: "otp", Required: true, Description: "6 digit one-time password"},
			},
			Stages: []string{"request_otp", "confirm_otp"},
		},
		validate: func(a *methods.Attempt) error {
			if !aadhaarPattern.MatchString(a.Input("aadhaar_number")) {
				return invalidInput(id.MethodDocumentOTP, "Aadhaar number must be 12 digits")
			}
			return nil
		},
		complete: func(a *methods.Attempt, vid string, now time.Time) (*models.VerificationResult, error) {
			if !otpPattern.MatchString(a.Input("otp")) {
				return nil, invalidInput(id.MethodDocumentOTP, "OTP must be 6 digits")
			}
			number := a.Input("aadhaar_number")
			return &models.VerificationResult{
				VerificationID: vid,
				Timestamp:      now,
				SubjectName:    a.Subject.DisplayName,
				DateOfBirth:    "15/05/1985",
				Gender:         "Male",
				Address:        sampleAddress,
				DocumentID:     "XXXX-XXXX-" + number[len(number)-4:],
				Photo:          "sim://photo/" + vid,
				MethodFields: map[string]any{
					"phone": "99XXXXXX45",
				},
			}, nil
		},
	}
}

// NewTaxID simulates matching a tax identifier against name and date of birth.
func NewTaxID(opts ...Option) methods.Method {
	return &method{
		cfg: newConfig(opts),
		desc: methods.Descriptor{
			ID:           id.MethodTaxID,
			Label:        "PAN verification",
			Description:  "Match the tax identifier with the applicant's name and date of birth",
			ResultPrefix: "NSDL-",
			Inputs: []methods.InputField{
				{Name: "pan_number", Required: true, Description: "format ABCDE1234F"},
				{Name: "name", Required: true, Description: "name as printed on the card"},
				{Name: "dob", Required: true, Description: "DD/MM/YYYY"},
			},
		},
		validate: func(a *methods.Attempt) error {
			if !panPattern.MatchString(a.Input("pan_number")) {
				return invalidInput(id.MethodTaxID, "Invalid PAN number format")
			}
			if len(strings.TrimSpace(a.Input("name"))) < 3 {
				return invalidInput(id.MethodTaxID, "Name must be at least 3 characters")
			}
			if !dobPattern.MatchString(a.Input("dob")) {
				return invalidInput(id.MethodTaxID, "Date format should be DD/MM/YYYY")
			}
			return nil
		},
		complete: func(a *methods.Attempt, vid string, now time.Time) (*models.VerificationResult, error) {
			return &models.VerificationResult{
				VerificationID: vid,
				Timestamp:      now,
				SubjectName:    strings.TrimSpace(a.Input("name")),
				DateOfBirth:    a.Input("dob"),
				DocumentID:     a.Input("pan_number"),
				MethodFields: map[string]any{
					"father_name": "Suresh Kumar",
					"pan_status":  "Active",
				},
			}, nil
		},
	}
}

// NewVideo simulates a live video session: face capture, location
// confirmation, then finalization.
func NewVideo(opts ...Option) methods.Method {
	return &method{
		cfg: newConfig(opts),
		desc: methods.Descriptor{
			ID:           id.MethodVideo,
			Label:        "Video KYC",
			Description:  "Live face capture with location confirmation",
			ResultPrefix: "VKYC-",
			Inputs: []methods.InputField{
				{Name: "location_confirmed", Required: true, Description: "true once the applicant shared location"},
				{Name: "location", Description: "reported location"},
				{Name: "device_info", Description: "browser and platform"},
			},
			Stages: []string{"capture", "location", "finalize"},
		},
		complete: func(a *methods.Attempt, vid string, now time.Time) (*models.VerificationResult, error) {
			if a.Input("location_confirmed") != "true" {
				return nil, methods.NewMethodError(methods.FailureAbandoned, id.MethodVideo,
					"video session ended before location was confirmed", nil)
			}
			return &models.VerificationResult{
				VerificationID: vid,
				Timestamp:      now,
				SubjectName:    a.Subject.DisplayName,
				Photo:          "sim://selfie/" + vid,
				MethodFields: map[string]any{
					"face_match_score":      98.5,
					"liveness_check_passed": true,
					"location":              inputOr(a, "location", "Bangalore, Karnataka"),
					"device_info":           inputOr(a, "device_info", "unknown device"),
				},
			}, nil
		},
	}
}

var documentTypes = map[string]bool{
	"aadhaar":  true,
	"pan":      true,
	"passport": true,
	"voter":    true,
	"driving":  true,
}

// NewOfflineUpload simulates uploading document images and a selfie for OCR review.
func NewOfflineUpload(opts ...Option) methods.Method {
	return &method{
		cfg: newConfig(opts),
		desc: methods.Descriptor{
			ID:           id.MethodOfflineUpload,
			Label:        "Offline document upload",
			Description:  "Upload an identity document and a selfie for review",
			ResultPrefix: "DOC-",
			Inputs: []methods.InputField{
				{Name: "document_type", Required: true, Description: "aadhaar, pan, passport, voter or driving"},
				{Name: "front_uploaded", Required: true},
				{Name: "back_uploaded", Description: "required unless document_type is pan"},
				{Name: "selfie_uploaded", Required: true},
			},
			Stages: []string{"upload_front", "upload_back", "upload_selfie", "process"},
		},
		validate: func(a *methods.Attempt) error {
			docType := a.Input("document_type")
			if !documentTypes[docType] {
				return invalidInput(id.MethodOfflineUpload, "Select a supported document type")
			}
			missing := a.Input("front_uploaded") != "true" || a.Input("selfie_uploaded") != "true"
			if docType != "pan" && a.Input("back_uploaded") != "true" {
				missing = true
			}
			if missing {
				return invalidInput(id.MethodOfflineUpload, "Please upload all required documents")
			}
			return nil
		},
		complete: func(a *methods.Attempt, vid string, now time.Time) (*models.VerificationResult, error) {
			return &models.VerificationResult{
				VerificationID: vid,
				Timestamp:      now,
				SubjectName:    a.Subject.DisplayName,
				DateOfBirth:    "15/05/1985",
				Photo:          "sim://selfie/" + vid,
				MethodFields: map[string]any{
					"document_type":  a.Input("document_type"),
					"ocr_confidence": 0.86,
				},
			}, nil
		},
	}
}

// NewRegistryFetch simulates fetching an existing record from the central KYC registry.
func NewRegistryFetch(opts ...Option) methods.Method {
	return &method{
		cfg: newConfig(opts),
		desc: methods.Descriptor{
			ID:           id.MethodRegistryFetch,
			Label:        "CKYC fetch",
			Description:  "Fetch an existing KYC record from the central registry",
			ResultPrefix: "CKYC-",
			Inputs: []methods.InputField{
				{Name: "ckyc_number", Required: true, Description: "14 character registry number"},
				{Name: "pan_number", Required: true, Description: "format ABCDE1234F"},
			},
		},
		validate: func(a *methods.Attempt) error {
			if len(a.Input("ckyc_number")) != 14 {
				return invalidInput(id.MethodRegistryFetch, "CKYC number must be 14 characters")
			}
			if !panPattern.MatchString(a.Input("pan_number")) {
				return invalidInput(id.MethodRegistryFetch, "Invalid PAN number format")
			}
			return nil
		},
		complete: func(a *methods.Attempt, vid string, now time.Time) (*models.VerificationResult, error) {
			return &models.VerificationResult{
				VerificationID: vid,
				Timestamp:      now,
				SubjectName:    a.Subject.DisplayName,
				DateOfBirth:    "15/05/1985",
				Gender:         "Male",
				Address:        sampleAddress,
				DocumentID:     a.Input("pan_number"),
				Photo:          "sim://photo/" + vid,
				MethodFields: map[string]any{
					"ckyc_number":      a.Input("ckyc_number"),
					"kyc_level_status": "Full KYC",
					"last_updated":     "12/03/2023",
				},
			}, nil
		},
	}
}

func inputOr(a *methods.Attempt, key, fallback string) string {
	if v := a.Input(key); v != "" {
		return v
	}
	return fallback
}
