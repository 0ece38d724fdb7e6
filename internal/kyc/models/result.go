package models

import (
	"errors"
	"maps"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	dErrors "loankyc/pkg/domain-errors"
)

var validate = newValidator()

// newValidator reports fields by their json names, as clients send them.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// VerificationResult is the normalized record every method produces on success.
// VerificationID and Timestamp are mandatory; everything else depends on the method.
type VerificationResult struct {
	VerificationID string    `json:"verification_id" validate:"required,max=128"`
	Timestamp      time.Time `json:"timestamp" validate:"required"`
	SubjectName    string    `json:"subject_name,omitempty"`
	DateOfBirth    string    `json:"date_of_birth,omitempty"`
	Gender         string    `json:"gender,omitempty"`
	Address        string    `json:"address,omitempty"`
	DocumentID     string    `json:"document_id,omitempty"`
	// Photo is an opaque URI or reference, never image bytes.
	Photo        string         `json:"photo,omitempty"`
	MethodFields map[string]any `json:"method_fields,omitempty"`
}

// Validate checks the mandatory fields of a result.
func (r *VerificationResult) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeValidation, "verification result is required")
	}
	if err := validate.Struct(r); err != nil {
		return validationError(err)
	}
	return nil
}

// Clone returns a deep copy; MethodFields values are copied shallowly.
func (r *VerificationResult) Clone() *VerificationResult {
	if r == nil {
		return nil
	}
	c := *r
	c.MethodFields = maps.Clone(r.MethodFields)
	return &c
}

// NormalizeDisplayName trims a display name and enforces its length rules.
func NormalizeDisplayName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if err := validate.Var(name, "required,max=128"); err != nil {
		if name == "" {
			return "", dErrors.New(dErrors.CodeValidation, "display name cannot be empty")
		}
		return "", dErrors.New(dErrors.CodeValidation, "display name must be 128 characters or less")
	}
	return name, nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid verification result")
	}
	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return dErrors.New(dErrors.CodeValidation, field+" is required")
	case "max":
		return dErrors.New(dErrors.CodeValidation, field+" must be at most "+fe.Param()+" characters")
	default:
		return dErrors.New(dErrors.CodeValidation, field+" is invalid")
	}
}
