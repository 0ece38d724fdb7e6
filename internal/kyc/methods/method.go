// Package methods defines the contract every verification method satisfies and
// the registry that maps method ids to their handlers.
package methods

import (
	"context"
	"time"

	"loankyc/internal/kyc/models"
	id "loankyc/pkg/domain"
)

// Method is the uniform interface of a verification strategy.
//
// Begin starts the method for one attempt and returns once the method is
// running. The method reports exactly one terminal outcome through the attempt,
// either synchronously from inside Begin or later from another goroutine.
// An error from Begin means the method could not start and nothing will be reported.
//
// A method whose descriptor sets Callback does not report through the attempt:
// its provider posts the outcome to the callback route, authenticated with the
// attempt's CallbackToken. Outcomes for all other methods are only accepted
// from inside the process.
type Method interface {
	ID() id.MethodID
	Describe() Descriptor
	Begin(ctx context.Context, attempt *Attempt) error
}

// Descriptor tells a presentation layer how to render a method.
type Descriptor struct {
	ID           id.MethodID  `json:"id"`
	Label        string       `json:"label"`
	Description  string       `json:"description"`
	ResultPrefix string       `json:"result_prefix"`
	Inputs       []InputField `json:"inputs"`
	Stages       []string     `json:"stages,omitempty"`
	Callback     bool         `json:"callback"`
}

type InputField struct {
	Name        string `json:"name"`
	Required    bool   `json:"required"`
	Description string `json:"description,omitempty"`
}

// Subject identifies the applicant being verified.
type Subject struct {
	ApplicantID id.ApplicantID
	DisplayName string
}

// Reporter delivers an outcome back to whoever started the attempt.
type Reporter func(ctx context.Context, outcome models.Outcome) (applied bool, err error)

// Attempt is the handle a method uses to report its outcome. The orchestrator
// creates one per ChooseMethod call; methods never construct their own.
type Attempt struct {
	ID        id.AttemptID
	Method    id.MethodID
	Subject   Subject
	Inputs    map[string]string
	StartedAt time.Time
	// CallbackToken is set for callback methods only; the provider presents it
	// when reporting the outcome.
	CallbackToken string

	report Reporter
}

func NewAttempt(attemptID id.AttemptID, method id.MethodID, subject Subject, inputs map[string]string, startedAt time.Time, report Reporter) *Attempt {
	if inputs == nil {
		inputs = map[string]string{}
	}
	return &Attempt{
		ID:        attemptID,
		Method:    method,
		Subject:   subject,
		Inputs:    inputs,
		StartedAt: startedAt,
		report:    report,
	}
}

// Input returns one input value, or "" when absent.
func (a *Attempt) Input(key string) string {
	return a.Inputs[key]
}

// Succeed reports a verified result. A ValidationError means the result was
// refused and the attempt is still pending.
func (a *Attempt) Succeed(ctx context.Context, result *models.VerificationResult) error {
	_, err := a.report(ctx, models.Success(a.ID, result))
	return err
}

// Fail reports a rejected attempt.
func (a *Attempt) Fail(ctx context.Context, reason string) error {
	_, err := a.report(ctx, models.Failure(a.ID, reason))
	return err
}
