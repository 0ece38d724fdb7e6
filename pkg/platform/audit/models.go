package audit

import (
	"context"
	"time"

	id "loankyc/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory significance: who was
	// verified, by which method, and what the provider returned.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events worth alerting on, such as callbacks that
	// do not match any live attempt.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine roster activity. Can be sampled.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category      EventCategory    `json:"category"`
	Timestamp     time.Time        `json:"timestamp"`
	ApplicationID id.ApplicationID `json:"application_id"`
	ApplicantID   id.ApplicantID   `json:"applicant_id,omitzero"`
	AttemptID     id.AttemptID     `json:"attempt_id,omitzero"`
	Action        string           `json:"action"`
	Method        string           `json:"method,omitempty"`
	// Decision is the resulting lifecycle state for verification events.
	Decision string `json:"decision,omitempty"`
	Reason   string `json:"reason,omitempty"`
	// VerificationID of an accepted result. Never the result's personal data.
	VerificationID string `json:"verification_id,omitempty"`
	RequestID      string `json:"request_id,omitempty"`
}

type AuditEvent string

const (
	// Roster events
	EventApplicantAdded    AuditEvent = "applicant_added"
	EventApplicantRemoved  AuditEvent = "applicant_removed"
	EventApplicantSelected AuditEvent = "applicant_selected"

	// Verification events
	EventVerificationStarted  AuditEvent = "verification_started"
	EventVerificationVerified AuditEvent = "verification_verified"
	EventVerificationRejected AuditEvent = "verification_rejected"
	EventVerificationReset    AuditEvent = "verification_reset"
	EventCompletionDiscarded  AuditEvent = "completion_discarded"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventVerificationVerified: CategoryCompliance,
	EventVerificationRejected: CategoryCompliance,
	EventVerificationReset:    CategoryCompliance,
	EventApplicantRemoved:     CategoryCompliance,

	EventCompletionDiscarded: CategorySecurity,

	EventApplicantAdded:      CategoryOperations,
	EventApplicantSelected:   CategoryOperations,
	EventVerificationStarted: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events and lists them per application.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByApplication(ctx context.Context, applicationID id.ApplicationID) ([]Event, error)
}

// Sink receives a copy of every persisted event (e.g. a Kafka topic).
type Sink interface {
	Publish(ctx context.Context, event Event) error
}
