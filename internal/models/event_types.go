package models

import "time"

// EventType names an outbound notification event.
type EventType string

const (
	EventRequestCreated     EventType = "request.created"
	EventDecisionRecorded   EventType = "decision.recorded"
	EventRequestForwarded   EventType = "request.forwarded"
	EventRequestClosed      EventType = "request.closed"
	EventRequestCancelled   EventType = "request.cancelled"
	EventOfferSubmitted     EventType = "offer.submitted"
	EventOfferResolved      EventType = "offer.resolved"
	EventInstallmentOverdue EventType = "installment.overdue"
	EventInstallmentPaid    EventType = "installment.paid"
	EventContractCompleted  EventType = "contract.completed"
)

// Event is the model for the 'installment_events' outbox table.
// It is written in the same transaction as the change it describes.
type Event struct {
	ID         string            `json:"id" db:"id"`
	Type       EventType         `json:"type" db:"type"`
	EntityID   string            `json:"entityId" db:"entity_id"`
	RequestID  string            `json:"requestId" db:"request_id"`
	Status     string            `json:"status" db:"status"`
	Payload    map[string]string `json:"payload,omitempty" db:"payload"`
	OccurredAt time.Time         `json:"occurredAt" db:"occurred_at"`
}
