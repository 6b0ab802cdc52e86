package domain

import (
	"time"

	"github.com/google/uuid"
)

type NotificationEvent string

const (
	EventJobAssigned       NotificationEvent = "job.assigned"
	EventJobSubmitted      NotificationEvent = "job.submitted"
	EventRevisionRequested NotificationEvent = "job.revision_requested"
	EventJobCompleted      NotificationEvent = "job.completed"
	EventJobCancelled      NotificationEvent = "job.cancelled"
	EventPaymentCreated    NotificationEvent = "payment.created"
	EventPaymentCompleted  NotificationEvent = "payment.completed"
	EventDisputeResolved   NotificationEvent = "payment.dispute_resolved"
)

// Notification is an in-app alert delivered fire-and-forget; losing one
// never rolls back the transition that produced it.
type Notification struct {
	RecipientID uuid.UUID         `json:"recipientId"`
	Event       NotificationEvent `json:"event"`
	JobID       *uuid.UUID        `json:"jobId,omitempty"`
	PaymentID   *uuid.UUID        `json:"paymentId,omitempty"`
	Message     string            `json:"message"`
	At          time.Time         `json:"at"`
}
