package domain

import (
	"time"

	"github.com/google/uuid"
)

type ApplicationStatus string

const (
	ApplicationPending   ApplicationStatus = "pending"
	ApplicationAccepted  ApplicationStatus = "accepted"
	ApplicationRejected  ApplicationStatus = "rejected"
	ApplicationWithdrawn ApplicationStatus = "withdrawn"
)

// Application is a worker's bid on a posted job. At most one
// application per job is ever accepted; accepting one rejects the rest.
type Application struct {
	ID             uuid.UUID         `json:"id"`
	JobID          uuid.UUID         `json:"jobId"`
	WorkerID       uuid.UUID         `json:"workerId"`
	CoverLetter    string            `json:"coverLetter,omitempty"`
	ProposedBudget *Money            `json:"proposedBudget,omitempty"`
	Status         ApplicationStatus `json:"status"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

func (a *Application) settle(to ApplicationStatus) error {
	if a.Status != ApplicationPending {
		return &InvalidStateTransitionError{Entity: "application", From: string(a.Status), To: string(to)}
	}
	a.Status = to
	return nil
}

func (a *Application) Accept() error   { return a.settle(ApplicationAccepted) }
func (a *Application) Reject() error   { return a.settle(ApplicationRejected) }
func (a *Application) Withdraw() error { return a.settle(ApplicationWithdrawn) }
