package domain

import (
	"context"

	"github.com/google/uuid"
)

// Store is the persistence surface for jobs, applications and
// payments. Update methods perform a compare-and-swap on the record's
// version and fail with ConcurrentModification when the row moved
// underneath the caller. Transact runs fn against a store bound to a
// single transaction; returning an error rolls everything back.
type Store interface {
	GetJob(ctx context.Context, id uuid.UUID) (*Job, error)
	ListJobs(ctx context.Context, f JobFilter) ([]*Job, error)
	CreateJob(ctx context.Context, j *Job) error
	UpdateJob(ctx context.Context, j *Job) error

	GetApplication(ctx context.Context, id uuid.UUID) (*Application, error)
	ListApplications(ctx context.Context, jobID uuid.UUID) ([]*Application, error)
	CreateApplication(ctx context.Context, a *Application) error
	UpdateApplication(ctx context.Context, a *Application) error

	GetPayment(ctx context.Context, id uuid.UUID) (*Payment, error)
	ListPayments(ctx context.Context, f PaymentFilter) ([]*Payment, error)
	CreatePayment(ctx context.Context, p *Payment) error
	UpdatePayment(ctx context.Context, p *Payment) error

	Transact(ctx context.Context, fn func(Store) error) error
}

// Notifier delivers in-app alerts. Delivery is fire-and-forget: callers
// invoke it only after a transition has committed and ignore failures.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}
