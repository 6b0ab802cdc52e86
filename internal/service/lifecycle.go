package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/belimuno/marketplace/internal/domain"
)

// JobLifecycle gates which client and worker actions are legal for a
// job's current status and applies the resulting transitions.
type JobLifecycle struct {
	store    domain.Store
	notifier domain.Notifier
	log      *zap.Logger
	now      func() time.Time
}

func NewJobLifecycle(store domain.Store, notifier domain.Notifier, log *zap.Logger) *JobLifecycle {
	return &JobLifecycle{store: store, notifier: notifier, log: log, now: time.Now}
}

type CreateJobInput struct {
	Title        string
	Description  string
	BudgetAmount int64
	Currency     string
	Deadline     *time.Time
	Draft        bool
}

func (s *JobLifecycle) CreateJob(ctx context.Context, actor Actor, in CreateJobInput) (*domain.Job, error) {
	if in.Title == "" {
		return nil, &domain.ValidationError{Field: "title", Reason: "title is required"}
	}
	if in.BudgetAmount <= 0 {
		return nil, &domain.ValidationError{Field: "budget", Reason: "budget must be positive"}
	}
	now := s.now()
	status := domain.JobPosted
	if in.Draft {
		status = domain.JobDraft
	}
	job := &domain.Job{
		ID:          uuid.New(),
		ClientID:    actor.ID,
		Title:       in.Title,
		Description: in.Description,
		Budget:      domain.NewMoney(in.BudgetAmount, in.Currency),
		Deadline:    in.Deadline,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *JobLifecycle) GetJob(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	return s.store.GetJob(ctx, id)
}

func (s *JobLifecycle) ListJobs(ctx context.Context, f domain.JobFilter) ([]*domain.Job, error) {
	return s.store.ListJobs(ctx, f)
}

func (s *JobLifecycle) PublishJob(ctx context.Context, actor Actor, jobID uuid.UUID) (*domain.Job, error) {
	return s.updateJob(ctx, actor, jobID, requireClient, func(job *domain.Job) error {
		return job.Transition(domain.JobPosted)
	})
}

// Apply records a worker's bid on a posted job. A worker holds at most
// one pending application per job.
func (s *JobLifecycle) Apply(ctx context.Context, actor Actor, jobID uuid.UUID, coverLetter string, proposedAmount *int64) (*domain.Application, error) {
	var app *domain.Application
	err := s.store.Transact(ctx, func(tx domain.Store) error {
		job, err := tx.GetJob(ctx, jobID)
		if err != nil {
			return err
		}
		if job.Status != domain.JobPosted {
			return &domain.InvalidStateTransitionError{Entity: "job", From: string(job.Status), To: "apply"}
		}
		existing, err := tx.ListApplications(ctx, jobID)
		if err != nil {
			return err
		}
		for _, e := range existing {
			if e.WorkerID == actor.ID && e.Status == domain.ApplicationPending {
				return &domain.ValidationError{Field: "application", Reason: "worker already applied to this job"}
			}
		}
		now := s.now()
		app = &domain.Application{
			ID:          uuid.New(),
			JobID:       jobID,
			WorkerID:    actor.ID,
			CoverLetter: coverLetter,
			Status:      domain.ApplicationPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if proposedAmount != nil {
			m := domain.NewMoney(*proposedAmount, job.Budget.Currency)
			if !m.IsPositive() {
				return &domain.ValidationError{Field: "proposedAmount", Reason: "proposed amount must be positive"}
			}
			app.ProposedBudget = &m
		}
		return tx.CreateApplication(ctx, app)
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

func (s *JobLifecycle) ListApplications(ctx context.Context, jobID uuid.UUID) ([]*domain.Application, error) {
	return s.store.ListApplications(ctx, jobID)
}

// AcceptApplication assigns the worker and rejects every other pending
// application for the job, all in one transaction.
func (s *JobLifecycle) AcceptApplication(ctx context.Context, actor Actor, jobID, appID uuid.UUID) (*domain.Job, error) {
	var job *domain.Job
	var accepted *domain.Application
	err := s.store.Transact(ctx, func(tx domain.Store) error {
		var err error
		job, err = tx.GetJob(ctx, jobID)
		if err != nil {
			return err
		}
		if !actor.Admin() && job.ClientID != actor.ID {
			return domain.ErrForbidden
		}
		if job.Status != domain.JobPosted {
			return &domain.InvalidStateTransitionError{Entity: "job", From: string(job.Status), To: string(domain.JobAssigned)}
		}
		accepted, err = tx.GetApplication(ctx, appID)
		if err != nil {
			return err
		}
		if accepted.JobID != jobID {
			return domain.ErrNotFound
		}
		if err := accepted.Accept(); err != nil {
			return err
		}
		if err := tx.UpdateApplication(ctx, accepted); err != nil {
			return err
		}
		if err := job.Assign(accepted.WorkerID); err != nil {
			return err
		}
		others, err := tx.ListApplications(ctx, jobID)
		if err != nil {
			return err
		}
		for _, o := range others {
			if o.ID == accepted.ID || o.Status != domain.ApplicationPending {
				continue
			}
			if err := o.Reject(); err != nil {
				return err
			}
			if err := tx.UpdateApplication(ctx, o); err != nil {
				return err
			}
		}
		return tx.UpdateJob(ctx, job)
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, domain.Notification{
		RecipientID: accepted.WorkerID,
		Event:       domain.EventJobAssigned,
		JobID:       &job.ID,
		Message:     fmt.Sprintf("You were assigned to %q", job.Title),
		At:          s.now(),
	})
	return job, nil
}

func (s *JobLifecycle) RejectApplication(ctx context.Context, actor Actor, jobID, appID uuid.UUID) (*domain.Application, error) {
	var app *domain.Application
	err := s.store.Transact(ctx, func(tx domain.Store) error {
		job, err := tx.GetJob(ctx, jobID)
		if err != nil {
			return err
		}
		if !actor.Admin() && job.ClientID != actor.ID {
			return domain.ErrForbidden
		}
		if job.Status != domain.JobPosted {
			return &domain.InvalidStateTransitionError{Entity: "job", From: string(job.Status), To: "reject application"}
		}
		app, err = tx.GetApplication(ctx, appID)
		if err != nil {
			return err
		}
		if app.JobID != jobID {
			return domain.ErrNotFound
		}
		if err := app.Reject(); err != nil {
			return err
		}
		return tx.UpdateApplication(ctx, app)
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

func (s *JobLifecycle) WithdrawApplication(ctx context.Context, actor Actor, appID uuid.UUID) (*domain.Application, error) {
	app, err := s.store.GetApplication(ctx, appID)
	if err != nil {
		return nil, err
	}
	if app.WorkerID != actor.ID {
		return nil, domain.ErrForbidden
	}
	if err := app.Withdraw(); err != nil {
		return nil, err
	}
	if err := s.store.UpdateApplication(ctx, app); err != nil {
		return nil, err
	}
	return app, nil
}

// StartWork moves an assigned (or revision-requested) job into
// in_progress. Only the assigned worker may start.
func (s *JobLifecycle) StartWork(ctx context.Context, actor Actor, jobID uuid.UUID) (*domain.Job, error) {
	return s.updateJob(ctx, actor, jobID, requireWorker, func(job *domain.Job) error {
		return job.Transition(domain.JobInProgress)
	})
}

func (s *JobLifecycle) PostProgress(ctx context.Context, actor Actor, jobID uuid.UUID, percent int, note string) (*domain.Job, error) {
	return s.updateJob(ctx, actor, jobID, requireWorker, func(job *domain.Job) error {
		return job.AdvanceProgress(percent, note, s.now())
	})
}

// SubmitWork delivers the job to the client for review.
func (s *JobLifecycle) SubmitWork(ctx context.Context, actor Actor, jobID uuid.UUID) (*domain.Job, error) {
	job, err := s.updateJob(ctx, actor, jobID, requireWorker, func(job *domain.Job) error {
		return job.Transition(domain.JobSubmitted)
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, domain.Notification{
		RecipientID: job.ClientID,
		Event:       domain.EventJobSubmitted,
		JobID:       &job.ID,
		Message:     fmt.Sprintf("Work on %q was submitted for review", job.Title),
		At:          s.now(),
	})
	return job, nil
}

// RequestRevision rejects a delivery and sends the job back to the
// worker. The reason is mandatory.
func (s *JobLifecycle) RequestRevision(ctx context.Context, actor Actor, jobID uuid.UUID, reason string) (*domain.Job, error) {
	job, err := s.updateJob(ctx, actor, jobID, requireClient, func(job *domain.Job) error {
		return job.RequestRevision(reason, s.now())
	})
	if err != nil {
		return nil, err
	}
	if job.WorkerID != nil {
		s.notifier.Notify(ctx, domain.Notification{
			RecipientID: *job.WorkerID,
			Event:       domain.EventRevisionRequested,
			JobID:       &job.ID,
			Message:     fmt.Sprintf("Revision requested on %q: %s", job.Title, reason),
			At:          s.now(),
		})
	}
	return job, nil
}

// CompleteWithRating records the client's rating and opens a pending
// manual-check payment for the job's budget (or the accepted
// application's proposed budget when present). The job itself stays in
// its delivered status: completion is deferred until the payment
// completes.
func (s *JobLifecycle) CompleteWithRating(ctx context.Context, actor Actor, jobID uuid.UUID, rating int, review string) (*domain.Payment, error) {
	var payment *domain.Payment
	err := s.store.Transact(ctx, func(tx domain.Store) error {
		job, err := tx.GetJob(ctx, jobID)
		if err != nil {
			return err
		}
		if !actor.Admin() && job.ClientID != actor.ID {
			return domain.ErrForbidden
		}
		if err := job.Rate(rating, review); err != nil {
			return err
		}
		if job.WorkerID == nil {
			return &domain.InvalidStateTransitionError{Entity: "job", From: string(job.Status), To: string(domain.JobCompleted)}
		}
		amount := job.Budget
		apps, err := tx.ListApplications(ctx, jobID)
		if err != nil {
			return err
		}
		for _, a := range apps {
			if a.Status == domain.ApplicationAccepted && a.ProposedBudget != nil {
				amount = *a.ProposedBudget
			}
		}
		payment = domain.NewJobPayment(jobID, job.ClientID, *job.WorkerID, amount, s.now())
		if err := tx.CreatePayment(ctx, payment); err != nil {
			return err
		}
		return tx.UpdateJob(ctx, job)
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, domain.Notification{
		RecipientID: payment.RecipientID,
		Event:       domain.EventPaymentCreated,
		JobID:       &jobID,
		PaymentID:   &payment.ID,
		Message:     fmt.Sprintf("Payment %s of %s is pending review", payment.TransactionID, payment.Amount),
		At:          s.now(),
	})
	return payment, nil
}

// CancelJob aborts a job at any pre-completion point. Allowed for the
// owning client and for admins.
func (s *JobLifecycle) CancelJob(ctx context.Context, actor Actor, jobID uuid.UUID) (*domain.Job, error) {
	job, err := s.updateJob(ctx, actor, jobID, requireClient, func(job *domain.Job) error {
		return job.Transition(domain.JobCancelled)
	})
	if err != nil {
		return nil, err
	}
	if job.WorkerID != nil {
		s.notifier.Notify(ctx, domain.Notification{
			RecipientID: *job.WorkerID,
			Event:       domain.EventJobCancelled,
			JobID:       &job.ID,
			Message:     fmt.Sprintf("Job %q was cancelled", job.Title),
			At:          s.now(),
		})
	}
	return job, nil
}

type ownership int

const (
	requireClient ownership = iota
	requireWorker
)

// updateJob is the shared load-mutate-save path for single-record job
// operations, with record-level ownership checks.
func (s *JobLifecycle) updateJob(ctx context.Context, actor Actor, jobID uuid.UUID, own ownership, mutate func(*domain.Job) error) (*domain.Job, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !actor.Admin() {
		switch own {
		case requireClient:
			if job.ClientID != actor.ID {
				return nil, domain.ErrForbidden
			}
		case requireWorker:
			if job.WorkerID == nil || *job.WorkerID != actor.ID {
				return nil, domain.ErrForbidden
			}
		}
	}
	if err := mutate(job); err != nil {
		return nil, err
	}
	if err := s.store.UpdateJob(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}
