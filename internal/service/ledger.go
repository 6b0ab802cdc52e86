package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/belimuno/marketplace/internal/domain"
)

// PaymentLedger owns the payment transition graph and its side effects
// on the associated job. Payment and job updates that belong together
// happen in one transaction, so a job can never read completed while
// its payment is still pending, or the other way round.
type PaymentLedger struct {
	store    domain.Store
	notifier domain.Notifier
	log      *zap.Logger
	now      func() time.Time
}

func NewPaymentLedger(store domain.Store, notifier domain.Notifier, log *zap.Logger) *PaymentLedger {
	return &PaymentLedger{store: store, notifier: notifier, log: log, now: time.Now}
}

func (s *PaymentLedger) GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	return s.store.GetPayment(ctx, id)
}

func (s *PaymentLedger) ListPayments(ctx context.Context, f domain.PaymentFilter) ([]*domain.Payment, error) {
	return s.store.ListPayments(ctx, f)
}

type AdjustmentInput struct {
	PayerID     uuid.UUID
	RecipientID uuid.UUID
	Amount      int64
	Currency    string
	Note        string
}

// CreateAdjustment opens an admin adjustment payment, which may exist
// without any job.
func (s *PaymentLedger) CreateAdjustment(ctx context.Context, actor Actor, in AdjustmentInput) (*domain.Payment, error) {
	if !actor.Admin() {
		return nil, domain.ErrForbidden
	}
	if in.Amount <= 0 {
		return nil, &domain.ValidationError{Field: "amount", Reason: "amount must be positive"}
	}
	p := domain.NewAdjustment(in.PayerID, in.RecipientID, domain.NewMoney(in.Amount, in.Currency), in.Note, s.now())
	if err := s.store.CreatePayment(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// MarkPaid confirms a manual-check payment and, in the same
// transaction, completes the associated job.
func (s *PaymentLedger) MarkPaid(ctx context.Context, actor Actor, paymentID uuid.UUID) (*domain.Payment, error) {
	if !actor.Admin() {
		return nil, domain.ErrForbidden
	}
	var payment *domain.Payment
	err := s.store.Transact(ctx, func(tx domain.Store) error {
		var err error
		payment, err = tx.GetPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if err := payment.MarkPaid(s.now()); err != nil {
			return err
		}
		if err := tx.UpdatePayment(ctx, payment); err != nil {
			return err
		}
		return s.completeJob(ctx, tx, payment)
	})
	if err != nil {
		return nil, err
	}
	s.notifyParties(ctx, payment, domain.EventPaymentCompleted,
		fmt.Sprintf("Payment %s of %s was confirmed", payment.TransactionID, payment.Amount))
	return payment, nil
}

// RecordBreakdown validates and persists a payment's fee breakdown.
// Inconsistent arithmetic blocks persistence, it is never coerced.
func (s *PaymentLedger) RecordBreakdown(ctx context.Context, actor Actor, paymentID uuid.UUID, b domain.Breakdown) (*domain.Payment, error) {
	if !actor.Admin() {
		return nil, domain.ErrForbidden
	}
	payment, err := s.store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if err := payment.RecordBreakdown(b); err != nil {
		return nil, err
	}
	if err := s.store.UpdatePayment(ctx, payment); err != nil {
		return nil, err
	}
	return payment, nil
}

// ResolveDispute applies an admin override outside the normal payment
// graph. release also completes the associated job. Both parties are
// notified fire-and-forget after the resolution commits.
func (s *PaymentLedger) ResolveDispute(ctx context.Context, actor Actor, paymentID uuid.UUID, action domain.DisputeAction, note string, partialAmount *int64) (*domain.Payment, error) {
	if !actor.Admin() {
		return nil, domain.ErrForbidden
	}
	var payment *domain.Payment
	err := s.store.Transact(ctx, func(tx domain.Store) error {
		var err error
		payment, err = tx.GetPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		var partial *domain.Money
		if partialAmount != nil {
			m := domain.NewMoney(*partialAmount, payment.Amount.Currency)
			partial = &m
		}
		if err := payment.Resolve(action, note, partial, s.now()); err != nil {
			return err
		}
		if err := tx.UpdatePayment(ctx, payment); err != nil {
			return err
		}
		if action == domain.DisputeRelease {
			return s.completeJob(ctx, tx, payment)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notifyParties(ctx, payment, domain.EventDisputeResolved,
		fmt.Sprintf("Dispute on %s resolved: %s", payment.TransactionID, action))
	return payment, nil
}

// completeJob moves a job payment's job to completed inside the caller's
// transaction. Adjustment payments carry no job and are a no-op.
func (s *PaymentLedger) completeJob(ctx context.Context, tx domain.Store, payment *domain.Payment) error {
	if payment.JobID == nil {
		return nil
	}
	job, err := tx.GetJob(ctx, *payment.JobID)
	if err != nil {
		return err
	}
	if job.Status == domain.JobCompleted {
		return nil
	}
	if err := job.Transition(domain.JobCompleted); err != nil {
		return err
	}
	return tx.UpdateJob(ctx, job)
}

func (s *PaymentLedger) notifyParties(ctx context.Context, p *domain.Payment, event domain.NotificationEvent, msg string) {
	at := s.now()
	for _, recipient := range []uuid.UUID{p.PayerID, p.RecipientID} {
		s.notifier.Notify(ctx, domain.Notification{
			RecipientID: recipient,
			Event:       event,
			JobID:       p.JobID,
			PaymentID:   &p.ID,
			Message:     msg,
			At:          at,
		})
	}
}
