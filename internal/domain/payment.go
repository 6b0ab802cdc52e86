package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "pending"
	PaymentProcessing        PaymentStatus = "processing"
	PaymentCompleted         PaymentStatus = "completed"
	PaymentFailed            PaymentStatus = "failed"
	PaymentCancelled         PaymentStatus = "cancelled"
	PaymentRefunded          PaymentStatus = "refunded"
	PaymentPartiallyRefunded PaymentStatus = "partially_refunded"
)

type PaymentMethod string

const (
	MethodManualCheck     PaymentMethod = "manual_check"
	MethodAdminAdjustment PaymentMethod = "admin_adjustment"
)

type PaymentType string

const (
	TypeJobPayment PaymentType = "job_payment"
	TypeAdjustment PaymentType = "adjustment"
)

// paymentTransitions is the normal forward graph. The completed ->
// refunded and completed -> partially_refunded edges exist only through
// the dispute override in Resolve, never through Transition.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:    {PaymentProcessing, PaymentCompleted, PaymentCancelled},
	PaymentProcessing: {PaymentCompleted, PaymentFailed},
}

// Terminal reports whether no transition, dispute overrides included,
// may leave this status.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentFailed, PaymentCancelled, PaymentRefunded, PaymentPartiallyRefunded:
		return true
	}
	return false
}

type DisputeAction string

const (
	DisputeRefund  DisputeAction = "refund"
	DisputeRelease DisputeAction = "release"
	DisputePartial DisputeAction = "partial"
)

// impliedStatus maps a dispute action to the status it forces.
func (a DisputeAction) impliedStatus() (PaymentStatus, bool) {
	switch a {
	case DisputeRefund:
		return PaymentRefunded, true
	case DisputeRelease:
		return PaymentCompleted, true
	case DisputePartial:
		return PaymentPartiallyRefunded, true
	}
	return "", false
}

type Payment struct {
	ID            uuid.UUID     `json:"id"`
	TransactionID string        `json:"transactionId"`
	JobID         *uuid.UUID    `json:"jobId,omitempty"`
	PayerID       uuid.UUID     `json:"payerId"`
	RecipientID   uuid.UUID     `json:"recipientId"`
	Amount        Money         `json:"amount"`
	Method        PaymentMethod `json:"paymentMethod"`
	Type          PaymentType   `json:"paymentType"`
	Status        PaymentStatus `json:"status"`
	Breakdown     *Breakdown    `json:"breakdown,omitempty"`

	// RefundedAmount is set on refund and partial refund; for a full
	// refund it equals the gross amount.
	RefundedAmount *Money `json:"refundedAmount,omitempty"`

	ErrorCode      *string `json:"errorCode,omitempty"`
	ErrorMessage   *string `json:"errorMessage,omitempty"`
	Note           *string `json:"note,omitempty"`
	ResolutionNote *string `json:"resolutionNote,omitempty"`

	InitiatedAt time.Time  `json:"initiatedAt"`
	ProcessedAt *time.Time `json:"processedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewJobPayment builds the pending manual-check payment created when a
// client completes and rates a job.
func NewJobPayment(jobID, payerID, recipientID uuid.UUID, amount Money, now time.Time) *Payment {
	id := uuid.New()
	return &Payment{
		ID:            id,
		TransactionID: newTransactionID(id),
		JobID:         &jobID,
		PayerID:       payerID,
		RecipientID:   recipientID,
		Amount:        amount,
		Method:        MethodManualCheck,
		Type:          TypeJobPayment,
		Status:        PaymentPending,
		InitiatedAt:   now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// NewAdjustment builds an admin adjustment payment, which may exist
// without any job.
func NewAdjustment(payerID, recipientID uuid.UUID, amount Money, note string, now time.Time) *Payment {
	id := uuid.New()
	p := &Payment{
		ID:            id,
		TransactionID: newTransactionID(id),
		PayerID:       payerID,
		RecipientID:   recipientID,
		Amount:        amount,
		Method:        MethodAdminAdjustment,
		Type:          TypeAdjustment,
		Status:        PaymentPending,
		InitiatedAt:   now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if note != "" {
		p.Note = &note
	}
	return p
}

func newTransactionID(id uuid.UUID) string {
	return "TXN-" + strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:12])
}

// CanTransition reports whether the normal graph permits the move.
func (p *Payment) CanTransition(to PaymentStatus) bool {
	for _, next := range paymentTransitions[p.Status] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition applies a normal (non-dispute) status move.
func (p *Payment) Transition(to PaymentStatus) error {
	if !p.CanTransition(to) {
		return &InvalidStateTransitionError{Entity: "payment", From: string(p.Status), To: string(to)}
	}
	p.Status = to
	return nil
}

// MarkPaid confirms a manual-check payment. Valid only from pending or
// processing; terminal payments fail with InvalidPaymentState.
func (p *Payment) MarkPaid(now time.Time) error {
	if p.Method != MethodManualCheck {
		return &InvalidPaymentStateError{Op: "mark paid", Status: p.Status}
	}
	if p.Status.Terminal() || p.Status == PaymentCompleted {
		return &InvalidPaymentStateError{Op: "mark paid", Status: p.Status}
	}
	if err := p.Transition(PaymentCompleted); err != nil {
		return err
	}
	p.CompletedAt = &now
	if p.ProcessedAt == nil {
		p.ProcessedAt = &now
	}
	return nil
}

// RecordBreakdown validates and attaches a fee breakdown. The gross
// amount must match the payment amount.
func (p *Payment) RecordBreakdown(b Breakdown) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if b.Gross != p.Amount {
		return &BreakdownMismatchError{Want: p.Amount, Got: b.Gross, Reason: "gross does not match payment amount"}
	}
	p.Breakdown = &b
	return nil
}

// Resolve applies an admin dispute override. The resolution note is
// mandatory and persisted verbatim. Redundant actions fail with
// AlreadyResolved; actions on fully terminal payments with
// InvalidPaymentState; partial refunds outside (0, gross) with
// InvalidPartialAmount.
func (p *Payment) Resolve(action DisputeAction, note string, partial *Money, now time.Time) error {
	if note == "" {
		return &ValidationError{Field: "note", Reason: "resolution note is required"}
	}
	target, ok := action.impliedStatus()
	if !ok {
		return &ValidationError{Field: "action", Reason: fmt.Sprintf("unknown dispute action %q", action)}
	}
	if p.Status == target {
		return &AlreadyResolvedError{Action: action, Status: p.Status}
	}
	if p.Status.Terminal() {
		return &InvalidPaymentStateError{Op: string(action), Status: p.Status}
	}

	switch action {
	case DisputeRefund:
		refunded := p.Amount
		p.RefundedAmount = &refunded
	case DisputeRelease:
		p.CompletedAt = &now
	case DisputePartial:
		if partial == nil || !partial.IsPositive() || !partial.SameCurrency(p.Amount) || partial.Amount >= p.Amount.Amount {
			return &InvalidPartialAmountError{Amount: partial, Gross: p.Amount}
		}
		p.RefundedAmount = partial
	}

	p.Status = target
	p.ResolutionNote = &note
	if p.ProcessedAt == nil {
		p.ProcessedAt = &now
	}
	return nil
}

// PaymentFilter narrows payment listings.
type PaymentFilter struct {
	Status PaymentStatus
	JobID  *uuid.UUID
}
