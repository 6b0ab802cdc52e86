package domain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/belimuno/marketplace/internal/domain"
)

func newPayment(status domain.PaymentStatus) *domain.Payment {
	p := domain.NewJobPayment(uuid.New(), uuid.New(), uuid.New(), domain.NewMoney(100000, "ETB"), time.Now())
	p.Status = status
	return p
}

func TestNewJobPayment(t *testing.T) {
	jobID := uuid.New()
	p := domain.NewJobPayment(jobID, uuid.New(), uuid.New(), domain.NewMoney(50000, ""), time.Now())
	assert.Equal(t, domain.PaymentPending, p.Status)
	assert.Equal(t, domain.MethodManualCheck, p.Method)
	assert.Equal(t, domain.TypeJobPayment, p.Type)
	assert.Equal(t, "ETB", p.Amount.Currency)
	require.NotNil(t, p.JobID)
	assert.Equal(t, jobID, *p.JobID)
	assert.Regexp(t, `^TXN-[0-9A-F]{12}$`, p.TransactionID)
}

func TestPaymentTransition_Graph(t *testing.T) {
	legal := []struct {
		from, to domain.PaymentStatus
	}{
		{domain.PaymentPending, domain.PaymentProcessing},
		{domain.PaymentPending, domain.PaymentCompleted},
		{domain.PaymentPending, domain.PaymentCancelled},
		{domain.PaymentProcessing, domain.PaymentCompleted},
		{domain.PaymentProcessing, domain.PaymentFailed},
	}
	for _, tc := range legal {
		p := newPayment(tc.from)
		require.NoError(t, p.Transition(tc.to), "%s -> %s", tc.from, tc.to)
	}

	illegal := []struct {
		from, to domain.PaymentStatus
	}{
		{domain.PaymentCompleted, domain.PaymentRefunded}, // dispute-only edge
		{domain.PaymentCompleted, domain.PaymentPartiallyRefunded},
		{domain.PaymentCompleted, domain.PaymentPending},
		{domain.PaymentFailed, domain.PaymentPending},
		{domain.PaymentCancelled, domain.PaymentProcessing},
		{domain.PaymentRefunded, domain.PaymentCompleted},
	}
	for _, tc := range illegal {
		p := newPayment(tc.from)
		var transitionErr *domain.InvalidStateTransitionError
		require.ErrorAs(t, p.Transition(tc.to), &transitionErr, "%s -> %s", tc.from, tc.to)
		assert.Equal(t, tc.from, p.Status)
	}
}

func TestPaymentTerminal(t *testing.T) {
	terminal := []domain.PaymentStatus{
		domain.PaymentFailed, domain.PaymentCancelled,
		domain.PaymentRefunded, domain.PaymentPartiallyRefunded,
	}
	for _, s := range terminal {
		assert.True(t, s.Terminal(), string(s))
	}
	for _, s := range []domain.PaymentStatus{domain.PaymentPending, domain.PaymentProcessing, domain.PaymentCompleted} {
		assert.False(t, s.Terminal(), string(s))
	}
}

func TestPaymentMarkPaid(t *testing.T) {
	now := time.Now()
	for _, from := range []domain.PaymentStatus{domain.PaymentPending, domain.PaymentProcessing} {
		p := newPayment(from)
		require.NoError(t, p.MarkPaid(now))
		assert.Equal(t, domain.PaymentCompleted, p.Status)
		require.NotNil(t, p.CompletedAt)
	}
}

func TestPaymentMarkPaid_ManualCheckOnly(t *testing.T) {
	p := domain.NewAdjustment(uuid.New(), uuid.New(), domain.NewMoney(5000, "ETB"), "bonus correction", time.Now())
	err := p.MarkPaid(time.Now())
	var stateErr *domain.InvalidPaymentStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, domain.PaymentPending, p.Status)
}

func TestPaymentMarkPaid_TerminalAndCompleted(t *testing.T) {
	for _, status := range []domain.PaymentStatus{
		domain.PaymentCompleted, domain.PaymentFailed,
		domain.PaymentCancelled, domain.PaymentRefunded,
	} {
		p := newPayment(status)
		err := p.MarkPaid(time.Now())
		var stateErr *domain.InvalidPaymentStateError
		require.ErrorAs(t, err, &stateErr, string(status))
		assert.Equal(t, status, p.Status)
	}
}

func TestPaymentRecordBreakdown(t *testing.T) {
	p := newPayment(domain.PaymentPending)
	b := domain.Breakdown{
		Gross:         domain.NewMoney(100000, "ETB"),
		PlatformFee:   domain.NewMoney(10000, "ETB"),
		ProcessingFee: domain.NewMoney(2500, "ETB"),
		Tax:           domain.NewMoney(15000, "ETB"),
		Net:           domain.NewMoney(72500, "ETB"),
	}
	require.NoError(t, p.RecordBreakdown(b))
	require.NotNil(t, p.Breakdown)
}

func TestPaymentRecordBreakdown_GrossMustMatchAmount(t *testing.T) {
	p := newPayment(domain.PaymentPending) // amount 100000
	b := domain.Breakdown{
		Gross:         domain.NewMoney(90000, "ETB"),
		PlatformFee:   domain.NewMoney(9000, "ETB"),
		ProcessingFee: domain.NewMoney(0, "ETB"),
		Tax:           domain.NewMoney(0, "ETB"),
		Net:           domain.NewMoney(81000, "ETB"),
	}
	var mismatch *domain.BreakdownMismatchError
	require.ErrorAs(t, p.RecordBreakdown(b), &mismatch)
	assert.Nil(t, p.Breakdown)
}

func TestPaymentResolve_Refund(t *testing.T) {
	p := newPayment(domain.PaymentCompleted)
	require.NoError(t, p.Resolve(domain.DisputeRefund, "Quality issue confirmed", nil, time.Now()))
	assert.Equal(t, domain.PaymentRefunded, p.Status)
	require.NotNil(t, p.RefundedAmount)
	assert.Equal(t, p.Amount, *p.RefundedAmount)
	require.NotNil(t, p.ResolutionNote)
	assert.Equal(t, "Quality issue confirmed", *p.ResolutionNote)
}

func TestPaymentResolve_Release(t *testing.T) {
	p := newPayment(domain.PaymentProcessing)
	require.NoError(t, p.Resolve(domain.DisputeRelease, "work verified by HR", nil, time.Now()))
	assert.Equal(t, domain.PaymentCompleted, p.Status)
	require.NotNil(t, p.CompletedAt)
}

func TestPaymentResolve_Partial(t *testing.T) {
	p := newPayment(domain.PaymentCompleted)
	partial := domain.NewMoney(40000, "ETB")
	require.NoError(t, p.Resolve(domain.DisputePartial, "half the deliverables missing", &partial, time.Now()))
	assert.Equal(t, domain.PaymentPartiallyRefunded, p.Status)
	require.NotNil(t, p.RefundedAmount)
	assert.Equal(t, int64(40000), p.RefundedAmount.Amount)
}

func TestPaymentResolve_PartialBounds(t *testing.T) {
	cases := []*domain.Money{
		nil,
		{Amount: 0, Currency: "ETB"},
		{Amount: -500, Currency: "ETB"},
		{Amount: 100000, Currency: "ETB"}, // equals gross
		{Amount: 150000, Currency: "ETB"},
		{Amount: 40000, Currency: "USD"}, // wrong currency
	}
	for _, amount := range cases {
		p := newPayment(domain.PaymentCompleted)
		err := p.Resolve(domain.DisputePartial, "partial credit", amount, time.Now())
		var partialErr *domain.InvalidPartialAmountError
		require.ErrorAs(t, err, &partialErr)
		assert.Equal(t, domain.PaymentCompleted, p.Status)
	}
}

func TestPaymentResolve_AlreadyResolved(t *testing.T) {
	p := newPayment(domain.PaymentRefunded)
	err := p.Resolve(domain.DisputeRefund, "refund again", nil, time.Now())
	var resolvedErr *domain.AlreadyResolvedError
	require.ErrorAs(t, err, &resolvedErr)

	p = newPayment(domain.PaymentCompleted)
	err = p.Resolve(domain.DisputeRelease, "release again", nil, time.Now())
	require.ErrorAs(t, err, &resolvedErr)
}

func TestPaymentResolve_TerminalRejected(t *testing.T) {
	for _, status := range []domain.PaymentStatus{domain.PaymentFailed, domain.PaymentCancelled, domain.PaymentPartiallyRefunded} {
		p := newPayment(status)
		err := p.Resolve(domain.DisputeRefund, "force refund", nil, time.Now())
		var stateErr *domain.InvalidPaymentStateError
		require.ErrorAs(t, err, &stateErr, string(status))
		assert.Equal(t, status, p.Status)
	}
}

func TestPaymentResolve_NoteRequired(t *testing.T) {
	p := newPayment(domain.PaymentCompleted)
	err := p.Resolve(domain.DisputeRefund, "", nil, time.Now())
	var validationErr *domain.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, domain.PaymentCompleted, p.Status)
}
