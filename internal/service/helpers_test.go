package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/belimuno/marketplace/internal/domain"
	"github.com/belimuno/marketplace/internal/service"
	"github.com/belimuno/marketplace/internal/storage/memory"
)

// recordingNotifier captures notifications so tests can assert on
// fan-out without redis.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, notification domain.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
}

func (n *recordingNotifier) events() []domain.NotificationEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]domain.NotificationEvent, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.Event)
	}
	return out
}

type fixture struct {
	store     *memory.Store
	notifier  *recordingNotifier
	lifecycle *service.JobLifecycle
	ledger    *service.PaymentLedger

	client service.Actor
	worker service.Actor
	admin  service.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	notifier := &recordingNotifier{}
	log := zap.NewNop()
	return &fixture{
		store:     store,
		notifier:  notifier,
		lifecycle: service.NewJobLifecycle(store, notifier, log),
		ledger:    service.NewPaymentLedger(store, notifier, log),
		client:    service.Actor{ID: uuid.New(), Role: service.RoleClient},
		worker:    service.Actor{ID: uuid.New(), Role: service.RoleWorker},
		admin:     service.Actor{ID: uuid.New(), Role: service.RoleAdmin},
	}
}

// seedJob inserts a job directly in the given status, assigned to the
// fixture worker for any post-assignment state.
func (f *fixture) seedJob(t *testing.T, status domain.JobStatus) *domain.Job {
	t.Helper()
	now := time.Now().UTC()
	job := &domain.Job{
		ID:        uuid.New(),
		ClientID:  f.client.ID,
		Title:     "Office relocation support",
		Budget:    domain.NewMoney(180000, "ETB"),
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	switch status {
	case domain.JobDraft, domain.JobPosted:
	default:
		workerID := f.worker.ID
		job.WorkerID = &workerID
	}
	require.NoError(t, f.store.CreateJob(context.Background(), job))
	return job
}

// seedPayment inserts a manual-check job payment in the given status.
func (f *fixture) seedPayment(t *testing.T, job *domain.Job, status domain.PaymentStatus) *domain.Payment {
	t.Helper()
	p := domain.NewJobPayment(job.ID, f.client.ID, f.worker.ID, job.Budget, time.Now().UTC())
	p.Status = status
	require.NoError(t, f.store.CreatePayment(context.Background(), p))
	return p
}
