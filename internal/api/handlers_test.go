package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/belimuno/marketplace/internal/api"
	"github.com/belimuno/marketplace/internal/cache"
	"github.com/belimuno/marketplace/internal/domain"
	"github.com/belimuno/marketplace/internal/notify"
	"github.com/belimuno/marketplace/internal/service"
	"github.com/belimuno/marketplace/internal/storage/memory"
)

var signingKey = []byte("test-signing-key")

type testEnv struct {
	server *httptest.Server
	store  *memory.Store

	clientID uuid.UUID
	workerID uuid.UUID
	adminID  uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.New()
	log := zap.NewNop()
	lifecycle := service.NewJobLifecycle(store, notify.Noop{}, log)
	ledger := service.NewPaymentLedger(store, notify.Noop{}, log)
	handlers := api.NewHandlers(lifecycle, ledger, cache.New(nil, log, 0), log)
	srv := httptest.NewServer(api.NewRouter(handlers, signingKey, log))
	t.Cleanup(srv.Close)
	return &testEnv{
		server:   srv,
		store:    store,
		clientID: uuid.New(),
		workerID: uuid.New(),
		adminID:  uuid.New(),
	}
}

func token(t *testing.T, sub uuid.UUID, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  sub.String(),
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	require.NoError(t, err)
	return raw
}

func (e *testEnv) do(t *testing.T, method, path, bearer string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

func (e *testEnv) seedJob(t *testing.T, status domain.JobStatus) *domain.Job {
	t.Helper()
	now := time.Now().UTC()
	workerID := e.workerID
	job := &domain.Job{
		ID:        uuid.New(),
		ClientID:  e.clientID,
		WorkerID:  &workerID,
		Title:     "Payroll data entry",
		Budget:    domain.NewMoney(75000, "ETB"),
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, e.store.CreateJob(context.Background(), job))
	return job
}

func TestAuthRequired(t *testing.T) {
	e := newTestEnv(t)
	resp := e.do(t, http.MethodGet, "/v1/jobs", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = e.do(t, http.MethodGet, "/v1/jobs", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHealthzIsPublic(t *testing.T) {
	e := newTestEnv(t)
	resp := e.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCompleteJob_ReturnsPaymentID(t *testing.T) {
	e := newTestEnv(t)
	job := e.seedJob(t, domain.JobAwaitingCompletion)
	clientToken := token(t, e.clientID, "client")

	resp := e.do(t, http.MethodPost, "/v1/jobs/"+job.ID.String()+"/complete", clientToken,
		map[string]any{"rating": 5, "review": "Great work"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		PaymentID uuid.UUID `json:"paymentId"`
	}
	decodeBody(t, resp, &out)
	require.NotEqual(t, uuid.Nil, out.PaymentID)

	payment, err := e.store.GetPayment(context.Background(), out.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPending, payment.Status)

	// job is still awaiting the payment
	after, err := e.store.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobAwaitingCompletion, after.Status)
}

func TestCompleteJob_RatingValidation(t *testing.T) {
	e := newTestEnv(t)
	job := e.seedJob(t, domain.JobAwaitingCompletion)
	clientToken := token(t, e.clientID, "client")

	resp := e.do(t, http.MethodPost, "/v1/jobs/"+job.ID.String()+"/complete", clientToken,
		map[string]any{"rating": 9})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/v1/jobs/"+job.ID.String()+"/complete", clientToken,
		map[string]any{"rating": 5, "surprise": true})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "unknown fields are rejected")
}

func TestRevision_EmptyReasonRejected(t *testing.T) {
	e := newTestEnv(t)
	job := e.seedJob(t, domain.JobSubmitted)
	clientToken := token(t, e.clientID, "client")

	resp := e.do(t, http.MethodPost, "/v1/jobs/"+job.ID.String()+"/revision", clientToken,
		map[string]any{"reason": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/v1/jobs/"+job.ID.String()+"/revision", clientToken,
		map[string]any{"reason": "missing appendix"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMarkPaid_RoleAndFlow(t *testing.T) {
	e := newTestEnv(t)
	job := e.seedJob(t, domain.JobAwaitingCompletion)
	payment := domain.NewJobPayment(job.ID, e.clientID, e.workerID, job.Budget, time.Now().UTC())
	require.NoError(t, e.store.CreatePayment(context.Background(), payment))

	clientToken := token(t, e.clientID, "client")
	resp := e.do(t, http.MethodPost, "/v1/payments/"+payment.ID.String()+"/mark-paid", clientToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	adminToken := token(t, e.adminID, "admin")
	resp = e.do(t, http.MethodPost, "/v1/payments/"+payment.ID.String()+"/mark-paid", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var updated domain.Payment
	decodeBody(t, resp, &updated)
	assert.Equal(t, domain.PaymentCompleted, updated.Status)

	// second attempt conflicts
	resp = e.do(t, http.MethodPost, "/v1/payments/"+payment.ID.String()+"/mark-paid", adminToken, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestDispute_Flow(t *testing.T) {
	e := newTestEnv(t)
	job := e.seedJob(t, domain.JobAwaitingCompletion)
	payment := domain.NewJobPayment(job.ID, e.clientID, e.workerID, job.Budget, time.Now().UTC())
	payment.Status = domain.PaymentCompleted
	require.NoError(t, e.store.CreatePayment(context.Background(), payment))
	adminToken := token(t, e.adminID, "admin")

	resp := e.do(t, http.MethodPost, "/v1/payments/"+payment.ID.String()+"/dispute", adminToken,
		map[string]any{"action": "refund", "note": "Quality issue confirmed"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var updated domain.Payment
	decodeBody(t, resp, &updated)
	assert.Equal(t, domain.PaymentRefunded, updated.Status)

	// refunding again is a conflict
	resp = e.do(t, http.MethodPost, "/v1/payments/"+payment.ID.String()+"/dispute", adminToken,
		map[string]any{"action": "refund", "note": "again"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// unknown action never reaches the state machine
	resp = e.do(t, http.MethodPost, "/v1/payments/"+payment.ID.String()+"/dispute", adminToken,
		map[string]any{"action": "escalate", "note": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDispute_PartialAmountBounds(t *testing.T) {
	e := newTestEnv(t)
	job := e.seedJob(t, domain.JobAwaitingCompletion) // budget 75000
	payment := domain.NewJobPayment(job.ID, e.clientID, e.workerID, job.Budget, time.Now().UTC())
	payment.Status = domain.PaymentCompleted
	require.NoError(t, e.store.CreatePayment(context.Background(), payment))
	adminToken := token(t, e.adminID, "admin")

	resp := e.do(t, http.MethodPost, "/v1/payments/"+payment.ID.String()+"/dispute", adminToken,
		map[string]any{"action": "partial", "note": "partial delivery", "amount": 75000})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/v1/payments/"+payment.ID.String()+"/dispute", adminToken,
		map[string]any{"action": "partial", "note": "partial delivery", "amount": 25000})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetJob_NotFound(t *testing.T) {
	e := newTestEnv(t)
	clientToken := token(t, e.clientID, "client")
	resp := e.do(t, http.MethodGet, "/v1/jobs/"+uuid.NewString(), clientToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWorkerCannotUseClientEndpoints(t *testing.T) {
	e := newTestEnv(t)
	job := e.seedJob(t, domain.JobSubmitted)
	workerToken := token(t, e.workerID, "worker")

	resp := e.do(t, http.MethodPost, "/v1/jobs/"+job.ID.String()+"/complete", workerToken,
		map[string]any{"rating": 5})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = e.do(t, http.MethodGet, "/v1/payments", workerToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
