package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/belimuno/marketplace/internal/cache"
	"github.com/belimuno/marketplace/internal/domain"
	"github.com/belimuno/marketplace/internal/service"
)

type Handlers struct {
	lifecycle *service.JobLifecycle
	ledger    *service.PaymentLedger
	cache     *cache.Cache
	validate  *validator.Validate
	log       *zap.Logger
}

func NewHandlers(lifecycle *service.JobLifecycle, ledger *service.PaymentLedger, c *cache.Cache, log *zap.Logger) *Handlers {
	return &Handlers{
		lifecycle: lifecycle,
		ledger:    ledger,
		cache:     c,
		validate:  validator.New(),
		log:       log,
	}
}

func pathID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	return id, err == nil
}

func (h *Handlers) createJob(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())
	var req createJobRequest
	if err := decode(r, h.validate, &req); err != nil {
		h.writeBadRequest(w, err)
		return
	}
	job, err := h.lifecycle.CreateJob(r.Context(), actor, service.CreateJobInput{
		Title:        req.Title,
		Description:  req.Description,
		BudgetAmount: req.BudgetAmount,
		Currency:     req.Currency,
		Deadline:     req.Deadline,
		Draft:        req.Draft,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, job)
}

func (h *Handlers) getJob(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respond(w, http.StatusNotFound, errorBody{Error: "not found"})
		return
	}
	job, err := h.cache.GetJob(r.Context(), id, h.lifecycle.GetJob)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, job)
}

func (h *Handlers) listJobs(w http.ResponseWriter, r *http.Request) {
	f := domain.JobFilter{Status: domain.JobStatus(r.URL.Query().Get("status"))}
	if raw := r.URL.Query().Get("client"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.writeBadRequest(w, err)
			return
		}
		f.ClientID = &id
	}
	if raw := r.URL.Query().Get("worker"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.writeBadRequest(w, err)
			return
		}
		f.WorkerID = &id
	}
	jobs, err := h.lifecycle.ListJobs(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, jobs)
}

// jobAction is the shared shape of single-job POST endpoints.
func (h *Handlers) jobAction(fn func(r *http.Request, actor service.Actor, jobID uuid.UUID) (*domain.Job, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := actorFrom(r.Context())
		id, ok := pathID(r, "id")
		if !ok {
			respond(w, http.StatusNotFound, errorBody{Error: "not found"})
			return
		}
		job, err := fn(r, actor, id)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.cache.InvalidateJob(r.Context(), id)
		respond(w, http.StatusOK, job)
	}
}

func (h *Handlers) publishJob(w http.ResponseWriter, r *http.Request) {
	h.jobAction(func(r *http.Request, actor service.Actor, id uuid.UUID) (*domain.Job, error) {
		return h.lifecycle.PublishJob(r.Context(), actor, id)
	})(w, r)
}

func (h *Handlers) startWork(w http.ResponseWriter, r *http.Request) {
	h.jobAction(func(r *http.Request, actor service.Actor, id uuid.UUID) (*domain.Job, error) {
		return h.lifecycle.StartWork(r.Context(), actor, id)
	})(w, r)
}

func (h *Handlers) submitWork(w http.ResponseWriter, r *http.Request) {
	h.jobAction(func(r *http.Request, actor service.Actor, id uuid.UUID) (*domain.Job, error) {
		return h.lifecycle.SubmitWork(r.Context(), actor, id)
	})(w, r)
}

func (h *Handlers) cancelJob(w http.ResponseWriter, r *http.Request) {
	h.jobAction(func(r *http.Request, actor service.Actor, id uuid.UUID) (*domain.Job, error) {
		return h.lifecycle.CancelJob(r.Context(), actor, id)
	})(w, r)
}

func (h *Handlers) postProgress(w http.ResponseWriter, r *http.Request) {
	var req progressRequest
	if err := decode(r, h.validate, &req); err != nil {
		h.writeBadRequest(w, err)
		return
	}
	h.jobAction(func(r *http.Request, actor service.Actor, id uuid.UUID) (*domain.Job, error) {
		return h.lifecycle.PostProgress(r.Context(), actor, id, req.Percent, req.Note)
	})(w, r)
}

func (h *Handlers) requestRevision(w http.ResponseWriter, r *http.Request) {
	var req revisionRequest
	if err := decode(r, h.validate, &req); err != nil {
		h.writeBadRequest(w, err)
		return
	}
	h.jobAction(func(r *http.Request, actor service.Actor, id uuid.UUID) (*domain.Job, error) {
		return h.lifecycle.RequestRevision(r.Context(), actor, id, req.Reason)
	})(w, r)
}

func (h *Handlers) completeJob(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		respond(w, http.StatusNotFound, errorBody{Error: "not found"})
		return
	}
	var req completeRequest
	if err := decode(r, h.validate, &req); err != nil {
		h.writeBadRequest(w, err)
		return
	}
	payment, err := h.lifecycle.CompleteWithRating(r.Context(), actor, id, req.Rating, req.Review)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.cache.InvalidateJob(r.Context(), id)
	respond(w, http.StatusOK, completeResponse{PaymentID: payment.ID})
}

func (h *Handlers) apply(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		respond(w, http.StatusNotFound, errorBody{Error: "not found"})
		return
	}
	var req applyRequest
	if err := decode(r, h.validate, &req); err != nil {
		h.writeBadRequest(w, err)
		return
	}
	app, err := h.lifecycle.Apply(r.Context(), actor, id, req.CoverLetter, req.ProposedAmount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, app)
}

func (h *Handlers) listApplications(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respond(w, http.StatusNotFound, errorBody{Error: "not found"})
		return
	}
	apps, err := h.lifecycle.ListApplications(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, apps)
}

func (h *Handlers) acceptApplication(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())
	jobID, ok := pathID(r, "id")
	appID, ok2 := pathID(r, "appID")
	if !ok || !ok2 {
		respond(w, http.StatusNotFound, errorBody{Error: "not found"})
		return
	}
	job, err := h.lifecycle.AcceptApplication(r.Context(), actor, jobID, appID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.cache.InvalidateJob(r.Context(), jobID)
	respond(w, http.StatusOK, job)
}

func (h *Handlers) rejectApplication(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())
	jobID, ok := pathID(r, "id")
	appID, ok2 := pathID(r, "appID")
	if !ok || !ok2 {
		respond(w, http.StatusNotFound, errorBody{Error: "not found"})
		return
	}
	app, err := h.lifecycle.RejectApplication(r.Context(), actor, jobID, appID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, app)
}

func (h *Handlers) withdrawApplication(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())
	appID, ok := pathID(r, "appID")
	if !ok {
		respond(w, http.StatusNotFound, errorBody{Error: "not found"})
		return
	}
	app, err := h.lifecycle.WithdrawApplication(r.Context(), actor, appID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, app)
}

func (h *Handlers) getPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respond(w, http.StatusNotFound, errorBody{Error: "not found"})
		return
	}
	payment, err := h.cache.GetPayment(r.Context(), id, h.ledger.GetPayment)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, payment)
}

func (h *Handlers) listPayments(w http.ResponseWriter, r *http.Request) {
	f := domain.PaymentFilter{Status: domain.PaymentStatus(r.URL.Query().Get("status"))}
	if raw := r.URL.Query().Get("job"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.writeBadRequest(w, err)
			return
		}
		f.JobID = &id
	}
	payments, err := h.ledger.ListPayments(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, payments)
}

func (h *Handlers) createAdjustment(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())
	var req adjustmentRequest
	if err := decode(r, h.validate, &req); err != nil {
		h.writeBadRequest(w, err)
		return
	}
	payment, err := h.ledger.CreateAdjustment(r.Context(), actor, service.AdjustmentInput{
		PayerID:     req.PayerID,
		RecipientID: req.RecipientID,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Note:        req.Note,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, payment)
}

func (h *Handlers) markPaid(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		respond(w, http.StatusNotFound, errorBody{Error: "not found"})
		return
	}
	payment, err := h.ledger.MarkPaid(r.Context(), actor, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.cache.InvalidatePayment(r.Context(), id)
	if payment.JobID != nil {
		h.cache.InvalidateJob(r.Context(), *payment.JobID)
	}
	respond(w, http.StatusOK, payment)
}

func (h *Handlers) recordBreakdown(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		respond(w, http.StatusNotFound, errorBody{Error: "not found"})
		return
	}
	var req breakdownRequest
	if err := decode(r, h.validate, &req); err != nil {
		h.writeBadRequest(w, err)
		return
	}
	currency := req.Currency
	b := domain.Breakdown{
		Gross:         domain.NewMoney(req.Gross, currency),
		PlatformFee:   domain.NewMoney(req.PlatformFee, currency),
		ProcessingFee: domain.NewMoney(req.ProcessingFee, currency),
		Tax:           domain.NewMoney(req.Tax, currency),
		Net:           domain.NewMoney(req.Net, currency),
	}
	payment, err := h.ledger.RecordBreakdown(r.Context(), actor, id, b)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.cache.InvalidatePayment(r.Context(), id)
	respond(w, http.StatusOK, payment)
}

func (h *Handlers) resolveDispute(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		respond(w, http.StatusNotFound, errorBody{Error: "not found"})
		return
	}
	var req disputeRequest
	if err := decode(r, h.validate, &req); err != nil {
		h.writeBadRequest(w, err)
		return
	}
	payment, err := h.ledger.ResolveDispute(r.Context(), actor, id, domain.DisputeAction(req.Action), req.Note, req.Amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.cache.InvalidatePayment(r.Context(), id)
	if payment.JobID != nil {
		h.cache.InvalidateJob(r.Context(), *payment.JobID)
	}
	respond(w, http.StatusOK, payment)
}
