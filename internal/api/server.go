package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/belimuno/marketplace/internal/service"
)

// NewRouter wires the HTTP surface. Everything under /v1 requires a
// valid token; payment mutations are admin-only, job actions are role
// gated here and ownership checked in the services.
func NewRouter(h *Handlers, signingKey []byte, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respond(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(Auth(signingKey))

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", h.listJobs)
			r.With(RequireRole(service.RoleClient)).Post("/", h.createJob)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.getJob)
				r.With(RequireRole(service.RoleClient)).Post("/publish", h.publishJob)
				r.With(RequireRole(service.RoleClient)).Post("/revision", h.requestRevision)
				r.With(RequireRole(service.RoleClient)).Post("/complete", h.completeJob)
				r.With(RequireRole(service.RoleClient)).Post("/cancel", h.cancelJob)

				r.With(RequireRole(service.RoleWorker)).Post("/start", h.startWork)
				r.With(RequireRole(service.RoleWorker)).Post("/progress", h.postProgress)
				r.With(RequireRole(service.RoleWorker)).Post("/submit", h.submitWork)

				r.Route("/applications", func(r chi.Router) {
					r.Get("/", h.listApplications)
					r.With(RequireRole(service.RoleWorker)).Post("/", h.apply)
					r.With(RequireRole(service.RoleClient)).Post("/{appID}/accept", h.acceptApplication)
					r.With(RequireRole(service.RoleClient)).Post("/{appID}/reject", h.rejectApplication)
					r.With(RequireRole(service.RoleWorker)).Post("/{appID}/withdraw", h.withdrawApplication)
				})
			})
		})

		r.Route("/payments", func(r chi.Router) {
			r.With(RequireRole(service.RoleAdmin)).Get("/", h.listPayments)
			r.With(RequireRole(service.RoleAdmin)).Post("/", h.createAdjustment)
			r.Get("/{id}", h.getPayment)
			r.With(RequireRole(service.RoleAdmin)).Post("/{id}/mark-paid", h.markPaid)
			r.With(RequireRole(service.RoleAdmin)).Post("/{id}/breakdown", h.recordBreakdown)
			r.With(RequireRole(service.RoleAdmin)).Post("/{id}/dispute", h.resolveDispute)
		})
	})

	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
