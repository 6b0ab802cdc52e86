package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/belimuno/marketplace/internal/domain"
)

func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps the domain error taxonomy onto HTTP statuses. State
// machine violations and lost races are conflicts the caller can act
// on; anything unexpected stays generic.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		invalidTransition *domain.InvalidStateTransitionError
		invalidPayment    *domain.InvalidPaymentStateError
		mismatch          *domain.BreakdownMismatchError
		alreadyResolved   *domain.AlreadyResolvedError
		invalidPartial    *domain.InvalidPartialAmountError
		concurrent        *domain.ConcurrentModificationError
		validation        *domain.ValidationError
		fieldErrs         validator.ValidationErrors
	)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		respond(w, http.StatusNotFound, errorBody{Error: "not found"})
	case errors.Is(err, domain.ErrForbidden):
		respond(w, http.StatusForbidden, errorBody{Error: "forbidden"})
	case errors.As(err, &validation), errors.As(err, &fieldErrs):
		respond(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.As(err, &invalidTransition),
		errors.As(err, &invalidPayment),
		errors.As(err, &mismatch),
		errors.As(err, &alreadyResolved),
		errors.As(err, &invalidPartial),
		errors.As(err, &concurrent):
		respond(w, http.StatusConflict, errorBody{Error: err.Error()})
	default:
		h.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		respond(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

// writeBadRequest covers malformed JSON and failed payload validation.
func (h *Handlers) writeBadRequest(w http.ResponseWriter, err error) {
	respond(w, http.StatusBadRequest, errorBody{Error: err.Error()})
}
