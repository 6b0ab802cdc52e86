package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Request bodies are parsed strictly: unknown fields are rejected at
// the boundary before any state machine is touched. Monetary amounts
// travel as integer minor units.

type createJobRequest struct {
	Title        string     `json:"title" validate:"required"`
	Description  string     `json:"description"`
	BudgetAmount int64      `json:"budgetAmount" validate:"required,gt=0"`
	Currency     string     `json:"currency" validate:"omitempty,len=3,uppercase"`
	Deadline     *time.Time `json:"deadline"`
	Draft        bool       `json:"draft"`
}

type applyRequest struct {
	CoverLetter    string `json:"coverLetter"`
	ProposedAmount *int64 `json:"proposedAmount" validate:"omitempty,gt=0"`
}

type progressRequest struct {
	Percent int    `json:"percent" validate:"min=0,max=100"`
	Note    string `json:"note"`
}

type revisionRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type completeRequest struct {
	Rating int    `json:"rating" validate:"required,min=1,max=5"`
	Review string `json:"review"`
}

type adjustmentRequest struct {
	PayerID     uuid.UUID `json:"payerId" validate:"required"`
	RecipientID uuid.UUID `json:"recipientId" validate:"required"`
	Amount      int64     `json:"amount" validate:"required,gt=0"`
	Currency    string    `json:"currency" validate:"omitempty,len=3,uppercase"`
	Note        string    `json:"note"`
}

type breakdownRequest struct {
	Gross         int64  `json:"gross" validate:"required,gt=0"`
	PlatformFee   int64  `json:"platformFee" validate:"min=0"`
	ProcessingFee int64  `json:"processingFee" validate:"min=0"`
	Tax           int64  `json:"tax" validate:"min=0"`
	Net           int64  `json:"net" validate:"required,gt=0"`
	Currency      string `json:"currency" validate:"omitempty,len=3,uppercase"`
}

type disputeRequest struct {
	Action string `json:"action" validate:"required,oneof=refund release partial"`
	Note   string `json:"note" validate:"required"`
	Amount *int64 `json:"amount" validate:"omitempty,gt=0"`
}

type completeResponse struct {
	PaymentID uuid.UUID `json:"paymentId"`
}

type errorBody struct {
	Error string `json:"error"`
}

// decode parses and validates a request body into dst.
func decode(r *http.Request, validate *validator.Validate, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return validate.Struct(dst)
}
