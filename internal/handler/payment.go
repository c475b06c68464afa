package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"freightpay/internal/domain"
	"freightpay/internal/middleware"
	"freightpay/internal/repository"
	"freightpay/internal/service"
)

const defaultHistoryLimit = 50

// PaymentHandler handles HTTP requests for payments.
type PaymentHandler struct {
	reconciler *service.Reconciler
	attempts   repository.AttemptRepository
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(reconciler *service.Reconciler, attempts repository.AttemptRepository) *PaymentHandler {
	return &PaymentHandler{reconciler: reconciler, attempts: attempts}
}

// InitiateRequest is the HTTP request body for starting a payment.
type InitiateRequest struct {
	Amount      int64          `json:"amount"`
	Purpose     string         `json:"purpose"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata"`
}

// AttemptResponse is the HTTP representation of a payment attempt.
type AttemptResponse struct {
	TransactionID string    `json:"transaction_id"`
	Amount        int64     `json:"amount"`
	Purpose       string    `json:"purpose"`
	UserType      string    `json:"user_type"`
	PhoneNumber   string    `json:"phone_number"`
	Description   string    `json:"description"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// InitiateResponse is the HTTP response for a started payment.
type InitiateResponse struct {
	Attempt    AttemptResponse `json:"attempt"`
	PaymentURL string          `json:"payment_url"`
}

func toAttemptResponse(attempt *domain.PaymentAttempt) AttemptResponse {
	return AttemptResponse{
		TransactionID: attempt.TransactionID,
		Amount:        attempt.Amount,
		Purpose:       string(attempt.Purpose),
		UserType:      string(attempt.UserType),
		PhoneNumber:   attempt.PhoneNumber,
		Description:   attempt.Description,
		Status:        string(attempt.Status),
		CreatedAt:     attempt.CreatedAt,
	}
}

// Initiate handles POST /v1/payments
func (h *PaymentHandler) Initiate(c *gin.Context) {
	session := middleware.SessionFromContext(c)
	if session == nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
		return
	}

	var req InitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	result, err := h.reconciler.Initiate(c.Request.Context(), service.InitiateRequest{
		Amount:      req.Amount,
		Purpose:     domain.PaymentPurpose(req.Purpose),
		UserType:    session.UserType,
		PhoneNumber: session.PhoneNumber,
		Description: req.Description,
		Metadata:    req.Metadata,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, InitiateResponse{
		Attempt:    toAttemptResponse(&result.Attempt),
		PaymentURL: result.PaymentURL,
	})
}

// ReturnResponse is the HTTP response for the gateway return callback
// and the resume signal.
type ReturnResponse struct {
	Status string `json:"status"`
}

// Return handles GET /v1/payments/return, the gateway redirect
// callback carrying Authority, Status and an optional RefId.
func (h *PaymentHandler) Return(c *gin.Context) {
	status := domain.SignalStatus(c.Query("Status"))
	switch status {
	case domain.SignalStatusOK, domain.SignalStatusCancelled, domain.SignalStatusError:
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid Status parameter"})
		return
	}

	outcome, err := h.reconciler.OnReturnSignal(c.Request.Context(), domain.ReturnSignal{
		Authority: c.Query("Authority"),
		Status:    status,
		RefID:     c.Query("RefId"),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, ReturnResponse{Status: string(outcome)})
}

// Resume handles POST /v1/payments/resume, the client reporting that
// it returned to the foreground after a backgrounded checkout.
func (h *PaymentHandler) Resume(c *gin.Context) {
	outcome, err := h.reconciler.OnForegroundResume(c.Request.Context())
	if errors.Is(err, service.ErrNoActiveAttempt) {
		// Nothing in flight; resuming is a no-op.
		respondJSON(c, http.StatusOK, ReturnResponse{Status: "NONE"})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, ReturnResponse{Status: string(outcome)})
}

// Active handles GET /v1/payments/active
func (h *PaymentHandler) Active(c *gin.Context) {
	attempt := h.reconciler.ActiveAttempt()
	if attempt == nil {
		respondError(c, service.ErrNoActiveAttempt)
		return
	}

	respondJSON(c, http.StatusOK, toAttemptResponse(attempt))
}

// History handles GET /v1/payments/history
func (h *PaymentHandler) History(c *gin.Context) {
	session := middleware.SessionFromContext(c)
	if session == nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
		return
	}

	attempts, err := h.attempts.ListByPhone(c.Request.Context(), session.PhoneNumber, defaultHistoryLimit)
	if err != nil {
		respondError(c, err)
		return
	}

	responses := make([]AttemptResponse, 0, len(attempts))
	for _, attempt := range attempts {
		responses = append(responses, toAttemptResponse(attempt))
	}

	respondJSON(c, http.StatusOK, responses)
}
