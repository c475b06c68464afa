package gateway

import (
	"context"

	"freightpay/internal/domain"
)

// CreatePaymentRequest contains the parameters for opening a checkout
// with the payment gateway.
type CreatePaymentRequest struct {
	Amount        int64           `json:"amount"`
	Description   string          `json:"description"`
	UserType      domain.UserType `json:"userType"`
	TransactionID string          `json:"transactionId"`
	PhoneNumber   string          `json:"phoneNumber"`
	CallbackURL   string          `json:"callbackUrl"`
	Metadata      map[string]any  `json:"metadata,omitempty"`
}

// CreatePaymentResponse is the gateway's answer to a create call.
type CreatePaymentResponse struct {
	Success    bool   `json:"success"`
	PaymentURL string `json:"paymentUrl"`
}

// VerifyRequest identifies the transaction to verify.
type VerifyRequest struct {
	TransactionID string          `json:"transactionId"`
	UserType      domain.UserType `json:"userType"`
	PhoneNumber   string          `json:"phoneNumber"`
}

// Client is the interface to the payment gateway.
type Client interface {
	// CreatePayment opens a checkout and returns the URL the user must
	// be sent to.
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResponse, error)

	// VerifyTransaction asks the gateway whether a transaction went
	// through. A transport error means the outcome is unknown, not that
	// the payment failed.
	VerifyTransaction(ctx context.Context, req VerifyRequest) (*domain.VerificationResult, error)
}
