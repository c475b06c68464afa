package repository

import (
	"context"

	"freightpay/internal/domain"
)

// AttemptRepository defines the persistence operations for the payment
// attempt journal. The journal is append-style history for the
// transaction list; the reconciler's in-memory slot remains the source
// of truth for an in-flight attempt.
type AttemptRepository interface {
	// Create persists a newly initiated attempt.
	Create(ctx context.Context, attempt *domain.PaymentAttempt) error

	// UpdateStatus records a status transition for an attempt.
	UpdateStatus(ctx context.Context, transactionID string, status domain.AttemptStatus) error

	// GetByTransactionID retrieves an attempt by its transaction ID.
	GetByTransactionID(ctx context.Context, transactionID string) (*domain.PaymentAttempt, error)

	// ListByPhone retrieves the most recent attempts for a phone number,
	// newest first.
	ListByPhone(ctx context.Context, phoneNumber string, limit int) ([]*domain.PaymentAttempt, error)
}
