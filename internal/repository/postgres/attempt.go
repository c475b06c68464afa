package postgres

import (
	"context"
	"database/sql"
	"errors"

	"freightpay/internal/domain"
	"freightpay/internal/repository"
)

// AttemptRepository is a PostgreSQL implementation of repository.AttemptRepository.
//
// Schema:
//
//	CREATE TABLE payment_attempts (
//	    transaction_id TEXT PRIMARY KEY,
//	    amount         BIGINT NOT NULL,
//	    purpose        TEXT NOT NULL,
//	    user_type      TEXT NOT NULL,
//	    phone_number   TEXT NOT NULL,
//	    description    TEXT NOT NULL DEFAULT '',
//	    status         TEXT NOT NULL,
//	    created_at     TIMESTAMPTZ NOT NULL,
//	    updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
//	CREATE INDEX payment_attempts_phone_idx ON payment_attempts (phone_number, created_at DESC);
type AttemptRepository struct {
	q Querier
}

// NewAttemptRepository creates a new PostgreSQL attempt repository.
func NewAttemptRepository(db *sql.DB) *AttemptRepository {
	return &AttemptRepository{q: db}
}

// NewAttemptRepositoryWithTx creates an attempt repository using a transaction.
func NewAttemptRepositoryWithTx(tx *sql.Tx) *AttemptRepository {
	return &AttemptRepository{q: tx}
}

// Create persists a newly initiated attempt.
func (r *AttemptRepository) Create(ctx context.Context, attempt *domain.PaymentAttempt) error {
	query := `
		INSERT INTO payment_attempts (transaction_id, amount, purpose, user_type, phone_number, description, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.q.ExecContext(ctx, query,
		attempt.TransactionID,
		attempt.Amount,
		attempt.Purpose,
		attempt.UserType,
		attempt.PhoneNumber,
		attempt.Description,
		attempt.Status,
		attempt.CreatedAt,
	)

	return err
}

// UpdateStatus records a status transition for an attempt.
func (r *AttemptRepository) UpdateStatus(ctx context.Context, transactionID string, status domain.AttemptStatus) error {
	query := `UPDATE payment_attempts SET status = $1, updated_at = now() WHERE transaction_id = $2`

	result, err := r.q.ExecContext(ctx, query, status, transactionID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// GetByTransactionID retrieves an attempt by its transaction ID.
func (r *AttemptRepository) GetByTransactionID(ctx context.Context, transactionID string) (*domain.PaymentAttempt, error) {
	query := `
		SELECT transaction_id, amount, purpose, user_type, phone_number, description, status, created_at
		FROM payment_attempts WHERE transaction_id = $1
	`

	var attempt domain.PaymentAttempt
	err := r.q.QueryRowContext(ctx, query, transactionID).Scan(
		&attempt.TransactionID,
		&attempt.Amount,
		&attempt.Purpose,
		&attempt.UserType,
		&attempt.PhoneNumber,
		&attempt.Description,
		&attempt.Status,
		&attempt.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return &attempt, nil
}

// ListByPhone retrieves the most recent attempts for a phone number, newest first.
func (r *AttemptRepository) ListByPhone(ctx context.Context, phoneNumber string, limit int) ([]*domain.PaymentAttempt, error) {
	query := `
		SELECT transaction_id, amount, purpose, user_type, phone_number, description, status, created_at
		FROM payment_attempts WHERE phone_number = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.q.QueryContext(ctx, query, phoneNumber, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []*domain.PaymentAttempt
	for rows.Next() {
		var attempt domain.PaymentAttempt
		if err := rows.Scan(
			&attempt.TransactionID,
			&attempt.Amount,
			&attempt.Purpose,
			&attempt.UserType,
			&attempt.PhoneNumber,
			&attempt.Description,
			&attempt.Status,
			&attempt.CreatedAt,
		); err != nil {
			return nil, err
		}
		attempts = append(attempts, &attempt)
	}

	return attempts, rows.Err()
}

// Ensure interface is satisfied.
var _ repository.AttemptRepository = (*AttemptRepository)(nil)
