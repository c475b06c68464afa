package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"freightpay/internal/domain"
)

// NotificationType represents the severity of a notification.
type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationInfo    NotificationType = "info"
	NotificationError   NotificationType = "error"
)

// Notification represents a notification to be delivered to a user.
type Notification struct {
	ID        string
	Type      NotificationType
	Recipient string // Phone number
	Title     string
	Message   string
	Data      map[string]any
	CreatedAt time.Time
}

// Notifier is the sink the reconciler reports payment outcomes to.
type Notifier interface {
	NotifyPaymentSuccess(ctx context.Context, attempt *domain.PaymentAttempt) error
	NotifyPaymentFailed(ctx context.Context, attempt *domain.PaymentAttempt) error
	NotifyPaymentCancelled(ctx context.Context, attempt *domain.PaymentAttempt) error
	NotifyVerificationPending(ctx context.Context, attempt *domain.PaymentAttempt) error
	NotifyPaymentError(ctx context.Context, phoneNumber, message string) error
}

// NotificationService handles notification delivery.
type NotificationService struct {
	// In a real system, this would have a push client (FCM/APNS) and an
	// SMS client; delivery here is log-backed.
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService() *NotificationService {
	return &NotificationService{}
}

// NotifyPaymentSuccess notifies the user of a verified payment.
func (s *NotificationService) NotifyPaymentSuccess(ctx context.Context, attempt *domain.PaymentAttempt) error {
	return s.send(ctx, Notification{
		Type:      NotificationSuccess,
		Recipient: attempt.PhoneNumber,
		Title:     "Payment Successful",
		Message:   fmt.Sprintf("Your payment of %d was confirmed", attempt.Amount),
		Data: map[string]any{
			"transaction_id": attempt.TransactionID,
			"amount":         attempt.Amount,
			"purpose":        attempt.Purpose,
		},
	})
}

// NotifyPaymentFailed notifies the user of a failed payment.
func (s *NotificationService) NotifyPaymentFailed(ctx context.Context, attempt *domain.PaymentAttempt) error {
	return s.send(ctx, Notification{
		Type:      NotificationError,
		Recipient: attempt.PhoneNumber,
		Title:     "Payment Failed",
		Message:   fmt.Sprintf("Your payment of %d did not go through. Please try again.", attempt.Amount),
		Data: map[string]any{
			"transaction_id": attempt.TransactionID,
			"amount":         attempt.Amount,
		},
	})
}

// NotifyPaymentCancelled notifies the user of a cancelled checkout.
// Cancellation is informational, not an error.
func (s *NotificationService) NotifyPaymentCancelled(ctx context.Context, attempt *domain.PaymentAttempt) error {
	return s.send(ctx, Notification{
		Type:      NotificationInfo,
		Recipient: attempt.PhoneNumber,
		Title:     "Payment Cancelled",
		Message:   "You cancelled the payment.",
		Data: map[string]any{
			"transaction_id": attempt.TransactionID,
		},
	})
}

// NotifyVerificationPending tells the user the outcome is still unknown
// after the verification budget was exhausted.
func (s *NotificationService) NotifyVerificationPending(ctx context.Context, attempt *domain.PaymentAttempt) error {
	return s.send(ctx, Notification{
		Type:      NotificationInfo,
		Recipient: attempt.PhoneNumber,
		Title:     "Payment Being Checked",
		Message:   "Your payment is still being checked. Please check back shortly.",
		Data: map[string]any{
			"transaction_id": attempt.TransactionID,
		},
	})
}

// NotifyPaymentError notifies the user of a generic payment error, such
// as a failure to open the checkout.
func (s *NotificationService) NotifyPaymentError(ctx context.Context, phoneNumber, message string) error {
	return s.send(ctx, Notification{
		Type:      NotificationError,
		Recipient: phoneNumber,
		Title:     "Payment Error",
		Message:   message,
	})
}

// send delivers a notification (log-backed implementation).
func (s *NotificationService) send(ctx context.Context, notification Notification) error {
	notification.ID = uuid.New().String()
	notification.CreatedAt = time.Now()

	log.Printf("[NOTIFICATION] Type=%s, Recipient=%s, Title=%s, Message=%s",
		notification.Type, notification.Recipient, notification.Title, notification.Message)

	return nil
}

// Ensure interface is satisfied.
var _ Notifier = (*NotificationService)(nil)
