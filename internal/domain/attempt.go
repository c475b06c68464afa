package domain

import "time"

// AttemptStatus represents the current status of a payment attempt.
type AttemptStatus string

const (
	AttemptStatusInitiated      AttemptStatus = "INITIATED"
	AttemptStatusAwaitingReturn AttemptStatus = "AWAITING_RETURN"
	AttemptStatusVerifying      AttemptStatus = "VERIFYING"
	AttemptStatusVerified       AttemptStatus = "VERIFIED"
	AttemptStatusFailed         AttemptStatus = "FAILED"
	AttemptStatusCancelled      AttemptStatus = "CANCELLED"
)

// Terminal reports whether the status is a terminal outcome.
func (s AttemptStatus) Terminal() bool {
	return s == AttemptStatusVerified || s == AttemptStatusFailed || s == AttemptStatusCancelled
}

// PaymentPurpose represents what a payment attempt pays for.
type PaymentPurpose string

const (
	PurposeWalletCharge         PaymentPurpose = "WALLET_CHARGE"
	PurposeSubscriptionPurchase PaymentPurpose = "SUBSCRIPTION_PURCHASE"
)

// UserType represents the role of the paying user. The string values
// match the gateway wire format.
type UserType string

const (
	UserTypeDriver     UserType = "driver"
	UserTypeCargoOwner UserType = "cargoOwner"
)

// PaymentAttempt is the locally tracked record of one checkout flow,
// from initiation to terminal outcome.
type PaymentAttempt struct {
	TransactionID string
	Amount        int64
	Purpose       PaymentPurpose
	UserType      UserType
	PhoneNumber   string
	Description   string
	Metadata      map[string]any
	Status        AttemptStatus
	CreatedAt     time.Time
}
