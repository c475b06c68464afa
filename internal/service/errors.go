package service

import "errors"

var (
	// ErrInvalidAmount is returned when the payment amount is not a positive integer.
	ErrInvalidAmount = errors.New("invalid payment amount")

	// ErrInvalidPhoneNumber is returned when the phone number is empty.
	ErrInvalidPhoneNumber = errors.New("invalid phone number")

	// ErrInvalidUserType is returned when the user type is not a known role.
	ErrInvalidUserType = errors.New("invalid user type")

	// ErrInvalidPurpose is returned when the payment purpose is not a known purpose.
	ErrInvalidPurpose = errors.New("invalid payment purpose")

	// ErrGatewayRejected is returned when the gateway refuses to open a checkout.
	ErrGatewayRejected = errors.New("payment gateway rejected the request")

	// ErrMissingPaymentURL is returned when the gateway accepts a checkout
	// but the response carries no URL to send the user to.
	ErrMissingPaymentURL = errors.New("payment gateway returned no payment url")

	// ErrNoActiveAttempt is returned when a return signal or resume event
	// arrives with no payment attempt in flight.
	ErrNoActiveAttempt = errors.New("no active payment attempt")

	// ErrVerificationRunning is returned when a verification loop is
	// already polling for the active attempt.
	ErrVerificationRunning = errors.New("verification already in progress")
)
