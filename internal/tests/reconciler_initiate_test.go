package tests

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"freightpay/internal/domain"
	"freightpay/internal/gateway"
	"freightpay/internal/service"
)

func walletCharge(amount int64) service.InitiateRequest {
	return service.InitiateRequest{
		Amount:      amount,
		Purpose:     domain.PurposeWalletCharge,
		UserType:    domain.UserTypeDriver,
		PhoneNumber: "09120000000",
	}
}

func TestInitiate_RejectsNonPositiveAmount(t *testing.T) {
	ctx := context.Background()
	f := NewReconcilerFixture()

	for _, amount := range []int64{0, -1, -100000} {
		_, err := f.Reconciler.Initiate(ctx, walletCharge(amount))
		if !errors.Is(err, service.ErrInvalidAmount) {
			t.Errorf("amount %d: expected ErrInvalidAmount, got %v", amount, err)
		}
	}

	// Validation must fail before any network call.
	if got := atomic.LoadInt32(&f.Gateway.CreateCallCount); got != 0 {
		t.Errorf("expected 0 gateway calls, got %d", got)
	}
}

func TestInitiate_RejectsMissingPhoneNumber(t *testing.T) {
	ctx := context.Background()
	f := NewReconcilerFixture()

	req := walletCharge(50000)
	req.PhoneNumber = ""

	_, err := f.Reconciler.Initiate(ctx, req)
	if !errors.Is(err, service.ErrInvalidPhoneNumber) {
		t.Fatalf("expected ErrInvalidPhoneNumber, got %v", err)
	}
	if got := atomic.LoadInt32(&f.Gateway.CreateCallCount); got != 0 {
		t.Errorf("expected 0 gateway calls, got %d", got)
	}
}

func TestInitiate_GatewayFailureIsNotRetried(t *testing.T) {
	ctx := context.Background()
	f := NewReconcilerFixture()
	f.Gateway.CreateError = errors.New("connection refused")

	_, err := f.Reconciler.Initiate(ctx, walletCharge(50000))
	if err == nil {
		t.Fatal("expected an error")
	}

	if got := atomic.LoadInt32(&f.Gateway.CreateCallCount); got != 1 {
		t.Errorf("expected exactly 1 creation call, got %d", got)
	}
	if got := atomic.LoadInt32(&f.Notifier.ErrorCount); got != 1 {
		t.Errorf("expected 1 error notification, got %d", got)
	}
	if f.Reconciler.ActiveAttempt() != nil {
		t.Error("expected no active attempt after creation failure")
	}
}

func TestInitiate_MissingPaymentURL(t *testing.T) {
	ctx := context.Background()
	f := NewReconcilerFixture()
	f.Gateway.CreateResponse = &gateway.CreatePaymentResponse{Success: true, PaymentURL: ""}

	_, err := f.Reconciler.Initiate(ctx, walletCharge(50000))
	if !errors.Is(err, service.ErrMissingPaymentURL) {
		t.Fatalf("expected ErrMissingPaymentURL, got %v", err)
	}
	if got := atomic.LoadInt32(&f.Notifier.ErrorCount); got != 1 {
		t.Errorf("expected 1 error notification, got %d", got)
	}
	if f.Reconciler.ActiveAttempt() != nil {
		t.Error("expected no active attempt")
	}
}

func TestInitiate_OpensCheckoutAndAwaitsReturn(t *testing.T) {
	ctx := context.Background()
	f := NewReconcilerFixture()

	result, err := f.Reconciler.Initiate(ctx, walletCharge(100000))
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}

	if result.PaymentURL != "https://pay.example/checkout" {
		t.Errorf("unexpected payment url %q", result.PaymentURL)
	}
	if len(f.Launcher.OpenedURLs) != 1 || f.Launcher.OpenedURLs[0] != result.PaymentURL {
		t.Errorf("expected launcher to open %q, got %v", result.PaymentURL, f.Launcher.OpenedURLs)
	}
	if result.Attempt.Status != domain.AttemptStatusAwaitingReturn {
		t.Errorf("expected status AWAITING_RETURN, got %s", result.Attempt.Status)
	}

	active := f.Reconciler.ActiveAttempt()
	if active == nil {
		t.Fatal("expected an active attempt")
	}
	if active.TransactionID != result.Attempt.TransactionID {
		t.Errorf("active attempt %s does not match initiated %s", active.TransactionID, result.Attempt.TransactionID)
	}

	// Journaled for the transaction history.
	if _, err := f.Attempts.GetByTransactionID(ctx, active.TransactionID); err != nil {
		t.Errorf("expected attempt in journal: %v", err)
	}
}

func TestInitiate_CheckoutOpenFailureClosesJournalRow(t *testing.T) {
	ctx := context.Background()
	f := NewReconcilerFixture()
	f.Launcher.OpenError = errors.New("no browser available")

	_, err := f.Reconciler.Initiate(ctx, walletCharge(50000))
	if err == nil {
		t.Fatal("expected an error")
	}
	if f.Reconciler.ActiveAttempt() != nil {
		t.Error("expected no active attempt after open failure")
	}

	// The journaled attempt must not linger as in-flight history.
	journaled, err := f.Attempts.ListByPhone(ctx, "09120000000", 10)
	if err != nil {
		t.Fatalf("history lookup failed: %v", err)
	}
	if len(journaled) != 1 {
		t.Fatalf("expected 1 journaled attempt, got %d", len(journaled))
	}
	if journaled[0].Status != domain.AttemptStatusFailed {
		t.Errorf("expected journaled status FAILED, got %s", journaled[0].Status)
	}
}

func TestInitiate_ReplacesActiveAttempt(t *testing.T) {
	ctx := context.Background()
	f := NewReconcilerFixture()

	first, err := f.Reconciler.Initiate(ctx, walletCharge(50000))
	if err != nil {
		t.Fatalf("first initiate failed: %v", err)
	}
	second, err := f.Reconciler.Initiate(ctx, walletCharge(70000))
	if err != nil {
		t.Fatalf("second initiate failed: %v", err)
	}

	if first.Attempt.TransactionID == second.Attempt.TransactionID {
		t.Fatal("expected distinct transaction ids")
	}

	// A resume must verify only the newest attempt.
	if _, err := f.Reconciler.OnForegroundResume(ctx); err != nil {
		t.Fatalf("resume failed: %v", err)
	}

	for _, req := range f.Gateway.VerifyRequests {
		if req.TransactionID != second.Attempt.TransactionID {
			t.Errorf("verify called for abandoned attempt %s", req.TransactionID)
		}
	}
	if got := atomic.LoadInt32(&f.Gateway.VerifyCallCount); got == 0 {
		t.Error("expected verification of the newest attempt")
	}
}
