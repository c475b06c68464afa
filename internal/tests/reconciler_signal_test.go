package tests

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"freightpay/internal/domain"
	"freightpay/internal/service"
)

func okSignal(refID string) domain.ReturnSignal {
	return domain.ReturnSignal{Authority: "A0001", Status: domain.SignalStatusOK, RefID: refID}
}

func TestReturnSignal_NoActiveAttempt(t *testing.T) {
	ctx := context.Background()
	f := NewReconcilerFixture()

	_, err := f.Reconciler.OnReturnSignal(ctx, okSignal(""))
	if !errors.Is(err, service.ErrNoActiveAttempt) {
		t.Fatalf("expected ErrNoActiveAttempt, got %v", err)
	}
}

func TestReturnSignal_CancelledSkipsVerification(t *testing.T) {
	ctx := context.Background()
	f := NewReconcilerFixture()

	if _, err := f.Reconciler.Initiate(ctx, walletCharge(50000)); err != nil {
		t.Fatalf("initiate failed: %v", err)
	}

	status, err := f.Reconciler.OnReturnSignal(ctx, domain.ReturnSignal{
		Authority: "A0001",
		Status:    domain.SignalStatusCancelled,
	})
	if err != nil {
		t.Fatalf("signal failed: %v", err)
	}
	if status != domain.AttemptStatusCancelled {
		t.Errorf("expected CANCELLED, got %s", status)
	}

	if got := atomic.LoadInt32(&f.Gateway.VerifyCallCount); got != 0 {
		t.Errorf("expected 0 verify calls, got %d", got)
	}
	if got := atomic.LoadInt32(&f.CancelledCalls); got != 1 {
		t.Errorf("expected cancelled callback exactly once, got %d", got)
	}
	if got := atomic.LoadInt32(&f.Notifier.CancelledCount); got != 1 {
		t.Errorf("expected 1 cancellation notification, got %d", got)
	}
	if f.Reconciler.ActiveAttempt() != nil {
		t.Error("expected active attempt to be cleared")
	}
}

func TestReturnSignal_ErrorMarksFailed(t *testing.T) {
	ctx := context.Background()
	f := NewReconcilerFixture()

	if _, err := f.Reconciler.Initiate(ctx, walletCharge(50000)); err != nil {
		t.Fatalf("initiate failed: %v", err)
	}

	status, err := f.Reconciler.OnReturnSignal(ctx, domain.ReturnSignal{
		Authority: "A0001",
		Status:    domain.SignalStatusError,
	})
	if err != nil {
		t.Fatalf("signal failed: %v", err)
	}
	if status != domain.AttemptStatusFailed {
		t.Errorf("expected FAILED, got %s", status)
	}
	if got := atomic.LoadInt32(&f.FailedCalls); got != 1 {
		t.Errorf("expected failed callback exactly once, got %d", got)
	}
	if got := atomic.LoadInt32(&f.Notifier.FailedCount); got != 1 {
		t.Errorf("expected 1 failure notification, got %d", got)
	}
	if f.Reconciler.ActiveAttempt() != nil {
		t.Error("expected active attempt to be cleared")
	}
}

func TestReturnSignal_OKWithRefIDShortCircuits(t *testing.T) {
	ctx := context.Background()
	f := NewReconcilerFixture()

	result, err := f.Reconciler.Initiate(ctx, walletCharge(50000))
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}

	// The gateway's own page already confirmed the payment.
	status, err := f.Reconciler.OnReturnSignal(ctx, okSignal("REF-77"))
	if err != nil {
		t.Fatalf("signal failed: %v", err)
	}
	if status != domain.AttemptStatusVerified {
		t.Errorf("expected VERIFIED, got %s", status)
	}

	if got := atomic.LoadInt32(&f.Gateway.VerifyCallCount); got != 0 {
		t.Errorf("expected 0 verify calls, got %d", got)
	}
	if got := atomic.LoadInt32(&f.VerifiedCalls); got != 1 {
		t.Errorf("expected verified callback exactly once, got %d", got)
	}
	if got := atomic.LoadInt32(&f.Notifier.SuccessCount); got != 1 {
		t.Errorf("expected 1 success notification, got %d", got)
	}

	if len(f.Cache.Invalidations) != 1 {
		t.Fatalf("expected 1 cache invalidation, got %d", len(f.Cache.Invalidations))
	}
	inv := f.Cache.Invalidations[0]
	if inv.UserType != domain.UserTypeDriver || inv.PhoneNumber != result.Attempt.PhoneNumber {
		t.Errorf("unexpected invalidation %+v", inv)
	}
	if f.Reconciler.ActiveAttempt() != nil {
		t.Error("expected active attempt to be cleared")
	}
}

func TestReturnSignal_OKWithoutRefIDVerifies(t *testing.T) {
	ctx := context.Background()
	f := NewReconcilerFixture()

	if _, err := f.Reconciler.Initiate(ctx, walletCharge(50000)); err != nil {
		t.Fatalf("initiate failed: %v", err)
	}

	status, err := f.Reconciler.OnReturnSignal(ctx, okSignal(""))
	if err != nil {
		t.Fatalf("signal failed: %v", err)
	}
	if status != domain.AttemptStatusVerified {
		t.Errorf("expected VERIFIED, got %s", status)
	}
	if got := atomic.LoadInt32(&f.Gateway.VerifyCallCount); got != 1 {
		t.Errorf("expected 1 verify call, got %d", got)
	}
}

func TestReturnSignal_CancelDuringVerificationSupersedes(t *testing.T) {
	ctx := context.Background()
	f := NewReconcilerFixture()

	if _, err := f.Reconciler.Initiate(ctx, walletCharge(50000)); err != nil {
		t.Fatalf("initiate failed: %v", err)
	}

	f.Gateway.SetVerifyOutcomes(
		VerifyOutcome{Result: &domain.VerificationResult{Pending: true}},
		VerifyOutcome{Result: &domain.VerificationResult{Success: true}},
	)

	// Deliver an explicit cancellation while the loop waits between
	// attempts; the signal's outcome must win.
	f.Sleeps.OnSleep = func(n int) {
		if n == 1 {
			if _, err := f.Reconciler.OnReturnSignal(ctx, domain.ReturnSignal{
				Authority: "A0001",
				Status:    domain.SignalStatusCancelled,
			}); err != nil {
				t.Errorf("cancel signal failed: %v", err)
			}
		}
	}

	_, err := f.Reconciler.OnForegroundResume(ctx)
	if !errors.Is(err, service.ErrNoActiveAttempt) {
		t.Fatalf("expected superseded loop to report ErrNoActiveAttempt, got %v", err)
	}

	if got := atomic.LoadInt32(&f.Gateway.VerifyCallCount); got != 1 {
		t.Errorf("expected the loop to stop after 1 verify call, got %d", got)
	}
	if got := atomic.LoadInt32(&f.CancelledCalls); got != 1 {
		t.Errorf("expected cancelled callback exactly once, got %d", got)
	}
	if got := atomic.LoadInt32(&f.VerifiedCalls); got != 0 {
		t.Errorf("expected no verified callback, got %d", got)
	}
	if f.Reconciler.ActiveAttempt() != nil {
		t.Error("expected active attempt to be cleared")
	}
}
