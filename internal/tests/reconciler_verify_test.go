package tests

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"freightpay/internal/domain"
	"freightpay/internal/service"
)

func pending() VerifyOutcome {
	return VerifyOutcome{Result: &domain.VerificationResult{Pending: true}}
}

func success() VerifyOutcome {
	return VerifyOutcome{Result: &domain.VerificationResult{Success: true}}
}

func failed() VerifyOutcome {
	return VerifyOutcome{Result: &domain.VerificationResult{}}
}

func TestVerification_RetriesWhilePending(t *testing.T) {
	ctx := context.Background()
	f := NewReconcilerFixture()

	if _, err := f.Reconciler.Initiate(ctx, walletCharge(50000)); err != nil {
		t.Fatalf("initiate failed: %v", err)
	}
	f.Gateway.SetVerifyOutcomes(pending(), pending(), success())

	status, err := f.Reconciler.OnReturnSignal(ctx, okSignal(""))
	if err != nil {
		t.Fatalf("signal failed: %v", err)
	}
	if status != domain.AttemptStatusVerified {
		t.Errorf("expected VERIFIED, got %s", status)
	}

	if got := atomic.LoadInt32(&f.Gateway.VerifyCallCount); got != 3 {
		t.Errorf("expected exactly 3 verify calls, got %d", got)
	}

	sleeps := f.Sleeps.Recorded()
	if len(sleeps) != 2 {
		t.Fatalf("expected 2 inter-attempt delays, got %d", len(sleeps))
	}
	for i, d := range sleeps {
		if d < 2*time.Second {
			t.Errorf("delay %d was %v, expected >= 2s", i, d)
		}
	}

	if got := atomic.LoadInt32(&f.VerifiedCalls); got != 1 {
		t.Errorf("expected verified callback exactly once, got %d", got)
	}
	if len(f.Cache.Invalidations) != 1 {
		t.Errorf("expected 1 cache invalidation, got %d", len(f.Cache.Invalidations))
	}
}

func TestVerification_ExhaustedStaysVerifying(t *testing.T) {
	ctx := context.Background()
	f := NewReconcilerFixture()

	result, err := f.Reconciler.Initiate(ctx, walletCharge(50000))
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}
	f.Gateway.SetVerifyOutcomes(pending(), pending(), pending())

	status, err := f.Reconciler.OnForegroundResume(ctx)
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if status != domain.AttemptStatusVerifying {
		t.Errorf("expected VERIFYING, got %s", status)
	}

	if got := atomic.LoadInt32(&f.Gateway.VerifyCallCount); got != 3 {
		t.Errorf("expected exactly 3 verify calls, got %d", got)
	}
	if got := atomic.LoadInt32(&f.Notifier.PendingCount); got != 1 {
		t.Errorf("expected exactly 1 still-checking notification, got %d", got)
	}

	// Outcome is genuinely unknown: not failed, attempt kept.
	if got := atomic.LoadInt32(&f.FailedCalls); got != 0 {
		t.Errorf("expected no failed callback, got %d", got)
	}
	active := f.Reconciler.ActiveAttempt()
	if active == nil {
		t.Fatal("expected attempt to stay active")
	}
	if active.Status != domain.AttemptStatusVerifying {
		t.Errorf("expected attempt left in VERIFYING, got %s", active.Status)
	}

	// A later resume re-triggers verification against the same attempt.
	f.Gateway.SetVerifyOutcomes(success())
	status, err = f.Reconciler.OnForegroundResume(ctx)
	if err != nil {
		t.Fatalf("second resume failed: %v", err)
	}
	if status != domain.AttemptStatusVerified {
		t.Errorf("expected VERIFIED, got %s", status)
	}
	if len(f.Gateway.VerifyRequests) != 4 {
		t.Fatalf("expected 4 recorded verify requests, got %d", len(f.Gateway.VerifyRequests))
	}
	if f.Gateway.VerifyRequests[3].TransactionID != result.Attempt.TransactionID {
		t.Error("second round verified a different transaction")
	}
}

func TestVerification_ExplicitFailureStopsImmediately(t *testing.T) {
	ctx := context.Background()
	f := NewReconcilerFixture()

	if _, err := f.Reconciler.Initiate(ctx, walletCharge(50000)); err != nil {
		t.Fatalf("initiate failed: %v", err)
	}
	f.Gateway.SetVerifyOutcomes(failed(), success())

	status, err := f.Reconciler.OnForegroundResume(ctx)
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if status != domain.AttemptStatusFailed {
		t.Errorf("expected FAILED, got %s", status)
	}

	if got := atomic.LoadInt32(&f.Gateway.VerifyCallCount); got != 1 {
		t.Errorf("expected 1 verify call, got %d", got)
	}
	if len(f.Sleeps.Recorded()) != 0 {
		t.Error("expected no retry delay after an explicit failure")
	}
	if got := atomic.LoadInt32(&f.FailedCalls); got != 1 {
		t.Errorf("expected failed callback exactly once, got %d", got)
	}
	if f.Reconciler.ActiveAttempt() != nil {
		t.Error("expected active attempt to be cleared")
	}
}

func TestVerification_TransportErrorCountsAsPending(t *testing.T) {
	ctx := context.Background()
	f := NewReconcilerFixture()

	if _, err := f.Reconciler.Initiate(ctx, walletCharge(50000)); err != nil {
		t.Fatalf("initiate failed: %v", err)
	}
	f.Gateway.SetVerifyOutcomes(
		VerifyOutcome{Err: errors.New("connection reset")},
		success(),
	)

	status, err := f.Reconciler.OnForegroundResume(ctx)
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if status != domain.AttemptStatusVerified {
		t.Errorf("expected VERIFIED, got %s", status)
	}
	if got := atomic.LoadInt32(&f.Gateway.VerifyCallCount); got != 2 {
		t.Errorf("expected 2 verify calls, got %d", got)
	}
	if got := atomic.LoadInt32(&f.FailedCalls); got != 0 {
		t.Errorf("transport blip must not fail the attempt, got %d failed callbacks", got)
	}
}

func TestVerification_SecondTriggerDoesNotStartDuplicateLoop(t *testing.T) {
	ctx := context.Background()
	f := NewReconcilerFixture()
	f.Launcher.External = true

	if _, err := f.Reconciler.Initiate(ctx, walletCharge(50000)); err != nil {
		t.Fatalf("initiate failed: %v", err)
	}
	f.Gateway.SetVerifyOutcomes(pending(), pending(), success())

	// While the first loop waits between attempts, a resume event and
	// the armed fallback timer both fire. Neither may start a second
	// loop against the same transaction.
	var resumeErr error
	var resumeStatus domain.AttemptStatus
	f.Sleeps.OnSleep = func(n int) {
		if n == 1 {
			resumeStatus, resumeErr = f.Reconciler.OnForegroundResume(ctx)
			f.Scheduler.FireAll()
		}
	}

	status, err := f.Reconciler.OnForegroundResume(ctx)
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if status != domain.AttemptStatusVerified {
		t.Errorf("expected VERIFIED, got %s", status)
	}

	if !errors.Is(resumeErr, service.ErrVerificationRunning) {
		t.Errorf("expected concurrent resume to report ErrVerificationRunning, got %v", resumeErr)
	}
	if resumeStatus != domain.AttemptStatusVerifying {
		t.Errorf("expected concurrent resume to see VERIFYING, got %s", resumeStatus)
	}

	// Only the first loop polled: 3 scripted outcomes, 3 calls.
	if got := atomic.LoadInt32(&f.Gateway.VerifyCallCount); got != 3 {
		t.Errorf("expected exactly 3 verify calls, got %d", got)
	}
	if got := atomic.LoadInt32(&f.VerifiedCalls); got != 1 {
		t.Errorf("expected verified callback exactly once, got %d", got)
	}
}

func TestForegroundResume_NoActiveAttemptIsNoOp(t *testing.T) {
	ctx := context.Background()
	f := NewReconcilerFixture()

	_, err := f.Reconciler.OnForegroundResume(ctx)
	if !errors.Is(err, service.ErrNoActiveAttempt) {
		t.Fatalf("expected ErrNoActiveAttempt, got %v", err)
	}
	if got := atomic.LoadInt32(&f.Gateway.VerifyCallCount); got != 0 {
		t.Errorf("expected 0 verify calls, got %d", got)
	}
}

func TestFallbackTimer_ArmedOnExternalHandoff(t *testing.T) {
	ctx := context.Background()
	f := NewReconcilerFixture()
	f.Launcher.External = true

	if _, err := f.Reconciler.Initiate(ctx, walletCharge(50000)); err != nil {
		t.Fatalf("initiate failed: %v", err)
	}

	if len(f.Scheduler.Calls) != 1 {
		t.Fatalf("expected 1 armed timer, got %d", len(f.Scheduler.Calls))
	}
	if f.Scheduler.Calls[0].Delay != 60*time.Second {
		t.Errorf("expected 60s fallback delay, got %v", f.Scheduler.Calls[0].Delay)
	}

	// Firing the timer verifies the still-active attempt.
	f.Scheduler.FireAll()
	if got := atomic.LoadInt32(&f.Gateway.VerifyCallCount); got != 1 {
		t.Errorf("expected 1 verify call after fallback, got %d", got)
	}
	if got := atomic.LoadInt32(&f.VerifiedCalls); got != 1 {
		t.Errorf("expected verified callback once, got %d", got)
	}
}

func TestFallbackTimer_NotArmedForInAppCheckout(t *testing.T) {
	ctx := context.Background()
	f := NewReconcilerFixture()

	if _, err := f.Reconciler.Initiate(ctx, walletCharge(50000)); err != nil {
		t.Fatalf("initiate failed: %v", err)
	}
	if len(f.Scheduler.Calls) != 0 {
		t.Errorf("expected no fallback timer, got %d", len(f.Scheduler.Calls))
	}
}

func TestFallbackTimer_DisarmedByNewInitiate(t *testing.T) {
	ctx := context.Background()
	f := NewReconcilerFixture()
	f.Launcher.External = true

	if _, err := f.Reconciler.Initiate(ctx, walletCharge(50000)); err != nil {
		t.Fatalf("first initiate failed: %v", err)
	}
	second, err := f.Reconciler.Initiate(ctx, walletCharge(70000))
	if err != nil {
		t.Fatalf("second initiate failed: %v", err)
	}

	if !f.Scheduler.Stopped(0) {
		t.Error("expected the first fallback timer to be disarmed")
	}

	f.Scheduler.FireAll()
	for _, req := range f.Gateway.VerifyRequests {
		if req.TransactionID != second.Attempt.TransactionID {
			t.Errorf("stale fallback verified abandoned attempt %s", req.TransactionID)
		}
	}
}

func TestWalletChargeFlow_EndToEnd(t *testing.T) {
	ctx := context.Background()
	f := NewReconcilerFixture()

	result, err := f.Reconciler.Initiate(ctx, service.InitiateRequest{
		Amount:      100000,
		Purpose:     domain.PurposeWalletCharge,
		UserType:    domain.UserTypeDriver,
		PhoneNumber: "09120000000",
	})
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}
	if result.Attempt.Status != domain.AttemptStatusAwaitingReturn {
		t.Fatalf("expected AWAITING_RETURN, got %s", result.Attempt.Status)
	}
	if len(f.Launcher.OpenedURLs) != 1 {
		t.Fatalf("expected checkout to be opened")
	}

	// The app comes back to the foreground; the server learns the
	// outcome from the gateway.
	status, err := f.Reconciler.OnForegroundResume(ctx)
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if status != domain.AttemptStatusVerified {
		t.Errorf("expected VERIFIED, got %s", status)
	}
	if got := atomic.LoadInt32(&f.Gateway.VerifyCallCount); got != 1 {
		t.Errorf("expected 1 verify call, got %d", got)
	}

	if f.Reconciler.ActiveAttempt() != nil {
		t.Error("expected active attempt to be cleared")
	}
	if len(f.Cache.Invalidations) != 1 {
		t.Fatalf("expected 1 cache invalidation, got %d", len(f.Cache.Invalidations))
	}
	inv := f.Cache.Invalidations[0]
	if inv.UserType != domain.UserTypeDriver || inv.PhoneNumber != "09120000000" {
		t.Errorf("unexpected invalidation %+v", inv)
	}
	if got := atomic.LoadInt32(&f.Notifier.SuccessCount); got != 1 {
		t.Errorf("expected 1 success notification, got %d", got)
	}

	// Journal reflects the terminal state.
	journaled, err := f.Attempts.GetByTransactionID(ctx, result.Attempt.TransactionID)
	if err != nil {
		t.Fatalf("expected attempt in journal: %v", err)
	}
	if journaled.Status != domain.AttemptStatusVerified {
		t.Errorf("expected journaled status VERIFIED, got %s", journaled.Status)
	}
}
