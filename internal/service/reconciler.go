package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"freightpay/internal/domain"
	"freightpay/internal/gateway"
	"freightpay/internal/redis"
	"freightpay/internal/repository"
)

const (
	verifyAttempts = 3
	verifyDelay    = 2 * time.Second
	fallbackDelay  = 60 * time.Second
)

// Hooks are optional callbacks fired on terminal reconciliation
// outcomes, so the owning surface can reset its own state.
type Hooks struct {
	OnVerified  func(attempt *domain.PaymentAttempt)
	OnFailed    func(attempt *domain.PaymentAttempt)
	OnCancelled func(attempt *domain.PaymentAttempt)
}

// ReconcilerDeps contains the collaborators of the reconciler.
type ReconcilerDeps struct {
	Gateway  gateway.Client
	Cache    redis.ProfileCacheInterface
	Attempts repository.AttemptRepository // optional journal; nil disables history
	Notifier Notifier
	Launcher CheckoutLauncher
	Hooks    Hooks

	// Sleep and Schedule default to wall-clock implementations; tests
	// inject fakes so the retry policy runs without real delay.
	Sleep    func(ctx context.Context, d time.Duration) error
	Schedule func(d time.Duration, fn func()) (stop func() bool)
}

// Reconciler tracks the single in-flight payment attempt and reconciles
// its outcome against the gateway: an explicit return signal or a
// foreground-resume event triggers a bounded verification loop, and the
// cached profile is invalidated once the payment is confirmed.
type Reconciler struct {
	gateway  gateway.Client
	cache    redis.ProfileCacheInterface
	attempts repository.AttemptRepository
	notifier Notifier
	launcher CheckoutLauncher
	hooks    Hooks
	sleep    func(ctx context.Context, d time.Duration) error
	schedule func(d time.Duration, fn func()) (stop func() bool)

	mu           sync.Mutex
	active       *domain.PaymentAttempt
	verifyingID  string // transaction ID owned by a running verify loop
	fallbackStop func() bool
}

// NewReconciler creates a new Reconciler.
func NewReconciler(deps ReconcilerDeps) *Reconciler {
	if deps.Sleep == nil {
		deps.Sleep = defaultSleep
	}
	if deps.Schedule == nil {
		deps.Schedule = defaultSchedule
	}
	return &Reconciler{
		gateway:  deps.Gateway,
		cache:    deps.Cache,
		attempts: deps.Attempts,
		notifier: deps.Notifier,
		launcher: deps.Launcher,
		hooks:    deps.Hooks,
		sleep:    deps.Sleep,
		schedule: deps.Schedule,
	}
}

func defaultSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func defaultSchedule(d time.Duration, fn func()) func() bool {
	return time.AfterFunc(d, fn).Stop
}

// InitiateRequest contains the parameters for starting a checkout.
type InitiateRequest struct {
	Amount      int64
	Purpose     domain.PaymentPurpose
	UserType    domain.UserType
	PhoneNumber string
	Description string
	Metadata    map[string]any
}

// InitiateResult is a snapshot of the newly active attempt plus the
// checkout URL the user was sent to.
type InitiateResult struct {
	Attempt    domain.PaymentAttempt
	PaymentURL string
}

// Initiate validates the request, opens a checkout with the gateway and
// registers the attempt as the single active one. A previously active
// attempt is abandoned, and its pending timers are disarmed.
func (r *Reconciler) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if req.PhoneNumber == "" {
		return nil, ErrInvalidPhoneNumber
	}
	if req.UserType != domain.UserTypeDriver && req.UserType != domain.UserTypeCargoOwner {
		return nil, ErrInvalidUserType
	}
	if req.Purpose != domain.PurposeWalletCharge && req.Purpose != domain.PurposeSubscriptionPurchase {
		return nil, ErrInvalidPurpose
	}

	description := req.Description
	if description == "" {
		if req.Purpose == domain.PurposeWalletCharge {
			description = "Wallet charge"
		} else {
			description = "Subscription purchase"
		}
	}

	attempt := &domain.PaymentAttempt{
		TransactionID: newTransactionID(),
		Amount:        req.Amount,
		Purpose:       req.Purpose,
		UserType:      req.UserType,
		PhoneNumber:   req.PhoneNumber,
		Description:   description,
		Metadata:      req.Metadata,
		Status:        domain.AttemptStatusInitiated,
		CreatedAt:     time.Now(),
	}

	created, err := r.gateway.CreatePayment(ctx, gateway.CreatePaymentRequest{
		Amount:        req.Amount,
		Description:   description,
		UserType:      req.UserType,
		TransactionID: attempt.TransactionID,
		PhoneNumber:   req.PhoneNumber,
		Metadata:      req.Metadata,
	})
	if err != nil {
		r.notifyError(ctx, req.PhoneNumber, "Could not start the payment. Please try again.")
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}
	if !created.Success {
		r.notifyError(ctx, req.PhoneNumber, "The payment could not be started.")
		return nil, ErrGatewayRejected
	}
	if created.PaymentURL == "" {
		r.notifyError(ctx, req.PhoneNumber, "The payment could not be started.")
		return nil, ErrMissingPaymentURL
	}

	attempt.Status = domain.AttemptStatusAwaitingReturn

	r.mu.Lock()
	if r.active != nil {
		log.Printf("[RECONCILER] abandoning attempt %s in favour of %s", r.active.TransactionID, attempt.TransactionID)
	}
	r.disarmFallbackLocked()
	r.active = attempt
	r.verifyingID = ""
	r.mu.Unlock()

	r.journalCreate(ctx, attempt)

	external, err := r.launcher.Open(ctx, created.PaymentURL)
	if err != nil {
		r.mu.Lock()
		if r.active == attempt {
			r.active = nil
		}
		r.mu.Unlock()
		// The journal row already exists; close it out so the history
		// never shows a phantom in-flight attempt.
		r.journalStatus(ctx, attempt.TransactionID, domain.AttemptStatusFailed)
		r.notifyError(ctx, req.PhoneNumber, "Could not open the payment page.")
		return nil, fmt.Errorf("failed to open checkout: %w", err)
	}

	if external {
		// External handoffs may never produce a resume event; a single
		// delayed check compensates.
		txID := attempt.TransactionID
		stop := r.schedule(fallbackDelay, func() { r.fallbackCheck(txID) })
		r.mu.Lock()
		if r.active == attempt {
			r.fallbackStop = stop
		} else {
			stop()
		}
		r.mu.Unlock()
	}

	r.mu.Lock()
	snapshot := *attempt
	r.mu.Unlock()

	return &InitiateResult{Attempt: snapshot, PaymentURL: created.PaymentURL}, nil
}

// OnReturnSignal consumes a gateway return redirect for the active
// attempt. A CANCELLED or ERROR signal is terminal immediately; OK with
// a reference ID is treated as already verified; OK without one starts
// the verification loop.
func (r *Reconciler) OnReturnSignal(ctx context.Context, signal domain.ReturnSignal) (domain.AttemptStatus, error) {
	r.mu.Lock()
	if r.active == nil {
		r.mu.Unlock()
		return "", ErrNoActiveAttempt
	}
	attempt := r.active
	txID := attempt.TransactionID
	log.Printf("[RECONCILER] return signal %s for %s (authority %s)", signal.Status, txID, signal.Authority)

	switch signal.Status {
	case domain.SignalStatusCancelled:
		r.clearLocked()
		attempt.Status = domain.AttemptStatusCancelled
		r.mu.Unlock()

		r.journalStatus(ctx, txID, domain.AttemptStatusCancelled)
		r.notify(r.notifier.NotifyPaymentCancelled(ctx, attempt))
		if r.hooks.OnCancelled != nil {
			r.hooks.OnCancelled(attempt)
		}
		return domain.AttemptStatusCancelled, nil

	case domain.SignalStatusError:
		r.clearLocked()
		attempt.Status = domain.AttemptStatusFailed
		r.mu.Unlock()

		r.journalStatus(ctx, txID, domain.AttemptStatusFailed)
		r.notify(r.notifier.NotifyPaymentFailed(ctx, attempt))
		if r.hooks.OnFailed != nil {
			r.hooks.OnFailed(attempt)
		}
		return domain.AttemptStatusFailed, nil

	case domain.SignalStatusOK:
		if signal.RefID != "" {
			// The gateway's own verification page confirmed the payment
			// before redirecting; no polling needed.
			r.clearLocked()
			attempt.Status = domain.AttemptStatusVerified
			r.mu.Unlock()

			r.settleVerified(ctx, attempt)
			return domain.AttemptStatusVerified, nil
		}
		r.mu.Unlock()
		return r.runVerification(ctx, txID)

	default:
		r.mu.Unlock()
		return "", fmt.Errorf("unknown return signal status %q", signal.Status)
	}
}

// OnForegroundResume handles the app returning to the foreground after
// a backgrounded checkout. Without a signal the outcome is unknown, so
// the verification loop runs. Returns ErrNoActiveAttempt when nothing
// is in flight.
func (r *Reconciler) OnForegroundResume(ctx context.Context) (domain.AttemptStatus, error) {
	r.mu.Lock()
	if r.active == nil {
		r.mu.Unlock()
		return "", ErrNoActiveAttempt
	}
	txID := r.active.TransactionID
	r.mu.Unlock()

	return r.runVerification(ctx, txID)
}

// ActiveAttempt returns a snapshot of the active attempt, or nil.
func (r *Reconciler) ActiveAttempt() *domain.PaymentAttempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return nil
	}
	snapshot := *r.active
	return &snapshot
}

// runVerification polls the gateway up to verifyAttempts times with
// verifyDelay between calls. Not reentrant per transaction: a second
// caller while a loop is running gets ErrVerificationRunning. Between
// steps the loop re-checks that the attempt it started with is still
// the active one, so a superseding signal or a new Initiate aborts it.
func (r *Reconciler) runVerification(ctx context.Context, txID string) (domain.AttemptStatus, error) {
	r.mu.Lock()
	if r.active == nil || r.active.TransactionID != txID {
		r.mu.Unlock()
		return "", ErrNoActiveAttempt
	}
	if r.verifyingID == txID {
		r.mu.Unlock()
		return domain.AttemptStatusVerifying, ErrVerificationRunning
	}
	r.verifyingID = txID
	r.active.Status = domain.AttemptStatusVerifying
	userType := r.active.UserType
	phoneNumber := r.active.PhoneNumber
	r.mu.Unlock()

	r.journalStatus(ctx, txID, domain.AttemptStatusVerifying)

	for i := 1; i <= verifyAttempts; i++ {
		result, err := r.gateway.VerifyTransaction(ctx, gateway.VerifyRequest{
			TransactionID: txID,
			UserType:      userType,
			PhoneNumber:   phoneNumber,
		})
		if err == nil && result.Success {
			return r.finishVerified(ctx, txID)
		}
		if err == nil && !result.Pending {
			// Explicit failure from the gateway: stop immediately.
			return r.finishFailed(ctx, txID)
		}
		if err != nil {
			// Transport faults consume an attempt like a pending outcome:
			// the payment may have succeeded, so never fail on them.
			log.Printf("[RECONCILER] verify %d/%d for %s: %v", i, verifyAttempts, txID, err)
		}

		if i == verifyAttempts {
			break
		}
		if sleepErr := r.sleep(ctx, verifyDelay); sleepErr != nil {
			r.releaseVerify(txID)
			return domain.AttemptStatusVerifying, sleepErr
		}
		if !r.isActive(txID) {
			r.releaseVerify(txID)
			return "", ErrNoActiveAttempt
		}
	}

	// Exhausted while still pending: the outcome is genuinely unknown.
	// Keep the attempt so a later resume can check again.
	r.mu.Lock()
	if r.active == nil || r.active.TransactionID != txID {
		r.mu.Unlock()
		return "", ErrNoActiveAttempt
	}
	if r.verifyingID == txID {
		r.verifyingID = ""
	}
	attempt := r.active
	r.mu.Unlock()

	r.notify(r.notifier.NotifyVerificationPending(ctx, attempt))
	return domain.AttemptStatusVerifying, nil
}

// finishVerified records a verified outcome, unless the attempt was
// superseded while the gateway call was in flight.
func (r *Reconciler) finishVerified(ctx context.Context, txID string) (domain.AttemptStatus, error) {
	r.mu.Lock()
	if r.active == nil || r.active.TransactionID != txID {
		if r.verifyingID == txID {
			r.verifyingID = ""
		}
		r.mu.Unlock()
		return "", ErrNoActiveAttempt
	}
	attempt := r.active
	r.clearLocked()
	attempt.Status = domain.AttemptStatusVerified
	r.mu.Unlock()

	r.settleVerified(ctx, attempt)
	return domain.AttemptStatusVerified, nil
}

// finishFailed records an explicit gateway failure.
func (r *Reconciler) finishFailed(ctx context.Context, txID string) (domain.AttemptStatus, error) {
	r.mu.Lock()
	if r.active == nil || r.active.TransactionID != txID {
		if r.verifyingID == txID {
			r.verifyingID = ""
		}
		r.mu.Unlock()
		return "", ErrNoActiveAttempt
	}
	attempt := r.active
	r.clearLocked()
	attempt.Status = domain.AttemptStatusFailed
	r.mu.Unlock()

	r.journalStatus(ctx, txID, domain.AttemptStatusFailed)
	r.notify(r.notifier.NotifyPaymentFailed(ctx, attempt))
	if r.hooks.OnFailed != nil {
		r.hooks.OnFailed(attempt)
	}
	return domain.AttemptStatusFailed, nil
}

// settleVerified performs the verified side effects: cache
// invalidation, journal, notification, callback.
func (r *Reconciler) settleVerified(ctx context.Context, attempt *domain.PaymentAttempt) {
	if err := r.cache.InvalidateProfile(ctx, attempt.UserType, attempt.PhoneNumber); err != nil {
		log.Printf("[RECONCILER] failed to invalidate profile cache for %s: %v", attempt.PhoneNumber, err)
	}
	r.journalStatus(ctx, attempt.TransactionID, domain.AttemptStatusVerified)
	r.notify(r.notifier.NotifyPaymentSuccess(ctx, attempt))
	if r.hooks.OnVerified != nil {
		r.hooks.OnVerified(attempt)
	}
}

// fallbackCheck fires once, fallbackDelay after an external-browser
// handoff, and verifies if the same attempt is still unresolved.
func (r *Reconciler) fallbackCheck(txID string) {
	status, err := r.runVerification(context.Background(), txID)
	switch err {
	case nil:
		log.Printf("[RECONCILER] fallback check for %s finished with status %s", txID, status)
	case ErrNoActiveAttempt, ErrVerificationRunning:
		// Attempt resolved or already being checked; nothing to do.
	default:
		log.Printf("[RECONCILER] fallback check for %s: %v", txID, err)
	}
}

// isActive reports whether txID is still the active attempt.
func (r *Reconciler) isActive(txID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil && r.active.TransactionID == txID
}

// releaseVerify gives up loop ownership without touching the attempt.
func (r *Reconciler) releaseVerify(txID string) {
	r.mu.Lock()
	if r.verifyingID == txID {
		r.verifyingID = ""
	}
	r.mu.Unlock()
}

// clearLocked empties the active slot and disarms pending timers.
// Caller must hold r.mu.
func (r *Reconciler) clearLocked() {
	r.disarmFallbackLocked()
	r.active = nil
	r.verifyingID = ""
}

func (r *Reconciler) disarmFallbackLocked() {
	if r.fallbackStop != nil {
		r.fallbackStop()
		r.fallbackStop = nil
	}
}

func (r *Reconciler) journalCreate(ctx context.Context, attempt *domain.PaymentAttempt) {
	if r.attempts == nil {
		return
	}
	if err := r.attempts.Create(ctx, attempt); err != nil {
		log.Printf("[RECONCILER] failed to journal attempt %s: %v", attempt.TransactionID, err)
	}
}

func (r *Reconciler) journalStatus(ctx context.Context, txID string, status domain.AttemptStatus) {
	if r.attempts == nil {
		return
	}
	if err := r.attempts.UpdateStatus(ctx, txID, status); err != nil {
		log.Printf("[RECONCILER] failed to journal status %s for %s: %v", status, txID, err)
	}
}

func (r *Reconciler) notifyError(ctx context.Context, phoneNumber, message string) {
	r.notify(r.notifier.NotifyPaymentError(ctx, phoneNumber, message))
}

func (r *Reconciler) notify(err error) {
	if err != nil {
		log.Printf("[RECONCILER] failed to deliver notification: %v", err)
	}
}

func newTransactionID() string {
	// Millis plus a short random suffix: collision resistant at human
	// scale, enough to correlate one checkout round trip.
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), uuid.New().String()[:8])
}
