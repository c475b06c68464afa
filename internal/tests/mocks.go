package tests

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"freightpay/internal/domain"
	"freightpay/internal/gateway"
	"freightpay/internal/redis"
	"freightpay/internal/repository"
	"freightpay/internal/service"
)

// ──────────────────────────────────────────────
// MOCK GATEWAY CLIENT
// ──────────────────────────────────────────────

// VerifyOutcome scripts one answer of the mock gateway's verify endpoint.
type VerifyOutcome struct {
	Result *domain.VerificationResult
	Err    error
}

// MockGateway is a mock implementation of gateway.Client.
type MockGateway struct {
	mu sync.Mutex

	// Scripted responses
	CreateResponse *gateway.CreatePaymentResponse
	CreateError    error
	verifyOutcomes []VerifyOutcome

	// Recorded calls
	CreateCallCount int32
	VerifyCallCount int32
	CreateRequests  []gateway.CreatePaymentRequest
	VerifyRequests  []gateway.VerifyRequest
}

// NewMockGateway creates a new mock gateway. Without scripting, create
// succeeds with a checkout URL and verify reports success.
func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

// SetVerifyOutcomes scripts the verify endpoint. Outcomes are consumed
// in order; the last one repeats once the script is exhausted.
// Re-scripting resets VerifyCallCount so consumption restarts.
func (m *MockGateway) SetVerifyOutcomes(outcomes ...VerifyOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifyOutcomes = outcomes
	atomic.StoreInt32(&m.VerifyCallCount, 0)
}

func (m *MockGateway) CreatePayment(ctx context.Context, req gateway.CreatePaymentRequest) (*gateway.CreatePaymentResponse, error) {
	atomic.AddInt32(&m.CreateCallCount, 1)
	m.mu.Lock()
	m.CreateRequests = append(m.CreateRequests, req)
	m.mu.Unlock()

	if m.CreateError != nil {
		return nil, m.CreateError
	}
	if m.CreateResponse != nil {
		resp := *m.CreateResponse
		return &resp, nil
	}
	return &gateway.CreatePaymentResponse{Success: true, PaymentURL: "https://pay.example/checkout"}, nil
}

func (m *MockGateway) VerifyTransaction(ctx context.Context, req gateway.VerifyRequest) (*domain.VerificationResult, error) {
	n := atomic.AddInt32(&m.VerifyCallCount, 1)

	m.mu.Lock()
	m.VerifyRequests = append(m.VerifyRequests, req)
	outcomes := m.verifyOutcomes
	m.mu.Unlock()

	if len(outcomes) == 0 {
		return &domain.VerificationResult{Success: true}, nil
	}

	idx := int(n) - 1
	if idx >= len(outcomes) {
		idx = len(outcomes) - 1
	}
	outcome := outcomes[idx]
	if outcome.Err != nil {
		return nil, outcome.Err
	}
	result := *outcome.Result
	return &result, nil
}

// ──────────────────────────────────────────────
// MOCK NOTIFIER
// ──────────────────────────────────────────────

// MockNotifier is a mock implementation of service.Notifier.
type MockNotifier struct {
	SuccessCount   int32
	FailedCount    int32
	CancelledCount int32
	PendingCount   int32
	ErrorCount     int32

	mu            sync.Mutex
	ErrorMessages []string
}

// NewMockNotifier creates a new mock notifier.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) NotifyPaymentSuccess(ctx context.Context, attempt *domain.PaymentAttempt) error {
	atomic.AddInt32(&m.SuccessCount, 1)
	return nil
}

func (m *MockNotifier) NotifyPaymentFailed(ctx context.Context, attempt *domain.PaymentAttempt) error {
	atomic.AddInt32(&m.FailedCount, 1)
	return nil
}

func (m *MockNotifier) NotifyPaymentCancelled(ctx context.Context, attempt *domain.PaymentAttempt) error {
	atomic.AddInt32(&m.CancelledCount, 1)
	return nil
}

func (m *MockNotifier) NotifyVerificationPending(ctx context.Context, attempt *domain.PaymentAttempt) error {
	atomic.AddInt32(&m.PendingCount, 1)
	return nil
}

func (m *MockNotifier) NotifyPaymentError(ctx context.Context, phoneNumber, message string) error {
	atomic.AddInt32(&m.ErrorCount, 1)
	m.mu.Lock()
	m.ErrorMessages = append(m.ErrorMessages, message)
	m.mu.Unlock()
	return nil
}

// ──────────────────────────────────────────────
// MOCK PROFILE CACHE
// ──────────────────────────────────────────────

// InvalidatedProfile records one cache invalidation.
type InvalidatedProfile struct {
	UserType    domain.UserType
	PhoneNumber string
}

// MockProfileCache is a mock implementation of redis.ProfileCacheInterface.
type MockProfileCache struct {
	mu            sync.Mutex
	profiles      map[string]*redis.CachedProfile
	Invalidations []InvalidatedProfile

	InvalidateError error
}

// NewMockProfileCache creates a new mock profile cache.
func NewMockProfileCache() *MockProfileCache {
	return &MockProfileCache{profiles: make(map[string]*redis.CachedProfile)}
}

func cacheKey(userType domain.UserType, phoneNumber string) string {
	return string(userType) + ":" + phoneNumber
}

func (m *MockProfileCache) GetProfile(ctx context.Context, userType domain.UserType, phoneNumber string) (*redis.CachedProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	profile, ok := m.profiles[cacheKey(userType, phoneNumber)]
	if !ok {
		return nil, nil
	}
	copy := *profile
	return &copy, nil
}

func (m *MockProfileCache) SetProfile(ctx context.Context, userType domain.UserType, profile *redis.CachedProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *profile
	m.profiles[cacheKey(userType, profile.PhoneNumber)] = &copy
	return nil
}

func (m *MockProfileCache) InvalidateProfile(ctx context.Context, userType domain.UserType, phoneNumber string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InvalidateError != nil {
		return m.InvalidateError
	}
	delete(m.profiles, cacheKey(userType, phoneNumber))
	m.Invalidations = append(m.Invalidations, InvalidatedProfile{UserType: userType, PhoneNumber: phoneNumber})
	return nil
}

// ──────────────────────────────────────────────
// MOCK CHECKOUT LAUNCHER
// ──────────────────────────────────────────────

// MockLauncher is a mock implementation of service.CheckoutLauncher.
type MockLauncher struct {
	External  bool
	OpenError error

	OpenCallCount int32
	mu            sync.Mutex
	OpenedURLs    []string
}

// NewMockLauncher creates a new mock launcher.
func NewMockLauncher() *MockLauncher {
	return &MockLauncher{}
}

func (m *MockLauncher) Open(ctx context.Context, checkoutURL string) (bool, error) {
	atomic.AddInt32(&m.OpenCallCount, 1)
	m.mu.Lock()
	m.OpenedURLs = append(m.OpenedURLs, checkoutURL)
	m.mu.Unlock()
	if m.OpenError != nil {
		return false, m.OpenError
	}
	return m.External, nil
}

// ──────────────────────────────────────────────
// MOCK ATTEMPT REPOSITORY
// ──────────────────────────────────────────────

// MockAttemptRepository is a mock implementation of repository.AttemptRepository.
type MockAttemptRepository struct {
	mu       sync.Mutex
	attempts map[string]*domain.PaymentAttempt
	statuses map[string][]domain.AttemptStatus

	CreateError error
}

// NewMockAttemptRepository creates a new mock attempt repository.
func NewMockAttemptRepository() *MockAttemptRepository {
	return &MockAttemptRepository{
		attempts: make(map[string]*domain.PaymentAttempt),
		statuses: make(map[string][]domain.AttemptStatus),
	}
}

func (m *MockAttemptRepository) Create(ctx context.Context, attempt *domain.PaymentAttempt) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *attempt
	m.attempts[attempt.TransactionID] = &copy
	m.statuses[attempt.TransactionID] = append(m.statuses[attempt.TransactionID], attempt.Status)
	return nil
}

func (m *MockAttemptRepository) UpdateStatus(ctx context.Context, transactionID string, status domain.AttemptStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	attempt, ok := m.attempts[transactionID]
	if !ok {
		return repository.ErrNotFound
	}
	attempt.Status = status
	m.statuses[transactionID] = append(m.statuses[transactionID], status)
	return nil
}

func (m *MockAttemptRepository) GetByTransactionID(ctx context.Context, transactionID string) (*domain.PaymentAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	attempt, ok := m.attempts[transactionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *attempt
	return &copy, nil
}

func (m *MockAttemptRepository) ListByPhone(ctx context.Context, phoneNumber string, limit int) ([]*domain.PaymentAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.PaymentAttempt
	for _, attempt := range m.attempts {
		if attempt.PhoneNumber == phoneNumber && len(result) < limit {
			copy := *attempt
			result = append(result, &copy)
		}
	}
	return result, nil
}

// StatusLog returns the recorded status transitions for test assertions.
func (m *MockAttemptRepository) StatusLog(transactionID string) []domain.AttemptStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.AttemptStatus(nil), m.statuses[transactionID]...)
}

// ──────────────────────────────────────────────
// FAKE CLOCK
// ──────────────────────────────────────────────

// SleepRecorder records requested sleeps and returns immediately,
// letting the retry policy run without wall-clock delay.
type SleepRecorder struct {
	mu        sync.Mutex
	Durations []time.Duration

	// OnSleep, if set, runs on each call with the 1-based sleep number,
	// before the sleep "completes". Used to interleave events with the
	// verification loop deterministically.
	OnSleep func(n int)
}

// NewSleepRecorder creates a new sleep recorder.
func NewSleepRecorder() *SleepRecorder {
	return &SleepRecorder{}
}

func (s *SleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.Durations = append(s.Durations, d)
	n := len(s.Durations)
	hook := s.OnSleep
	s.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	return ctx.Err()
}

// Recorded returns the sleeps requested so far.
func (s *SleepRecorder) Recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.Durations...)
}

// ScheduledCall is one timer armed through the ManualScheduler.
type ScheduledCall struct {
	Delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
}

// ManualScheduler captures scheduled timers and fires them on demand.
type ManualScheduler struct {
	mu    sync.Mutex
	Calls []*ScheduledCall
}

// NewManualScheduler creates a new manual scheduler.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

func (s *ManualScheduler) Schedule(d time.Duration, fn func()) func() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	call := &ScheduledCall{Delay: d, fn: fn}
	s.Calls = append(s.Calls, call)
	return func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		if call.fired || call.stopped {
			return false
		}
		call.stopped = true
		return true
	}
}

// FireAll runs every armed timer that has not been stopped, mirroring
// time.Timer semantics.
func (s *ManualScheduler) FireAll() {
	s.mu.Lock()
	var pending []*ScheduledCall
	for _, call := range s.Calls {
		if !call.stopped && !call.fired {
			call.fired = true
			pending = append(pending, call)
		}
	}
	s.mu.Unlock()

	for _, call := range pending {
		call.fn()
	}
}

// Stopped reports whether the i-th armed timer was disarmed.
func (s *ManualScheduler) Stopped(i int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Calls[i].stopped
}

// ──────────────────────────────────────────────
// RECONCILER FIXTURE
// ──────────────────────────────────────────────

// ReconcilerFixture wires a reconciler against the full mock set.
type ReconcilerFixture struct {
	Gateway   *MockGateway
	Cache     *MockProfileCache
	Attempts  *MockAttemptRepository
	Notifier  *MockNotifier
	Launcher  *MockLauncher
	Sleeps    *SleepRecorder
	Scheduler *ManualScheduler

	VerifiedCalls  int32
	FailedCalls    int32
	CancelledCalls int32

	Reconciler *service.Reconciler
}

// NewReconcilerFixture creates a reconciler with all collaborators mocked.
func NewReconcilerFixture() *ReconcilerFixture {
	f := &ReconcilerFixture{
		Gateway:   NewMockGateway(),
		Cache:     NewMockProfileCache(),
		Attempts:  NewMockAttemptRepository(),
		Notifier:  NewMockNotifier(),
		Launcher:  NewMockLauncher(),
		Sleeps:    NewSleepRecorder(),
		Scheduler: NewManualScheduler(),
	}
	f.Reconciler = service.NewReconciler(service.ReconcilerDeps{
		Gateway:  f.Gateway,
		Cache:    f.Cache,
		Attempts: f.Attempts,
		Notifier: f.Notifier,
		Launcher: f.Launcher,
		Hooks: service.Hooks{
			OnVerified:  func(*domain.PaymentAttempt) { atomic.AddInt32(&f.VerifiedCalls, 1) },
			OnFailed:    func(*domain.PaymentAttempt) { atomic.AddInt32(&f.FailedCalls, 1) },
			OnCancelled: func(*domain.PaymentAttempt) { atomic.AddInt32(&f.CancelledCalls, 1) },
		},
		Sleep:    f.Sleeps.Sleep,
		Schedule: f.Scheduler.Schedule,
	})
	return f
}
