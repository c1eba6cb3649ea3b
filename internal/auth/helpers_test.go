package auth

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"snw-store/internal/observability"
	"snw-store/internal/ratelimit"
)

const (
	testAccessSecret  = "test-access-secret-key-32-chars!"
	testRefreshSecret = "test-refresh-secret-key-32-char!"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// memoryAccounts is an AccountStore backed by a map.
type memoryAccounts struct {
	mu       sync.Mutex
	accounts map[string]Account
}

func newMemoryAccounts() *memoryAccounts {
	return &memoryAccounts{accounts: make(map[string]Account)}
}

func (m *memoryAccounts) add(t *testing.T, email, password string, role Role, active bool) Account {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	account := Account{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         "Test " + string(role),
		Role:         role,
		PasswordHash: string(hash),
		IsActive:     active,
	}
	m.mu.Lock()
	m.accounts[account.ID] = account
	m.mu.Unlock()
	return account
}

func (m *memoryAccounts) get(id string) Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[id]
}

func (m *memoryAccounts) update(id string, fn func(*Account)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account := m.accounts[id]
	fn(&account)
	m.accounts[id] = account
}

func (m *memoryAccounts) FindByEmail(_ context.Context, email string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, account := range m.accounts {
		if account.Email == email {
			return account, nil
		}
	}
	return Account{}, ErrAccountNotFound
}

func (m *memoryAccounts) FindByID(_ context.Context, id string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return account, nil
}

func (m *memoryAccounts) RecordLogin(_ context.Context, id string, at time.Time) error {
	m.update(id, func(a *Account) { a.LastLoginAt = &at })
	return nil
}

func (m *memoryAccounts) SaveRefreshToken(_ context.Context, id string, tokenHash *string, expiresAt *time.Time) error {
	m.update(id, func(a *Account) {
		a.RefreshTokenHash = tokenHash
		a.RefreshTokenExpiresAt = expiresAt
	})
	return nil
}

func (m *memoryAccounts) EnsureAdmin(_ context.Context, email, name, passwordHash string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, account := range m.accounts {
		if account.Email == email {
			account.Name, account.Role, account.PasswordHash, account.IsActive = name, RoleAdmin, passwordHash, true
			m.accounts[id] = account
			return account, nil
		}
	}
	account := Account{ID: uuid.NewString(), Email: email, Name: name, Role: RoleAdmin, PasswordHash: passwordHash, IsActive: true}
	m.accounts[account.ID] = account
	return account, nil
}

type allowAll struct{}

func (allowAll) Check(context.Context, string, ratelimit.Policy) (ratelimit.Result, error) {
	return ratelimit.Result{Allowed: true}, nil
}

type harness struct {
	service  *Service
	tokens   *TokenService
	accounts *memoryAccounts
	attempts *MemoryAttemptTracker
	clock    *fakeClock
	logs     *bytes.Buffer

	mu          sync.Mutex
	delays      []time.Duration
	decoyChecks int
}

type harnessOption func(*Dependencies)

func withLimiter(limiter ratelimit.Limiter) harnessOption {
	return func(d *Dependencies) { d.Limiter = limiter }
}

func withOrigins(origins ...string) harnessOption {
	return func(d *Dependencies) { d.Origins = NewOriginPolicy(true, origins) }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	h := &harness{
		accounts: newMemoryAccounts(),
		clock:    newFakeClock(),
		logs:     &bytes.Buffer{},
	}

	h.tokens = NewTokenService(testAccessSecret, testRefreshSecret)
	h.tokens.now = h.clock.Now

	h.attempts = NewMemoryAttemptTracker()
	h.attempts.now = h.clock.Now

	security := NewSecurityLog(observability.NewLoggerTo(h.logs, "debug"))
	security.now = h.clock.Now

	deps := Dependencies{
		Accounts: h.accounts,
		Tokens:   h.tokens,
		Limiter:  allowAll{},
		Attempts: h.attempts,
		Security: security,
		Origins:  NewOriginPolicy(false, nil),
	}
	for _, opt := range opts {
		opt(&deps)
	}

	h.service = NewService(deps)
	h.service.now = h.clock.Now
	h.service.sleep = func(_ context.Context, d time.Duration) {
		h.mu.Lock()
		h.delays = append(h.delays, d)
		h.mu.Unlock()
	}
	decoy, err := bcrypt.GenerateFromPassword([]byte("decoy"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash decoy password: %v", err)
	}
	h.service.decoyHash = func() string {
		h.mu.Lock()
		h.decoyChecks++
		h.mu.Unlock()
		return string(decoy)
	}

	return h
}

func (h *harness) decoyCheckCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.decoyChecks
}

func (h *harness) recordedDelays() []time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]time.Duration(nil), h.delays...)
}

var testMeta = RequestMeta{IP: "203.0.113.7", UserAgent: "test-agent", Path: "/api/auth/login", Method: "POST"}
