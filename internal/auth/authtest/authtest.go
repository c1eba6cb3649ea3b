// Package authtest builds a working auth Guard backed by memory stores, for
// handler tests in other packages.
package authtest

import (
	"context"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"snw-store/internal/auth"
	"snw-store/internal/observability"
	"snw-store/internal/ratelimit"
)

const (
	accessSecret  = "authtest-access-secret-32-chars!"
	refreshSecret = "authtest-refresh-secret-32-char!"
)

type Env struct {
	Service *auth.Service
	Guard   *auth.Guard
	Tokens  *auth.TokenService

	accounts *accounts
}

func New() *Env {
	store := &accounts{byID: make(map[string]auth.Account)}
	tokens := auth.NewTokenService(accessSecret, refreshSecret)
	service := auth.NewService(auth.Dependencies{
		Accounts: store,
		Tokens:   tokens,
		Limiter:  ratelimit.NewMemoryStore(),
		Attempts: auth.NewMemoryAttemptTracker(),
		Security: auth.NewSecurityLog(observability.NewLoggerTo(io.Discard, "error")),
		Origins:  auth.NewOriginPolicy(false, nil),
	})
	return &Env{Service: service, Guard: auth.NewGuard(service), Tokens: tokens, accounts: store}
}

// Cookie provisions an active account with role and returns its access
// token cookie.
func (e *Env) Cookie(t testing.TB, role auth.Role) *http.Cookie {
	t.Helper()
	account := auth.Account{
		ID:       uuid.NewString(),
		Email:    string(role) + "-" + uuid.NewString()[:8] + "@snwstore.com",
		Name:     "Test " + string(role),
		Role:     role,
		IsActive: true,
	}
	e.accounts.put(account)

	token, err := e.Tokens.GenerateAccessToken(account.Identity())
	if err != nil {
		t.Fatalf("generate access token: %v", err)
	}
	return &http.Cookie{Name: auth.AccessCookieName, Value: token}
}

type accounts struct {
	mu   sync.Mutex
	byID map[string]auth.Account
}

func (a *accounts) put(account auth.Account) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.byID[account.ID] = account
}

func (a *accounts) FindByEmail(_ context.Context, email string) (auth.Account, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, account := range a.byID {
		if account.Email == email {
			return account, nil
		}
	}
	return auth.Account{}, auth.ErrAccountNotFound
}

func (a *accounts) FindByID(_ context.Context, id string) (auth.Account, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	account, ok := a.byID[id]
	if !ok {
		return auth.Account{}, auth.ErrAccountNotFound
	}
	return account, nil
}

func (a *accounts) RecordLogin(context.Context, string, time.Time) error { return nil }

func (a *accounts) SaveRefreshToken(context.Context, string, *string, *time.Time) error { return nil }

func (a *accounts) EnsureAdmin(_ context.Context, email, name, passwordHash string) (auth.Account, error) {
	account := auth.Account{ID: uuid.NewString(), Email: email, Name: name, Role: auth.RoleAdmin, PasswordHash: passwordHash, IsActive: true}
	a.put(account)
	return account, nil
}
