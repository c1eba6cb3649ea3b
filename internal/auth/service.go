package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"snw-store/internal/apperr"
	"snw-store/internal/observability"
	"snw-store/internal/ratelimit"
)

const (
	msgCredentialsRequired = "Email e senha são obrigatórios"
	msgInvalidCredentials  = "Email ou senha incorretos"
	msgLockoutTriggered    = "Muitas tentativas de login falhas. Sua conta foi bloqueada por 15 minutos."
	msgAccountLocked       = "Conta temporariamente bloqueada. Tente novamente em %d minuto(s)."
	msgTooManyRequests     = "Muitas tentativas. Tente novamente mais tarde."
	msgAccountInactive     = "Conta desativada. Entre em contato com o administrador."
	msgOriginNotAllowed    = "Origem não permitida"
	msgNotAuthenticated    = "Não autenticado"
	msgInvalidAccessToken  = "Token inválido ou expirado"
	msgRefreshMissing      = "Refresh token não encontrado"
	msgInvalidRefreshToken = "Refresh token inválido ou expirado"
	msgInvalidSession      = "Sessão inválida"
	msgForbidden           = "Acesso negado"
)

var (
	LoginPolicy   = ratelimit.Policy{MaxRequests: 5, Window: 15 * time.Minute, BlockDuration: 30 * time.Minute}
	RefreshPolicy = ratelimit.Policy{MaxRequests: 10, Window: time.Minute}
)

// ErrSessionRevoked marks refresh failures after which the client must drop
// both cookies.
var ErrSessionRevoked = errors.New("refresh session revoked")

// AccountStore is the durable side of the auth flows. Repository is the
// Postgres implementation.
type AccountStore interface {
	FindByEmail(ctx context.Context, email string) (Account, error)
	FindByID(ctx context.Context, id string) (Account, error)
	RecordLogin(ctx context.Context, id string, at time.Time) error
	SaveRefreshToken(ctx context.Context, id string, tokenHash *string, expiresAt *time.Time) error
	EnsureAdmin(ctx context.Context, email, name, passwordHash string) (Account, error)
}

type Dependencies struct {
	Accounts AccountStore
	Tokens   *TokenService
	Limiter  ratelimit.Limiter
	Attempts AttemptTracker
	Security *SecurityLog
	Origins  OriginPolicy
}

type Service struct {
	accounts      AccountStore
	tokens        *TokenService
	limiter       ratelimit.Limiter
	attempts      AttemptTracker
	security      *SecurityLog
	origins       OriginPolicy
	loginPolicy   ratelimit.Policy
	refreshPolicy ratelimit.Policy

	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration)
	jitter    func() time.Duration
	decoyHash func() string
}

func NewService(deps Dependencies) *Service {
	return &Service{
		accounts:      deps.Accounts,
		tokens:        deps.Tokens,
		limiter:       deps.Limiter,
		attempts:      deps.Attempts,
		security:      deps.Security,
		origins:       deps.Origins,
		loginPolicy:   LoginPolicy,
		refreshPolicy: RefreshPolicy,
		now:           func() time.Time { return time.Now().UTC() },
		sleep:         sleepContext,
		jitter:        failureDelay,
		decoyHash:     decoyPasswordHash,
	}
}

func (s *Service) WithSecurityConfig(loginPolicy, refreshPolicy ratelimit.Policy) {
	if loginPolicy.MaxRequests > 0 && loginPolicy.Window > 0 {
		s.loginPolicy = loginPolicy
	}
	if refreshPolicy.MaxRequests > 0 && refreshPolicy.Window > 0 {
		s.refreshPolicy = refreshPolicy
	}
}

func (s *Service) Login(ctx context.Context, meta RequestMeta, email, password string) (Session, error) {
	if err := s.checkOrigin(ctx, meta); err != nil {
		return Session{}, err
	}
	if err := s.checkRate(ctx, meta, "login", s.loginPolicy); err != nil {
		return Session{}, err
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return Session{}, apperr.Validation(msgCredentialsRequired)
	}

	lockedUntil, locked, err := s.attempts.LockedUntil(ctx, email)
	if err != nil {
		return Session{}, apperr.Internal(fmt.Errorf("read lockout: %w", err))
	}
	if locked {
		remaining := lockedUntil.Sub(s.now())
		minutes := int(math.Ceil(remaining.Minutes()))
		if minutes < 1 {
			minutes = 1
		}
		s.security.Record(ctx, EventAccountLocked, meta, map[string]any{"email": email, "locked_until": lockedUntil})
		return Session{}, apperr.RateLimited(fmt.Sprintf(msgAccountLocked, minutes), int(math.Ceil(remaining.Seconds())))
	}

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			VerifyPassword(password, s.decoyHash())
			return Session{}, s.loginFailed(ctx, meta, email, "account_not_found")
		}
		return Session{}, apperr.Internal(err)
	}

	if !account.IsActive {
		s.security.Record(ctx, EventInactiveAccount, meta, map[string]any{"email": email, "user_id": account.ID})
		return Session{}, apperr.Forbidden(msgAccountInactive)
	}

	if !VerifyPassword(password, account.PasswordHash) {
		return Session{}, s.loginFailed(ctx, meta, email, "invalid_password")
	}

	if err := s.attempts.Reset(ctx, email); err != nil {
		return Session{}, apperr.Internal(fmt.Errorf("reset login attempts: %w", err))
	}
	s.security.Record(ctx, EventLoginSuccess, meta, map[string]any{"email": email, "user_id": account.ID})

	if err := s.accounts.RecordLogin(ctx, account.ID, s.now()); err != nil {
		return Session{}, apperr.Internal(err)
	}

	return s.startSession(ctx, account)
}

// loginFailed counts the failure and builds the response. Unknown emails and
// wrong passwords must stay indistinguishable to the client.
func (s *Service) loginFailed(ctx context.Context, meta RequestMeta, email, reason string) error {
	attempts, lockedUntil, err := s.attempts.RecordFailure(ctx, email)
	if err != nil {
		return apperr.Internal(fmt.Errorf("record login failure: %w", err))
	}

	if !lockedUntil.IsZero() {
		s.security.Record(ctx, EventSuspiciousActivity, meta, map[string]any{
			"email":        email,
			"reason":       "account_lockout",
			"attempts":     attempts,
			"locked_until": lockedUntil,
		})
		return apperr.Unauthorized(msgLockoutTriggered)
	}

	s.security.Record(ctx, EventLoginFailure, meta, map[string]any{
		"email":    email,
		"reason":   reason,
		"attempts": attempts,
	})
	s.sleep(ctx, s.jitter())
	return apperr.Unauthorized(msgInvalidCredentials)
}

func (s *Service) Refresh(ctx context.Context, meta RequestMeta, refreshToken string) (Session, error) {
	if err := s.checkOrigin(ctx, meta); err != nil {
		return Session{}, err
	}
	if err := s.checkRate(ctx, meta, "refresh", s.refreshPolicy); err != nil {
		return Session{}, err
	}

	if refreshToken == "" {
		s.security.Record(ctx, EventUnauthorizedAccess, meta, map[string]any{"reason": "missing_refresh_token"})
		return Session{}, apperr.Unauthorized(msgRefreshMissing)
	}

	identity, ok := s.tokens.VerifyRefreshToken(refreshToken)
	if !ok {
		s.security.Record(ctx, EventInvalidToken, meta, map[string]any{"token": "refresh"})
		return Session{}, revoked(msgInvalidRefreshToken)
	}

	account, err := s.accounts.FindByID(ctx, identity.UserID)
	if err != nil && !errors.Is(err, ErrAccountNotFound) {
		return Session{}, apperr.Internal(err)
	}
	if err != nil || !account.IsActive {
		s.security.Record(ctx, EventUnauthorizedAccess, meta, map[string]any{"reason": "inactive_or_missing_account", "user_id": identity.UserID})
		return Session{}, revoked(msgInvalidSession)
	}

	if account.RefreshTokenHash == nil || !tokenHashEqual(*account.RefreshTokenHash, HashRefreshToken(refreshToken)) {
		s.security.Record(ctx, EventSuspiciousActivity, meta, map[string]any{"reason": "refresh_token_mismatch", "user_id": account.ID})
		return Session{}, revoked(msgInvalidRefreshToken)
	}

	if account.RefreshTokenExpiresAt == nil || !s.now().Before(*account.RefreshTokenExpiresAt) {
		s.security.Record(ctx, EventInvalidToken, meta, map[string]any{"reason": "refresh_token_expired", "user_id": account.ID})
		return Session{}, revoked(msgInvalidRefreshToken)
	}

	session, err := s.startSession(ctx, account)
	if err != nil {
		return Session{}, err
	}
	s.security.Record(ctx, EventTokenRefreshed, meta, map[string]any{"user_id": account.ID})

	return session, nil
}

// Logout drops the stored refresh token so the session cannot be renewed.
func (s *Service) Logout(ctx context.Context, meta RequestMeta, user Profile) error {
	if err := s.accounts.SaveRefreshToken(ctx, user.ID, nil, nil); err != nil {
		return apperr.Internal(err)
	}
	s.security.Record(ctx, EventLogout, meta, map[string]any{"user_id": user.ID})
	return nil
}

// Authenticate resolves an access token to a live, active account. It never
// refreshes.
func (s *Service) Authenticate(ctx context.Context, meta RequestMeta, accessToken string) (Profile, error) {
	if err := s.checkOrigin(ctx, meta); err != nil {
		return Profile{}, err
	}

	if accessToken == "" {
		s.security.Record(ctx, EventUnauthorizedAccess, meta, map[string]any{"reason": "missing_access_token"})
		return Profile{}, apperr.Unauthorized(msgNotAuthenticated)
	}

	identity, ok := s.tokens.VerifyAccessToken(accessToken)
	if !ok {
		s.security.Record(ctx, EventInvalidToken, meta, map[string]any{"token": "access"})
		return Profile{}, apperr.Unauthorized(msgInvalidAccessToken)
	}

	account, err := s.accounts.FindByID(ctx, identity.UserID)
	if err != nil && !errors.Is(err, ErrAccountNotFound) {
		return Profile{}, apperr.Internal(err)
	}
	if err != nil || !account.IsActive {
		s.security.Record(ctx, EventUnauthorizedAccess, meta, map[string]any{"reason": "inactive_or_missing_account", "user_id": identity.UserID})
		return Profile{}, apperr.Unauthorized(msgInvalidSession)
	}

	return account.Profile(), nil
}

// BootstrapAdmin provisions the first admin from configuration. Both values
// empty is a no-op.
func (s *Service) BootstrapAdmin(ctx context.Context, email, name, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" && password == "" {
		return nil
	}
	if email == "" || password == "" {
		return fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD are required together")
	}
	if strings.TrimSpace(name) == "" {
		name = "Administrador"
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	if _, err := s.accounts.EnsureAdmin(ctx, email, name, hash); err != nil {
		return err
	}

	return nil
}

func (s *Service) startSession(ctx context.Context, account Account) (Session, error) {
	tokens, err := s.tokens.IssuePair(account.Identity())
	if err != nil {
		return Session{}, apperr.Internal(err)
	}

	hash := HashRefreshToken(tokens.RefreshToken)
	expiresAt := tokens.RefreshExpiresAt
	if err := s.accounts.SaveRefreshToken(ctx, account.ID, &hash, &expiresAt); err != nil {
		return Session{}, apperr.Internal(err)
	}

	return Session{User: account.Profile(), Tokens: tokens}, nil
}

func (s *Service) checkOrigin(ctx context.Context, meta RequestMeta) error {
	if s.origins.Allows(meta) {
		return nil
	}
	s.security.Record(ctx, EventInvalidOrigin, meta, map[string]any{"origin": meta.Origin, "referer": meta.Referer})
	return apperr.Forbidden(msgOriginNotAllowed)
}

func (s *Service) checkRate(ctx context.Context, meta RequestMeta, scope string, policy ratelimit.Policy) error {
	res, err := s.limiter.Check(ctx, scope+":"+meta.IP, policy)
	if err != nil {
		return apperr.Internal(fmt.Errorf("check %s rate limit: %w", scope, err))
	}
	if res.Allowed {
		return nil
	}

	observability.RateLimitRejectionsTotal.WithLabelValues(scope).Inc()
	s.security.Record(ctx, EventRateLimitExceeded, meta, map[string]any{"scope": scope, "retry_after": res.RetryAfterSeconds()})
	return apperr.RateLimited(msgTooManyRequests, res.RetryAfterSeconds())
}

func revoked(message string) error {
	return apperr.Unauthorized(message).WithCause(ErrSessionRevoked)
}

// HashRefreshToken is the form a refresh token is stored in.
func HashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func tokenHashEqual(stored, presented string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1
}

func failureDelay() time.Duration {
	return time.Second + rand.N(time.Second)
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
