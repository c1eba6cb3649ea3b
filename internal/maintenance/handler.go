package maintenance

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"snw-store/internal/apperr"
	"snw-store/internal/httpx"
	"snw-store/internal/observability"
)

// Sweeper is an in-memory store that can drop its expired entries.
type Sweeper interface {
	Sweep() int
}

type TokenCleaner interface {
	ClearExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

type Result struct {
	SweptRateLimits      int   `json:"sweptRateLimits"`
	SweptLoginAttempts   int   `json:"sweptLoginAttempts"`
	ClearedRefreshTokens int64 `json:"clearedRefreshTokens"`
}

type CleanupHandler struct {
	tokens     TokenCleaner
	limiter    Sweeper
	attempts   Sweeper
	logger     *observability.Logger
	cronSecret string
	now        func() time.Time
}

// NewCleanupHandler takes nil sweepers when the limiter and tracker live in
// Redis, which expires keys on its own.
func NewCleanupHandler(tokens TokenCleaner, limiter, attempts Sweeper, logger *observability.Logger, cronSecret string) *CleanupHandler {
	return &CleanupHandler{
		tokens:     tokens,
		limiter:    limiter,
		attempts:   attempts,
		logger:     logger,
		cronSecret: strings.TrimSpace(cronSecret),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

type cleanupResponse struct {
	Status string `json:"status"`
	Result Result `json:"result"`
}

// Routes is mounted at /internal/maintenance.
func (h *CleanupHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.MethodNotAllowed(httpx.MethodNotAllowed)
	r.NotFound(httpx.NotFound)

	r.Get("/cleanup", h.Handle)
	r.Post("/cleanup", h.Handle)

	return r
}

func (h *CleanupHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" {
		httpx.NotFound(w, r)
		return
	}

	if !h.authorized(r) {
		httpx.Error(w, r, apperr.Unauthorized("Não autorizado"))
		return
	}

	result, err := h.Run(r.Context())
	if err != nil {
		h.logger.Error("cleanup_failed", map[string]any{"error": err.Error()})
		httpx.Error(w, r, err)
		return
	}

	h.logger.Info("cleanup_completed", map[string]any{
		"swept_rate_limits":      result.SweptRateLimits,
		"swept_login_attempts":   result.SweptLoginAttempts,
		"cleared_refresh_tokens": result.ClearedRefreshTokens,
	})

	httpx.JSON(w, http.StatusOK, cleanupResponse{Status: "ok", Result: result})
}

func (h *CleanupHandler) Run(ctx context.Context) (Result, error) {
	var result Result
	if h.limiter != nil {
		result.SweptRateLimits = h.limiter.Sweep()
	}
	if h.attempts != nil {
		result.SweptLoginAttempts = h.attempts.Sweep()
	}

	cleared, err := h.tokens.ClearExpiredRefreshTokens(ctx, h.now())
	if err != nil {
		return result, apperr.Internal(err)
	}
	result.ClearedRefreshTokens = cleared

	return result, nil
}

func (h *CleanupHandler) authorized(r *http.Request) bool {
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(h.cronSecret)) == 1
}
