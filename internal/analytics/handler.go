package analytics

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"snw-store/internal/apperr"
	"snw-store/internal/auth"
	"snw-store/internal/httpx"
	"snw-store/internal/observability"
	"snw-store/internal/ratelimit"
)

const msgTooManyEvents = "Muitos eventos enviados"

type Handler struct {
	service  *Service
	guard    *auth.Guard
	throttle *ratelimit.Throttle
}

// NewHandler throttles tracking per client IP with a token bucket of rps
// events per second and the given burst.
func NewHandler(service *Service, guard *auth.Guard, rps float64, burst int) *Handler {
	return &Handler{
		service:  service,
		guard:    guard,
		throttle: ratelimit.NewThrottle(rps, burst, observability.ClientIP, rejectThrottled),
	}
}

// Throttle is exposed so the caller can run its idle-bucket sweeper.
func (h *Handler) Throttle() *ratelimit.Throttle {
	return h.throttle
}

type trackResponse struct {
	Success bool `json:"success"`
}

type summaryResponse struct {
	Success bool    `json:"success"`
	Data    Summary `json:"data"`
}

// PublicRoutes is mounted at /api/analytics.
func (h *Handler) PublicRoutes() chi.Router {
	r := chi.NewRouter()
	r.MethodNotAllowed(httpx.MethodNotAllowed)
	r.NotFound(httpx.NotFound)

	r.With(h.throttle.Middleware).Post("/track", h.Track)

	return r
}

// AdminRoutes is mounted at /api/admin/analytics.
func (h *Handler) AdminRoutes() chi.Router {
	r := chi.NewRouter()
	r.MethodNotAllowed(httpx.MethodNotAllowed)
	r.NotFound(httpx.NotFound)
	r.Use(h.guard.Middleware)

	r.Get("/summary", h.Summary)

	return r
}

func (h *Handler) Track(w http.ResponseWriter, r *http.Request) {
	var input TrackInput
	if err := httpx.DecodeJSON(w, r, &input); err != nil {
		httpx.Error(w, r, err)
		return
	}

	if err := h.service.Track(r.Context(), r.UserAgent(), input); err != nil {
		httpx.Error(w, r, err)
		return
	}

	httpx.JSON(w, http.StatusAccepted, trackResponse{Success: true})
}

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	days := DefaultSummaryDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			httpx.Error(w, r, apperr.Validation(msgInvalidDays))
			return
		}
		days = parsed
	}

	summary, err := h.service.Summary(r.Context(), days)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}

	httpx.JSON(w, http.StatusOK, summaryResponse{Success: true, Data: summary})
}

func rejectThrottled(w http.ResponseWriter, r *http.Request) {
	observability.RateLimitRejectionsTotal.WithLabelValues("analytics").Inc()
	httpx.Error(w, r, apperr.RateLimited(msgTooManyEvents, 1))
}
