package observability

import (
	"encoding/json"
	"net"
	"net/http"
	"net/netip"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.statusCode = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func RequestLoggingMiddleware(logger *Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now().UTC()
		requestLogger := logger.With(map[string]any{
			"request_id": middleware.GetReqID(r.Context()),
		})

		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(recorder, r.WithContext(WithLogger(r.Context(), requestLogger)))

		route := routePattern(r)
		elapsed := time.Since(start)
		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(recorder.statusCode)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())

		fields := map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"route":       route,
			"status":      recorder.statusCode,
			"duration_ms": elapsed.Milliseconds(),
			"ip":          ClientIP(r),
		}
		switch {
		case recorder.statusCode >= 500:
			requestLogger.Error("http_request", fields)
		case recorder.statusCode >= 400:
			requestLogger.Warn("http_request", fields)
		default:
			requestLogger.Info("http_request", fields)
		}
	})
}

func RecoverMiddleware(logger *Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				sentry.WithScope(func(scope *sentry.Scope) {
					scope.SetExtra("panic", rec)
					scope.SetExtra("stack", string(debug.Stack()))
					sentry.CaptureMessage("panic in request")
				})

				logger.Error("panic_recovered", map[string]any{
					"path":   r.URL.Path,
					"method": r.Method,
					"panic":  rec,
				})

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "Erro interno do servidor"})
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// ClientIP takes the right-most public X-Forwarded-For hop, then X-Real-IP,
// then the socket address without its port. It assumes the edge proxy
// appends the connecting address to X-Forwarded-For.
func ClientIP(r *http.Request) string {
	if ip := forwardedFor(r.Header.Get("X-Forwarded-For")); ip != "" {
		return ip
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return host
		}
		return r.RemoteAddr
	}

	return "unknown"
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

func forwardedFor(header string) string {
	hops := strings.Split(header, ",")
	first := ""
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		first = hop
		addr, err := netip.ParseAddr(hop)
		if err != nil {
			continue
		}
		if !addr.IsPrivate() && !addr.IsLoopback() && !addr.IsLinkLocalUnicast() {
			return hop
		}
	}
	return first
}
