package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"snw-store/internal/observability"
)

type SecurityEventType string

const (
	EventLoginSuccess       SecurityEventType = "login_success"
	EventLoginFailure       SecurityEventType = "login_failure"
	EventAccountLocked      SecurityEventType = "account_locked"
	EventSuspiciousActivity SecurityEventType = "suspicious_activity"
	EventInactiveAccount    SecurityEventType = "inactive_account"
	EventRateLimitExceeded  SecurityEventType = "rate_limit_exceeded"
	EventInvalidOrigin      SecurityEventType = "invalid_origin"
	EventUnauthorizedAccess SecurityEventType = "unauthorized_access"
	EventInvalidToken       SecurityEventType = "invalid_token"
	EventForbiddenRole      SecurityEventType = "forbidden_role"
	EventTokenRefreshed     SecurityEventType = "token_refreshed"
	EventLogout             SecurityEventType = "logout"
)

// RequestMeta is the slice of an inbound request the auth flows need.
type RequestMeta struct {
	IP        string
	UserAgent string
	Path      string
	Method    string
	Origin    string
	Referer   string
}

func MetaFromRequest(r *http.Request) RequestMeta {
	return RequestMeta{
		IP:        observability.ClientIP(r),
		UserAgent: r.UserAgent(),
		Path:      r.URL.Path,
		Method:    r.Method,
		Origin:    r.Header.Get("Origin"),
		Referer:   r.Header.Get("Referer"),
	}
}

// SecurityEvent is one audit entry. Expected failures are events, not errors.
type SecurityEvent struct {
	Type      SecurityEventType `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	IP        string            `json:"ip"`
	UserAgent string            `json:"user_agent"`
	Path      string            `json:"path"`
	Method    string            `json:"method"`
	Details   map[string]any    `json:"details,omitempty"`
}

// SecurityLog is the audit trail for auth decisions. It never fails the
// caller.
type SecurityLog struct {
	logger *observability.Logger
	now    func() time.Time
}

func NewSecurityLog(logger *observability.Logger) *SecurityLog {
	return &SecurityLog{
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (l *SecurityLog) Record(ctx context.Context, eventType SecurityEventType, meta RequestMeta, details map[string]any) {
	defer func() {
		_ = recover()
	}()

	event := SecurityEvent{
		Type:      eventType,
		Timestamp: l.now(),
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Path:      meta.Path,
		Method:    meta.Method,
		Details:   details,
	}
	fields := map[string]any{"event": event}
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		fields["request_id"] = reqID
	}

	switch eventType {
	case EventLoginSuccess, EventTokenRefreshed, EventLogout:
		l.logger.Info("security_event", fields)
	default:
		l.logger.Warn("security_event", fields)
	}

	observability.SecurityEventsTotal.WithLabelValues(string(eventType)).Inc()
	observability.Breadcrumb("auth", string(eventType), map[string]any{"ip": meta.IP, "path": meta.Path})
}
