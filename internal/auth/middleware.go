package auth

import (
	"context"
	"net/http"
	"slices"

	"snw-store/internal/apperr"
	"snw-store/internal/httpx"
)

type userKey struct{}

// Decision is the outcome of guarding one request. Err is set whenever
// Authorized is false and is ready to hand to httpx.Error.
type Decision struct {
	Authorized bool
	User       Profile
	Err        error
}

type Guard struct {
	service *Service
}

func NewGuard(service *Service) *Guard {
	return &Guard{service: service}
}

func (g *Guard) RequireAuth(r *http.Request) Decision {
	user, err := g.service.Authenticate(r.Context(), MetaFromRequest(r), cookieValue(r, AccessCookieName))
	if err != nil {
		return Decision{Err: err}
	}
	return Decision{Authorized: true, User: user}
}

// Middleware rejects unauthenticated requests and stores the resolved user in
// the request context.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision := g.RequireAuth(r)
		if !decision.Authorized {
			httpx.Error(w, r, decision.Err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), decision.User)))
	})
}

// RequireRole must run after Middleware.
func (g *Guard) RequireRole(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				httpx.Error(w, r, apperr.Unauthorized(msgNotAuthenticated))
				return
			}
			if !slices.Contains(roles, user.Role) {
				g.service.security.Record(r.Context(), EventForbiddenRole, MetaFromRequest(r), map[string]any{
					"user_id": user.ID,
					"role":    string(user.Role),
				})
				httpx.Error(w, r, apperr.Forbidden(msgForbidden))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (g *Guard) RequireAdmin() func(http.Handler) http.Handler {
	return g.RequireRole(RoleAdmin)
}

func (g *Guard) RequireEditor() func(http.Handler) http.Handler {
	return g.RequireRole(RoleAdmin, RoleEditor)
}

func WithUser(ctx context.Context, user Profile) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

func UserFromContext(ctx context.Context) (Profile, bool) {
	user, ok := ctx.Value(userKey{}).(Profile)
	return user, ok
}
