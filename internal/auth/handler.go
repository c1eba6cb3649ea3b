package auth

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"snw-store/internal/httpx"
)

type Handler struct {
	service       *Service
	guard         *Guard
	secureCookies bool
}

func NewHandler(service *Service, guard *Guard, secureCookies bool) *Handler {
	return &Handler{service: service, guard: guard, secureCookies: secureCookies}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Success bool    `json:"success"`
	User    Profile `json:"user"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Routes is mounted at /api/auth.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.MethodNotAllowed(httpx.MethodNotAllowed)
	r.NotFound(httpx.NotFound)

	r.Post("/login", h.Login)
	r.Post("/refresh", h.Refresh)
	r.Get("/me", h.Me)
	r.Post("/logout", h.Logout)

	return r
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if err := httpx.DecodeJSON(w, r, &body); err != nil {
		// An unreadable body still has to pass the origin and rate-limit gates
		// first; it then fails the required-fields check.
		body = loginRequest{}
	}

	session, err := h.service.Login(r.Context(), MetaFromRequest(r), body.Email, body.Password)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}

	setSessionCookies(w, session.Tokens, h.secureCookies)
	httpx.JSON(w, http.StatusOK, sessionResponse{Success: true, User: session.User})
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Refresh(r.Context(), MetaFromRequest(r), cookieValue(r, RefreshCookieName))
	if err != nil {
		if errors.Is(err, ErrSessionRevoked) {
			clearSessionCookies(w, h.secureCookies)
		}
		httpx.Error(w, r, err)
		return
	}

	setSessionCookies(w, session.Tokens, h.secureCookies)
	httpx.JSON(w, http.StatusOK, sessionResponse{Success: true, User: session.User})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	decision := h.guard.RequireAuth(r)
	if !decision.Authorized {
		httpx.Error(w, r, decision.Err)
		return
	}

	httpx.JSON(w, http.StatusOK, sessionResponse{Success: true, User: decision.User})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	decision := h.guard.RequireAuth(r)
	if !decision.Authorized {
		httpx.Error(w, r, decision.Err)
		return
	}

	if err := h.service.Logout(r.Context(), MetaFromRequest(r), decision.User); err != nil {
		httpx.Error(w, r, err)
		return
	}

	clearSessionCookies(w, h.secureCookies)
	httpx.JSON(w, http.StatusOK, messageResponse{Success: true, Message: "Logout realizado com sucesso"})
}
