package contact

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"snw-store/internal/apperr"
	"snw-store/internal/auth"
	"snw-store/internal/httpx"
	"snw-store/internal/observability"
)

const (
	msgSent      = "Mensagem enviada com sucesso"
	msgNotFound  = "Mensagem não encontrada"
	msgInvalidID = "ID inválido"
)

type Handler struct {
	service *Service
	guard   *auth.Guard
}

func NewHandler(service *Service, guard *auth.Guard) *Handler {
	return &Handler{service: service, guard: guard}
}

type submitResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ID      string `json:"id"`
}

type listResponse struct {
	Success bool      `json:"success"`
	Data    []Message `json:"data"`
}

// PublicRoutes is mounted at /api/contact.
func (h *Handler) PublicRoutes() chi.Router {
	r := chi.NewRouter()
	r.MethodNotAllowed(httpx.MethodNotAllowed)
	r.NotFound(httpx.NotFound)

	r.Post("/", h.Submit)

	return r
}

// AdminRoutes is mounted at /api/admin/messages.
func (h *Handler) AdminRoutes() chi.Router {
	r := chi.NewRouter()
	r.MethodNotAllowed(httpx.MethodNotAllowed)
	r.NotFound(httpx.NotFound)
	r.Use(h.guard.Middleware)

	r.Get("/", h.List)
	r.Patch("/{id}/read", h.MarkRead)
	r.With(h.guard.RequireAdmin()).Delete("/{id}", h.Delete)

	return r
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var input Input
	if err := httpx.DecodeJSON(w, r, &input); err != nil {
		httpx.Error(w, r, err)
		return
	}

	m, err := h.service.Submit(r.Context(), observability.ClientIP(r), input)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, submitResponse{Success: true, Message: msgSent, ID: m.ID})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	messages, err := h.service.List(r.Context(), r.URL.Query().Get("unread") == "true")
	if err != nil {
		httpx.Error(w, r, err)
		return
	}

	httpx.JSON(w, http.StatusOK, listResponse{Success: true, Data: messages})
}

func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.service.MarkRead(r.Context(), id); err != nil {
		httpx.Error(w, r, mapStoreError(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.Error(w, r, mapStoreError(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		httpx.Error(w, r, apperr.Validation(msgInvalidID))
		return "", false
	}
	return id, true
}

func mapStoreError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return apperr.NotFound(msgNotFound)
	}
	return err
}
