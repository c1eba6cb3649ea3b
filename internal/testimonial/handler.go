package testimonial

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"snw-store/internal/apperr"
	"snw-store/internal/auth"
	"snw-store/internal/httpx"
	"snw-store/internal/sanitize"
	"snw-store/internal/validate"
)

const (
	msgNotFound  = "Depoimento não encontrado"
	msgInvalidID = "ID inválido"
)

type Store interface {
	List(ctx context.Context, approvedOnly bool) ([]Testimonial, error)
	Create(ctx context.Context, input Input) (Testimonial, error)
	Update(ctx context.Context, id string, input Input) (Testimonial, error)
	Delete(ctx context.Context, id string) error
}

type Handler struct {
	store Store
	guard *auth.Guard
}

func NewHandler(store Store, guard *auth.Guard) *Handler {
	return &Handler{store: store, guard: guard}
}

type dataResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// PublicRoutes is mounted at /api/testimonials.
func (h *Handler) PublicRoutes() chi.Router {
	r := chi.NewRouter()
	r.MethodNotAllowed(httpx.MethodNotAllowed)
	r.NotFound(httpx.NotFound)

	r.Get("/", h.list(true))

	return r
}

// AdminRoutes is mounted at /api/admin/testimonials.
func (h *Handler) AdminRoutes() chi.Router {
	r := chi.NewRouter()
	r.MethodNotAllowed(httpx.MethodNotAllowed)
	r.NotFound(httpx.NotFound)
	r.Use(h.guard.Middleware)

	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireEditor())
		r.Get("/", h.list(false))
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
	})
	r.With(h.guard.RequireAdmin()).Delete("/{id}", h.Delete)

	return r
}

func (h *Handler) list(approvedOnly bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		testimonials, err := h.store.List(r.Context(), approvedOnly)
		if err != nil {
			httpx.Error(w, r, err)
			return
		}
		httpx.JSON(w, http.StatusOK, dataResponse{Success: true, Data: testimonials})
	}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	input, ok := parseInput(w, r)
	if !ok {
		return
	}

	t, err := h.store.Create(r.Context(), input)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, dataResponse{Success: true, Data: t})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	input, ok := parseInput(w, r)
	if !ok {
		return
	}

	t, err := h.store.Update(r.Context(), id, input)
	if err != nil {
		httpx.Error(w, r, mapStoreError(err))
		return
	}

	httpx.JSON(w, http.StatusOK, dataResponse{Success: true, Data: t})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		httpx.Error(w, r, mapStoreError(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func parseInput(w http.ResponseWriter, r *http.Request) (Input, bool) {
	var input Input
	if err := httpx.DecodeJSON(w, r, &input); err != nil {
		httpx.Error(w, r, err)
		return Input{}, false
	}

	input.AuthorName = sanitize.Text(input.AuthorName)
	input.Content = sanitize.Text(input.Content)

	if err := validate.Struct(input); err != nil {
		httpx.Error(w, r, err)
		return Input{}, false
	}

	return input, true
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
