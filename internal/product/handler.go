package product

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"snw-store/internal/apperr"
	"snw-store/internal/auth"
	"snw-store/internal/httpx"
	"snw-store/internal/slug"
	"snw-store/internal/validate"
)

var allowedURLChars = regexp.MustCompile(`^[A-Za-z0-9\-._~:/?#\[\]@!$&'()*+,;=%]+$`)
var allowedHost = regexp.MustCompile(`^[A-Za-z0-9.-]+$`)

const (
	msgProductNotFound  = "Produto não encontrado"
	msgCategoryNotFound = "Categoria não encontrada"
	msgInvalidID        = "ID inválido"
	msgSlugTaken        = "Já existe uma categoria com este slug"
	msgUnknownCategory  = "Categoria informada não existe"
	msgInvalidImageURL  = "URL da imagem inválida"
	msgInvalidSlug      = "Slug inválido"
)

type Store interface {
	ListProducts(ctx context.Context, filter ListFilter) ([]Product, error)
	GetProduct(ctx context.Context, id string) (Product, error)
	CreateProduct(ctx context.Context, input ProductInput) (Product, error)
	UpdateProduct(ctx context.Context, id string, input ProductInput) (Product, error)
	DeleteProduct(ctx context.Context, id string) error
	ListCategories(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, input CategoryInput) (Category, error)
	UpdateCategory(ctx context.Context, id string, input CategoryInput) (Category, error)
	DeleteCategory(ctx context.Context, id string) error
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

// ProductRoutes is mounted at /api/products.
func (h *Handler) ProductRoutes() chi.Router {
	r := newRouter()

	r.Get("/", h.ListProducts)
	r.Get("/{id}", h.GetProduct)

	r.Group(func(r chi.Router) {
		r.Use(h.guard.Middleware)
		r.With(h.guard.RequireEditor()).Post("/", h.CreateProduct)
		r.With(h.guard.RequireEditor()).Put("/{id}", h.UpdateProduct)
		r.With(h.guard.RequireAdmin()).Delete("/{id}", h.DeleteProduct)
	})

	return r
}

// CategoryRoutes is mounted at /api/categories.
func (h *Handler) CategoryRoutes() chi.Router {
	r := newRouter()

	r.Get("/", h.ListCategories)

	r.Group(func(r chi.Router) {
		r.Use(h.guard.Middleware)
		r.With(h.guard.RequireEditor()).Post("/", h.CreateCategory)
		r.With(h.guard.RequireEditor()).Put("/{id}", h.UpdateCategory)
		r.With(h.guard.RequireAdmin()).Delete("/{id}", h.DeleteCategory)
	})

	return r
}

func newRouter() chi.Router {
	r := chi.NewRouter()
	r.MethodNotAllowed(httpx.MethodNotAllowed)
	r.NotFound(httpx.NotFound)
	return r
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.store.ListProducts(r.Context(), ListFilter{
		CategorySlug: strings.TrimSpace(r.URL.Query().Get("category")),
	})
	if err != nil {
		httpx.Error(w, r, err)
		return
	}

	httpx.JSON(w, http.StatusOK, dataResponse{Success: true, Data: products})
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	p, err := h.store.GetProduct(r.Context(), id)
	if err == nil && !p.IsActive {
		err = ErrNotFound
	}
	if err != nil {
		httpx.Error(w, r, mapStoreError(err, msgProductNotFound))
		return
	}

	httpx.JSON(w, http.StatusOK, dataResponse{Success: true, Data: p})
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	input, ok := parseProductInput(w, r)
	if !ok {
		return
	}

	p, err := h.store.CreateProduct(r.Context(), input)
	if err != nil {
		httpx.Error(w, r, mapStoreError(err, msgProductNotFound))
		return
	}

	httpx.JSON(w, http.StatusCreated, dataResponse{Success: true, Data: p})
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	input, ok := parseProductInput(w, r)
	if !ok {
		return
	}

	p, err := h.store.UpdateProduct(r.Context(), id, input)
	if err != nil {
		httpx.Error(w, r, mapStoreError(err, msgProductNotFound))
		return
	}

	httpx.JSON(w, http.StatusOK, dataResponse{Success: true, Data: p})
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.store.DeleteProduct(r.Context(), id); err != nil {
		httpx.Error(w, r, mapStoreError(err, msgProductNotFound))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.store.ListCategories(r.Context())
	if err != nil {
		httpx.Error(w, r, err)
		return
	}

	httpx.JSON(w, http.StatusOK, dataResponse{Success: true, Data: categories})
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	input, ok := parseCategoryInput(w, r)
	if !ok {
		return
	}

	c, err := h.store.CreateCategory(r.Context(), input)
	if err != nil {
		httpx.Error(w, r, mapStoreError(err, msgCategoryNotFound))
		return
	}

	httpx.JSON(w, http.StatusCreated, dataResponse{Success: true, Data: c})
}

func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	input, ok := parseCategoryInput(w, r)
	if !ok {
		return
	}

	c, err := h.store.UpdateCategory(r.Context(), id, input)
	if err != nil {
		httpx.Error(w, r, mapStoreError(err, msgCategoryNotFound))
		return
	}

	httpx.JSON(w, http.StatusOK, dataResponse{Success: true, Data: c})
}

func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.store.DeleteCategory(r.Context(), id); err != nil {
		httpx.Error(w, r, mapStoreError(err, msgCategoryNotFound))
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

func parseProductInput(w http.ResponseWriter, r *http.Request) (ProductInput, bool) {
	var input ProductInput
	if err := httpx.DecodeJSON(w, r, &input); err != nil {
		httpx.Error(w, r, err)
		return ProductInput{}, false
	}

	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	input.ImageURL = strings.TrimSpace(input.ImageURL)
	input.WhatsappMessage = strings.TrimSpace(input.WhatsappMessage)
	if input.CategoryID != nil && strings.TrimSpace(*input.CategoryID) == "" {
		input.CategoryID = nil
	}

	if err := validate.Struct(input); err != nil {
		httpx.Error(w, r, err)
		return ProductInput{}, false
	}
	if !validImageURL(input.ImageURL) {
		httpx.Error(w, r, apperr.Validation(msgInvalidImageURL, apperr.FieldError{Field: "imageUrl", Message: msgInvalidImageURL}))
		return ProductInput{}, false
	}

	return input, true
}

func parseCategoryInput(w http.ResponseWriter, r *http.Request) (CategoryInput, bool) {
	var input CategoryInput
	if err := httpx.DecodeJSON(w, r, &input); err != nil {
		httpx.Error(w, r, err)
		return CategoryInput{}, false
	}

	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)

	if err := validate.Struct(input); err != nil {
		httpx.Error(w, r, err)
		return CategoryInput{}, false
	}

	source := input.Slug
	if strings.TrimSpace(source) == "" {
		source = input.Name
	}
	input.Slug = slug.Make(source)
	if input.Slug == "" {
		httpx.Error(w, r, apperr.Validation(msgInvalidSlug, apperr.FieldError{Field: "slug", Message: msgInvalidSlug}))
		return CategoryInput{}, false
	}

	return input, true
}

// validImageURL accepts absolute http(s) links with a plain host and no user
// info.
func validImageURL(raw string) bool {
	if !isASCII(raw) || !allowedURLChars.MatchString(raw) {
		return false
	}
	parsed, err := url.ParseRequestURI(raw)
	if err != nil || parsed.Host == "" {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	return parsed.User == nil && allowedHost.MatchString(parsed.Hostname())
}

func mapStoreError(err error, notFound string) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return apperr.NotFound(notFound)
	case errors.Is(err, ErrSlugTaken):
		return apperr.Conflict(msgSlugTaken)
	case errors.Is(err, ErrUnknownCategory):
		return apperr.Validation(msgUnknownCategory, apperr.FieldError{Field: "categoryId", Message: msgUnknownCategory})
	}
	return err
}

func isASCII(value string) bool {
	for i := 0; i < len(value); i++ {
		if value[i] < 32 || value[i] > 126 {
			return false
		}
	}
	return true
}
