package media

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"snw-store/internal/apperr"
	"snw-store/internal/auth"
	"snw-store/internal/httpx"
)

const (
	MaxUploadSizeBytes = 5 << 20

	multipartOverhead = 1 << 20
)

const (
	msgStorageDisabled = "Upload de imagens não configurado"
	msgInvalidForm     = "Formulário inválido"
	msgFileRequired    = "Arquivo obrigatório"
	msgFileEmpty       = "Arquivo vazio"
	msgFileTooLarge    = "Arquivo excede o limite de 5 MB"
	msgNotAnImage      = "O arquivo deve ser uma imagem"
)

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

type UploadHandler struct {
	store ObjectStore
	guard *auth.Guard
	now   func() time.Time
}

// NewUploadHandler accepts a nil store, in which case uploads answer 503.
func NewUploadHandler(store ObjectStore, guard *auth.Guard) *UploadHandler {
	return &UploadHandler{store: store, guard: guard, now: func() time.Time { return time.Now().UTC() }}
}

type uploadResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
	Key     string `json:"key"`
}

// Routes is mounted at /api/admin/upload.
func (h *UploadHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.MethodNotAllowed(httpx.MethodNotAllowed)
	r.NotFound(httpx.NotFound)
	r.Use(h.guard.Middleware, h.guard.RequireEditor())

	r.Post("/", h.Upload)

	return r
}

func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		httpx.JSON(w, http.StatusServiceUnavailable, map[string]any{"success": false, "error": msgStorageDisabled})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSizeBytes+multipartOverhead)
	if err := r.ParseMultipartForm(MaxUploadSizeBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			httpx.Error(w, r, apperr.Validation(msgFileTooLarge))
			return
		}
		httpx.Error(w, r, apperr.Validation(msgInvalidForm))
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		httpx.Error(w, r, apperr.Validation(msgFileRequired))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxUploadSizeBytes+1))
	if err != nil {
		httpx.Error(w, r, apperr.Validation(msgInvalidForm))
		return
	}
	if len(data) == 0 {
		httpx.Error(w, r, apperr.Validation(msgFileEmpty))
		return
	}
	if len(data) > MaxUploadSizeBytes {
		httpx.Error(w, r, apperr.Validation(msgFileTooLarge))
		return
	}

	// The declared Content-Type is ignored; only the sniffed type counts.
	contentType := http.DetectContentType(data)
	ext, ok := imageExtensions[contentType]
	if !ok {
		httpx.Error(w, r, apperr.Validation(msgNotAnImage))
		return
	}

	key, err := h.objectKey(ext)
	if err != nil {
		httpx.Error(w, r, apperr.Internal(err))
		return
	}

	url, err := h.store.Put(r.Context(), key, contentType, data)
	if err != nil {
		httpx.Error(w, r, apperr.Internal(err))
		return
	}

	httpx.JSON(w, http.StatusCreated, uploadResponse{Success: true, URL: url, Key: key})
}

func (h *UploadHandler) objectKey(ext string) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid v7: %w", err)
	}
	now := h.now()
	return path.Join("uploads", now.Format("2006"), now.Format("01"), id.String()+ext), nil
}
