// Package httpx holds the JSON plumbing shared by every route handler.
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/getsentry/sentry-go"

	"snw-store/internal/apperr"
	"snw-store/internal/observability"
)

const MaxJSONBodyBytes = 1 << 20

type errorBody struct {
	Success    bool                `json:"success"`
	Error      string              `json:"error"`
	Code       string              `json:"code,omitempty"`
	RetryAfter int                 `json:"retryAfter,omitempty"`
	Details    []apperr.FieldError `json:"details,omitempty"`
}

func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Error renders err as the standard failure envelope. Unexpected errors are
// logged and reported, and the client only sees a generic message.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperr.From(err)

	if appErr.HTTPStatus >= http.StatusInternalServerError {
		fields := map[string]any{"path": r.URL.Path, "method": r.Method}
		if appErr.Cause != nil {
			fields["error"] = appErr.Cause.Error()
			if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
				hub.CaptureException(appErr.Cause)
			} else {
				sentry.CaptureException(appErr.Cause)
			}
		}
		observability.LoggerFrom(r.Context()).Error("request_failed", fields)
	}

	if appErr.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(appErr.RetryAfter))
	}

	JSON(w, appErr.HTTPStatus, errorBody{
		Success:    false,
		Error:      appErr.Message,
		Code:       appErr.Code,
		RetryAfter: appErr.RetryAfter,
		Details:    appErr.Details,
	})
}

// DecodeJSON reads a single JSON object from the body, rejecting unknown
// fields and bodies over MaxJSONBodyBytes.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxJSONBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperr.Validation("Corpo da requisição muito grande")
		}
		if errors.Is(err, io.EOF) {
			return apperr.Validation("Corpo da requisição vazio")
		}
		return apperr.Validation("JSON inválido")
	}
	if decoder.More() {
		return apperr.Validation("JSON inválido")
	}

	return nil
}

func MethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusMethodNotAllowed, errorBody{Success: false, Error: "Method not allowed"})
}

func NotFound(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusNotFound, errorBody{Success: false, Error: "Recurso não encontrado", Code: apperr.CodeNotFound})
}
