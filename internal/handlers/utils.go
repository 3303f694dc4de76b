package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/vacationfavorites/apiserver/internal/services"
	"github.com/vacationfavorites/apiserver/types"
)

const maxBodyBytes = 1 << 20

type contextKey string

const contextIdentityKey contextKey = "identity"

func withIdentity(ctx context.Context, identity types.Identity) context.Context {
	return context.WithValue(ctx, contextIdentityKey, identity)
}

func identityFromContext(ctx context.Context) (types.Identity, bool) {
	identity, ok := ctx.Value(contextIdentityKey).(types.Identity)
	return identity, ok
}

// MessageResponse is the success envelope for flows that only report an outcome.
type MessageResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ErrorResponse is the failure envelope.
type ErrorResponse struct {
	OK      bool              `json:"ok"`
	Message string            `json:"message"`
	Code    string            `json:"code,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Message: message})
}

func writeResult(w http.ResponseWriter, status int, result services.Result) {
	writeJSON(w, status, MessageResponse{OK: true, Message: result.Message, Code: result.Code})
}

func statusForKind(kind services.ErrorKind) int {
	switch kind {
	case services.KindValidation, services.KindExpired:
		return http.StatusBadRequest
	case services.KindConflict:
		return http.StatusConflict
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindUnauthorized:
		return http.StatusUnauthorized
	case services.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError renders err with the status of its kind. Causes of
// internal errors are never rendered.
func writeServiceError(w http.ResponseWriter, err error) {
	writeServiceErrorStatus(w, err, statusForKind(services.KindOf(err)))
}

func writeServiceErrorStatus(w http.ResponseWriter, err error, status int) {
	var svcErr *services.Error
	if !errors.As(err, &svcErr) {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, status, ErrorResponse{Message: svcErr.Message, Code: svcErr.Code})
}

func writeValidationError(w http.ResponseWriter, err error) {
	var fieldErrs validation.Errors
	if !errors.As(err, &fieldErrs) {
		writeError(w, http.StatusBadRequest, "Validation failed")
		return
	}
	details := make(map[string]string, len(fieldErrs))
	for field, fieldErr := range fieldErrs {
		details[field] = fieldErr.Error()
	}
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: "Validation failed", Errors: details})
}

// decodeJSON reads a JSON body into dst. It writes the 400 response itself
// and reports false when the body is unusable.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
