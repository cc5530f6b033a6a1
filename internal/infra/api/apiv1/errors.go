package apiv1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/zeyera-studio/zeyera-studio-main/internal/domain"
)

// maxBodyBytes bounds JSON and form request bodies.
const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, Error{Code: code, Message: msg})
}

// statusFor maps the domain error taxonomy onto HTTP.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, domain.ErrSignatureMismatch):
		return http.StatusBadRequest, "signature_mismatch"
	case errors.Is(err, domain.ErrAmountMismatch):
		return http.StatusBadRequest, "amount_mismatch"
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrAlreadyEntitled):
		return http.StatusConflict, "already_entitled"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrNotConfigured):
		return http.StatusServiceUnavailable, "not_configured"
	case errors.Is(err, domain.ErrTransientStore):
		return http.StatusServiceUnavailable, "store_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// userMessage is safe to show to a caller; internal details stay in the logs.
func userMessage(err error, code string) string {
	switch code {
	case "internal", "store_unavailable":
		return "the service is temporarily unavailable, please retry"
	case "not_configured":
		return "payments are not available right now"
	case "already_entitled":
		return "you already have access to this content"
	default:
		return err.Error()
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.ErrInvalidArgument
	}
	return nil
}
