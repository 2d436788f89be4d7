package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/safar/go-storefront/internal/apperr"
	"github.com/safar/go-storefront/internal/logger"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindUnauthorized, apperr.KindInvalidCredentials:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// respondErr maps err onto a status and a client-safe message. Server-side
// failures are logged with their cause.
func (h *Handler) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(apperr.KindOf(err))
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context(), h.log).Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	respondError(w, status, apperr.PublicMessage(err))
}

// decodeJSON reads a single JSON object into dst, rejecting unknown fields
// and bodies over maxBodyBytes.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.Validation("Request body too large")
		}
		return apperr.Validation("Invalid request body")
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return apperr.Validation("Request body must contain a single JSON object")
	}
	return nil
}
