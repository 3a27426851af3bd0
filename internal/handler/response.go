package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/silverpresident/robotics-scrimmage-manager/internal/middleware"
	"github.com/silverpresident/robotics-scrimmage-manager/pkg/errors"
	"github.com/silverpresident/robotics-scrimmage-manager/pkg/logger"
)

const maxBodyBytes = 1 << 20

// Response wraps every successful payload
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Message string      `json:"message,omitempty"`
}

// respondJSON writes data in the success envelope
func respondJSON(w http.ResponseWriter, log *logger.Logger, status int, data interface{}, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(Response{Success: status < http.StatusBadRequest, Data: data, Message: message}); err != nil {
		log.WithError(err).Error("Failed to encode response")
	}
}

// respondError maps err to its status and writes the error envelope.
// Anything that is not an AppError is reported as an internal error.
func respondError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	appErr, ok := errors.As(err)
	if !ok {
		appErr = errors.NewInternalError("Internal server error", err)
	}

	requestID := middleware.RequestIDFrom(r.Context())
	entry := log.WithError(err).WithFields(map[string]interface{}{
		"request_id": requestID,
		"method":     r.Method,
		"path":       r.URL.Path,
		"status":     appErr.StatusCode,
	})
	if appErr.StatusCode >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Debug("Request rejected")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode)
	if err := json.NewEncoder(w).Encode(errors.NewErrorResponse(appErr, requestID)); err != nil {
		log.WithError(err).Error("Failed to encode error response")
	}
}

// decodeJSON reads a JSON request body into dst
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return errors.NewValidationError("Request body is required", nil)
		}
		return errors.NewValidationError("Invalid request body", map[string]interface{}{
			"reason": err.Error(),
		})
	}
	return nil
}

// queryInt reads a positive integer query parameter, falling back to def
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.NewValidationError(fmt.Sprintf("%s must be a positive integer", name), map[string]interface{}{
			"field": name,
			"value": raw,
		})
	}
	return n, nil
}
