package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/benvon/sitetime/internal/logger"
	"github.com/benvon/sitetime/internal/services/timetrack"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   true,
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// sanitizeErrorMessage removes internal details from error messages
func sanitizeErrorMessage(message string) string {
	if len(message) > 200 {
		return message[:200] + "..."
	}
	return message
}

// respondJSONError sends an error JSON response with sanitized error messages
func respondJSONError(w http.ResponseWriter, status int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   false,
		"error":     errorType,
		"message":   sanitizeErrorMessage(message),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// respondServiceError maps a service error to 400 for bad input and 500 otherwise.
// Internal errors are logged and never echoed to the client.
func respondServiceError(w http.ResponseWriter, log *zap.Logger, event string, err error) {
	if timetrack.IsInvalidInput(err) {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	log.Error(event, zap.String("error", logger.SanitizeError(err)))
	respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "The request could not be completed")
}

// errUnsupportedFormat is returned by decodeBody for content types it cannot parse
var errUnsupportedFormat = errors.New("unsupported body format")

// decodeBody reads a JSON or YAML request body into v based on Content-Type
func decodeBody(r *http.Request, v any) error {
	mediaType := "application/json"
	if ct := r.Header.Get("Content-Type"); ct != "" {
		parsed, _, err := mime.ParseMediaType(ct)
		if err != nil {
			return fmt.Errorf("%w: %v", errUnsupportedFormat, err)
		}
		mediaType = parsed
	}

	switch mediaType {
	case "application/json":
		if err := json.NewDecoder(r.Body).Decode(v); err != nil {
			return fmt.Errorf("invalid JSON body: %w", err)
		}
	case "application/yaml", "application/x-yaml", "text/yaml":
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return fmt.Errorf("failed to read body: %w", err)
		}
		if err := yaml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("invalid YAML body: %w", err)
		}
	default:
		return fmt.Errorf("%w: %s", errUnsupportedFormat, mediaType)
	}
	return nil
}

// respondDecodeError reports a body that could not be decoded
func respondDecodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, errUnsupportedFormat) {
		respondJSONError(w, http.StatusUnsupportedMediaType, "Unsupported Media Type", err.Error())
		return
	}
	respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
}
