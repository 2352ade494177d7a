package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/equitydesk/captable-backend/internal/validation"
)

// respondJSON sends a JSON response with the given status code
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("Failed to encode JSON: %v", err)
		}
	}
}

// parseJSON decodes a request body into the given request type.
func parseJSON[T any](r *http.Request) (T, error) {
	var req T
	err := json.NewDecoder(r.Body).Decode(&req)
	return req, err
}

// parseAsOf reads the as_of query parameter, defaulting to today. Snapshots
// are dated to the day, so the default covers everything recorded so far.
func parseAsOf(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("as_of")
	if raw == "" {
		return time.Now().UTC().Truncate(24 * time.Hour), nil
	}
	return validation.ParseDate(raw)
}
