package controllers

import (
	"encoding/json"
	"log"
	"net/http"

	apperrors "moveflow_server/errors"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("❌ Failed to encode response: %v", err)
	}
}

// writeError maps the service error kinds onto HTTP statuses. The detail
// string is passed through; user-facing copy belongs to the client.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperrors.KindOf(err) {
	case apperrors.KindInvalidArgument:
		status = http.StatusBadRequest
	case apperrors.KindPreconditionFailed:
		status = http.StatusPreconditionFailed
	case apperrors.KindInvalidState:
		status = http.StatusConflict
	case apperrors.KindNotFound:
		status = http.StatusNotFound
	case apperrors.KindForbidden:
		status = http.StatusForbidden
	case apperrors.KindStoreUnavailable:
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"kind":  string(apperrors.KindOf(err)),
	})
}
