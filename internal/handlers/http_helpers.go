package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
)

// errorResponse is the JSON body of every REST error.
type errorResponse struct {
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorResponse{Message: msg})
}

// normalizeID trims surrounding whitespace from client-supplied identifiers.
func normalizeID(id string) string {
	return strings.TrimSpace(id)
}
