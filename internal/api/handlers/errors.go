// Package handlers holds the pieces shared across the XRPC handler
// packages, starting with the error envelope.
package handlers

import (
	"encoding/json"
	"log"
	"net/http"
)

// errorBody is the envelope every non-2xx response carries: a stable
// machine-readable error name plus a human-readable message.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes the JSON error envelope with the given status.
func WriteError(w http.ResponseWriter, statusCode int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(errorBody{Error: errorType, Message: message}); err != nil {
		log.Printf("Failed to encode error response: %v", err)
	}
}
