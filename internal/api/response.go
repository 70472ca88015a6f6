// Package api provides the HTTP response/auth helpers shared by
// wpadproxy's admin endpoints.
package api

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse holds an error message for JSON responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WriteJSON writes a JSON response with proper encoding.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// WriteJSONError writes a JSON error response.
func WriteJSONError(w http.ResponseWriter, statusCode int, errMsg string) {
	_ = WriteJSON(w, statusCode, ErrorResponse{Error: errMsg})
}
