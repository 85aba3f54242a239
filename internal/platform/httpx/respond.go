// Package httpx provides JSON response utilities shared by API handlers.
package httpx

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the wire format for every non-2xx response.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Detail  string            `json:"detail,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Problem sends a generic error response.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	JSON(w, status, ErrorResponse{Error: title, Detail: detail})
}

// ValidationProblem sends a 400 with field-level details.
func ValidationProblem(w http.ResponseWriter, details map[string]string) {
	JSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation failed", Details: details})
}

// DecodeJSON decodes the JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(r.Body).Decode(target)
}
