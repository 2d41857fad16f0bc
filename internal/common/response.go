package common

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the {"code","message","details"} object under "error" in every
// failed API response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// JSONError writes {"error": {...}}.
func JSONError(w http.ResponseWriter, status int, code, message string, details any) {
	JSON(w, status, map[string]ErrorBody{
		"error": {Code: code, Message: message, Details: details},
	})
}

// WriteError renders err via Describe. It reports false when err was not an
// AppError.
func WriteError(w http.ResponseWriter, err error) bool {
	status, body, ok := Describe(err)
	JSONError(w, status, body.Code, body.Message, body.Details)
	return ok
}
