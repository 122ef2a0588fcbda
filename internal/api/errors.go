package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// Construction errors returned by New.
var (
	ErrNoLogger   = errors.New("api: logger is required")
	ErrNoRegistry = errors.New("api: device registry is required")
)

// ErrorBody is the JSON document sent with every 4xx and 5xx response.
// Code is the status text in snake case ("not_found").
type ErrorBody struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON encodes v as the response body. Encoding errors are dropped
// because the status line has already been sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	//nolint:errcheck // client may have gone away
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	code := strings.ReplaceAll(strings.ToLower(http.StatusText(status)), " ", "_")
	if status == http.StatusInternalServerError {
		code = "internal_error"
	}
	writeJSON(w, status, ErrorBody{Status: status, Code: code, Message: message})
}
