package featureapi

import (
	"encoding/json"
	"net/http"
)

// Response is the JSON envelope of every endpoint.
type Response struct {
	Data  any          `json:"data,omitempty"`
	Error *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	CodeMissingUser       = "missing_user"
	CodeUnknownFeature    = "unknown_feature"
	CodeInvalidBody       = "invalid_body"
	CodeOverridesDisabled = "overrides_disabled"
	CodeOverridesMissing  = "overrides_unavailable"
	CodeInternal          = "internal_error"
)

func writeJSON(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Response{Data: data})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Response{Error: &ErrorDetail{Code: code, Message: message}})
}
