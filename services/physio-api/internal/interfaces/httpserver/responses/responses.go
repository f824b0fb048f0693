// Package responses contains HTTP response DTOs for the physio-api.
package responses

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error *ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// StatusResponse acknowledges a command without a body of its own.
type StatusResponse struct {
	Status string `json:"status"`
}

// OK is the body of successful commands.
var OK = StatusResponse{Status: "ok"}
