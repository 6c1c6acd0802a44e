// Package dto holds the request and response shapes of the HTTP API
package dto

// APIResponse is the envelope of every JSON answer
type APIResponse struct {
	Success   bool         `json:"success"`
	Message   string       `json:"message"`
	Data      any          `json:"data,omitempty"`
	Error     *ErrorDetail `json:"error,omitempty"`
	RequestID string       `json:"request_id,omitempty"`
}

// ErrorDetail carries a stable machine-readable code and optional details
type ErrorDetail struct {
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

// NewErrorResponse builds a failed envelope
func NewErrorResponse(message, code string, details any, requestID string) APIResponse {
	return APIResponse{
		Success:   false,
		Message:   message,
		Error:     &ErrorDetail{Code: code, Details: details},
		RequestID: requestID,
	}
}
