package models

// Status values carried by every JSON response.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// APIResponse is the JSON envelope returned by the HTTP endpoints.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success wraps result in an "ok" envelope.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: StatusOK, Result: result}
}

// Error wraps message in an "error" envelope.
func Error(message string) APIResponse {
	return APIResponse{Status: StatusError, Message: message}
}
