package apimodels

import "fmt"

// APIError is the JSON body of every error response.
type APIError struct {
	// HTTPStatusCode is the HTTP status code of the error
	HTTPStatusCode int `json:"-"`
	// Message is a human readable message describing the error
	Message string `json:"message"`
	// Code is a stable machine readable error code
	Code string `json:"code"`
	// RequestID echoes the id assigned to the request, for correlating logs
	RequestID string `json:"request_id,omitempty"`
}

func (e APIError) Error() string {
	return fmt.Sprintf("%s (%d)", e.Message, e.HTTPStatusCode)
}
