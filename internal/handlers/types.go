package handlers

import (
	"errors"
	"strings"
)

// ChatRequest is the body accepted by POST /api/chat.
type ChatRequest struct {
	Message string `json:"message"`
}

var errEmptyMessage = errors.New("message is missing or blank")

// Validate rejects a message that is empty after trimming. The message itself
// is forwarded untrimmed.
func (r *ChatRequest) Validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return errEmptyMessage
	}
	return nil
}

// ChatResponse is the success body of POST /api/chat.
type ChatResponse struct {
	Response string `json:"response"`
}

// ErrorResponse is the body of every JSON error.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse acknowledges a CORS pre-flight.
type StatusResponse struct {
	Status string `json:"status"`
}
