package llm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedResponse is wrapped when the inference server answers 2xx with a
// body that does not carry message.content as a string.
var ErrMalformedResponse = errors.New("malformed response")

// UpstreamError is returned by Generate for every failure talking to the
// inference server: transport errors, non-2xx statuses and malformed bodies.
type UpstreamError struct {
	// StatusCode is the non-2xx status, or 0 when no such status was received.
	StatusCode int
	// Message is the server-provided error text, if any.
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	var b strings.Builder
	b.WriteString("ollama api error")
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func malformed(format string, args ...any) *UpstreamError {
	return &UpstreamError{
		Err: fmt.Errorf("%w: %s", ErrMalformedResponse, fmt.Sprintf(format, args...)),
	}
}
