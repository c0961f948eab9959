package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Client is the text-generation backend. Implementations issue exactly one
// outbound call per Generate and never retry internally.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

var (
	// ErrMissingCredentials reports an unset or placeholder API key.
	ErrMissingCredentials = errors.New("llm: backend credentials are not configured")
	// ErrProtocol reports a success response without the expected answer field.
	ErrProtocol = errors.New("llm: invalid response format")
)

// BackendError is a non-success HTTP status returned by the backend.
type BackendError struct {
	Status     int
	StatusText string
	Message    string
}

func (e *BackendError) Error() string {
	msg := fmt.Sprintf("api request failed: %d %s", e.Status, e.StatusText)
	if e.Message != "" {
		msg += ". " + e.Message
	}
	return msg
}

// TransportError wraps network failures, including client-side timeouts.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "llm transport: " + e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

// CheckCredential rejects empty keys and the usual template placeholders.
func CheckCredential(key string) error {
	k := strings.TrimSpace(key)
	if k == "" {
		return ErrMissingCredentials
	}
	lower := strings.ToLower(k)
	if strings.HasPrefix(k, "<") && strings.HasSuffix(k, ">") {
		return ErrMissingCredentials
	}
	if strings.Contains(lower, "your") && strings.Contains(lower, "key") {
		return ErrMissingCredentials
	}
	switch lower {
	case "changeme", "placeholder", "xxx", "todo":
		return ErrMissingCredentials
	}
	return nil
}
