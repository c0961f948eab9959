package coordinator

import (
	"errors"
	"fmt"

	"quickask/internal/llm"
)

// Kind classifies a failed request.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindConfiguration Kind = "configuration"
	KindBackend       Kind = "backend"
	KindProtocol      Kind = "protocol"
	KindTransport     Kind = "transport"
)

// ValidationError rejects a request before any network call.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation: " + e.Reason }

const failurePrefix = "Failed to get AI response. "

const (
	msgMissingQuestion = "Missing question"
	msgConfiguration   = failurePrefix + "The AI service is not configured; please set the API key."
	msgProtocol        = failurePrefix + "Received unexpected response from AI service."
	msgTransport       = failurePrefix + "Please check your internet connection and try again."
)

// Classify maps any handling error onto the failure taxonomy. Errors that
// match nothing else are treated as transport failures.
func Classify(err error) Kind {
	var ve *ValidationError
	var be *llm.BackendError
	switch {
	case errors.As(err, &ve):
		return KindValidation
	case errors.Is(err, llm.ErrMissingCredentials):
		return KindConfiguration
	case errors.As(err, &be):
		return KindBackend
	case errors.Is(err, llm.ErrProtocol):
		return KindProtocol
	default:
		return KindTransport
	}
}

// UserMessage renders err as the text shown to the user.
func UserMessage(err error) string {
	switch Classify(err) {
	case KindValidation:
		var ve *ValidationError
		errors.As(err, &ve)
		return ve.Reason
	case KindConfiguration:
		return msgConfiguration
	case KindBackend:
		var be *llm.BackendError
		errors.As(err, &be)
		msg := fmt.Sprintf("%sThe AI service returned %d %s.", failurePrefix, be.Status, be.StatusText)
		if be.Message != "" {
			msg += " " + be.Message
		}
		return msg
	case KindProtocol:
		return msgProtocol
	default:
		return msgTransport
	}
}
