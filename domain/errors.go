package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced to the session state
type ErrorKind string

const (
	KindPermissionDenied ErrorKind = "permission_denied"
	KindUnsupported      ErrorKind = "unsupported"
	KindNetworkFailure   ErrorKind = "network_failure"
	KindRemoteAPIError   ErrorKind = "remote_api_error"
	KindSynthesisFailed  ErrorKind = "synthesis_failed"
	KindNoVoiceAvailable ErrorKind = "no_voice_available"
)

// Sentinels for errors.Is matching against a kind
var (
	ErrPermissionDenied = &Error{Kind: KindPermissionDenied, Message: "Microphone permission denied"}
	ErrUnsupported      = &Error{Kind: KindUnsupported, Message: "Speech recognition is not supported"}
	ErrNetworkFailure   = &Error{Kind: KindNetworkFailure, Message: "Network request failed"}
	ErrRemoteAPIError   = &Error{Kind: KindRemoteAPIError, Message: "API request failed"}
	ErrSynthesisFailed  = &Error{Kind: KindSynthesisFailed, Message: "Failed to speak message"}
	ErrNoVoiceAvailable = &Error{Kind: KindNoVoiceAvailable, Message: "No voice available"}
)

// Error is a classified failure carrying a human-readable message
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// NewError creates a classified error; an empty message falls back to the kind default
func NewError(kind ErrorKind, message string, cause error) *Error {
	if message == "" {
		message = defaultMessage(kind)
	}
	return &Error{Kind: kind, Message: message, Err: cause}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports a match when the target is a domain error of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the outermost domain error in the chain
func KindOf(err error) (ErrorKind, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return "", false
}

// Describe returns the message shown to the user for err.
// Domain errors yield their own message; anything else is reported verbatim.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}

func defaultMessage(kind ErrorKind) string {
	switch kind {
	case KindPermissionDenied:
		return ErrPermissionDenied.Message
	case KindUnsupported:
		return ErrUnsupported.Message
	case KindNetworkFailure:
		return ErrNetworkFailure.Message
	case KindRemoteAPIError:
		return ErrRemoteAPIError.Message
	case KindSynthesisFailed:
		return ErrSynthesisFailed.Message
	case KindNoVoiceAvailable:
		return ErrNoVoiceAvailable.Message
	default:
		return "Unexpected error"
	}
}
