package coach

import "fmt"

// Error is the orchestration core's typed error.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Param   string    `json:"param,omitempty"`
	Wrapped error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error wrapping.
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// ErrorType categorizes errors.
type ErrorType string

const (
	// ErrSessionNotFound: the id is unknown to the store. Surfaced as a typed
	// error payload; the channel stays open.
	ErrSessionNotFound ErrorType = "session_not_found"
	// ErrInferenceUnavailable: the model collaborator failed. Always recovered
	// locally into a schema-valid fallback, never a hard failure.
	ErrInferenceUnavailable ErrorType = "inference_unavailable"
	// ErrMalformedMessage: the inbound frame could not be decoded. Typed error
	// payload; the channel stays open.
	ErrMalformedMessage ErrorType = "malformed_message"
	// ErrPersistence: a save failed. Fatal for the current operation; in-memory
	// state remains the source of truth until the next successful save.
	ErrPersistence ErrorType = "persistence_failure"
	// ErrInvalidRequest: the request shape is wrong (bad mode, empty payload).
	ErrInvalidRequest ErrorType = "invalid_request"
	// ErrSessionEnded: the session has ended and is read-only. Turns and
	// sensor frames are rejected; reports may still be generated.
	ErrSessionEnded ErrorType = "session_ended"
)

// NewSessionNotFoundError creates a session-not-found error for the given id.
func NewSessionNotFoundError(sessionID string) *Error {
	return &Error{
		Type:    ErrSessionNotFound,
		Message: fmt.Sprintf("session %s not found", sessionID),
	}
}

// NewInferenceError wraps a model-collaborator failure.
func NewInferenceError(underlying error) *Error {
	return &Error{
		Type:    ErrInferenceUnavailable,
		Message: underlying.Error(),
		Wrapped: underlying,
	}
}

// NewMalformedMessageError creates a malformed-inbound-message error.
func NewMalformedMessageError(message, param string) *Error {
	return &Error{
		Type:    ErrMalformedMessage,
		Message: message,
		Param:   param,
	}
}

// NewPersistenceError wraps a store failure.
func NewPersistenceError(op string, underlying error) *Error {
	return &Error{
		Type:    ErrPersistence,
		Message: fmt.Sprintf("%s: %v", op, underlying),
		Wrapped: underlying,
	}
}

// NewSessionEndedError creates a session-ended error for the given id.
func NewSessionEndedError(sessionID string) *Error {
	return &Error{
		Type:    ErrSessionEnded,
		Message: fmt.Sprintf("session %s has ended", sessionID),
	}
}

// NewInvalidRequestError creates an invalid-request error.
func NewInvalidRequestError(message string) *Error {
	return &Error{
		Type:    ErrInvalidRequest,
		Message: message,
	}
}
