package errors

import "strconv"

// Domain is the error domain attached to gRPC error details.
const Domain = "github.com/selight/designo"

// Error is a coded scene error. Metadata feeds the catalog templates that
// render the message shown to people; Message stays in logs.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil && e.Message == "" {
		return e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error with the same code, so callers can compare against
// New(code, "").
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// With sets one template value and returns e.
func (e *Error) With(key, value string) *Error {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// New creates an error with a code and an internal message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates an error carrying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// ProjectNotFound reports a project with no stored scene.
func ProjectNotFound(projectID string) *Error {
	return New(CodeNotFound, "project "+projectID+" not found").With("ProjectID", projectID)
}

// PayloadTooLarge reports a document of size bytes above limit.
func PayloadTooLarge(size, limit int) *Error {
	return New(CodePayloadTooLarge, "payload of "+strconv.Itoa(size)+" bytes exceeds "+strconv.Itoa(limit)).
		With("Size", strconv.Itoa(size)).
		With("Limit", strconv.Itoa(limit))
}

// ObjectTooLarge reports an object whose encoding is too large to relay to
// other clients.
func ObjectTooLarge(objectID string, size, limit int) *Error {
	return New(CodeObjectTooLarge, "object "+objectID+" is "+strconv.Itoa(size)+" bytes, limit "+strconv.Itoa(limit)).
		With("ObjectID", objectID).
		With("Size", strconv.Itoa(size)).
		With("Limit", strconv.Itoa(limit))
}

// FrameTooLarge reports a relay frame above the payload limit.
func FrameTooLarge(size, limit int) *Error {
	return New(CodeFrameTooLarge, "frame payload of "+strconv.Itoa(size)+" bytes exceeds "+strconv.Itoa(limit)).
		With("Size", strconv.Itoa(size)).
		With("Limit", strconv.Itoa(limit))
}

// InvalidObject reports an object the scene cannot hold.
func InvalidObject(objectID, reason string) *Error {
	return New(CodeInvalidObject, "invalid object: "+reason).
		With("ObjectID", objectID).
		With("Reason", reason)
}

// InvalidFrame reports a relay frame that could not be applied.
func InvalidFrame(reason string) *Error {
	return New(CodeInvalidFrame, reason).With("Reason", reason)
}
