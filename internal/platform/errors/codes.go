// Package errors provides structured error handling with i18n support.
package errors

import (
	"strings"

	"google.golang.org/grpc/codes"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Project errors
	CodeNotFound          Code = "NOT_FOUND"
	CodeProjectIDRequired Code = "PROJECT_ID_REQUIRED"
	CodePayloadTooLarge   Code = "PAYLOAD_TOO_LARGE"

	// Scene content errors
	CodeInvalidObject  Code = "INVALID_OBJECT"
	CodeInvalidCamera  Code = "INVALID_CAMERA"
	CodeObjectTooLarge Code = "OBJECT_TOO_LARGE"

	// Relay errors
	CodeInvalidFrame  Code = "INVALID_FRAME"
	CodeFrameTooLarge Code = "FRAME_TOO_LARGE"
	CodeNotJoined     Code = "NOT_JOINED"
	CodeRateLimited   Code = "RATE_LIMITED"

	// Join grant errors
	CodeJoinGrantInvalid  Code = "JOIN_GRANT_INVALID"
	CodeJoinGrantExpired  Code = "JOIN_GRANT_EXPIRED"
	CodeJoinGrantMismatch Code = "JOIN_GRANT_MISMATCH"

	// Storage errors
	CodeStorageUnavailable Code = "STORAGE_UNAVAILABLE"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	case CodeProjectIDRequired,
		CodeInvalidObject,
		CodeInvalidCamera,
		CodeInvalidFrame,
		CodeJoinGrantInvalid,
		CodeJoinGrantMismatch:
		return codes.InvalidArgument

	case CodeNotJoined,
		CodeJoinGrantExpired:
		return codes.FailedPrecondition

	case CodeNotFound:
		return codes.NotFound

	case CodePayloadTooLarge,
		CodeObjectTooLarge,
		CodeFrameTooLarge,
		CodeRateLimited:
		return codes.ResourceExhausted

	case CodeStorageUnavailable:
		return codes.Unavailable

	default:
		return codes.Internal
	}
}

// MessageKey returns the catalog key holding the user-facing text for c.
func (c Code) MessageKey() string {
	return "errors." + strings.ToLower(string(c))
}

// CodeFromGRPC maps a gRPC status code back to the closest domain code.
// It is used when a server did not attach an ErrorInfo reason.
func CodeFromGRPC(code codes.Code) Code {
	switch code {
	case codes.NotFound:
		return CodeNotFound
	case codes.InvalidArgument:
		return CodeInvalidObject
	case codes.ResourceExhausted:
		return CodePayloadTooLarge
	case codes.Unavailable, codes.DeadlineExceeded:
		return CodeStorageUnavailable
	default:
		return CodeUnknown
	}
}
