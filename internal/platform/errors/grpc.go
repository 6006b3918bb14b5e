package errors

import (
	"errors"

	"github.com/selight/designo/internal/platform/i18n/catalog"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultLocale is the default locale for error messages.
const DefaultLocale = catalog.BaseLocale

// HandleError converts domain errors to gRPC status for client responses.
// The user-facing message is rendered from the catalog for locale.
func HandleError(err error, locale string) error {
	if err == nil {
		return nil
	}
	if locale == "" {
		locale = DefaultLocale
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return toStatus(appErr, catalog.Default().Resolve(locale), Localize(appErr, locale))
	}

	return status.Error(codes.Internal, "an unexpected error occurred")
}

// toStatus keeps the internal message as the status message and carries the
// localized text in a LocalizedMessage detail.
func toStatus(e *Error, locale, userMessage string) error {
	grpcCode := e.Code.GRPCCode()
	st, err := status.New(grpcCode, e.Message).WithDetails(
		&errdetails.ErrorInfo{
			Reason:   string(e.Code),
			Domain:   Domain,
			Metadata: e.Metadata,
		},
		&errdetails.LocalizedMessage{
			Locale:  locale,
			Message: userMessage,
		},
	)
	if err != nil {
		return status.Error(grpcCode, e.Message)
	}
	return st.Err()
}

// FromGRPC rebuilds a domain error from a gRPC status error. Errors that do
// not carry a status are returned unchanged.
func FromGRPC(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	code := CodeFromGRPC(st.Code())
	var metadata map[string]string
	for _, detail := range st.Details() {
		if info, ok := detail.(*errdetails.ErrorInfo); ok && info.GetDomain() == Domain {
			code = Code(info.GetReason())
			metadata = info.GetMetadata()
		}
	}
	return &Error{Code: code, Message: st.Message(), Metadata: metadata, Cause: err}
}

// Localize renders the user-facing message for err in locale.
func Localize(err error, locale string) string {
	code := GetCode(err)
	return catalog.Default().Localize(locale, code.MessageKey(), GetMetadata(err))
}

// GetCode extracts the error code from any error.
// Returns CodeUnknown if the error is not a domain error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsCode checks if the error has the specified code.
func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}

// GetMetadata extracts metadata from an error if present.
func GetMetadata(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Metadata
	}
	return nil
}
