package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("save: %w", New(CodeNotFound, "project p1 missing"))
	if !stderrors.Is(err, New(CodeNotFound, "")) {
		t.Fatal("expected errors.Is to match on code")
	}
	if stderrors.Is(err, New(CodeInvalidObject, "")) {
		t.Fatal("expected different code not to match")
	}
}

func TestWrapUnwraps(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Wrap(CodeStorageUnavailable, "put scene", cause)
	if !stderrors.Is(err, cause) {
		t.Fatal("expected cause in chain")
	}
}

func TestGRPCCodeMapping(t *testing.T) {
	tests := []struct {
		code Code
		want codes.Code
	}{
		{CodeNotFound, codes.NotFound},
		{CodeProjectIDRequired, codes.InvalidArgument},
		{CodeInvalidObject, codes.InvalidArgument},
		{CodePayloadTooLarge, codes.ResourceExhausted},
		{CodeObjectTooLarge, codes.ResourceExhausted},
		{CodeFrameTooLarge, codes.ResourceExhausted},
		{CodeJoinGrantExpired, codes.FailedPrecondition},
		{CodeStorageUnavailable, codes.Unavailable},
		{CodeUnknown, codes.Internal},
	}
	for _, tc := range tests {
		if got := tc.code.GRPCCode(); got != tc.want {
			t.Errorf("%s.GRPCCode() = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestHandleErrorAttachesDetails(t *testing.T) {
	err := HandleError(ProjectNotFound("p1"), "pt-BR")
	st, ok := status.FromError(err)
	if !ok {
		t.Fatalf("expected status error, got %v", err)
	}
	if st.Code() != codes.NotFound {
		t.Fatalf("code = %v, want %v", st.Code(), codes.NotFound)
	}
	var localized string
	var reason string
	for _, detail := range st.Details() {
		switch d := detail.(type) {
		case *errdetails.LocalizedMessage:
			localized = d.GetMessage()
		case *errdetails.ErrorInfo:
			reason = d.GetReason()
		}
	}
	if reason != string(CodeNotFound) {
		t.Fatalf("reason = %q, want %q", reason, CodeNotFound)
	}
	if localized != "O projeto p1 não foi encontrado." {
		t.Fatalf("localized = %q", localized)
	}
}

func TestHandleErrorUnknown(t *testing.T) {
	err := HandleError(stderrors.New("boom"), "")
	if status.Code(err) != codes.Internal {
		t.Fatalf("code = %v, want Internal", status.Code(err))
	}
	if HandleError(nil, "") != nil {
		t.Fatal("expected nil for nil error")
	}
}

func TestFromGRPCRoundTrip(t *testing.T) {
	wire := HandleError(New(CodePayloadTooLarge, "too big"), "en-US")
	err := FromGRPC(wire)
	if !IsCode(err, CodePayloadTooLarge) {
		t.Fatalf("code = %s, want %s", GetCode(err), CodePayloadTooLarge)
	}
}

func TestFromGRPCWithoutDetails(t *testing.T) {
	err := FromGRPC(status.Error(codes.Unavailable, "connection refused"))
	if !IsCode(err, CodeStorageUnavailable) {
		t.Fatalf("code = %s, want %s", GetCode(err), CodeStorageUnavailable)
	}
}

func TestLocalizeUsesMetadata(t *testing.T) {
	err := New(CodeJoinGrantMismatch, "mismatch").With("ProjectID", "p9")
	if got := Localize(err, "en-US"); got != "The join grant does not match project p9." {
		t.Fatalf("Localize = %q", got)
	}
}

func TestSizeErrorsHaveDistinctMessages(t *testing.T) {
	frame := Localize(FrameTooLarge(300000, 262144), "en-US")
	if frame != "The message is too large to relay (300000 bytes, limit 262144)." {
		t.Fatalf("frame message = %q", frame)
	}
	object := Localize(ObjectTooLarge("m1", 300000, 258048), "en-US")
	if object != "Object m1 is too large to share with collaborators (300000 bytes, limit 258048)." {
		t.Fatalf("object message = %q", object)
	}
	if scene := Localize(PayloadTooLarge(10, 5), "en-US"); scene == frame {
		t.Fatalf("scene and frame messages are both %q", scene)
	}
}
