package scene

import (
	"context"
	"strings"

	"google.golang.org/grpc/metadata"
)

// LocaleHeader is the gRPC metadata key naming the caller's locale. Error
// statuses carry a LocalizedMessage in that locale.
const LocaleHeader = "x-designo-locale"

func localeFromIncomingContext(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(LocaleHeader)
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

func withOutgoingLocale(ctx context.Context, locale string) context.Context {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, LocaleHeader, locale)
}
