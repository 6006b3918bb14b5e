// Package cmd holds the shared startup path of the designo binaries: env
// defaults, flag overrides and the telemetry-wrapped run loop.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/selight/designo/internal/platform/config"
	"github.com/selight/designo/internal/platform/otel"
)

const otelShutdownTimeout = 5 * time.Second

// Service identifiers used as the telemetry service name.
const (
	ServiceRelay      = "relay"
	ServiceSceneStore = "scenestore"
	ServiceClient     = "client"
)

// ParseConfig loads environment defaults into cfg.
func ParseConfig[T any](cfg *T) error {
	if cfg == nil {
		return errors.New("config target is required")
	}
	return config.ParseEnv(cfg)
}

// ParseArgs parses command-line flags. The env structs, when given, are
// listed after the flag defaults in -h output together with the tracing
// variables.
func ParseArgs(fs *flag.FlagSet, args []string, env ...any) error {
	if fs == nil {
		return errors.New("flag parser is required")
	}
	if len(env) > 0 {
		fs.Usage = func() {
			out := fs.Output()
			fmt.Fprintf(out, "Usage of %s:\n", fs.Name())
			fs.PrintDefaults()
			writeEnvUsage(out, append(env, &otel.Config{}))
		}
	}
	if args == nil {
		args = []string{}
	}
	return fs.Parse(args)
}

func writeEnvUsage(w io.Writer, targets []any) {
	fmt.Fprintln(w, "\nEnvironment:")
	for _, target := range targets {
		vars, err := config.Variables(target)
		if err != nil {
			fmt.Fprintf(w, "  %v\n", err)
			continue
		}
		for _, v := range vars {
			switch {
			case v.Required:
				fmt.Fprintf(w, "  %s (required)\n", v.Name)
			case v.Default != "":
				fmt.Fprintf(w, "  %s (default %q)\n", v.Name, v.Default)
			default:
				fmt.Fprintf(w, "  %s\n", v.Name)
			}
		}
	}
}

// RunWithTelemetry configures tracing for service and runs it until run
// returns. Telemetry is flushed on the way out even when ctx is already done.
func RunWithTelemetry(ctx context.Context, service string, run func(context.Context) error) error {
	service = strings.TrimSpace(service)
	if service == "" {
		return fmt.Errorf("service name is required")
	}
	if run == nil {
		return fmt.Errorf("run function is required")
	}
	shutdown, err := otel.Setup(ctx, service)
	if err != nil {
		return fmt.Errorf("%s telemetry: %w", service, err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), otelShutdownTimeout)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Printf("%s otel shutdown: %v", service, err)
		}
	}()
	return run(ctx)
}
