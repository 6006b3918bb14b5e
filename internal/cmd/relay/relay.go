// Package relay parses relay command flags and composes transport entrypoints.
package relay

import (
	"context"
	"flag"
	"fmt"
	"time"

	entrypoint "github.com/selight/designo/internal/platform/cmd"
	"github.com/selight/designo/internal/scene/grant"
	server "github.com/selight/designo/internal/services/relay/app"
)

// Config holds relay command configuration.
type Config struct {
	HTTPAddr string `env:"RELAY_HTTP_ADDR" envDefault:":8095"`
	Verbose  bool   `env:"RELAY_VERBOSE"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "relay HTTP listen address")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "log every relayed frame")
	if err := entrypoint.ParseArgs(fs, args, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run builds the relay and serves WebSocket rooms.
func Run(ctx context.Context, cfg Config) error {
	grants, err := grant.LoadVerifierFromEnv(time.Now)
	if err != nil {
		return fmt.Errorf("load join grant config: %w", err)
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceRelay, func(context.Context) error {
		if err := server.Run(ctx, server.Config{
			HTTPAddr: cfg.HTTPAddr,
			Grants:   grants,
			Verbose:  cfg.Verbose,
		}); err != nil {
			return fmt.Errorf("serve relay: %w", err)
		}
		return nil
	})
}
