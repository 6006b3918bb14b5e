// Package scenestore parses scene store flags and launches the service.
package scenestore

import (
	"context"
	"flag"

	entrypoint "github.com/selight/designo/internal/platform/cmd"
	server "github.com/selight/designo/internal/services/scene/app"
)

// Config holds scene store command configuration.
type Config struct {
	Port int `env:"SCENESTORE_PORT" envDefault:"8092"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The scene store gRPC server port")
	if err := entrypoint.ParseArgs(fs, args, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the scene store gRPC service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceSceneStore, func(context.Context) error {
		return server.Run(ctx, cfg.Port)
	})
}
