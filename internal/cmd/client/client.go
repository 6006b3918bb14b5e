// Package client parses headless client flags and connects it to the scene
// store and the relay.
package client

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/selight/designo/internal/client/app"
	"github.com/selight/designo/internal/client/session"
	entrypoint "github.com/selight/designo/internal/platform/cmd"
	platformgrpc "github.com/selight/designo/internal/platform/grpc"
	"github.com/selight/designo/internal/platform/timeouts"
	"github.com/selight/designo/internal/scene/grant"
	"github.com/selight/designo/internal/services/scene/api/grpc/scene"
	"github.com/selight/designo/internal/services/scene/storage"
)

// Config holds client command configuration.
type Config struct {
	RelayURL       string `env:"CLIENT_RELAY_URL"       envDefault:"ws://localhost:8095/ws"`
	SceneStoreAddr string `env:"CLIENT_SCENESTORE_ADDR" envDefault:"localhost:8092"`
	ProjectID      string `env:"CLIENT_PROJECT"`
	DisplayName    string `env:"CLIENT_DISPLAY_NAME"`
	DisplayColor   string `env:"CLIENT_DISPLAY_COLOR"`
	UserID         string `env:"CLIENT_USER_ID"`
	Locale         string `env:"CLIENT_LOCALE"          envDefault:"en-US"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.RelayURL, "relay-url", cfg.RelayURL, "relay WebSocket URL")
	fs.StringVar(&cfg.SceneStoreAddr, "scenestore-addr", cfg.SceneStoreAddr, "scene store gRPC address")
	fs.StringVar(&cfg.ProjectID, "project", cfg.ProjectID, "project to edit")
	fs.StringVar(&cfg.DisplayName, "name", cfg.DisplayName, "display name shown to collaborators")
	fs.StringVar(&cfg.DisplayColor, "color", cfg.DisplayColor, "display color as #rrggbb")
	fs.StringVar(&cfg.UserID, "user-id", cfg.UserID, "stable user id for join grants")
	fs.StringVar(&cfg.Locale, "locale", cfg.Locale, "locale for notices")
	if err := entrypoint.ParseArgs(fs, args, &cfg); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return Config{}, errors.New("project is required")
	}
	return cfg, nil
}

// Run dials the scene store, then runs the console client against the relay.
func Run(ctx context.Context, cfg Config) error {
	issuer, err := grant.LoadIssuerFromEnv(time.Now)
	if err != nil {
		return fmt.Errorf("load join grant config: %w", err)
	}
	joinGrant, err := issueGrant(cfg, issuer)
	if err != nil {
		return err
	}

	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceClient, func(context.Context) error {
		logf := func(format string, args ...any) {
			log.Printf("scenestore %s", fmt.Sprintf(format, args...))
		}
		conn, err := platformgrpc.Dial(ctx, platformgrpc.DialConfig{
			Addr:            cfg.SceneStoreAddr,
			Service:         scene.ServiceName,
			Timeout:         timeouts.GRPCDial,
			MaxMessageBytes: storage.MaxDocumentBytes + 1<<20,
			Logf:            logf,
		})
		if err != nil {
			return fmt.Errorf("dial scene store %s: %w", cfg.SceneStoreAddr, err)
		}
		defer conn.Close()

		client, err := app.New(ctx, app.Config{
			ProjectID:    cfg.ProjectID,
			DisplayName:  cfg.DisplayName,
			DisplayColor: cfg.DisplayColor,
			UserID:       cfg.UserID,
			Grant:        joinGrant,
			Locale:       cfg.Locale,
			Gateway:      scene.NewClient(conn, cfg.Locale),
			Dialer:       session.WebSocketDialer{URL: cfg.RelayURL},
			Input:        os.Stdin,
			Output:       os.Stdout,
		})
		if err != nil {
			return err
		}
		return client.Run(ctx)
	})
}

// issueGrant signs a join grant when a private key is configured.
func issueGrant(cfg Config, issuer grant.IssuerConfig) (string, error) {
	if !issuer.Enabled() {
		return "", nil
	}
	token, err := grant.Issue(grant.Subject{
		ProjectID:   strings.TrimSpace(cfg.ProjectID),
		UserID:      cfg.UserID,
		DisplayName: cfg.DisplayName,
	}, issuer)
	if err != nil {
		return "", fmt.Errorf("issue join grant: %w", err)
	}
	return token, nil
}
