// Package server wires the scene store runtime and gRPC lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/selight/designo/internal/platform/config"
	platformgrpc "github.com/selight/designo/internal/platform/grpc"
	scenegrpc "github.com/selight/designo/internal/services/scene/api/grpc/scene"
	"github.com/selight/designo/internal/services/scene/storage"
	scenebbolt "github.com/selight/designo/internal/services/scene/storage/bbolt"
	scenesqlite "github.com/selight/designo/internal/services/scene/storage/sqlite"
	"google.golang.org/grpc"
)

const (
	backendSQLite = "sqlite"
	backendBBolt  = "bbolt"
)

type serverEnv struct {
	DBPath  string `env:"SCENESTORE_DB_PATH"`
	Backend string `env:"SCENESTORE_BACKEND" envDefault:"sqlite"`
}

func loadServerEnv() (serverEnv, error) {
	var cfg serverEnv
	if err := config.ParseEnv(&cfg); err != nil {
		return serverEnv{}, err
	}
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	if strings.TrimSpace(cfg.DBPath) == "" {
		name := "scenes.sqlite"
		if cfg.Backend == backendBBolt {
			name = "scenes.db"
		}
		cfg.DBPath = filepath.Join("data", name)
	}
	return cfg, nil
}

// gatewayCloser is a storage gateway that owns a database handle.
type gatewayCloser interface {
	storage.Gateway
	io.Closer
}

// Server hosts the scene gRPC API and storage lifecycle.
type Server struct {
	listener net.Listener
	server   *platformgrpc.Server
	store    gatewayCloser
}

// New creates a configured scene server listening on the provided port.
func New(port int) (*Server, error) {
	return NewWithAddr(fmt.Sprintf(":%d", port))
}

// NewWithAddr creates a configured scene server for the provided address.
func NewWithAddr(addr string) (*Server, error) {
	env, err := loadServerEnv()
	if err != nil {
		return nil, err
	}
	store, err := openSceneStore(env.Backend, env.DBPath)
	if err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	server := platformgrpc.NewServer(storage.MaxDocumentBytes+(1<<20), scenegrpc.ServiceName)
	scenegrpc.RegisterSceneStoreServer(server.GRPC, scenegrpc.NewService(store))
	server.SetServing(true)
	log.Printf("scenestore: %s backend at %s", env.Backend, env.DBPath)

	return &Server{
		listener: listener,
		server:   server,
		store:    store,
	}, nil
}

// Addr returns the listener address for the server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves a scene server until context cancellation.
func Run(ctx context.Context, port int) error {
	server, err := New(port)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve starts the gRPC server until context cancellation.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	log.Printf("scenestore: listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.server.GRPC.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		s.server.Health.Shutdown()
		s.server.GRPC.GracefulStop()
		err := <-serveErr
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	case err := <-serveErr:
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	}
}

// Close releases scene server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.server != nil {
		s.server.Health.Shutdown()
		s.server.GRPC.Stop()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("scenestore: close store: %v", err)
		}
	}
}

func openSceneStore(backend, path string) (gatewayCloser, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	switch backend {
	case backendSQLite:
		store, err := scenesqlite.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open scene sqlite store: %w", err)
		}
		return store, nil
	case backendBBolt:
		store, err := scenebbolt.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open scene bbolt store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown scene store backend %q", backend)
	}
}
