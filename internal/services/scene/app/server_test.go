package server

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/selight/designo/internal/scene/domain"
	scenegrpc "github.com/selight/designo/internal/services/scene/api/grpc/scene"
	"github.com/selight/designo/internal/services/scene/storage"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

func TestServer_SaveAndLoadRoundTrip(t *testing.T) {
	for _, backend := range []string{"sqlite", "bbolt"} {
		t.Run(backend, func(t *testing.T) {
			t.Setenv("DESIGNO_SCENESTORE_BACKEND", backend)
			t.Setenv("DESIGNO_SCENESTORE_DB_PATH", filepath.Join(t.TempDir(), "nested", "scenes.db"))

			conn := startServer(t)
			health, err := grpc_health_v1.NewHealthClient(conn).Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: scenegrpc.ServiceName})
			if err != nil {
				t.Fatalf("health check: %v", err)
			}
			if health.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
				t.Fatalf("health = %v, want SERVING", health.GetStatus())
			}

			client := scenegrpc.NewClient(conn, "")
			title := "Garage"
			if _, err := client.Save(context.Background(), "proj", storage.Patch{Title: &title}); err != nil {
				t.Fatalf("save: %v", err)
			}
			doc, err := client.Load(context.Background(), "proj")
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if doc.Title != "Garage" || len(doc.Objects) != 0 {
				t.Fatalf("document = %+v", doc)
			}
			if _, err := client.Load(context.Background(), "other"); !errors.Is(err, storage.ErrNotFound) {
				t.Fatalf("load other = %v, want %v", err, storage.ErrNotFound)
			}
		})
	}
}

func TestServer_AcceptsLargeDocuments(t *testing.T) {
	t.Setenv("DESIGNO_SCENESTORE_DB_PATH", filepath.Join(t.TempDir(), "scenes.sqlite"))

	conn := startServer(t)
	client := scenegrpc.NewClient(conn, "")
	geometry := make([]byte, 0, 6<<20)
	geometry = append(geometry, '"')
	for len(geometry) < 6<<20 {
		geometry = append(geometry, 'v')
	}
	geometry = append(geometry, '"')
	objects := []domain.Object{{Type: domain.TypeMesh, ID: "m1", Visible: true, Scale: domain.Vec3{1, 1, 1}, Geometry: geometry}}
	if _, err := client.Save(context.Background(), "proj", storage.Patch{Objects: &objects}); err != nil {
		t.Fatalf("save large mesh: %v", err)
	}
}

func TestNewWithAddrRejectsUnknownBackend(t *testing.T) {
	t.Setenv("DESIGNO_SCENESTORE_BACKEND", "mongo")
	t.Setenv("DESIGNO_SCENESTORE_DB_PATH", filepath.Join(t.TempDir(), "scenes.db"))

	if _, err := NewWithAddr("127.0.0.1:0"); err == nil {
		t.Fatal("expected unknown backend error")
	}
}

func startServer(t *testing.T) *grpc.ClientConn {
	t.Helper()

	srv, err := NewWithAddr("127.0.0.1:0")
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- srv.Serve(runCtx)
	}()
	t.Cleanup(func() {
		runCancel()
		select {
		case serveErr := <-serveDone:
			if serveErr != nil {
				t.Fatalf("serve: %v", serveErr)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timeout waiting for server shutdown")
		}
	})

	conn, err := grpc.NewClient(
		srv.Addr(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(16<<20), grpc.MaxCallSendMsgSize(16<<20)),
	)
	if err != nil {
		t.Fatalf("dial scene server: %v", err)
	}
	t.Cleanup(func() {
		if closeErr := conn.Close(); closeErr != nil {
			t.Fatalf("close gRPC connection: %v", closeErr)
		}
	})
	return conn
}
