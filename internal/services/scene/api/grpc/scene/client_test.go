package scene

import (
	"context"
	"errors"
	"math"
	"net"
	"path/filepath"
	"testing"

	apperrors "github.com/selight/designo/internal/platform/errors"
	platformgrpc "github.com/selight/designo/internal/platform/grpc"
	"github.com/selight/designo/internal/scene/domain"
	"github.com/selight/designo/internal/services/scene/storage"
	scenebbolt "github.com/selight/designo/internal/services/scene/storage/bbolt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

func startSceneServer(t *testing.T, store storage.Gateway) *grpc.ClientConn {
	t.Helper()

	listener := bufconn.Listen(1 << 20)
	server := platformgrpc.NewServer(0, ServiceName)
	RegisterSceneStoreServer(server.GRPC, NewService(store))
	server.SetServing(true)
	go func() {
		_ = server.GRPC.Serve(listener)
	}()
	t.Cleanup(server.GRPC.Stop)

	conn, err := grpc.NewClient(
		"passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial scene server: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func openBoltStore(t *testing.T) *scenebbolt.Store {
	t.Helper()
	store, err := scenebbolt.Open(filepath.Join(t.TempDir(), "scenes.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestClientRoundTrip(t *testing.T) {
	client := NewClient(startSceneServer(t, openBoltStore(t)), "")
	ctx := context.Background()

	normal := domain.Vec3{0, 0, 1}
	objects := []domain.Object{
		{Type: domain.TypePrimitive, ID: "c1", Name: "Cube", Visible: true, Position: domain.Vec3{0.5, 1, -2}, Rotation: domain.Vec3{0, math.Pi / 2, 0}, Scale: domain.Vec3{1, 1, 1}, Kind: domain.KindCube},
		{Type: domain.TypeMesh, ID: "m1", Name: "Chair", Visible: false, Scale: domain.Vec3{1, 1, 1}, Geometry: []byte(`{"vertices":[0,0,0,1,0,0,0,1,0],"faces":[0,1,2]}`)},
		{Type: domain.TypeAnnotation, ID: "a1", Name: "Note", Visible: true, Scale: domain.Vec3{1, 1, 1}, Text: "sand this edge", Normal: &normal, TargetObjectID: "c1"},
	}
	saved, err := client.Save(ctx, "p1", storage.Patch{Objects: &objects})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := client.Load(ctx, "p1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !loaded.UpdatedAt.Equal(saved.UpdatedAt) {
		t.Fatalf("updatedAt = %v, want %v", loaded.UpdatedAt, saved.UpdatedAt)
	}
	if len(loaded.Objects) != len(objects) {
		t.Fatalf("objects = %d, want %d", len(loaded.Objects), len(objects))
	}
	for i := range objects {
		if !loaded.Objects[i].Equal(objects[i]) {
			t.Fatalf("object %d = %+v, want %+v", i, loaded.Objects[i], objects[i])
		}
	}

	camera := domain.Camera{Position: domain.Vec3{1, 2, 3}, Target: domain.Vec3{0, 0, 0}}
	if _, err := client.Save(ctx, "p1", storage.Patch{Camera: &camera}); err != nil {
		t.Fatalf("save camera: %v", err)
	}
	loaded, err = client.Load(ctx, "p1")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(loaded.Objects) != len(objects) {
		t.Fatalf("camera save dropped objects: %d", len(loaded.Objects))
	}
	if loaded.Camera == nil || *loaded.Camera != camera {
		t.Fatalf("camera = %+v, want %+v", loaded.Camera, camera)
	}
}

func TestClientMapsErrorsToStorageSentinels(t *testing.T) {
	client := NewClient(startSceneServer(t, openBoltStore(t)), "pt-BR")
	ctx := context.Background()

	if _, err := client.Load(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("load error = %v, want %v", err, storage.ErrNotFound)
	}

	invalid := []domain.Object{{Type: domain.TypeAnnotation, ID: "a1"}}
	_, err := client.Save(ctx, "p1", storage.Patch{Objects: &invalid})
	if !errors.Is(err, storage.ErrInvalidArgument) {
		t.Fatalf("save error = %v, want %v", err, storage.ErrInvalidArgument)
	}
	if !apperrors.IsCode(err, apperrors.CodeInvalidObject) {
		t.Fatalf("code = %s, want %s", apperrors.GetCode(err), apperrors.CodeInvalidObject)
	}
	if got := apperrors.GetMetadata(err)["ObjectID"]; got != "a1" {
		t.Fatalf("metadata ObjectID = %q, want %q", got, "a1")
	}

	if _, err := client.Save(ctx, " ", storage.Patch{}); !apperrors.IsCode(err, apperrors.CodeProjectIDRequired) {
		t.Fatalf("code = %s, want %s", apperrors.GetCode(err), apperrors.CodeProjectIDRequired)
	}
}

func TestClientRequiresConnection(t *testing.T) {
	var client *Client
	if _, err := client.Load(context.Background(), "p1"); err == nil {
		t.Fatal("expected error for nil client")
	}
}
