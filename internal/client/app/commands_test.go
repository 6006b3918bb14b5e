package app

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/selight/designo/internal/client/session"
	"github.com/selight/designo/internal/platform/clock"
	"github.com/selight/designo/internal/scene/domain"
	"github.com/selight/designo/internal/services/scene/storage"
)

type memoryGateway struct {
	docs map[string]domain.Document
	now  time.Time
}

func newMemoryGateway() *memoryGateway {
	return &memoryGateway{docs: map[string]domain.Document{}, now: time.Unix(1700000000, 0)}
}

func (g *memoryGateway) Load(_ context.Context, projectID string) (domain.Document, error) {
	doc, ok := g.docs[projectID]
	if !ok {
		return domain.Document{}, storage.ErrNotFound
	}
	return doc.Clone(), nil
}

func (g *memoryGateway) Save(_ context.Context, projectID string, patch storage.Patch) (domain.Document, error) {
	current, found := g.docs[projectID]
	g.now = g.now.Add(time.Second)
	doc, _, err := storage.Apply(current, found, projectID, patch, g.now)
	if err != nil {
		return domain.Document{}, err
	}
	g.docs[projectID] = doc
	return doc.Clone(), nil
}

type failingGateway struct{}

func (failingGateway) Load(context.Context, string) (domain.Document, error) {
	return domain.Document{}, storage.ErrUnavailable
}

func (failingGateway) Save(context.Context, string, storage.Patch) (domain.Document, error) {
	return domain.Document{}, storage.ErrUnavailable
}

var offline = session.DialerFunc(func(context.Context) (session.Conn, error) {
	return nil, errors.New("offline")
})

func newOfflineClient(t *testing.T, gateway storage.Gateway, out *bytes.Buffer) (*Client, *clock.Manual) {
	t.Helper()
	manual := clock.NewManual(time.Unix(0, 0))
	c, err := New(context.Background(), Config{
		ProjectID:   "p1",
		DisplayName: "Ana",
		Gateway:     gateway,
		Dialer:      offline,
		Clock:       manual,
		Output:      out,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c, manual
}

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if _, err := New(ctx, Config{Gateway: newMemoryGateway(), Dialer: offline}); !errors.Is(err, storage.ErrInvalidArgument) {
		t.Fatalf("error = %v, want %v", err, storage.ErrInvalidArgument)
	}
	if _, err := New(ctx, Config{ProjectID: "p1", Dialer: offline}); err == nil {
		t.Fatal("expected error without gateway")
	}
	if _, err := New(ctx, Config{ProjectID: "p1", Gateway: newMemoryGateway()}); err == nil {
		t.Fatal("expected error without dialer")
	}
}

func TestNewReportsLoadFailure(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	_, err := New(context.Background(), Config{ProjectID: "p1", Gateway: failingGateway{}, Dialer: offline, Output: &out})
	if !errors.Is(err, storage.ErrUnavailable) {
		t.Fatalf("error = %v, want %v", err, storage.ErrUnavailable)
	}
	if !strings.Contains(out.String(), "Could not load project p1") {
		t.Fatalf("output = %q, want load notice", out.String())
	}
}

func TestExecEditsOffline(t *testing.T) {
	t.Parallel()

	gateway := newMemoryGateway()
	var out bytes.Buffer
	c, manual := newOfflineClient(t, gateway, &out)
	ctx := context.Background()

	if err := c.exec(ctx, "add cube"); err != nil {
		t.Fatalf("add: %v", err)
	}
	stored := gateway.docs["p1"]
	if len(stored.Objects) != 1 {
		t.Fatalf("stored objects = %d, want 1", len(stored.Objects))
	}
	cubeID := stored.Objects[0].ID

	if err := c.exec(ctx, "drag translate 1 2 3"); err != nil {
		t.Fatalf("drag: %v", err)
	}
	if got := gateway.docs["p1"].Objects[0].Position; got != (domain.Vec3{1, 2, 3}) {
		t.Fatalf("position = %v, want [1 2 3]", got)
	}

	if err := c.exec(ctx, "dblclick "+cubeID+" 0 1 0 0 1 0"); err != nil {
		t.Fatalf("dblclick: %v", err)
	}
	if err := c.exec(ctx, "annotate   sand this   edge"); err != nil {
		t.Fatalf("annotate: %v", err)
	}
	stored = gateway.docs["p1"]
	if len(stored.Objects) != 2 || stored.Objects[1].Text != "sand this   edge" {
		t.Fatalf("stored = %+v, want annotation text", stored.Objects)
	}

	if err := c.exec(ctx, "rename "+cubeID+" Big Box"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if err := c.exec(ctx, "hide "+cubeID); err != nil {
		t.Fatalf("hide: %v", err)
	}
	stored = gateway.docs["p1"]
	obj, _ := stored.Object(cubeID)
	if obj.Name != "Big Box" || obj.Visible {
		t.Fatalf("object = %+v, want hidden Big Box", obj)
	}

	if err := c.exec(ctx, "click "+cubeID); err != nil {
		t.Fatalf("click: %v", err)
	}
	manual.Advance(time.Second)
	c.loop.Drain()
	if err := c.exec(ctx, "delete"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := len(gateway.docs["p1"].Objects); got != 0 {
		t.Fatalf("stored objects after cascade = %d, want 0", got)
	}

	if err := c.exec(ctx, "camera 0 5 10 0 0 0"); err != nil {
		t.Fatalf("camera: %v", err)
	}
	if err := c.exec(ctx, "settle"); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if gateway.docs["p1"].Camera == nil {
		t.Fatal("camera not persisted")
	}
}

func TestExecRejectsBadInput(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	c, _ := newOfflineClient(t, newMemoryGateway(), &out)
	ctx := context.Background()

	for _, line := range []string{
		"add pyramid",
		"add",
		"drag translate 1 2",
		"drag shear 1 2 3",
		"camera 1 2 3",
		"click a 1 2",
		"click a x y z",
		"annotate",
		"frobnicate",
	} {
		if err := c.exec(ctx, line); err == nil {
			t.Fatalf("exec(%q) succeeded, want error", line)
		}
	}
	if err := c.exec(ctx, "quit"); !errors.Is(err, errQuit) {
		t.Fatalf("quit error = %v, want %v", err, errQuit)
	}
	if err := c.exec(ctx, "   "); err != nil {
		t.Fatalf("blank line: %v", err)
	}
}

func TestExecListsScene(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	c, _ := newOfflineClient(t, newMemoryGateway(), &out)
	ctx := context.Background()

	if err := c.exec(ctx, `import chair {"vertices":[0,0,0]}`); err != nil {
		t.Fatalf("import: %v", err)
	}
	out.Reset()
	if err := c.exec(ctx, "ls"); err != nil {
		t.Fatalf("ls: %v", err)
	}
	if !strings.Contains(out.String(), `"chair"`) || !strings.Contains(out.String(), "mesh") {
		t.Fatalf("ls output = %q", out.String())
	}
}

func TestRestAfter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line string
		n    int
		want string
	}{
		{line: "annotate hello world", n: 1, want: "hello world"},
		{line: "edit id-1   spaced  text ", n: 2, want: "spaced  text"},
		{line: "annotate", n: 1, want: ""},
	}
	for _, tt := range tests {
		if got := restAfter(tt.line, tt.n); got != tt.want {
			t.Fatalf("restAfter(%q, %d) = %q, want %q", tt.line, tt.n, got, tt.want)
		}
	}
}

func TestRunEndsWhenInputExhausted(t *testing.T) {
	t.Parallel()

	gateway := newMemoryGateway()
	c, err := New(context.Background(), Config{
		ProjectID: "p1",
		Gateway:   gateway,
		Dialer:    offline,
		Input:     strings.NewReader("add sphere\nadd cone\n"),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := len(gateway.docs["p1"].Objects); got != 2 {
		t.Fatalf("stored objects = %d, want 2", got)
	}
}
