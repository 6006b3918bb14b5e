// Package interaction turns pointer and command input into document edits.
// A Controller disambiguates single and double clicks, runs drags against
// the selected object and commits every finished edit: persist through the
// gateway, then broadcast the resulting diff.
//
// A Controller is not safe for concurrent use. Every method, timer callback
// included, must run on the client event loop.
package interaction

import (
	"errors"
	"fmt"
	"time"

	"github.com/selight/designo/internal/client/replica"
	"github.com/selight/designo/internal/client/session"
	"github.com/selight/designo/internal/platform/clock"
	"github.com/selight/designo/internal/platform/i18n/catalog"
	"github.com/selight/designo/internal/platform/id"
	"github.com/selight/designo/internal/scene/diff"
	"github.com/selight/designo/internal/scene/domain"
	"github.com/selight/designo/internal/services/scene/storage"
)

// DefaultDoubleClickWindow is how long a first click waits for a second.
const DefaultDoubleClickWindow = 300 * time.Millisecond

var (
	ErrNothingSelected    = errors.New("no object selected")
	ErrNotDragging        = errors.New("no drag in progress")
	ErrNoAnnotationIntent = errors.New("no annotation is being placed")
	ErrUnknownObject      = errors.New("unknown object")
)

// State is the pointer state machine.
type State int

const (
	StateIdle State = iota
	StatePendingSingleClick
	StateDragging
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePendingSingleClick:
		return "pending-single-click"
	case StateDragging:
		return "dragging"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Hit is the result of a pointer ray cast. An empty ObjectID means the
// click landed on empty space.
type Hit struct {
	ObjectID string
	Point    domain.Vec3
	Normal   domain.Vec3
}

// AnnotationIntent is an open request to place an annotation on a surface.
type AnnotationIntent struct {
	TargetObjectID string
	Point          domain.Vec3
	Normal         domain.Vec3
}

// Notice is a user-facing message. Blocking notices must be acknowledged.
type Notice struct {
	Key      string
	Message  string
	Blocking bool
}

// Notifier shows notices to the user.
type Notifier interface {
	Notify(notice Notice)
}

// View is what a renderer needs to draw the scene.
type View struct {
	State    State
	Objects  []domain.Object
	Camera   *domain.Camera
	Selected string
	Focus    string
	Intent   *AnnotationIntent
}

// Renderer redraws after every local or remote change.
type Renderer interface {
	Render(view View)
}

// Broadcaster sends committed changes to the other sessions.
type Broadcaster interface {
	SendChanges(changes diff.Changes) error
	SendCameraMove(position, target domain.Vec3) error
}

var _ Broadcaster = (*session.Session)(nil)

// Config wires a Controller.
type Config struct {
	ProjectID string
	Replica   *replica.Replica
	Gateway   storage.Gateway
	Session   Broadcaster
	// Clock must deliver timer callbacks on the event loop.
	Clock             clock.Clock
	Notifier          Notifier
	Renderer          Renderer
	Locale            string
	NewID             func() (string, error)
	DoubleClickWindow time.Duration
}

// Controller owns selection, annotation focus and drags for one client.
type Controller struct {
	projectID string
	replica   *replica.Replica
	gateway   storage.Gateway
	session   Broadcaster
	clock     clock.Clock
	notifier  Notifier
	renderer  Renderer
	locale    string
	newID     func() (string, error)
	window    time.Duration

	state      State
	pending    Hit
	clickTimer clock.Timer
	clickSeq   uint64

	selected string
	focus    string
	intent   *AnnotationIntent
	drag     *dragState
}

// New validates cfg and returns an idle controller.
func New(cfg Config) (*Controller, error) {
	if cfg.Replica == nil {
		return nil, errors.New("interaction: replica is required")
	}
	if cfg.Gateway == nil {
		return nil, errors.New("interaction: gateway is required")
	}
	if cfg.Session == nil {
		return nil, errors.New("interaction: session is required")
	}
	if cfg.Clock == nil {
		return nil, errors.New("interaction: clock is required")
	}
	if cfg.NewID == nil {
		cfg.NewID = id.NewID
	}
	if cfg.DoubleClickWindow <= 0 {
		cfg.DoubleClickWindow = DefaultDoubleClickWindow
	}
	return &Controller{
		projectID: cfg.ProjectID,
		replica:   cfg.Replica,
		gateway:   cfg.Gateway,
		session:   cfg.Session,
		clock:     cfg.Clock,
		notifier:  cfg.Notifier,
		renderer:  cfg.Renderer,
		locale:    catalog.Default().Resolve(cfg.Locale),
		newID:     cfg.NewID,
		window:    cfg.DoubleClickWindow,
	}, nil
}

// State returns the pointer state.
func (c *Controller) State() State { return c.state }

// Selected returns the selected object id, or "".
func (c *Controller) Selected() string { return c.selected }

// Focus returns the object whose annotation UI is focused, or "".
func (c *Controller) Focus() string { return c.focus }

// Intent returns a copy of the open annotation intent.
func (c *Controller) Intent() (AnnotationIntent, bool) {
	if c.intent == nil {
		return AnnotationIntent{}, false
	}
	return *c.intent, true
}

// View snapshots the presentable scene and the controller state.
func (c *Controller) View() View {
	doc := c.replica.Document()
	view := View{
		State:    c.state,
		Objects:  domain.CloneObjects(doc.Presentable()),
		Selected: c.selected,
		Focus:    c.focus,
	}
	if doc.Camera != nil {
		cam := *doc.Camera
		view.Camera = &cam
	}
	if c.intent != nil {
		intent := *c.intent
		view.Intent = &intent
	}
	return view
}

func (c *Controller) render() {
	if c.renderer != nil {
		c.renderer.Render(c.View())
	}
}

func (c *Controller) notify(key string, blocking bool, metadata map[string]string) {
	if c.notifier == nil {
		return
	}
	c.notifier.Notify(Notice{
		Key:      key,
		Message:  catalog.Default().Localize(c.locale, key, metadata),
		Blocking: blocking,
	})
}

func (c *Controller) exists(objectID string) bool {
	if objectID == "" {
		return false
	}
	_, ok := c.replica.Document().Object(objectID)
	return ok
}
