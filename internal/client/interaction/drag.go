package interaction

import (
	"context"
	"fmt"

	"github.com/selight/designo/internal/scene/domain"
)

// Mode is the transform a drag edits.
type Mode int

const (
	ModeTranslate Mode = iota
	ModeRotate
	ModeScale
)

func (m Mode) String() string {
	switch m {
	case ModeTranslate:
		return "translate"
	case ModeRotate:
		return "rotate"
	case ModeScale:
		return "scale"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode maps a mode name to a Mode.
func ParseMode(name string) (Mode, error) {
	switch name {
	case "translate", "move":
		return ModeTranslate, nil
	case "rotate":
		return ModeRotate, nil
	case "scale":
		return ModeScale, nil
	}
	return 0, fmt.Errorf("unknown drag mode %q", name)
}

type dragState struct {
	mode     Mode
	objectID string
	original domain.Object
}

// BeginDrag starts editing the selected object's transform. A click still
// waiting for the double-click window is resolved first.
func (c *Controller) BeginDrag(mode Mode) error {
	c.resolvePendingClick()
	if c.state == StateDragging {
		return fmt.Errorf("begin drag: %s drag already in progress", c.drag.mode)
	}
	obj, ok := c.replica.Document().Object(c.selected)
	if !ok {
		return ErrNothingSelected
	}
	c.drag = &dragState{mode: mode, objectID: obj.ID, original: obj.Clone()}
	c.state = StateDragging
	return nil
}

// Drag applies delta to the dragged transform locally. Nothing is committed
// until EndDrag.
func (c *Controller) Drag(delta domain.Vec3) {
	if c.state != StateDragging || c.drag == nil {
		return
	}
	doc := c.replica.Document()
	current, ok := doc.Object(c.drag.objectID)
	if !ok {
		c.abortDrag()
		return
	}
	next := current.Clone()
	switch c.drag.mode {
	case ModeTranslate:
		next.Position = current.Position.Add(delta)
	case ModeRotate:
		next.Rotation = current.Rotation.Add(delta)
	case ModeScale:
		next.Scale = current.Scale.Add(delta)
	}
	doc.Replace(domain.Sanitize(&current, next))
	c.render()
}

// EndDrag commits the accumulated transform.
func (c *Controller) EndDrag(ctx context.Context) error {
	if c.state != StateDragging || c.drag == nil {
		return ErrNotDragging
	}
	c.drag = nil
	c.state = StateIdle
	return c.commit(ctx)
}

// CancelDrag restores the transform from before the drag.
func (c *Controller) CancelDrag() {
	if c.state != StateDragging || c.drag == nil {
		return
	}
	doc := c.replica.Document()
	if current, ok := doc.Object(c.drag.objectID); ok {
		current.Position = c.drag.original.Position
		current.Rotation = c.drag.original.Rotation
		current.Scale = c.drag.original.Scale
		doc.Replace(current)
	}
	c.abortDrag()
	c.render()
}

func (c *Controller) abortDrag() {
	c.drag = nil
	c.state = StateIdle
}
