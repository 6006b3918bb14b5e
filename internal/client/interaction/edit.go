package interaction

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/selight/designo/internal/client/session"
	apperrors "github.com/selight/designo/internal/platform/errors"
	"github.com/selight/designo/internal/platform/timeouts"
	"github.com/selight/designo/internal/scene/domain"
	"github.com/selight/designo/internal/scene/protocol"
	"github.com/selight/designo/internal/services/scene/storage"
)

// AddPrimitive adds a catalog primitive at the origin, selects it and
// commits. It returns the new object's id.
func (c *Controller) AddPrimitive(ctx context.Context, kind domain.Kind) (string, error) {
	objectID, err := c.newID()
	if err != nil {
		return "", fmt.Errorf("add primitive: %w", err)
	}
	obj, err := domain.NewPrimitive(kind, objectID)
	if err != nil {
		return "", err
	}
	c.replica.Document().Add(obj)
	c.selected = obj.ID
	return obj.ID, c.commit(ctx)
}

// ImportMesh adds a mesh object carrying an opaque geometry payload.
func (c *Controller) ImportMesh(ctx context.Context, name string, geometry json.RawMessage) (string, error) {
	objectID, err := c.newID()
	if err != nil {
		return "", fmt.Errorf("import mesh: %w", err)
	}
	obj := domain.Object{
		Type:     domain.TypeMesh,
		ID:       objectID,
		Name:     strings.TrimSpace(name),
		Visible:  true,
		Scale:    domain.Vec3{1, 1, 1},
		Geometry: geometry,
	}
	err = domain.Validate(obj)
	if err == nil {
		err = protocol.CheckObject(obj)
	}
	if err != nil {
		c.notify("notices.import_failed", true, map[string]string{
			"Name":   obj.Name,
			"Reason": apperrors.Localize(err, c.locale),
		})
		return "", err
	}
	c.replica.Document().Add(obj)
	c.selected = obj.ID
	return obj.ID, c.commit(ctx)
}

// PlaceAnnotation consumes the open intent and anchors an annotation with
// text at its surface point. Focus moves to the new annotation.
func (c *Controller) PlaceAnnotation(ctx context.Context, text string) (string, error) {
	if c.intent == nil {
		return "", ErrNoAnnotationIntent
	}
	intent := *c.intent
	c.intent = nil
	if !c.exists(intent.TargetObjectID) {
		c.focus = ""
		c.render()
		return "", fmt.Errorf("place annotation on %s: %w", intent.TargetObjectID, ErrUnknownObject)
	}
	objectID, err := c.newID()
	if err != nil {
		return "", fmt.Errorf("place annotation: %w", err)
	}
	normal := intent.Normal
	obj := domain.Sanitize(nil, domain.Object{
		Type:           domain.TypeAnnotation,
		ID:             objectID,
		Name:           "Annotation",
		Visible:        true,
		Position:       intent.Point,
		Scale:          domain.Vec3{1, 1, 1},
		Text:           text,
		Normal:         &normal,
		TargetObjectID: intent.TargetObjectID,
	})
	c.replica.Document().Add(obj)
	c.focus = obj.ID
	return obj.ID, c.commit(ctx)
}

// CancelAnnotation drops the open intent.
func (c *Controller) CancelAnnotation() {
	if c.intent == nil {
		return
	}
	c.intent = nil
	c.focus = ""
	c.render()
}

// EditAnnotation replaces an annotation's text.
func (c *Controller) EditAnnotation(ctx context.Context, annotationID, text string) error {
	return c.update(ctx, annotationID, func(obj *domain.Object) error {
		if obj.Type != domain.TypeAnnotation {
			return fmt.Errorf("edit %s: not an annotation", obj.ID)
		}
		obj.Text = text
		return nil
	})
}

// SetVisible toggles an object's visibility.
func (c *Controller) SetVisible(ctx context.Context, objectID string, visible bool) error {
	return c.update(ctx, objectID, func(obj *domain.Object) error {
		obj.Visible = visible
		return nil
	})
}

// Rename changes an object's display name.
func (c *Controller) Rename(ctx context.Context, objectID, name string) error {
	return c.update(ctx, objectID, func(obj *domain.Object) error {
		obj.Name = strings.TrimSpace(name)
		return nil
	})
}

func (c *Controller) update(ctx context.Context, objectID string, mutate func(*domain.Object) error) error {
	doc := c.replica.Document()
	obj, ok := doc.Object(objectID)
	if !ok {
		return fmt.Errorf("%s: %w", objectID, ErrUnknownObject)
	}
	next := obj.Clone()
	if err := mutate(&next); err != nil {
		return err
	}
	doc.Replace(next)
	return c.commit(ctx)
}

// DeleteSelected removes the selected object and its annotations in one
// mutation and commits. It is a no-op without a selection.
func (c *Controller) DeleteSelected(ctx context.Context) error {
	c.resolvePendingClick()
	if c.selected == "" {
		return nil
	}
	removed := c.replica.Document().Delete(c.selected)
	c.clearRemoved(removed)
	return c.commit(ctx)
}

// MoveCamera updates the local camera and schedules a coalesced broadcast.
func (c *Controller) MoveCamera(position, target domain.Vec3) error {
	camera := domain.Camera{Position: position, Target: target}
	if !c.replica.Document().SetCamera(camera) {
		return apperrors.New(apperrors.CodeInvalidCamera, "camera must be finite")
	}
	_ = c.session.SendCameraMove(position, target)
	c.render()
	return nil
}

// SettleCamera persists the current camera once movement stops.
func (c *Controller) SettleCamera(ctx context.Context) error {
	camera := c.replica.Document().Camera
	if camera == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeouts.Persist)
	defer cancel()
	saved := *camera
	if _, err := c.gateway.Save(ctx, c.projectID, storage.Patch{Camera: &saved}); err != nil {
		c.notify("notices.save_failed", true, map[string]string{"Reason": c.failureReason(err)})
		return err
	}
	return nil
}

// RemoteApplied reconciles controller state with a change another session
// made. Deleting the selected, focused or dragged object clears that state.
func (c *Controller) RemoteApplied(remote session.Remote) {
	if len(remote.Removed) > 0 {
		c.clearRemoved(remote.Removed)
	}
	if remote.Changed {
		c.render()
	}
}

func (c *Controller) clearRemoved(removed []string) {
	if slices.Contains(removed, c.selected) {
		c.selected = ""
	}
	if slices.Contains(removed, c.focus) {
		c.focus = ""
	}
	if c.intent != nil && slices.Contains(removed, c.intent.TargetObjectID) {
		c.intent = nil
	}
	if c.drag != nil && slices.Contains(removed, c.drag.objectID) {
		c.abortDrag()
	}
}
