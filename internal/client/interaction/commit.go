package interaction

import (
	"context"
	"errors"
	"log"
	"slices"

	apperrors "github.com/selight/designo/internal/platform/errors"
	"github.com/selight/designo/internal/platform/otel"
	"github.com/selight/designo/internal/platform/timeouts"
	"github.com/selight/designo/internal/scene/domain"
	"github.com/selight/designo/internal/scene/protocol"
	"github.com/selight/designo/internal/services/scene/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// commit persists the working objects and broadcasts what changed since the
// last successful commit. A failed save keeps the local edit and broadcasts
// nothing; the next successful commit carries the accumulated diff. Objects
// too large to relay are refused before saving so the store never holds
// what collaborators cannot receive.
func (c *Controller) commit(ctx context.Context) error {
	changes := c.replica.Pending()
	if changes.Empty() {
		c.render()
		return nil
	}
	for _, obj := range slices.Concat(changes.Added, changes.Updated) {
		if err := protocol.CheckObject(obj); err != nil {
			log.Printf("interaction: refuse commit %s: %v", c.projectID, err)
			c.notify("notices.save_failed", true, map[string]string{"Reason": c.failureReason(err)})
			c.render()
			return err
		}
	}

	ctx, span := otel.Tracer("designo/client").Start(ctx, "client.commit")
	defer span.End()
	span.SetAttributes(
		attribute.String("designo.project_id", c.projectID),
		attribute.Int("designo.changes", changes.Len()),
	)

	ctx, cancel := context.WithTimeout(ctx, timeouts.Persist)
	defer cancel()

	objects := domain.CloneObjects(c.replica.Document().Objects)
	if objects == nil {
		objects = []domain.Object{}
	}
	saved, err := c.gateway.Save(ctx, c.projectID, storage.Patch{Objects: &objects})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save failed")
		log.Printf("interaction: save %s: %v", c.projectID, err)
		c.notify("notices.save_failed", true, map[string]string{"Reason": c.failureReason(err)})
		c.render()
		return err
	}
	c.replica.Document().UpdatedAt = saved.UpdatedAt

	if err := c.session.SendChanges(changes); err != nil {
		log.Printf("interaction: broadcast %s: %v", c.projectID, err)
	}
	c.replica.Advance()
	c.render()
	return nil
}

// failureReason localizes a persistence error, including the plain storage
// errors a local gateway returns.
func (c *Controller) failureReason(err error) string {
	if apperrors.GetCode(err) != apperrors.CodeUnknown {
		return apperrors.Localize(err, c.locale)
	}
	var size *storage.SizeError
	switch {
	case errors.As(err, &size):
		err = apperrors.PayloadTooLarge(size.Size, size.Limit)
	case errors.Is(err, storage.ErrNotFound):
		err = apperrors.ProjectNotFound(c.projectID)
	case errors.Is(err, storage.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		err = apperrors.Wrap(apperrors.CodeStorageUnavailable, "scene storage unavailable", err)
	}
	return apperrors.Localize(err, c.locale)
}
