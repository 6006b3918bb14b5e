package scene

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/selight/designo/internal/platform/errors"
	"github.com/selight/designo/internal/platform/timeouts"
	"github.com/selight/designo/internal/scene/domain"
	"github.com/selight/designo/internal/services/scene/storage"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client is a storage.Gateway backed by a remote scene.v1.SceneStore.
type Client struct {
	conn   grpc.ClientConnInterface
	locale string
}

// NewClient wraps conn. locale selects the language of error messages and
// may be empty.
func NewClient(conn grpc.ClientConnInterface, locale string) *Client {
	return &Client{conn: conn, locale: locale}
}

// Load fetches the stored document of projectID.
func (c *Client) Load(ctx context.Context, projectID string) (domain.Document, error) {
	if c == nil || c.conn == nil {
		return domain.Document{}, fmt.Errorf("scene client is not configured")
	}
	ctx, cancel := c.callContext(ctx)
	defer cancel()
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, loadSceneMethod, wrapperspb.String(projectID), out); err != nil {
		return domain.Document{}, fromStatus(err)
	}
	return documentFromStruct(out)
}

// Save sends patch for projectID and returns the stored document.
func (c *Client) Save(ctx context.Context, projectID string, patch storage.Patch) (domain.Document, error) {
	if c == nil || c.conn == nil {
		return domain.Document{}, fmt.Errorf("scene client is not configured")
	}
	in, err := toStruct(saveRequest{
		ProjectID: projectID,
		Title:     patch.Title,
		Objects:   patch.Objects,
		Camera:    patch.Camera,
	})
	if err != nil {
		return domain.Document{}, err
	}
	ctx, cancel := c.callContext(ctx)
	defer cancel()
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, saveSceneMethod, in, out); err != nil {
		return domain.Document{}, fromStatus(err)
	}
	return documentFromStruct(out)
}

// callContext attaches the locale and bounds calls whose caller set no
// deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = withOutgoingLocale(ctx, c.locale)
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeouts.GRPCRequest)
}

// fromStatus rebuilds the domain error of a failed call and joins it with
// the matching storage sentinel.
func fromStatus(err error) error {
	appErr := apperrors.FromGRPC(err)
	var sentinel error
	switch apperrors.GetCode(appErr) {
	case apperrors.CodeNotFound:
		sentinel = storage.ErrNotFound
	case apperrors.CodePayloadTooLarge:
		sentinel = storage.ErrPayloadTooLarge
	case apperrors.CodeProjectIDRequired, apperrors.CodeInvalidObject, apperrors.CodeInvalidCamera:
		sentinel = storage.ErrInvalidArgument
	case apperrors.CodeStorageUnavailable:
		sentinel = storage.ErrUnavailable
	}
	if sentinel == nil {
		return appErr
	}
	var domainErr *apperrors.Error
	if !errors.As(appErr, &domainErr) {
		return fmt.Errorf("%w: %v", sentinel, appErr)
	}
	return fmt.Errorf("%w: %w", sentinel, domainErr)
}

var _ storage.Gateway = (*Client)(nil)
