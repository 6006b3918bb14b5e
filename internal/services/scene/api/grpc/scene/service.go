package scene

import (
	"context"
	"errors"
	"log"
	"strings"

	apperrors "github.com/selight/designo/internal/platform/errors"
	"github.com/selight/designo/internal/services/scene/storage"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Service serves scene.v1.SceneStore from a storage gateway.
type Service struct {
	store storage.Gateway
}

// NewService creates a scene service backed by store.
func NewService(store storage.Gateway) *Service {
	return &Service{store: store}
}

// LoadScene returns the stored document of the requested project.
func (s *Service) LoadScene(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "load scene request is required")
	}
	if s == nil || s.store == nil {
		return nil, status.Error(codes.Internal, "scene store is not configured")
	}
	projectID := strings.TrimSpace(in.GetValue())

	doc, err := s.store.Load(ctx, projectID)
	if err != nil {
		return nil, storeError(ctx, "load", projectID, err)
	}
	out, err := toStruct(doc)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "load scene: %v", err)
	}
	return out, nil
}

// SaveScene merges the supplied fields into the project's document and
// returns the stored result.
func (s *Service) SaveScene(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "save scene request is required")
	}
	if s == nil || s.store == nil {
		return nil, status.Error(codes.Internal, "scene store is not configured")
	}
	var req saveRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "save scene: %v", err)
	}
	projectID := strings.TrimSpace(req.ProjectID)

	doc, err := s.store.Save(ctx, projectID, req.patch())
	if err != nil {
		return nil, storeError(ctx, "save", projectID, err)
	}
	out, err := toStruct(doc)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "save scene: %v", err)
	}
	return out, nil
}

// storeError converts a gateway error into a status with a localized message.
func storeError(ctx context.Context, op, projectID string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}

	locale := localeFromIncomingContext(ctx)
	var appErr *apperrors.Error
	var sizeErr *storage.SizeError
	switch {
	case errors.As(err, &appErr):
		return apperrors.HandleError(appErr, locale)
	case errors.Is(err, storage.ErrNotFound):
		return apperrors.HandleError(apperrors.ProjectNotFound(projectID), locale)
	case errors.As(err, &sizeErr):
		return apperrors.HandleError(apperrors.PayloadTooLarge(sizeErr.Size, sizeErr.Limit), locale)
	case errors.Is(err, storage.ErrUnavailable):
		return apperrors.HandleError(apperrors.Wrap(apperrors.CodeStorageUnavailable, err.Error(), err), locale)
	default:
		log.Printf("scenestore: %s scene %q: %v", op, projectID, err)
		return apperrors.HandleError(err, locale)
	}
}

var _ SceneStoreServer = (*Service)(nil)
