// Package storage defines the persistence gateway for scene documents and the
// save semantics shared by every backend.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/selight/designo/internal/platform/errors"
	"github.com/selight/designo/internal/scene/domain"
)

// MaxDocumentBytes caps the encoded size of one scene document.
const MaxDocumentBytes = 8 << 20

var (
	// ErrNotFound indicates the project has no saved scene.
	ErrNotFound = errors.New("scene not found")
	// ErrPayloadTooLarge indicates the saved document would exceed MaxDocumentBytes.
	ErrPayloadTooLarge = errors.New("scene payload too large")
	// ErrInvalidArgument indicates a malformed project id or patch.
	ErrInvalidArgument = errors.New("invalid scene argument")
	// ErrUnavailable indicates the backend could not serve the call right now.
	ErrUnavailable = errors.New("scene storage unavailable")
)

// SizeError reports an encoded document above the size limit. It matches
// ErrPayloadTooLarge with errors.Is.
type SizeError struct {
	Size  int
	Limit int
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("%v: %d bytes exceeds %d", ErrPayloadTooLarge, e.Size, e.Limit)
}

// Is reports whether target is ErrPayloadTooLarge.
func (e *SizeError) Is(target error) bool {
	return target == ErrPayloadTooLarge
}

// Patch lists the top-level document fields a save overwrites. Nil fields
// keep their stored value.
type Patch struct {
	Objects *[]domain.Object
	Camera  *domain.Camera
	Title   *string
}

// Empty reports whether the patch touches nothing.
func (p Patch) Empty() bool {
	return p.Objects == nil && p.Camera == nil && p.Title == nil
}

// Gateway loads and saves the authoritative scene document of a project.
type Gateway interface {
	Load(ctx context.Context, projectID string) (domain.Document, error)
	// Save creates the project when missing and overwrites only the fields
	// present in patch. It returns the stored document.
	Save(ctx context.Context, projectID string, patch Patch) (domain.Document, error)
}

// NormalizeProjectID trims and validates a project id.
func NormalizeProjectID(projectID string) (string, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return "", fmt.Errorf("%w: %w", ErrInvalidArgument, apperrors.New(apperrors.CodeProjectIDRequired, "project id is required"))
	}
	return projectID, nil
}

// Apply merges patch into current and stamps UpdatedAt. found is false when
// the project has no stored document yet. The result is validated, sanitized
// and checked against MaxDocumentBytes; its encoding is returned for backends
// that store the document whole.
func Apply(current domain.Document, found bool, projectID string, patch Patch, now time.Time) (domain.Document, []byte, error) {
	next := current.Clone()
	if !found {
		next = domain.Document{ID: projectID, Objects: []domain.Object{}}
	}
	next.ID = projectID

	if patch.Title != nil {
		next.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Camera != nil {
		if !patch.Camera.Valid() {
			return domain.Document{}, nil, fmt.Errorf("%w: %w", ErrInvalidArgument, apperrors.New(apperrors.CodeInvalidCamera, "camera is not finite"))
		}
		camera := *patch.Camera
		next.Camera = &camera
	}
	if patch.Objects != nil {
		objects, err := normalizeObjects(current.Objects, *patch.Objects)
		if err != nil {
			return domain.Document{}, nil, err
		}
		next.Objects = objects
	}

	next.Touch(now)
	next.UpdatedAt = next.UpdatedAt.Truncate(time.Millisecond)

	payload, err := Encode(next)
	if err != nil {
		return domain.Document{}, nil, err
	}
	return next, payload, nil
}

// Encode serializes doc and enforces MaxDocumentBytes.
func Encode(doc domain.Document) ([]byte, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode scene: %w", err)
	}
	if len(payload) > MaxDocumentBytes {
		return nil, &SizeError{Size: len(payload), Limit: MaxDocumentBytes}
	}
	return payload, nil
}

// Decode parses a stored document.
func Decode(payload []byte) (domain.Document, error) {
	var doc domain.Document
	if err := json.Unmarshal(payload, &doc); err != nil {
		return domain.Document{}, fmt.Errorf("decode scene: %w", err)
	}
	if doc.Objects == nil {
		doc.Objects = []domain.Object{}
	}
	return doc, nil
}

func normalizeObjects(previous []domain.Object, objects []domain.Object) ([]domain.Object, error) {
	prevByID := make(map[string]int, len(previous))
	for i := range previous {
		prevByID[previous[i].ID] = i
	}
	seen := make(map[string]struct{}, len(objects))
	out := make([]domain.Object, 0, len(objects))
	for _, obj := range objects {
		if err := domain.Validate(obj); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
		if _, dup := seen[obj.ID]; dup {
			return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, apperrors.InvalidObject(obj.ID, "duplicate id"))
		}
		seen[obj.ID] = struct{}{}
		var prev *domain.Object
		if i, ok := prevByID[obj.ID]; ok {
			prev = &previous[i]
		}
		out = append(out, domain.Sanitize(prev, obj.Clone()))
	}
	return out, nil
}
