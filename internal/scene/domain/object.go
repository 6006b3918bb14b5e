package domain

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"

	apperrors "github.com/selight/designo/internal/platform/errors"
)

// Type discriminates the object variants.
type Type string

const (
	TypePrimitive  Type = "primitive"
	TypeMesh       Type = "mesh"
	TypeAnnotation Type = "annotation"
)

// Kind is the shape of a primitive object.
type Kind string

const (
	KindCube   Kind = "cube"
	KindSphere Kind = "sphere"
	KindCone   Kind = "cone"
)

// Valid reports whether k is a known primitive kind.
func (k Kind) Valid() bool {
	switch k {
	case KindCube, KindSphere, KindCone:
		return true
	}
	return false
}

// Object is one placeable entity of a scene. Variant fields are only
// meaningful for their Type:
//   - primitive: Kind
//   - mesh: Geometry, an opaque serialized payload
//   - annotation: Text, Normal and TargetObjectID
//
// TargetObjectID is a weak reference. The target may be absent, so callers
// resolve it through Document.Resolve.
type Object struct {
	Type     Type   `json:"type"`
	ID       string `json:"id"`
	Name     string `json:"name"`
	Visible  bool   `json:"visible"`
	Position Vec3   `json:"position"`
	Rotation Vec3   `json:"rotation"`
	Scale    Vec3   `json:"scale"`

	Kind Kind `json:"kind,omitempty"`

	Geometry json.RawMessage `json:"geometry,omitempty"`

	Text           string `json:"text,omitempty"`
	Normal         *Vec3  `json:"normal,omitempty"`
	TargetObjectID string `json:"targetObjectId,omitempty"`
}

// Validate rejects objects that cannot be represented in a document.
func Validate(obj Object) error {
	reason := ""
	switch {
	case strings.TrimSpace(obj.ID) == "":
		reason = "id is required"
	case obj.Type == TypePrimitive && !obj.Kind.Valid():
		reason = "unknown primitive kind " + string(obj.Kind)
	case obj.Type == TypeMesh && len(obj.Geometry) == 0:
		reason = "mesh geometry is required"
	case obj.Type == TypeMesh && !json.Valid(obj.Geometry):
		reason = "mesh geometry is not valid JSON"
	case obj.Type == TypeAnnotation && strings.TrimSpace(obj.TargetObjectID) == "":
		reason = "annotation target is required"
	case obj.Type != TypePrimitive && obj.Type != TypeMesh && obj.Type != TypeAnnotation:
		reason = "unknown object type " + string(obj.Type)
	}
	if reason == "" {
		return nil
	}
	return apperrors.InvalidObject(obj.ID, reason)
}

// Sanitize returns next with every non-finite transform component replaced by
// the matching component of previous, and every non-finite or non-positive
// scale component likewise. Without a previous object the defaults are 0 for
// position, rotation and normal, and 1 for scale.
func Sanitize(previous *Object, next Object) Object {
	position, rotation, scale := zeroVec, zeroVec, unitVec
	normal := zeroVec
	if previous != nil {
		position = coerce(previous.Position, zeroVec, finite)
		rotation = coerce(previous.Rotation, zeroVec, finite)
		scale = coerce(previous.Scale, unitVec, positiveFinite)
		if previous.Normal != nil {
			normal = coerce(*previous.Normal, zeroVec, finite)
		}
	}

	next.Position = coerce(next.Position, position, finite)
	next.Rotation = coerce(next.Rotation, rotation, finite)
	next.Scale = coerce(next.Scale, scale, positiveFinite)
	if next.Normal != nil {
		n := coerce(*next.Normal, normal, finite)
		next.Normal = &n
	}
	return next
}

// Clone returns a deep copy of o.
func (o Object) Clone() Object {
	out := o
	if o.Geometry != nil {
		out.Geometry = append(json.RawMessage(nil), o.Geometry...)
	}
	if o.Normal != nil {
		n := *o.Normal
		out.Normal = &n
	}
	return out
}

// Equal reports whether o and other carry the same content. Geometry
// payloads compare structurally, so re-encoded but identical meshes are equal.
func (o Object) Equal(other Object) bool {
	if o.Type != other.Type ||
		o.ID != other.ID ||
		o.Name != other.Name ||
		o.Visible != other.Visible ||
		o.Position != other.Position ||
		o.Rotation != other.Rotation ||
		o.Scale != other.Scale ||
		o.Kind != other.Kind ||
		o.Text != other.Text ||
		o.TargetObjectID != other.TargetObjectID {
		return false
	}
	if (o.Normal == nil) != (other.Normal == nil) {
		return false
	}
	if o.Normal != nil && *o.Normal != *other.Normal {
		return false
	}
	return geometryEqual(o.Geometry, other.Geometry)
}

func geometryEqual(a, b json.RawMessage) bool {
	if bytes.Equal(a, b) {
		return true
	}
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	var left, right any
	if err := json.Unmarshal(a, &left); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &right); err != nil {
		return false
	}
	return reflect.DeepEqual(left, right)
}
