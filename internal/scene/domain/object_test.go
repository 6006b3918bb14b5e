package domain

import (
	"encoding/json"
	"math"
	"testing"

	apperrors "github.com/selight/designo/internal/platform/errors"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		obj  Object
		ok   bool
	}{
		{"primitive", Object{Type: TypePrimitive, ID: "c1", Kind: KindCube}, true},
		{"missing id", Object{Type: TypePrimitive, Kind: KindCube}, false},
		{"unknown kind", Object{Type: TypePrimitive, ID: "c1", Kind: "torus"}, false},
		{"mesh", Object{Type: TypeMesh, ID: "m1", Geometry: json.RawMessage(`{"vertices":[0,1,2]}`)}, true},
		{"mesh without geometry", Object{Type: TypeMesh, ID: "m1"}, false},
		{"mesh with broken geometry", Object{Type: TypeMesh, ID: "m1", Geometry: json.RawMessage(`{`)}, false},
		{"annotation", Object{Type: TypeAnnotation, ID: "a1", TargetObjectID: "c1"}, true},
		{"annotation without target", Object{Type: TypeAnnotation, ID: "a1"}, false},
		{"unknown type", Object{Type: "light", ID: "l1"}, false},
	}
	for _, tc := range tests {
		err := Validate(tc.obj)
		if tc.ok && err != nil {
			t.Errorf("%s: Validate = %v, want nil", tc.name, err)
		}
		if !tc.ok {
			if err == nil {
				t.Errorf("%s: expected error", tc.name)
			} else if !apperrors.IsCode(err, apperrors.CodeInvalidObject) {
				t.Errorf("%s: code = %s, want %s", tc.name, apperrors.GetCode(err), apperrors.CodeInvalidObject)
			}
		}
	}
}

func TestSanitizeCoercesToPrevious(t *testing.T) {
	t.Parallel()

	prev := Object{ID: "c1", Position: Vec3{1, 2, 3}, Rotation: Vec3{0.1, 0.2, 0.3}, Scale: Vec3{2, 2, 2}}
	next := prev
	next.Position = Vec3{math.NaN(), 5, math.Inf(1)}
	next.Rotation = Vec3{math.Inf(-1), 0.5, 0.6}
	next.Scale = Vec3{0, -1, 4}

	got := Sanitize(&prev, next)
	if want := (Vec3{1, 5, 3}); got.Position != want {
		t.Fatalf("position = %v, want %v", got.Position, want)
	}
	if want := (Vec3{0.1, 0.5, 0.6}); got.Rotation != want {
		t.Fatalf("rotation = %v, want %v", got.Rotation, want)
	}
	if want := (Vec3{2, 2, 4}); got.Scale != want {
		t.Fatalf("scale = %v, want %v", got.Scale, want)
	}
}

func TestSanitizeWithoutPreviousUsesDefaults(t *testing.T) {
	t.Parallel()

	normal := Vec3{math.NaN(), 1, 0}
	got := Sanitize(nil, Object{
		ID:       "a1",
		Position: Vec3{math.NaN(), 0, 0},
		Scale:    Vec3{math.Inf(1), 0, 3},
		Normal:   &normal,
	})
	if got.Position != (Vec3{0, 0, 0}) {
		t.Fatalf("position = %v, want zero", got.Position)
	}
	if got.Scale != (Vec3{1, 1, 3}) {
		t.Fatalf("scale = %v, want [1 1 3]", got.Scale)
	}
	if got.Normal == nil || *got.Normal != (Vec3{0, 1, 0}) {
		t.Fatalf("normal = %v, want [0 1 0]", got.Normal)
	}
	if normal[0] == 0 {
		t.Fatal("sanitize must not write through the caller's normal")
	}
}

func TestEqualComparesGeometryStructurally(t *testing.T) {
	t.Parallel()

	a := Object{Type: TypeMesh, ID: "m1", Geometry: json.RawMessage(`{"a":1,"b":[1,2]}`)}
	b := Object{Type: TypeMesh, ID: "m1", Geometry: json.RawMessage(`{ "b": [1, 2], "a": 1 }`)}
	if !a.Equal(b) {
		t.Fatal("expected re-encoded geometry to compare equal")
	}
	c := b.Clone()
	c.Geometry = json.RawMessage(`{"a":1,"b":[2,1]}`)
	if a.Equal(c) {
		t.Fatal("expected different geometry to differ")
	}
}

func TestEqualComparesNormals(t *testing.T) {
	t.Parallel()

	n1 := Vec3{0, 1, 0}
	n2 := Vec3{0, 1, 0}
	a := Object{Type: TypeAnnotation, ID: "a1", TargetObjectID: "c1", Normal: &n1}
	b := Object{Type: TypeAnnotation, ID: "a1", TargetObjectID: "c1", Normal: &n2}
	if !a.Equal(b) {
		t.Fatal("expected equal normals behind different pointers to compare equal")
	}
	b.Normal = nil
	if a.Equal(b) {
		t.Fatal("expected nil normal to differ")
	}
}

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()

	normal := Vec3{0, 0, 1}
	orig := Object{Type: TypeMesh, ID: "m1", Geometry: json.RawMessage(`[1]`), Normal: &normal}
	clone := orig.Clone()
	clone.Geometry[0] = '{'
	clone.Normal[2] = 5
	if string(orig.Geometry) != "[1]" {
		t.Fatalf("geometry aliased: %s", orig.Geometry)
	}
	if normal[2] != 1 {
		t.Fatal("normal aliased")
	}
}

func TestObjectJSONShape(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(Object{Type: TypePrimitive, ID: "c1", Name: "Cube", Visible: true, Scale: Vec3{1, 1, 1}, Kind: KindCube})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"type":"primitive","id":"c1","name":"Cube","visible":true,"position":[0,0,0],"rotation":[0,0,0],"scale":[1,1,1],"kind":"cube"}`
	if string(data) != want {
		t.Fatalf("json = %s, want %s", data, want)
	}
}
