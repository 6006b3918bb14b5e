package domain

import (
	"math"
	"reflect"
	"testing"
	"time"
)

func cube(id string) Object {
	return Object{Type: TypePrimitive, ID: id, Name: "Cube", Visible: true, Scale: Vec3{1, 1, 1}, Kind: KindCube}
}

func note(id, target string) Object {
	return Object{Type: TypeAnnotation, ID: id, Text: "look", TargetObjectID: target, Scale: Vec3{1, 1, 1}}
}

func TestAddIsNoOpForExistingID(t *testing.T) {
	t.Parallel()

	var doc Document
	if !doc.Add(cube("c1")) {
		t.Fatal("expected first add to change the document")
	}
	dup := cube("c1")
	dup.Name = "Other"
	if doc.Add(dup) {
		t.Fatal("expected duplicate add to be a no-op")
	}
	if len(doc.Objects) != 1 || doc.Objects[0].Name != "Cube" {
		t.Fatalf("objects = %+v, want single original cube", doc.Objects)
	}
}

func TestDeleteCascadesAnnotations(t *testing.T) {
	t.Parallel()

	doc := Document{Objects: []Object{cube("o"), note("a", "o"), cube("p"), note("b", "p")}}
	removed := doc.Delete("o")
	if !reflect.DeepEqual(removed, []string{"o", "a"}) {
		t.Fatalf("removed = %v, want [o a]", removed)
	}
	if _, ok := doc.Object("a"); ok {
		t.Fatal("annotation a should be gone with its target")
	}
	if len(doc.Objects) != 2 {
		t.Fatalf("objects = %d, want 2", len(doc.Objects))
	}
	if again := doc.Delete("o"); len(again) != 0 {
		t.Fatalf("second delete removed %v, want nothing", again)
	}
}

func TestDeleteAnnotationLeavesTarget(t *testing.T) {
	t.Parallel()

	doc := Document{Objects: []Object{cube("o"), note("a", "o")}}
	if removed := doc.Delete("a"); !reflect.DeepEqual(removed, []string{"a"}) {
		t.Fatalf("removed = %v, want [a]", removed)
	}
	if _, ok := doc.Object("o"); !ok {
		t.Fatal("target should survive deleting its annotation")
	}
}

func TestReplaceIgnoresUnknownID(t *testing.T) {
	t.Parallel()

	doc := Document{Objects: []Object{cube("c1")}}
	moved := cube("c1")
	moved.Position = Vec3{1, 0, 0}
	if !doc.Replace(moved) {
		t.Fatal("expected replace of existing id")
	}
	if doc.Objects[0].Position != (Vec3{1, 0, 0}) {
		t.Fatalf("position = %v", doc.Objects[0].Position)
	}
	if doc.Replace(cube("ghost")) {
		t.Fatal("expected replace of unknown id to be ignored")
	}
	if len(doc.Objects) != 1 {
		t.Fatalf("objects = %d, want 1", len(doc.Objects))
	}
}

func TestPresentableFiltersDanglingAnnotations(t *testing.T) {
	t.Parallel()

	doc := Document{Objects: []Object{cube("o"), note("a", "o"), note("d", "gone")}}
	var ids []string
	for _, obj := range doc.Presentable() {
		ids = append(ids, obj.ID)
	}
	if !reflect.DeepEqual(ids, []string{"o", "a"}) {
		t.Fatalf("presentable = %v, want [o a]", ids)
	}
	if len(doc.Objects) != 3 {
		t.Fatal("dangling annotation must stay in the document")
	}
	if _, ok := doc.Resolve("gone"); ok {
		t.Fatal("expected dangling reference not to resolve")
	}
}

func TestSetCameraRejectsNonFinite(t *testing.T) {
	t.Parallel()

	var doc Document
	if doc.SetCamera(Camera{Position: Vec3{math.NaN(), 0, 0}}) {
		t.Fatal("expected invalid camera to be rejected")
	}
	if doc.Camera != nil {
		t.Fatal("camera must stay absent")
	}
	if !doc.SetCamera(Camera{Position: Vec3{0, 5, 10}}) {
		t.Fatal("expected valid camera")
	}
}

func TestTouchIsMonotonic(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	doc := Document{UpdatedAt: start}
	doc.Touch(start.Add(-time.Hour))
	if want := start.Add(time.Millisecond); !doc.UpdatedAt.Equal(want) {
		t.Fatalf("updatedAt = %v, want %v", doc.UpdatedAt, want)
	}
	later := start.Add(time.Minute)
	doc.Touch(later)
	if !doc.UpdatedAt.Equal(later) {
		t.Fatalf("updatedAt = %v, want %v", doc.UpdatedAt, later)
	}
}

func TestDocumentCloneIsDeep(t *testing.T) {
	t.Parallel()

	doc := Document{ID: "p1", Objects: []Object{cube("c1")}, Camera: &Camera{Target: Vec3{1, 1, 1}}}
	clone := doc.Clone()
	clone.Objects[0].Name = "changed"
	clone.Camera.Target[0] = 9
	clone.Delete("c1")
	if doc.Objects[0].Name != "Cube" || doc.Camera.Target[0] != 1 {
		t.Fatalf("clone aliased original: %+v", doc)
	}
}
