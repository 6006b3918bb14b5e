package domain

import (
	"time"
)

// Document is the shared state of one project.
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updatedAt"`
	Objects   []Object  `json:"objects"`
	Camera    *Camera   `json:"camera,omitempty"`
}

// Index returns the position of id in Objects, or -1.
func (d *Document) Index(id string) int {
	for i := range d.Objects {
		if d.Objects[i].ID == id {
			return i
		}
	}
	return -1
}

// Object returns the object with id.
func (d *Document) Object(id string) (Object, bool) {
	if i := d.Index(id); i >= 0 {
		return d.Objects[i], true
	}
	return Object{}, false
}

// Resolve follows an annotation's weak reference. A dangling reference
// reports false.
func (d *Document) Resolve(targetID string) (Object, bool) {
	if targetID == "" {
		return Object{}, false
	}
	return d.Object(targetID)
}

// Add appends obj unless an object with the same id exists. It reports
// whether the document changed.
func (d *Document) Add(obj Object) bool {
	if d.Index(obj.ID) >= 0 {
		return false
	}
	d.Objects = append(d.Objects, obj.Clone())
	return true
}

// Replace swaps the object sharing obj's id for obj. Unknown ids are ignored.
func (d *Document) Replace(obj Object) bool {
	i := d.Index(obj.ID)
	if i < 0 {
		return false
	}
	d.Objects[i] = obj.Clone()
	return true
}

// Delete removes id and every annotation targeting it in one mutation and
// returns the removed ids in document order. Deleting an absent id removes
// only the annotations still pointing at it.
func (d *Document) Delete(id string) []string {
	var removed []string
	kept := d.Objects[:0]
	for _, obj := range d.Objects {
		if obj.ID == id || (obj.Type == TypeAnnotation && obj.TargetObjectID == id) {
			removed = append(removed, obj.ID)
			continue
		}
		kept = append(kept, obj)
	}
	// Clear the tail so removed objects are not retained by the backing array.
	for i := len(kept); i < len(d.Objects); i++ {
		d.Objects[i] = Object{}
	}
	d.Objects = kept
	return removed
}

// Presentable returns the objects a renderer should draw: dangling
// annotations are filtered out but stay in the document.
func (d *Document) Presentable() []Object {
	out := make([]Object, 0, len(d.Objects))
	for _, obj := range d.Objects {
		if obj.Type == TypeAnnotation {
			if _, ok := d.Resolve(obj.TargetObjectID); !ok {
				continue
			}
		}
		out = append(out, obj)
	}
	return out
}

// SetCamera replaces the camera when c is valid.
func (d *Document) SetCamera(c Camera) bool {
	if !c.Valid() {
		return false
	}
	d.Camera = &c
	return true
}

// Touch advances UpdatedAt to max(now, UpdatedAt+1ms) so successive saves
// always move it forward.
func (d *Document) Touch(now time.Time) {
	next := d.UpdatedAt.Add(time.Millisecond)
	if now.After(next) {
		next = now
	}
	d.UpdatedAt = next.UTC()
}

// Clone returns a deep copy of d.
func (d Document) Clone() Document {
	out := d
	out.Objects = CloneObjects(d.Objects)
	if d.Camera != nil {
		c := *d.Camera
		out.Camera = &c
	}
	return out
}

// CloneObjects deep copies a list of objects. A nil list stays nil.
func CloneObjects(objects []Object) []Object {
	if objects == nil {
		return nil
	}
	out := make([]Object, len(objects))
	for i, obj := range objects {
		out[i] = obj.Clone()
	}
	return out
}
