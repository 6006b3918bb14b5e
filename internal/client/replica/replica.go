// Package replica holds a client's copy of the scene: the working document
// local interactions mutate and the snapshot last committed to the store.
// The gap between the two is the change set the next successful commit
// broadcasts.
//
// A Replica is not safe for concurrent use; the client event loop owns it.
package replica

import (
	"github.com/selight/designo/internal/scene/diff"
	"github.com/selight/designo/internal/scene/domain"
	"github.com/selight/designo/internal/scene/protocol"
)

// Replica pairs the working document with its committed baseline.
type Replica struct {
	working   domain.Document
	committed domain.Document
}

// New starts a replica whose working document and baseline both equal doc.
func New(doc domain.Document) *Replica {
	return &Replica{
		working:   doc.Clone(),
		committed: domain.Document{ID: doc.ID, Objects: domain.CloneObjects(doc.Objects)},
	}
}

// Document returns the working document. Callers mutate it in place.
func (r *Replica) Document() *domain.Document {
	return &r.working
}

// Pending is the diff between the baseline and the working objects.
func (r *Replica) Pending() diff.Changes {
	return diff.Compute(r.committed.Objects, r.working.Objects)
}

// Advance makes the working objects the new baseline.
func (r *Replica) Advance() {
	r.committed.Objects = domain.CloneObjects(r.working.Objects)
}

// ApplyRemote merges a change another session already committed. It lands
// on both the working document and the baseline so it is never echoed back
// by a later local commit. Adds of existing ids and updates of unknown ids
// are ignored; deletes cascade and are idempotent. It returns the ids
// removed from the working document and whether anything changed.
func (r *Replica) ApplyRemote(change protocol.ObjectChange) ([]string, bool) {
	switch change.Action {
	case protocol.ActionAdd:
		if change.Object == nil {
			return nil, false
		}
		obj := domain.Sanitize(nil, *change.Object)
		r.committed.Add(obj)
		return nil, r.working.Add(obj)
	case protocol.ActionUpdate:
		if change.Object == nil {
			return nil, false
		}
		replaceSanitized(&r.committed, *change.Object)
		return nil, replaceSanitized(&r.working, *change.Object)
	case protocol.ActionDelete:
		id := change.TargetID()
		r.committed.Delete(id)
		removed := r.working.Delete(id)
		return removed, len(removed) > 0
	}
	return nil, false
}

// ApplyCamera replaces the working camera. Cameras are not part of the
// object baseline.
func (r *Replica) ApplyCamera(camera domain.Camera) bool {
	return r.working.SetCamera(camera)
}

func replaceSanitized(doc *domain.Document, next domain.Object) bool {
	previous, ok := doc.Object(next.ID)
	if !ok {
		return false
	}
	return doc.Replace(domain.Sanitize(&previous, next))
}
