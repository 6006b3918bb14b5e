// Package diff computes the change set between two snapshots of a scene's
// object list.
package diff

import "github.com/selight/designo/internal/scene/domain"

// Changes is the {added, updated, removed} triple between two snapshots.
// Added and Updated carry the current objects; Removed carries ids.
type Changes struct {
	Added   []domain.Object
	Updated []domain.Object
	Removed []string
}

// Empty reports whether the snapshots were identical.
func (c Changes) Empty() bool {
	return len(c.Added) == 0 && len(c.Updated) == 0 && len(c.Removed) == 0
}

// Len is the number of changed objects.
func (c Changes) Len() int {
	return len(c.Added) + len(c.Updated) + len(c.Removed)
}

// Compute compares previous and current by object id. Added and Updated
// follow current's order and Removed follows previous's order. Objects present
// in both are compared structurally, so identical content never shows up as
// an update.
func Compute(previous, current []domain.Object) Changes {
	before := make(map[string]int, len(previous))
	for i := range previous {
		before[previous[i].ID] = i
	}
	seen := make(map[string]struct{}, len(current))

	var changes Changes
	for _, obj := range current {
		seen[obj.ID] = struct{}{}
		i, ok := before[obj.ID]
		switch {
		case !ok:
			changes.Added = append(changes.Added, obj.Clone())
		case !previous[i].Equal(obj):
			changes.Updated = append(changes.Updated, obj.Clone())
		}
	}
	for _, obj := range previous {
		if _, ok := seen[obj.ID]; !ok {
			changes.Removed = append(changes.Removed, obj.ID)
		}
	}
	return changes
}
