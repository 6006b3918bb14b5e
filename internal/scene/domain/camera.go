package domain

// Camera is the shared viewpoint. A document has a whole camera or none.
type Camera struct {
	Position Vec3 `json:"position"`
	Target   Vec3 `json:"target"`
}

// Valid reports whether every camera component is finite.
func (c Camera) Valid() bool {
	return Finite(c.Position) && Finite(c.Target)
}
