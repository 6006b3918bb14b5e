package domain

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Vec3 is a 3D vector. It encodes on the wire as [x, y, z].
type Vec3 = mgl64.Vec3

var (
	zeroVec = Vec3{0, 0, 0}
	unitVec = Vec3{1, 1, 1}
)

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Finite reports whether every component of v is finite.
func Finite(v Vec3) bool {
	return finite(v[0]) && finite(v[1]) && finite(v[2])
}

// coerce replaces each component rejected by ok with the matching component
// of fallback.
func coerce(next Vec3, fallback Vec3, ok func(float64) bool) Vec3 {
	out := next
	for i := range out {
		if !ok(out[i]) {
			out[i] = fallback[i]
		}
	}
	return out
}

func positiveFinite(v float64) bool {
	return finite(v) && v > 0
}
