package world

import "math"

// Vec3 is a world-space position in game units.
type Vec3 struct {
	X, Y, Z float32
}

// Dist returns the Euclidean distance to other.
func (v Vec3) Dist(other Vec3) float32 {
	dx := float64(v.X - other.X)
	dy := float64(v.Y - other.Y)
	dz := float64(v.Z - other.Z)
	return float32(math.Sqrt(dx*dx + dy*dy + dz*dz))
}

// DistSq returns the squared distance, for comparisons that don't need the
// square root.
func (v Vec3) DistSq(other Vec3) float32 {
	dx := v.X - other.X
	dy := v.Y - other.Y
	dz := v.Z - other.Z
	return dx*dx + dy*dy + dz*dz
}
