package core

import (
	"math"

	"github.com/signalsfoundry/relay-link-sim/model"
)

// Vec3 is a vector in the local scenario frame, metres.
type Vec3 struct {
	X, Y, Z float64
}

// FromPosition converts a model position into a Vec3.
func FromPosition(p model.Position) Vec3 {
	return Vec3{X: p.X, Y: p.Y, Z: p.Z}
}

// DistanceTo returns the straight-line distance between two points.
func (v Vec3) DistanceTo(other Vec3) float64 {
	dx := v.X - other.X
	dy := v.Y - other.Y
	dz := v.Z - other.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Dot returns the dot product of two vectors.
func (v Vec3) Dot(other Vec3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// AngleBetween returns the angle in radians between two vectors via the
// normalised dot product. The cosine is clamped to [-1, 1] before acos so
// floating-point rounding can never push it out of the domain. If either
// vector has zero length the angle is reported as 0.
func AngleBetween(a, b Vec3) float64 {
	na := a.Norm()
	nb := b.Norm()
	if na == 0 || nb == 0 {
		return 0
	}
	cos := a.Dot(b) / (na * nb)
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return math.Acos(cos)
}

// LinkGeometrySample is the ephemeral geometry between the platform and
// one peer at a single tick: straight-line distance and the angle between
// the platform's view vector and the direction to the peer. It is valid
// only for the tick it was computed at and is always recomputed from the
// current positions.
type LinkGeometrySample struct {
	DistanceM            float64
	AngleOffBoresightRad float64
}
