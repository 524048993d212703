package model

// MotionSource indicates how a platform's motion is determined.
type MotionSource int

const (
	MotionSourceStatic     MotionSource = iota
	MotionSourceCircular                // prescribed uniform circular motion
	MotionSourceSpacetrack              // TLE-based orbit propagation
)

// PlatformKind is a coarse classification of a relay platform.
type PlatformKind string

const (
	KindHAP            PlatformKind = "HAP"
	KindSatellite      PlatformKind = "SATELLITE"
	KindGroundTerminal PlatformKind = "GROUND_TERMINAL"
)

// Position is a point in the local scenario frame, metres. Z is height
// above the ground plane.
type Position struct {
	X float64
	Y float64
	Z float64
}

// PlatformState holds the kinematic state of one relay platform. It is
// owned by the pointing tracker and mutated once per tick; everyone else
// reads it through CurrentPosition.
type PlatformState struct {
	ID   string
	Name string
	Kind PlatformKind

	Coordinates Position
	Velocity    Position

	MotionSource MotionSource

	// Circular-motion parameters; meaningful when MotionSource is
	// MotionSourceCircular.
	OrbitRadiusM      float64
	AngularVelRadPerS float64

	// AltitudeM is the nominal height above ground, used by the
	// atmospheric-loss model. For circular motion it also pins Z.
	AltitudeM float64
}

// CurrentPosition returns the platform's position as of the last motion
// update.
func (p *PlatformState) CurrentPosition() Position {
	return p.Coordinates
}
