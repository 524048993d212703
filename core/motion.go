package core

import (
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/relay-link-sim/model"
)

// MotionModel updates a platform's kinematic state for a given simulation
// time and tick length.
type MotionModel interface {
	UpdatePosition(simTime time.Time, dt time.Duration, p *model.PlatformState)
}

// StaticMotionModel leaves the platform's position unchanged.
type StaticMotionModel struct{}

// UpdatePosition for static motion only zeroes the velocity.
func (m *StaticMotionModel) UpdatePosition(simTime time.Time, dt time.Duration, p *model.PlatformState) {
	p.Velocity = model.Position{}
}

// CircularPathMotionModel implements prescribed uniform circular motion in
// the horizontal plane around the frame origin. The tangential velocity is
// re-derived every tick from the *current* position,
//
//	v = (-w*y, w*x, 0),
//
// rather than integrated independently, so the trajectory self-corrects
// and stays on the circle of the configured radius. Z is pinned to the
// platform's altitude.
type CircularPathMotionModel struct{}

// UpdatePosition derives the tangential velocity from the current position
// and advances the platform by one tick.
func (m *CircularPathMotionModel) UpdatePosition(simTime time.Time, dt time.Duration, p *model.PlatformState) {
	w := p.AngularVelRadPerS
	vx := -w * p.Coordinates.Y
	vy := w * p.Coordinates.X
	p.Velocity = model.Position{X: vx, Y: vy}

	s := dt.Seconds()
	p.Coordinates.X += vx * s
	p.Coordinates.Y += vy * s
	p.Coordinates.Z = p.AltitudeM
}

// OrbitalSGP4MotionModel uses a TLE and SGP4 to update platform position.
// It exists for scenarios whose backbone relay is a real satellite rather
// than a fixed point.
type OrbitalSGP4MotionModel struct {
	sat satellite.Satellite
}

// NewOrbitalModelFromTLE constructs an orbital model from TLE lines.
func NewOrbitalModelFromTLE(line1, line2 string) *OrbitalSGP4MotionModel {
	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS72)
	return &OrbitalSGP4MotionModel{sat: sat}
}

// UpdatePosition propagates the satellite to the given simulation time.
// go-satellite works in kilometres; the model stores metres.
func (m *OrbitalSGP4MotionModel) UpdatePosition(simTime time.Time, dt time.Duration, p *model.PlatformState) {
	year, month, day := simTime.Date()
	hour, min, sec := simTime.Clock()

	posECI, _ := satellite.Propagate(m.sat, year, int(month), day, hour, min, sec)
	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	gmst := satellite.ThetaG_JD(jd)
	posECEF := satellite.ECIToECEF(posECI, gmst)

	const kmToM = 1000.0
	p.Coordinates = model.Position{
		X: posECEF.X * kmToM,
		Y: posECEF.Y * kmToM,
		Z: posECEF.Z * kmToM,
	}
}

// NewMotionModel chooses the MotionModel matching the platform's declared
// motion source. Spacetrack platforms need non-empty TLE lines, otherwise
// they degrade to static.
func NewMotionModel(p *model.PlatformState, tle1, tle2 string) MotionModel {
	switch p.MotionSource {
	case model.MotionSourceCircular:
		return &CircularPathMotionModel{}
	case model.MotionSourceSpacetrack:
		if tle1 != "" && tle2 != "" {
			return NewOrbitalModelFromTLE(tle1, tle2)
		}
	}
	return &StaticMotionModel{}
}
