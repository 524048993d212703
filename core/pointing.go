package core

import (
	"context"
	"math"
	"time"

	"github.com/signalsfoundry/relay-link-sim/internal/logging"
	"github.com/signalsfoundry/relay-link-sim/model"
)

// PositionProvider yields a peer's current position. Moving peers are
// backed by a PlatformState; fixed ground terminals by a FixedPosition.
type PositionProvider interface {
	CurrentPosition() model.Position
}

// FixedPosition is a PositionProvider for a static point.
type FixedPosition model.Position

// CurrentPosition implements PositionProvider.
func (f FixedPosition) CurrentPosition() model.Position { return model.Position(f) }

// RadioFrontEnd is the narrow capability the tracker needs from whatever
// radio abstraction the host provides: it accepts updated transmit and
// receive gains. The tracker never learns anything else about the device.
type RadioFrontEnd interface {
	SetGainDbi(txDbi, rxDbi float64)
}

// FrontEndFunc adapts a plain function to the RadioFrontEnd interface.
type FrontEndFunc func(txDbi, rxDbi float64)

// SetGainDbi implements RadioFrontEnd.
func (f FrontEndFunc) SetGainDbi(txDbi, rxDbi float64) { f(txDbi, rxDbi) }

// GainRecorder receives the gain applied to each link every tick; the
// observability layer implements it to export gauges. Optional.
type GainRecorder interface {
	RecordLinkGain(linkID string, gainDbi float64)
}

// TrackedLink is one configured link between the platform and a peer: the
// peer's position source, the antenna serving the link, and the front end
// the computed gain is pushed to.
type TrackedLink struct {
	ID       string
	Peer     PositionProvider
	Antenna  model.AntennaDescriptor
	FrontEnd RadioFrontEnd
}

// PointingTracker owns a platform's kinematic state and, once per tick,
// re-derives its velocity, recomputes the angle between the boresight
// view vector and each configured link, and applies the resulting
// directional gain to that link's radio front end.
//
// The tracker performs no I/O and never blocks; rescheduling is the
// host's job, which calls Advance from its tick callback.
type PointingTracker struct {
	platform  *model.PlatformState
	motion    MotionModel
	boresight PositionProvider
	links     []*TrackedLink

	log      logging.Logger
	recorder GainRecorder
}

// TrackerOption configures a PointingTracker.
type TrackerOption func(*PointingTracker)

// WithTrackerLogger attaches a structured logger.
func WithTrackerLogger(log logging.Logger) TrackerOption {
	return func(pt *PointingTracker) { pt.log = log }
}

// WithGainRecorder attaches a per-link gain recorder.
func WithGainRecorder(r GainRecorder) TrackerOption {
	return func(pt *PointingTracker) { pt.recorder = r }
}

// NewPointingTracker builds a tracker for one platform. The boresight
// provider is the target the platform's view vector points at, typically
// the circle's centre for a nadir-pointing HAP.
func NewPointingTracker(platform *model.PlatformState, motion MotionModel, boresight PositionProvider, opts ...TrackerOption) *PointingTracker {
	pt := &PointingTracker{
		platform:  platform,
		motion:    motion,
		boresight: boresight,
		log:       logging.Noop(),
	}
	for _, opt := range opts {
		opt(pt)
	}
	return pt
}

// AddLink registers a link to steer. Links cannot be removed during a run.
func (pt *PointingTracker) AddLink(link *TrackedLink) {
	pt.links = append(pt.links, link)
}

// Platform exposes the tracked platform state for read-only use such as
// budget printouts.
func (pt *PointingTracker) Platform() *model.PlatformState {
	return pt.platform
}

// Advance performs one tick: motion update, view-vector recomputation,
// and per-link gain steering. It is a pure state transition driven by the
// host scheduler.
func (pt *PointingTracker) Advance(simTime time.Time, dt time.Duration) {
	pt.motion.UpdatePosition(simTime, dt, pt.platform)

	pos := FromPosition(pt.platform.Coordinates)
	view := FromPosition(pt.boresight.CurrentPosition()).Sub(pos)
	viewDegenerate := view.Norm() == 0

	for _, link := range pt.links {
		gain := 0.0
		switch {
		case link.Antenna.FixedOrientationDeg != nil:
			// The antenna is bolted at a fixed offset and never
			// tracks; its gain is constant over the whole run.
			angle := *link.Antenna.FixedOrientationDeg * math.Pi / 180
			gain = DirectionalGainDbi(angle, link.Antenna.MaxGainDbi, link.Antenna.BeamwidthExponent)
		default:
			linkVec := FromPosition(link.Peer.CurrentPosition()).Sub(pos)
			// Degenerate geometry (platform on top of the target or
			// the peer) cannot be pointed at; such links get 0 dBi
			// rather than a divide-by-zero.
			if !viewDegenerate && linkVec.Norm() != 0 {
				angle := AngleBetween(view, linkVec)
				gain = DirectionalGainDbi(angle, link.Antenna.MaxGainDbi, link.Antenna.BeamwidthExponent)
			}
		}

		link.FrontEnd.SetGainDbi(gain, gain)
		if pt.recorder != nil {
			pt.recorder.RecordLinkGain(link.ID, gain)
		}
	}

	pt.log.Debug(context.Background(), "pointing advanced",
		logging.String("platform", pt.platform.ID),
		logging.Any("x", pt.platform.Coordinates.X),
		logging.Any("y", pt.platform.Coordinates.Y),
		logging.Int("links", len(pt.links)),
	)
}

// SampleGeometry returns the current distance and angle-off-boresight for
// one link. The sample is ephemeral: it is a pure function of the two
// current positions and must be recomputed each tick.
func (pt *PointingTracker) SampleGeometry(link *TrackedLink) LinkGeometrySample {
	pos := FromPosition(pt.platform.Coordinates)
	peer := FromPosition(link.Peer.CurrentPosition())
	view := FromPosition(pt.boresight.CurrentPosition()).Sub(pos)

	return LinkGeometrySample{
		DistanceM:            pos.DistanceTo(peer),
		AngleOffBoresightRad: AngleBetween(view, peer.Sub(pos)),
	}
}
