package core

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/relay-link-sim/internal/logging"
	"github.com/signalsfoundry/relay-link-sim/model"
)

// Duration wraps time.Duration so scenario files can say "100ms" or "2m".
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Scenario is the parsed and validated description of one run: the moving
// platform, its links, the atmospheric profile, and the network nodes
// whose traffic the flow tracker attributes.
type Scenario struct {
	Name      string        `yaml:"name"`
	StartTime time.Time     `yaml:"start_time"`
	Tick      Duration      `yaml:"tick"`
	RunFor    Duration      `yaml:"run_for"`
	Platform  PlatformSpec  `yaml:"platform"`
	Atmo      AtmoSpec      `yaml:"atmosphere"`
	Links     []LinkSpec    `yaml:"links"`
	Nodes     []NodeSpec    `yaml:"nodes"`
	Traffic   []TrafficSpec `yaml:"traffic"`
}

// PlatformSpec describes the relay platform and its motion.
type PlatformSpec struct {
	ID                string       `yaml:"id"`
	Kind              string       `yaml:"kind"`   // hap | satellite | ground
	Motion            string       `yaml:"motion"` // static | circular | spacetrack
	Start             PositionSpec `yaml:"start_position"`
	Boresight         PositionSpec `yaml:"boresight"`
	AltitudeM         float64      `yaml:"altitude_m"`
	OrbitRadiusM      float64      `yaml:"orbit_radius_m"`
	AngularVelRadPerS float64      `yaml:"angular_vel_rad_per_s"`
	TLELine1          string       `yaml:"tle_line1"`
	TLELine2          string       `yaml:"tle_line2"`
}

// PositionSpec is a point in the scenario frame, metres.
type PositionSpec struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

// AtmoSpec mirrors AtmosphericProfile in scenario-file field names.
type AtmoSpec struct {
	RainRateDbPerKm       float64 `yaml:"rain_rate_db_per_km"`
	OxygenRateDbPerKm     float64 `yaml:"oxygen_rate_db_per_km"`
	WaterVaporRateDbPerKm float64 `yaml:"water_vapor_rate_db_per_km"`
	RainCloudHeightM      float64 `yaml:"rain_cloud_height_m"`
	DenseAtmosphereM      float64 `yaml:"dense_atmosphere_m"`
}

// LinkSpec describes one RF link between the platform and a fixed peer.
type LinkSpec struct {
	ID               string       `yaml:"id"`
	PeerNode         string       `yaml:"peer_node"`
	PeerPosition     PositionSpec `yaml:"peer_position"`
	FrequencyHz      float64      `yaml:"frequency_hz"`
	TxPowerDbm       float64      `yaml:"tx_power_dbm"`
	RxSensitivityDbm float64      `yaml:"rx_sensitivity_dbm"`
	Direction        string       `yaml:"direction"` // up | down
	Antenna          AntennaSpec  `yaml:"antenna"`
}

// AntennaSpec describes the cosine-power antenna serving a link. A
// fixed orientation, when present, freezes the off-boresight angle
// instead of tracking the peer.
type AntennaSpec struct {
	MaxGainDbi          float64  `yaml:"max_gain_dbi"`
	BeamwidthExponent   float64  `yaml:"beamwidth_exponent"`
	FixedOrientationDeg *float64 `yaml:"fixed_orientation_deg"`
}

// NodeSpec names a network endpoint and its hardware address.
type NodeSpec struct {
	ID  string `yaml:"id"`
	MAC string `yaml:"mac"`
}

// TrafficSpec is one periodic unicast stream between two named nodes.
type TrafficSpec struct {
	From     string   `yaml:"from"`
	To       string   `yaml:"to"`
	Link     string   `yaml:"link"`
	Interval Duration `yaml:"interval"`
}

// LoadScenario decodes a YAML scenario from r and validates it. Structural
// errors and violated constraints both fail the load; a scenario that
// parses is safe to build an engine from.
func LoadScenario(r io.Reader) (*Scenario, error) {
	var scn Scenario
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&scn); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	if err := scn.validate(); err != nil {
		return nil, fmt.Errorf("validate scenario: %w", err)
	}
	return &scn, nil
}

func (s *Scenario) validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario has no name")
	}
	if s.Tick.Std() <= 0 {
		return fmt.Errorf("tick must be positive")
	}
	if s.RunFor.Std() <= 0 {
		return fmt.Errorf("run_for must be positive")
	}
	if s.Platform.ID == "" {
		return fmt.Errorf("platform has no id")
	}
	switch strings.ToLower(s.Platform.Motion) {
	case "static":
	case "circular":
		// The flight circle is implied by the start position; a declared
		// radius must agree with it or the scenario is self-contradictory.
		if s.Platform.OrbitRadiusM < 0 {
			return fmt.Errorf("platform %s: negative orbit radius", s.Platform.ID)
		}
		if s.Platform.OrbitRadiusM > 0 {
			startRadius := math.Hypot(s.Platform.Start.X, s.Platform.Start.Y)
			tol := 1e-6 * math.Max(1, s.Platform.OrbitRadiusM)
			if math.Abs(startRadius-s.Platform.OrbitRadiusM) > tol {
				return fmt.Errorf("platform %s: start_position radius %.3f m does not match orbit_radius_m %.3f m",
					s.Platform.ID, startRadius, s.Platform.OrbitRadiusM)
			}
		}
	case "spacetrack":
		if s.Platform.TLELine1 == "" || s.Platform.TLELine2 == "" {
			return fmt.Errorf("platform %s: spacetrack motion needs both TLE lines", s.Platform.ID)
		}
	default:
		return fmt.Errorf("platform %s: unknown motion %q", s.Platform.ID, s.Platform.Motion)
	}
	if s.Platform.AltitudeM < 0 {
		return fmt.Errorf("platform %s: negative altitude", s.Platform.ID)
	}

	if len(s.Links) == 0 {
		return fmt.Errorf("scenario has no links")
	}
	nodes := make(map[string]bool, len(s.Nodes))
	for _, n := range s.Nodes {
		if n.ID == "" || n.MAC == "" {
			return fmt.Errorf("node entries need both id and mac")
		}
		if nodes[n.ID] {
			return fmt.Errorf("duplicate node id %s", n.ID)
		}
		nodes[n.ID] = true
	}
	linkIDs := make(map[string]bool, len(s.Links))
	for _, l := range s.Links {
		if l.ID == "" {
			return fmt.Errorf("link with empty id")
		}
		if linkIDs[l.ID] {
			return fmt.Errorf("duplicate link id %s", l.ID)
		}
		linkIDs[l.ID] = true
		if l.FrequencyHz <= 0 {
			return fmt.Errorf("link %s: frequency must be positive", l.ID)
		}
		switch strings.ToLower(l.Direction) {
		case "", "up", "down":
		default:
			return fmt.Errorf("link %s: unknown direction %q", l.ID, l.Direction)
		}
		if l.PeerNode != "" && !nodes[l.PeerNode] {
			return fmt.Errorf("link %s: unknown peer node %s", l.ID, l.PeerNode)
		}
	}
	for _, t := range s.Traffic {
		if !nodes[t.From] || !nodes[t.To] {
			return fmt.Errorf("traffic %s->%s: unknown node", t.From, t.To)
		}
		if t.Link != "" && !linkIDs[t.Link] {
			return fmt.Errorf("traffic %s->%s: unknown link %s", t.From, t.To, t.Link)
		}
		if t.Interval.Std() <= 0 {
			return fmt.Errorf("traffic %s->%s: interval must be positive", t.From, t.To)
		}
	}
	return nil
}

// Atmosphere converts the file shape into the computation profile.
func (s *Scenario) Atmosphere() AtmosphericProfile {
	return AtmosphericProfile{
		RainRateDbPerKm:       s.Atmo.RainRateDbPerKm,
		OxygenRateDbPerKm:     s.Atmo.OxygenRateDbPerKm,
		WaterVaporRateDbPerKm: s.Atmo.WaterVaporRateDbPerKm,
		RainCloudHeightM:      s.Atmo.RainCloudHeightM,
		DenseAtmosphereM:      s.Atmo.DenseAtmosphereM,
	}
}

// PathDirectionOf maps a link's declared direction onto the atmospheric
// accumulation mode. The default is upward, the ground-to-platform case.
func PathDirectionOf(l LinkSpec) PathDirection {
	if strings.EqualFold(l.Direction, "down") {
		return PathDownward
	}
	return PathUpward
}

// platformState builds the initial kinematic state for the scenario's
// platform.
func (s *Scenario) platformState() *model.PlatformState {
	p := &model.PlatformState{
		ID:   s.Platform.ID,
		Name: s.Platform.ID,
		Coordinates: model.Position{
			X: s.Platform.Start.X,
			Y: s.Platform.Start.Y,
			Z: s.Platform.Start.Z,
		},
		AltitudeM:         s.Platform.AltitudeM,
		OrbitRadiusM:      s.Platform.OrbitRadiusM,
		AngularVelRadPerS: s.Platform.AngularVelRadPerS,
	}
	switch strings.ToLower(s.Platform.Kind) {
	case "satellite":
		p.Kind = model.KindSatellite
	case "ground":
		p.Kind = model.KindGroundTerminal
	default:
		p.Kind = model.KindHAP
	}
	switch strings.ToLower(s.Platform.Motion) {
	case "circular":
		p.MotionSource = model.MotionSourceCircular
		if p.OrbitRadiusM == 0 {
			p.OrbitRadiusM = math.Hypot(s.Platform.Start.X, s.Platform.Start.Y)
		}
	case "spacetrack":
		p.MotionSource = model.MotionSourceSpacetrack
	default:
		p.MotionSource = model.MotionSourceStatic
	}
	return p
}

// BuildResult is everything assembled from a scenario: the engine with its
// tracker wired, plus the per-link runtime handles keyed by link ID.
type BuildResult struct {
	Engine   *RelayEngine
	Tracker  *PointingTracker
	Radios   map[string]*RadioLink
	Links    map[string]*TrackedLink
	Platform *model.PlatformState
}

// BuildEngine turns a validated scenario into a runnable engine. The
// returned radios double as the tracker's front ends, so sampling their
// gains after any step yields the values applied that tick. The recorder
// may be nil.
func (s *Scenario) BuildEngine(log logging.Logger, recorder GainRecorder) *BuildResult {
	if log == nil {
		log = logging.Noop()
	}

	platform := s.platformState()
	motion := NewMotionModel(platform, s.Platform.TLELine1, s.Platform.TLELine2)
	boresight := FixedPosition{
		X: s.Platform.Boresight.X,
		Y: s.Platform.Boresight.Y,
		Z: s.Platform.Boresight.Z,
	}

	opts := []TrackerOption{WithTrackerLogger(log)}
	if recorder != nil {
		opts = append(opts, WithGainRecorder(recorder))
	}
	tracker := NewPointingTracker(platform, motion, boresight, opts...)

	radios := make(map[string]*RadioLink, len(s.Links))
	links := make(map[string]*TrackedLink, len(s.Links))
	for _, spec := range s.Links {
		radio := &RadioLink{
			ID:               spec.ID,
			FrequencyHz:      spec.FrequencyHz,
			TxPowerDbm:       spec.TxPowerDbm,
			RxSensitivityDbm: spec.RxSensitivityDbm,
			Direction:        PathDirectionOf(spec),
		}
		link := &TrackedLink{
			ID: spec.ID,
			Peer: FixedPosition{
				X: spec.PeerPosition.X,
				Y: spec.PeerPosition.Y,
				Z: spec.PeerPosition.Z,
			},
			Antenna: model.AntennaDescriptor{
				MaxGainDbi:          spec.Antenna.MaxGainDbi,
				BeamwidthExponent:   spec.Antenna.BeamwidthExponent,
				FixedOrientationDeg: spec.Antenna.FixedOrientationDeg,
			},
			FrontEnd: radio,
		}
		tracker.AddLink(link)
		radios[spec.ID] = radio
		links[spec.ID] = link
	}

	engine := NewRelayEngine(s.StartTime, log)
	engine.AddTracker(tracker)

	return &BuildResult{
		Engine:   engine,
		Tracker:  tracker,
		Radios:   radios,
		Links:    links,
		Platform: platform,
	}
}
