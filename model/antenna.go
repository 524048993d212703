package model

// AntennaDescriptor describes the antenna on one end of a link: the
// cosine-power approximation's peak gain and beamwidth exponent, plus an
// optional fixed azimuth (degrees) for antennas that are not steered by
// the pointing tracker.
//
// A pointer is used for FixedOrientationDeg to distinguish between unset
// (nil, antenna tracks the boresight target) and explicitly set to 0.
type AntennaDescriptor struct {
	MaxGainDbi          float64
	BeamwidthExponent   float64
	FixedOrientationDeg *float64
}
