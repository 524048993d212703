package core

import "math"

const (
	// mainLobeCosineFloor is the cos(theta) value below which the
	// cosine-power law is abandoned in favour of a flat noise floor,
	// avoiding the logarithm's singularity as cos(theta) approaches 0.
	// cos(theta) = 0.01 corresponds to roughly 84 degrees off boresight.
	mainLobeCosineFloor = 0.01

	// GainFloorDbi is the fixed gain reported outside the main lobe.
	GainFloorDbi = -20.0
)

// DirectionalGainDbi evaluates the cosine-power antenna approximation for
// an angle off boresight (radians), a peak gain (dBi) and a beamwidth
// exponent. Signal is assumed to fall entirely outside the main lobe once
// the angle reaches 90 degrees, so the cosine is floored at 0 before the
// noise-floor check.
func DirectionalGainDbi(angleRad, maxGainDbi, exponent float64) float64 {
	cos := math.Cos(angleRad)
	if cos < 0 {
		cos = 0
	}
	if cos < mainLobeCosineFloor {
		return GainFloorDbi
	}
	return maxGainDbi + 10*math.Log10(math.Pow(cos, exponent))
}
