package core

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidInput marks link-budget computations rejected because of
// non-positive distance, frequency, or a negative altitude. Callers check
// it with errors.Is.
var ErrInvalidInput = errors.New("invalid link budget input")

// speedOfLight in metres per second, as used by the free-space reference
// term 20*log10(4*pi/c).
const speedOfLight = 2.998e8

// AtmosphericProfile is the immutable set of attenuation coefficients used
// for the layered atmospheric-loss model. Rates are dB/km; heights are
// metres above the ground plane.
type AtmosphericProfile struct {
	RainRateDbPerKm       float64
	OxygenRateDbPerKm     float64
	WaterVaporRateDbPerKm float64
	RainCloudHeightM      float64
	DenseAtmosphereM      float64
}

// PathDirection selects how the layered atmospheric loss is accumulated
// along the vertical path.
type PathDirection int

const (
	// PathUpward measures the path from the ground up to the platform:
	// each layer contributes min(altitude, ceiling). Used for
	// ground-to-platform links.
	PathUpward PathDirection = iota
	// PathDownward measures the remaining vertical extent above the
	// platform up to each layer ceiling: max(0, ceiling - altitude).
	// Used when the peer is above the platform (e.g. satellite-to-HAP).
	PathDownward
)

// FreeSpacePathLossDb returns the free-space path loss in dB for a
// distance in metres and a carrier frequency in Hz:
//
//	FSPL = 20 log10(d) + 20 log10(f) + 20 log10(4*pi/c)
func FreeSpacePathLossDb(distanceM, frequencyHz float64) (float64, error) {
	if distanceM <= 0 {
		return 0, fmt.Errorf("%w: distance %v m", ErrInvalidInput, distanceM)
	}
	if frequencyHz <= 0 {
		return 0, fmt.Errorf("%w: frequency %v Hz", ErrInvalidInput, frequencyHz)
	}
	return 20*math.Log10(distanceM) + 20*math.Log10(frequencyHz) + 20*math.Log10(4*math.Pi/speedOfLight), nil
}

// LossDb returns the total atmospheric loss in dB for a platform at the
// given altitude, accumulating rain loss inside the rain-cloud layer and
// gas (oxygen + water vapour) loss inside the dense lower atmosphere. The
// direction selects whether layer path lengths are measured from the
// ground up to the platform or from the platform up to each layer
// ceiling.
func (p AtmosphericProfile) LossDb(altitudeM float64, dir PathDirection) float64 {
	rainPathKm := p.layerPathKm(altitudeM, p.RainCloudHeightM, dir)
	gasPathKm := p.layerPathKm(altitudeM, p.DenseAtmosphereM, dir)

	rainLoss := p.RainRateDbPerKm * rainPathKm
	gasLoss := (p.OxygenRateDbPerKm + p.WaterVaporRateDbPerKm) * gasPathKm
	return rainLoss + gasLoss
}

func (p AtmosphericProfile) layerPathKm(altitudeM, ceilingM float64, dir PathDirection) float64 {
	switch dir {
	case PathDownward:
		if altitudeM >= ceilingM {
			return 0
		}
		return (ceilingM - altitudeM) / 1000.0
	default:
		return math.Min(altitudeM, ceilingM) / 1000.0
	}
}

// LinkBudgetInput collects everything needed for one link-budget
// evaluation. Gains are as applied at the radio front end at computation
// time; direction picks the atmospheric accumulation mode.
type LinkBudgetInput struct {
	DistanceM   float64
	FrequencyHz float64

	TxPowerDbm float64
	TxGainDbi  float64
	RxGainDbi  float64

	PlatformAltitudeM float64
	Atmosphere        AtmosphericProfile
	Direction         PathDirection
}

// LinkBudgetResult is a value: computed on demand, never mutated. Received
// power is reported in both dBW and dBm; interpreting it against a
// receiver sensitivity threshold is the caller's business.
type LinkBudgetResult struct {
	FsplDb            float64
	AtmosphericLossDb float64
	TotalPathLossDb   float64
	EirpDbw           float64
	ReceivedPowerDbw  float64
	ReceivedPowerDbm  float64
}

// ComputeLinkBudget evaluates the directional link budget:
//
//	EIRP (dBW)       = txPowerDbm - 30 + txGain
//	received (dBW)   = EIRP - (FSPL + atmospheric) + rxGain
//
// It rejects non-positive distance or frequency and negative altitude
// with ErrInvalidInput rather than returning NaN.
func ComputeLinkBudget(in LinkBudgetInput) (LinkBudgetResult, error) {
	fspl, err := FreeSpacePathLossDb(in.DistanceM, in.FrequencyHz)
	if err != nil {
		return LinkBudgetResult{}, err
	}
	if in.PlatformAltitudeM < 0 {
		return LinkBudgetResult{}, fmt.Errorf("%w: altitude %v m", ErrInvalidInput, in.PlatformAltitudeM)
	}

	atmo := in.Atmosphere.LossDb(in.PlatformAltitudeM, in.Direction)
	total := fspl + atmo
	eirp := in.TxPowerDbm - 30 + in.TxGainDbi
	rxDbw := eirp - total + in.RxGainDbi

	return LinkBudgetResult{
		FsplDb:            fspl,
		AtmosphericLossDb: atmo,
		TotalPathLossDb:   total,
		EirpDbw:           eirp,
		ReceivedPowerDbw:  rxDbw,
		ReceivedPowerDbm:  rxDbw + 30,
	}, nil
}
