package core

import "sync"

// RadioLink is the runtime state of one configured RF link: its static
// radio parameters plus the directional gains most recently applied by
// the pointing tracker. It implements RadioFrontEnd so a tracker can
// steer it directly.
type RadioLink struct {
	ID               string
	FrequencyHz      float64
	TxPowerDbm       float64
	RxSensitivityDbm float64
	Direction        PathDirection

	mu        sync.RWMutex
	txGainDbi float64
	rxGainDbi float64
}

// SetGainDbi implements RadioFrontEnd.
func (l *RadioLink) SetGainDbi(txDbi, rxDbi float64) {
	l.mu.Lock()
	l.txGainDbi = txDbi
	l.rxGainDbi = rxDbi
	l.mu.Unlock()
}

// GainsDbi returns the transmit and receive gains currently applied.
func (l *RadioLink) GainsDbi() (txDbi, rxDbi float64) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.txGainDbi, l.rxGainDbi
}

// BudgetInput assembles a link-budget input from the link's parameters,
// its current gains, and the geometry sampled this tick.
func (l *RadioLink) BudgetInput(geom LinkGeometrySample, altitudeM float64, atmo AtmosphericProfile) LinkBudgetInput {
	tx, rx := l.GainsDbi()
	return LinkBudgetInput{
		DistanceM:         geom.DistanceM,
		FrequencyHz:       l.FrequencyHz,
		TxPowerDbm:        l.TxPowerDbm,
		TxGainDbi:         tx,
		RxGainDbi:         rx,
		PlatformAltitudeM: altitudeM,
		Atmosphere:        atmo,
		Direction:         l.Direction,
	}
}
