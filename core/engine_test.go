package core

import (
	"testing"
	"time"

	"github.com/signalsfoundry/relay-link-sim/model"
)

func TestRelayEngine_StepAdvancesTimeAndTrackers(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	engine := NewRelayEngine(start, nil)

	p := &model.PlatformState{
		ID:                "hap1",
		Coordinates:       model.Position{X: 5000, Y: 0, Z: 20000},
		AltitudeM:         20000,
		AngularVelRadPerS: 0.02,
	}
	tracker := NewPointingTracker(p, &CircularPathMotionModel{}, FixedPosition{})
	engine.AddTracker(tracker)

	var listenerTimes []time.Time
	engine.RegisterTickListener(func(simTime time.Time, dt time.Duration) {
		listenerTimes = append(listenerTimes, simTime)
	})

	engine.Run(3, time.Second)

	if engine.Ticks() != 3 {
		t.Errorf("expected 3 ticks, got %d", engine.Ticks())
	}
	if got := engine.SimTime(); !got.Equal(start.Add(3 * time.Second)) {
		t.Errorf("expected sim time %v, got %v", start.Add(3*time.Second), got)
	}
	if len(listenerTimes) != 3 {
		t.Fatalf("expected 3 listener calls, got %d", len(listenerTimes))
	}
	if !listenerTimes[0].Equal(start.Add(time.Second)) {
		t.Errorf("first listener call at %v, expected %v", listenerTimes[0], start.Add(time.Second))
	}
	if p.Coordinates.X == 5000 && p.Coordinates.Y == 0 {
		t.Errorf("tracker never advanced the platform")
	}
}

func TestRelayEngine_ListenersSeePostStepState(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	engine := NewRelayEngine(start, nil)

	p := &model.PlatformState{
		ID:                "hap1",
		Coordinates:       model.Position{X: 1000, Y: 0, Z: 100},
		AltitudeM:         100,
		AngularVelRadPerS: 0.1,
	}
	engine.AddTracker(NewPointingTracker(p, &CircularPathMotionModel{}, FixedPosition{}))

	var seenY float64
	engine.RegisterTickListener(func(time.Time, time.Duration) {
		seenY = p.Coordinates.Y
	})

	engine.Step(time.Second)

	if seenY != p.Coordinates.Y {
		t.Errorf("listener observed stale state: %v vs %v", seenY, p.Coordinates.Y)
	}
	if seenY == 0 {
		t.Errorf("listener ran before the tracker advanced")
	}
}
