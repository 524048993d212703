package core

import (
	"context"
	"time"

	"github.com/signalsfoundry/relay-link-sim/internal/logging"
)

// RelayEngine steps a set of pointing trackers through simulation time and
// notifies tick listeners after each step. It carries no scheduler of its
// own: either a tick controller or a discrete-event loop drives Step.
type RelayEngine struct {
	trackers      []*PointingTracker
	tickListeners []func(simTime time.Time, dt time.Duration)

	simTime time.Time
	ticks   uint64

	log logging.Logger
}

// NewRelayEngine builds an engine starting at the given simulation time.
func NewRelayEngine(start time.Time, log logging.Logger) *RelayEngine {
	if log == nil {
		log = logging.Noop()
	}
	return &RelayEngine{simTime: start, log: log}
}

// AddTracker registers a pointing tracker to advance each step.
func (e *RelayEngine) AddTracker(t *PointingTracker) {
	e.trackers = append(e.trackers, t)
}

// RegisterTickListener registers a callback invoked after every step, once
// all trackers have advanced. Listeners observe a consistent post-step
// state.
func (e *RelayEngine) RegisterTickListener(fn func(simTime time.Time, dt time.Duration)) {
	e.tickListeners = append(e.tickListeners, fn)
}

// Trackers returns the registered trackers.
func (e *RelayEngine) Trackers() []*PointingTracker { return e.trackers }

// SimTime returns the engine's current simulation time.
func (e *RelayEngine) SimTime() time.Time { return e.simTime }

// Ticks returns how many steps the engine has executed.
func (e *RelayEngine) Ticks() uint64 { return e.ticks }

// Step advances simulation time by dt: every tracker updates its motion
// and re-steers its links, then listeners run.
func (e *RelayEngine) Step(dt time.Duration) {
	e.simTime = e.simTime.Add(dt)
	e.ticks++

	for _, t := range e.trackers {
		t.Advance(e.simTime, dt)
	}
	for _, fn := range e.tickListeners {
		fn(e.simTime, dt)
	}
}

// Run executes a fixed number of steps of length dt. Used by tests and
// batch runs that need no wall-clock pacing.
func (e *RelayEngine) Run(steps int, dt time.Duration) {
	for i := 0; i < steps; i++ {
		e.Step(dt)
	}
	e.log.Info(context.Background(), "engine run complete",
		logging.Int("steps", steps),
		logging.Any("sim_time", e.simTime),
	)
}
