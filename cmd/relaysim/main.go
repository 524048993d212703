package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/iti/evt/evtm"
	"github.com/iti/evt/vrtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/relay-link-sim/core"
	"github.com/signalsfoundry/relay-link-sim/internal/logging"
	"github.com/signalsfoundry/relay-link-sim/internal/observability"
	"github.com/signalsfoundry/relay-link-sim/kb"
	"github.com/signalsfoundry/relay-link-sim/telemetry"
	"github.com/signalsfoundry/relay-link-sim/timectrl"
)

// frameBytes is the fixed payload size of generated traffic frames.
const frameBytes = 1200

// dropPreambleDetect is the reason attached to frames whose received
// power falls below the link's sensitivity.
const dropPreambleDetect = telemetry.DropReason("preamble-detect-failure")

// tracerName scopes the runner's spans.
const tracerName = "relaysim"

func main() {
	scenarioPath := flag.String("scenario", "configs/scenario.yaml", "path to the YAML scenario")
	mode := flag.String("mode", "ticker", "scheduling mode: ticker | des")
	accelerated := flag.Bool("accelerated", true, "ticker mode: run accelerated rather than real-time")
	metricsAddr := flag.String("metrics-addr", "", "address for the /metrics endpoint; empty disables it")
	flag.Parse()

	ctx := context.Background()
	log := logging.NewFromEnv()
	ctx, log = logging.WithRunLogger(ctx, log)

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "tracing init failed", logging.String("error", err.Error()))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(ctx, shutdownTracing, log)

	collector, err := observability.NewRelayCollector(nil)
	if err != nil {
		log.Error(ctx, "metrics init failed", logging.String("error", err.Error()))
		os.Exit(1)
	}
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Error(ctx, "metrics server failed", logging.String("error", err.Error()))
			}
		}()
		log.Info(ctx, "metrics endpoint up", logging.String("addr", *metricsAddr))
	}

	f, err := os.Open(*scenarioPath)
	if err != nil {
		log.Error(ctx, "open scenario failed", logging.String("error", err.Error()))
		os.Exit(1)
	}
	scn, err := core.LoadScenario(f)
	f.Close()
	if err != nil {
		log.Error(ctx, "load scenario failed", logging.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info(ctx, "scenario loaded",
		logging.String("name", scn.Name),
		logging.Int("links", len(scn.Links)),
		logging.Int("nodes", len(scn.Nodes)),
		logging.Int("traffic", len(scn.Traffic)),
	)

	run := newRun(ctx, scn, log, collector)

	run.printStartupBudgets(os.Stdout)

	switch *mode {
	case "des":
		run.runDiscreteEvent()
	default:
		run.runTicker(*accelerated)
	}

	fmt.Println()
	if err := telemetry.WriteFlowReport(os.Stdout, run.flows.SnapshotFlows(), run.flows.Unresolved()); err != nil {
		log.Error(ctx, "flow report failed", logging.String("error", err.Error()))
		os.Exit(1)
	}
}

// run bundles everything a single simulation run owns.
type run struct {
	ctx       context.Context
	scn       *core.Scenario
	log       logging.Logger
	collector *observability.RelayCollector

	build *core.BuildResult
	flows *telemetry.FlowTracker
	store *kb.KnowledgeBase

	// traffic state, one entry per scenario traffic stream.
	streams []*stream
}

// stream is one periodic unicast source, resolved from scenario names to
// runtime handles.
type stream struct {
	spec    core.TrafficSpec
	srcMAC  telemetry.MacAddress
	dstMAC  telemetry.MacAddress
	srcDev  string
	dstDev  string
	radio   *core.RadioLink
	link    *core.TrackedLink
	nextDue time.Duration
}

func newRun(ctx context.Context, scn *core.Scenario, log logging.Logger, collector *observability.RelayCollector) *run {
	r := &run{
		ctx:       ctx,
		scn:       scn,
		log:       log,
		collector: collector,
	}

	r.build = scn.BuildEngine(log, collector)
	r.flows = telemetry.NewFlowTracker(
		telemetry.WithLogger(log),
		telemetry.WithMetricsRecorder(collector),
	)

	r.store = kb.NewKnowledgeBase()
	if err := r.store.AddPlatform(r.build.Platform); err != nil {
		log.Error(ctx, "platform registration failed", logging.String("error", err.Error()))
		os.Exit(1)
	}

	macs := make(map[string]telemetry.MacAddress, len(scn.Nodes))
	for _, n := range scn.Nodes {
		mac, err := telemetry.ParseMAC(n.MAC)
		if err != nil {
			log.Error(ctx, "bad node address", logging.String("node", n.ID), logging.String("error", err.Error()))
			os.Exit(1)
		}
		if err := r.flows.RegisterAddress(mac, telemetry.NodeID(n.ID)); err != nil {
			log.Error(ctx, "address registration failed", logging.String("node", n.ID), logging.String("error", err.Error()))
			os.Exit(1)
		}
		r.flows.RegisterDevice(n.ID+":radio0", telemetry.NodeID(n.ID))

		rec := &kb.NodeRecord{ID: n.ID, MAC: n.MAC}
		if n.ID == r.build.Platform.ID {
			rec.PlatformID = r.build.Platform.ID
		}
		if err := r.store.AddNode(rec); err != nil {
			log.Error(ctx, "node registration failed", logging.String("node", n.ID), logging.String("error", err.Error()))
			os.Exit(1)
		}
		macs[n.ID] = mac
	}

	// Mirror the platform's post-step position into the KB so its
	// subscribers observe the trajectory as it unfolds.
	r.build.Engine.RegisterTickListener(func(simTime time.Time, dt time.Duration) {
		if err := r.store.UpdatePlatformPosition(r.build.Platform.ID, r.build.Platform.Coordinates); err != nil {
			log.Warn(ctx, "kb position update failed", logging.String("error", err.Error()))
		}
	})
	r.store.Subscribe(func(e kb.Event) {
		log.Debug(ctx, "platform moved",
			logging.String("platform", e.Platform.ID),
			logging.Any("x", e.Platform.Coordinates.X),
			logging.Any("y", e.Platform.Coordinates.Y),
			logging.Any("z", e.Platform.Coordinates.Z),
		)
	})

	for _, t := range scn.Traffic {
		linkID := t.Link
		if linkID == "" {
			linkID = firstLinkFor(scn, t)
		}
		r.streams = append(r.streams, &stream{
			spec:    t,
			srcMAC:  macs[t.From],
			dstMAC:  macs[t.To],
			srcDev:  t.From + ":radio0",
			dstDev:  t.To + ":radio0",
			radio:   r.build.Radios[linkID],
			link:    r.build.Links[linkID],
			nextDue: t.Interval.Std(),
		})
	}

	// Prime the tracker so gains reflect the starting geometry before
	// the first tick or the startup printout.
	r.build.Tracker.Advance(scn.StartTime, 0)

	return r
}

// firstLinkFor picks the link whose peer node matches the stream's
// destination, falling back to the first configured link.
func firstLinkFor(scn *core.Scenario, t core.TrafficSpec) string {
	for _, l := range scn.Links {
		if l.PeerNode == t.To || l.PeerNode == t.From {
			return l.ID
		}
	}
	return scn.Links[0].ID
}

// printStartupBudgets evaluates and prints the link budget of every link
// at the starting geometry.
func (r *run) printStartupBudgets(w io.Writer) {
	_, span := otel.Tracer(tracerName).Start(r.ctx, "startup-budgets",
		trace.WithAttributes(attribute.Int("links", len(r.scn.Links))))
	defer span.End()

	atmo := r.scn.Atmosphere()
	altitude := r.build.Platform.Coordinates.Z

	fmt.Fprintf(w, "scenario %s: platform %s at (%.0f, %.0f, %.0f)\n",
		r.scn.Name, r.build.Platform.ID,
		r.build.Platform.Coordinates.X, r.build.Platform.Coordinates.Y, r.build.Platform.Coordinates.Z)

	for _, spec := range r.scn.Links {
		radio := r.build.Radios[spec.ID]
		link := r.build.Links[spec.ID]
		geom := r.build.Tracker.SampleGeometry(link)

		result, err := core.ComputeLinkBudget(radio.BudgetInput(geom, altitude, atmo))
		if err != nil {
			fmt.Fprintf(w, "link %-16s budget unavailable: %v\n", spec.ID, err)
			continue
		}
		tx, _ := radio.GainsDbi()
		fmt.Fprintf(w, "link %-16s d=%8.0fm angle=%5.1fdeg gain=%6.2fdBi fspl=%7.2fdB atmo=%5.2fdB eirp=%6.2fdBW rx=%7.2fdBm\n",
			spec.ID, geom.DistanceM, geom.AngleOffBoresightRad*180/math.Pi,
			tx, result.FsplDb, result.AtmosphericLossDb, result.EirpDbw, result.ReceivedPowerDbm)
	}
}

// emit sends one frame on a stream: the transmission always counts, and
// reception succeeds only when the received power clears the link's
// sensitivity at the current geometry.
func (r *run) emit(s *stream) {
	r.flows.OnTransmitBegin(s.srcDev, s.srcMAC, s.dstMAC, frameBytes)

	geom := r.build.Tracker.SampleGeometry(s.link)
	result, err := core.ComputeLinkBudget(s.radio.BudgetInput(geom, r.build.Platform.Coordinates.Z, r.scn.Atmosphere()))
	if err != nil || result.ReceivedPowerDbm < s.radio.RxSensitivityDbm {
		r.flows.OnReceiveDrop(s.dstDev, s.srcMAC, s.dstMAC, frameBytes, dropPreambleDetect)
		return
	}
	r.flows.OnReceiveSuccess(s.dstDev, s.srcMAC, s.dstMAC, frameBytes)
}

// runTicker drives the engine with the wall-clock tick controller,
// emitting traffic frames as their due times pass.
func (r *run) runTicker(accelerated bool) {
	ctx, span := otel.Tracer(tracerName).Start(r.ctx, "run",
		trace.WithAttributes(attribute.String("mode", "ticker"), attribute.String("scenario", r.scn.Name)))
	defer span.End()
	r.ctx = ctx

	mode := timectrl.RealTime
	if accelerated {
		mode = timectrl.Accelerated
	}
	tc := timectrl.NewTimeController(r.scn.StartTime, r.scn.Tick.Std(), mode)

	elapsed := time.Duration(0)
	tc.AddListener(func(simTime time.Time, dt time.Duration) {
		r.build.Engine.Step(dt)
		r.collector.RecordTick()
		elapsed += dt
		for _, s := range r.streams {
			for s.nextDue <= elapsed {
				r.emit(s)
				s.nextDue += s.spec.Interval.Std()
			}
		}
	})

	r.log.Info(r.ctx, "run starting",
		logging.String("mode", "ticker"),
		logging.Any("tick", r.scn.Tick.Std()),
		logging.Any("run_for", r.scn.RunFor.Std()),
	)
	<-tc.Start(r.scn.RunFor.Std())
	r.log.Info(r.ctx, "run complete", logging.Any("ticks", r.build.Engine.Ticks()))
}

// runDiscreteEvent drives the engine with a discrete-event scheduler:
// a self-rescheduling tick event plus one event chain per traffic stream.
// Virtual time needs no pacing, so long scenarios finish immediately.
func (r *run) runDiscreteEvent() {
	ctx, span := otel.Tracer(tracerName).Start(r.ctx, "run",
		trace.WithAttributes(attribute.String("mode", "des"), attribute.String("scenario", r.scn.Name)))
	defer span.End()
	r.ctx = ctx

	mgr := evtm.New()
	tick := r.scn.Tick.Std().Seconds()
	horizon := r.scn.RunFor.Std().Seconds()

	var onTick evtm.EventHandlerFunction
	onTick = func(mgr *evtm.EventManager, cxt any, data any) any {
		r.build.Engine.Step(r.scn.Tick.Std())
		r.collector.RecordTick()
		if mgr.CurrentSeconds()+tick <= horizon {
			mgr.Schedule(cxt, data, onTick, vrtime.SecondsToTime(tick))
		}
		return nil
	}
	mgr.Schedule(nil, nil, onTick, vrtime.SecondsToTime(tick))

	for _, s := range r.streams {
		s := s
		interval := s.spec.Interval.Std().Seconds()
		var onFrame evtm.EventHandlerFunction
		onFrame = func(mgr *evtm.EventManager, cxt any, data any) any {
			r.emit(s)
			if mgr.CurrentSeconds()+interval <= horizon {
				mgr.Schedule(cxt, data, onFrame, vrtime.SecondsToTime(interval))
			}
			return nil
		}
		mgr.Schedule(nil, nil, onFrame, vrtime.SecondsToTime(interval))
	}

	r.log.Info(r.ctx, "run starting",
		logging.String("mode", "des"),
		logging.Any("tick", r.scn.Tick.Std()),
		logging.Any("run_for", r.scn.RunFor.Std()),
	)
	mgr.Run(horizon)
	r.log.Info(r.ctx, "run complete", logging.Any("ticks", r.build.Engine.Ticks()))
}
