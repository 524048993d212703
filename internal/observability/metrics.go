package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RelayCollector bundles the Prometheus metrics for a relay run: per-link
// antenna gain, per-flow traffic counters, and engine progress. It
// implements the gain-recorder and flow-recorder hooks the core and
// telemetry packages accept.
type RelayCollector struct {
	gatherer prometheus.Gatherer

	LinkGain  *prometheus.GaugeVec
	FlowTx    *prometheus.CounterVec
	FlowRx    *prometheus.CounterVec
	FlowDrops *prometheus.CounterVec
	Ticks     prometheus.Counter
}

// NewRelayCollector registers relay Prometheus metrics against the
// provided registerer, defaulting to the global Prometheus registry when
// nil.
func NewRelayCollector(reg prometheus.Registerer) (*RelayCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	linkGain := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "relay_link_gain_dbi",
		Help: "Directional antenna gain currently applied to each link.",
	}, []string{"link"})
	linkGain, err := registerGaugeVec(reg, linkGain, "relay_link_gain_dbi")
	if err != nil {
		return nil, err
	}

	flowTx := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_flow_tx_frames_total",
		Help: "Frames transmitted per flow, labeled by source and destination node.",
	}, []string{"src", "dst"})
	flowTx, err = registerCounterVec(reg, flowTx, "relay_flow_tx_frames_total")
	if err != nil {
		return nil, err
	}

	flowRx := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_flow_rx_frames_total",
		Help: "Frames received per flow, labeled by source and destination node.",
	}, []string{"src", "dst"})
	flowRx, err = registerCounterVec(reg, flowRx, "relay_flow_rx_frames_total")
	if err != nil {
		return nil, err
	}

	flowDrops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_flow_dropped_frames_total",
		Help: "Frames dropped per flow, labeled by source, destination, and drop reason.",
	}, []string{"src", "dst", "reason"})
	flowDrops, err = registerCounterVec(reg, flowDrops, "relay_flow_dropped_frames_total")
	if err != nil {
		return nil, err
	}

	ticks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_engine_ticks_total",
		Help: "Simulation steps executed by the relay engine.",
	})
	ticks, err = registerCounter(reg, ticks, "relay_engine_ticks_total")
	if err != nil {
		return nil, err
	}

	return &RelayCollector{
		gatherer:  gatherer,
		LinkGain:  linkGain,
		FlowTx:    flowTx,
		FlowRx:    flowRx,
		FlowDrops: flowDrops,
		Ticks:     ticks,
	}, nil
}

// RecordLinkGain satisfies the pointing tracker's gain-recorder hook.
func (c *RelayCollector) RecordLinkGain(linkID string, gainDbi float64) {
	if c == nil || c.LinkGain == nil {
		return
	}
	c.LinkGain.WithLabelValues(linkID).Set(gainDbi)
}

// RecordFlowTx satisfies the flow tracker's metrics-recorder hook.
func (c *RelayCollector) RecordFlowTx(src, dst string) {
	if c == nil || c.FlowTx == nil {
		return
	}
	c.FlowTx.WithLabelValues(src, dst).Inc()
}

// RecordFlowRx satisfies the flow tracker's metrics-recorder hook.
func (c *RelayCollector) RecordFlowRx(src, dst string) {
	if c == nil || c.FlowRx == nil {
		return
	}
	c.FlowRx.WithLabelValues(src, dst).Inc()
}

// RecordFlowDrop satisfies the flow tracker's metrics-recorder hook.
func (c *RelayCollector) RecordFlowDrop(src, dst, reason string) {
	if c == nil || c.FlowDrops == nil {
		return
	}
	c.FlowDrops.WithLabelValues(src, dst, reason).Inc()
}

// RecordTick counts one engine step.
func (c *RelayCollector) RecordTick() {
	if c == nil || c.Ticks == nil {
		return
	}
	c.Ticks.Inc()
}

// Handler exposes a ready-to-use /metrics handler.
func (c *RelayCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
