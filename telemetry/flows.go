package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/signalsfoundry/relay-link-sim/internal/logging"
)

// NodeID names a network endpoint in flow attribution.
type NodeID string

// DropReason is a free-form label explaining why a frame was dropped,
// e.g. "preamble-detect-failure".
type DropReason string

// FlowKey identifies a directional flow between two resolved endpoints.
type FlowKey struct {
	Src NodeID
	Dst NodeID
}

func (k FlowKey) String() string { return fmt.Sprintf("%s->%s", k.Src, k.Dst) }

// FlowStats are the monotonic per-flow counters. Counters only ever
// increase; rates and ratios are derived by consumers from snapshots.
type FlowStats struct {
	Key FlowKey

	TxFrames uint64
	TxBytes  uint64
	RxFrames uint64
	RxBytes  uint64
	Dropped  uint64
	Drops    map[DropReason]uint64
}

// LossRatio returns dropped frames over transmitted frames, or 0 when the
// flow has not transmitted.
func (s FlowStats) LossRatio() float64 {
	if s.TxFrames == 0 {
		return 0
	}
	return float64(s.Dropped) / float64(s.TxFrames)
}

// DeviceStats are the monotonic per-device counters, independent of flow
// resolution: every frame a device touches counts here, including group
// traffic that never reaches a flow entry.
type DeviceStats struct {
	ID   string
	Node NodeID

	TxFrames uint64
	TxBytes  uint64
	RxFrames uint64
	RxBytes  uint64
	Dropped  uint64
}

// ErrAddressConflict marks an attempt to bind a hardware address already
// bound to a different node.
var ErrAddressConflict = errors.New("hardware address already registered")

// TraceSource is implemented by devices that expose frame-level hooks the
// tracker can attach to. Attach wires each hook to the matching tracker
// callback.
type TraceSource interface {
	HookTransmit(func(src, dst MacAddress, frameBytes int))
	HookReceive(func(src, dst MacAddress, frameBytes int))
	HookDrop(func(src, dst MacAddress, frameBytes int, reason DropReason))
}

// MetricsRecorder receives every flow event as it is counted; the
// observability layer implements it to export counters. Optional.
type MetricsRecorder interface {
	RecordFlowTx(src, dst string)
	RecordFlowRx(src, dst string)
	RecordFlowDrop(src, dst, reason string)
}

// FlowTracker resolves hardware addresses to node identities and maintains
// per-flow and per-device counters. All methods are safe for concurrent
// use; event callbacks take the lock once and never block on I/O.
//
// The address table is meant to be populated up front, before traffic
// flows: registration is idempotent for an identical binding and rejects
// rebinding an address to a different node.
type FlowTracker struct {
	mu        sync.Mutex
	addresses map[MacAddress]NodeID
	flows     map[FlowKey]*FlowStats
	devices   map[string]*DeviceStats
	deviceIDs []string

	// unresolved counts unicast frames whose source or destination
	// address had no registered binding. Such frames produce no flow
	// entry; a non-zero value is a scenario wiring diagnostic.
	unresolved uint64

	log      logging.Logger
	recorder MetricsRecorder
}

// TrackerOption configures a FlowTracker.
type TrackerOption func(*FlowTracker)

// WithLogger attaches a structured logger.
func WithLogger(log logging.Logger) TrackerOption {
	return func(t *FlowTracker) { t.log = log }
}

// WithMetricsRecorder attaches a per-event metrics recorder.
func WithMetricsRecorder(r MetricsRecorder) TrackerOption {
	return func(t *FlowTracker) { t.recorder = r }
}

// NewFlowTracker builds an empty tracker.
func NewFlowTracker(opts ...TrackerOption) *FlowTracker {
	t := &FlowTracker{
		addresses: make(map[MacAddress]NodeID),
		flows:     make(map[FlowKey]*FlowStats),
		devices:   make(map[string]*DeviceStats),
		log:       logging.Noop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RegisterAddress binds a hardware address to a node. Re-registering the
// same binding is a no-op; binding the address to a different node returns
// ErrAddressConflict.
func (t *FlowTracker) RegisterAddress(mac MacAddress, node NodeID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.addresses[mac]; ok {
		if existing == node {
			return nil
		}
		return fmt.Errorf("%w: %s bound to %s, cannot rebind to %s", ErrAddressConflict, mac, existing, node)
	}
	t.addresses[mac] = node
	return nil
}

// RegisterDevice creates the per-device counter set. Devices appear in
// snapshots in registration order. Registering the same ID twice is a
// no-op.
func (t *FlowTracker) RegisterDevice(deviceID string, node NodeID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.devices[deviceID]; ok {
		return
	}
	t.devices[deviceID] = &DeviceStats{ID: deviceID, Node: node}
	t.deviceIDs = append(t.deviceIDs, deviceID)
}

// Attach registers a device and wires its trace hooks to the tracker.
func (t *FlowTracker) Attach(deviceID string, node NodeID, src TraceSource) {
	t.RegisterDevice(deviceID, node)
	src.HookTransmit(func(s, d MacAddress, n int) { t.OnTransmitBegin(deviceID, s, d, n) })
	src.HookReceive(func(s, d MacAddress, n int) { t.OnReceiveSuccess(deviceID, s, d, n) })
	src.HookDrop(func(s, d MacAddress, n int, r DropReason) { t.OnReceiveDrop(deviceID, s, d, n, r) })
}

// OnTransmitBegin records a frame leaving a device.
func (t *FlowTracker) OnTransmitBegin(deviceID string, src, dst MacAddress, frameBytes int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if dev := t.devices[deviceID]; dev != nil {
		dev.TxFrames++
		dev.TxBytes += uint64(frameBytes)
	}

	flow, ok := t.resolveLocked(src, dst)
	if !ok {
		return
	}
	flow.TxFrames++
	flow.TxBytes += uint64(frameBytes)
	if t.recorder != nil {
		t.recorder.RecordFlowTx(string(flow.Key.Src), string(flow.Key.Dst))
	}
}

// OnReceiveSuccess records a frame successfully received by a device.
func (t *FlowTracker) OnReceiveSuccess(deviceID string, src, dst MacAddress, frameBytes int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if dev := t.devices[deviceID]; dev != nil {
		dev.RxFrames++
		dev.RxBytes += uint64(frameBytes)
	}

	flow, ok := t.resolveLocked(src, dst)
	if !ok {
		return
	}
	flow.RxFrames++
	flow.RxBytes += uint64(frameBytes)
	if t.recorder != nil {
		t.recorder.RecordFlowRx(string(flow.Key.Src), string(flow.Key.Dst))
	}
}

// OnReceiveDrop records a frame lost at a device, with the reason folded
// into the flow's drop histogram.
func (t *FlowTracker) OnReceiveDrop(deviceID string, src, dst MacAddress, frameBytes int, reason DropReason) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if dev := t.devices[deviceID]; dev != nil {
		dev.Dropped++
	}

	flow, ok := t.resolveLocked(src, dst)
	if !ok {
		return
	}
	flow.Dropped++
	if flow.Drops == nil {
		flow.Drops = make(map[DropReason]uint64)
	}
	flow.Drops[reason]++
	if t.recorder != nil {
		t.recorder.RecordFlowDrop(string(flow.Key.Src), string(flow.Key.Dst), string(reason))
	}
}

// resolveLocked maps a source/destination address pair to its flow entry,
// creating it lazily. Group destinations are excluded from flow
// attribution; unresolved unicast addresses bump the diagnostic counter.
func (t *FlowTracker) resolveLocked(src, dst MacAddress) (*FlowStats, bool) {
	if dst.IsGroup() {
		return nil, false
	}
	srcNode, srcOK := t.addresses[src]
	dstNode, dstOK := t.addresses[dst]
	if !srcOK || !dstOK {
		t.unresolved++
		t.log.Debug(context.Background(), "unresolved unicast frame",
			logging.String("src", src.String()),
			logging.String("dst", dst.String()),
		)
		return nil, false
	}

	key := FlowKey{Src: srcNode, Dst: dstNode}
	flow, ok := t.flows[key]
	if !ok {
		flow = &FlowStats{Key: key}
		t.flows[key] = flow
	}
	return flow, true
}

// Unresolved returns how many unicast frames failed address resolution.
func (t *FlowTracker) Unresolved() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.unresolved
}

// SnapshotFlows returns a copy of every flow's counters, ordered by
// source then destination node so repeated snapshots are comparable.
func (t *FlowTracker) SnapshotFlows() []FlowStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]FlowStats, 0, len(t.flows))
	for _, flow := range t.flows {
		copied := *flow
		if flow.Drops != nil {
			copied.Drops = make(map[DropReason]uint64, len(flow.Drops))
			for reason, n := range flow.Drops {
				copied.Drops[reason] = n
			}
		}
		out = append(out, copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.Src != out[j].Key.Src {
			return out[i].Key.Src < out[j].Key.Src
		}
		return out[i].Key.Dst < out[j].Key.Dst
	})
	return out
}

// SnapshotDevices returns a copy of every device's counters in
// registration order.
func (t *FlowTracker) SnapshotDevices() []DeviceStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]DeviceStats, 0, len(t.deviceIDs))
	for _, id := range t.deviceIDs {
		out = append(out, *t.devices[id])
	}
	return out
}
