package telemetry

import (
	"errors"
	"testing"
)

var (
	macA = MustParseMAC("00:00:00:00:00:01")
	macB = MustParseMAC("00:00:00:00:00:02")
	macC = MustParseMAC("00:00:00:00:00:03")
)

func newPopulatedTracker(t *testing.T) *FlowTracker {
	t.Helper()
	tracker := NewFlowTracker()
	for mac, node := range map[MacAddress]NodeID{
		macA: "alpha",
		macB: "beta",
	} {
		if err := tracker.RegisterAddress(mac, node); err != nil {
			t.Fatalf("RegisterAddress: %v", err)
		}
	}
	tracker.RegisterDevice("alpha:radio0", "alpha")
	tracker.RegisterDevice("beta:radio0", "beta")
	return tracker
}

func TestFlowTracker_EndToEnd(t *testing.T) {
	tracker := newPopulatedTracker(t)

	// Three transmissions, two arrive, one drops.
	tracker.OnTransmitBegin("alpha:radio0", macA, macB, 1200)
	tracker.OnReceiveSuccess("beta:radio0", macA, macB, 1200)
	tracker.OnTransmitBegin("alpha:radio0", macA, macB, 1200)
	tracker.OnReceiveSuccess("beta:radio0", macA, macB, 1200)
	tracker.OnTransmitBegin("alpha:radio0", macA, macB, 1200)
	tracker.OnReceiveDrop("beta:radio0", macA, macB, 1200, "preamble-detect-failure")

	flows := tracker.SnapshotFlows()
	if len(flows) != 1 {
		t.Fatalf("expected 1 flow, got %d", len(flows))
	}
	f := flows[0]
	if f.Key != (FlowKey{Src: "alpha", Dst: "beta"}) {
		t.Errorf("unexpected flow key %v", f.Key)
	}
	if f.TxFrames != 3 || f.RxFrames != 2 || f.Dropped != 1 {
		t.Errorf("counters tx=%d rx=%d dropped=%d", f.TxFrames, f.RxFrames, f.Dropped)
	}
	if f.TxBytes != 3600 || f.RxBytes != 2400 {
		t.Errorf("byte counters tx=%d rx=%d", f.TxBytes, f.RxBytes)
	}
	if f.Drops["preamble-detect-failure"] != 1 {
		t.Errorf("drop histogram %v", f.Drops)
	}
	if got := f.LossRatio(); got < 0.33 || got > 0.34 {
		t.Errorf("loss ratio %v", got)
	}

	devices := tracker.SnapshotDevices()
	if len(devices) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(devices))
	}
	if devices[0].ID != "alpha:radio0" || devices[1].ID != "beta:radio0" {
		t.Errorf("devices out of registration order: %v, %v", devices[0].ID, devices[1].ID)
	}
	if devices[0].TxFrames != 3 || devices[1].RxFrames != 2 || devices[1].Dropped != 1 {
		t.Errorf("device counters wrong: %+v", devices)
	}
}

func TestFlowTracker_RegisterAddressIdempotentAndConflicting(t *testing.T) {
	tracker := NewFlowTracker()

	if err := tracker.RegisterAddress(macA, "alpha"); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if err := tracker.RegisterAddress(macA, "alpha"); err != nil {
		t.Errorf("identical re-registration should be a no-op, got %v", err)
	}
	if err := tracker.RegisterAddress(macA, "impostor"); !errors.Is(err, ErrAddressConflict) {
		t.Errorf("expected ErrAddressConflict, got %v", err)
	}
}

func TestFlowTracker_GroupDestinationExcluded(t *testing.T) {
	tracker := newPopulatedTracker(t)
	broadcast := MustParseMAC("ff:ff:ff:ff:ff:ff")

	tracker.OnTransmitBegin("alpha:radio0", macA, broadcast, 100)
	tracker.OnReceiveSuccess("beta:radio0", macA, broadcast, 100)

	if flows := tracker.SnapshotFlows(); len(flows) != 0 {
		t.Errorf("broadcast traffic created a flow: %+v", flows)
	}
	// Group frames are not resolution failures.
	if got := tracker.Unresolved(); got != 0 {
		t.Errorf("broadcast counted as unresolved: %d", got)
	}
	// Device counters still see the frames.
	devices := tracker.SnapshotDevices()
	if devices[0].TxFrames != 1 || devices[1].RxFrames != 1 {
		t.Errorf("device counters missed group traffic: %+v", devices)
	}
}

func TestFlowTracker_UnresolvedUnicast(t *testing.T) {
	tracker := newPopulatedTracker(t)

	// macC has no binding: no flow entry, diagnostic counter bumps.
	tracker.OnTransmitBegin("alpha:radio0", macA, macC, 100)
	tracker.OnReceiveDrop("beta:radio0", macC, macB, 100, "decode-error")

	if flows := tracker.SnapshotFlows(); len(flows) != 0 {
		t.Errorf("unresolved traffic created a flow: %+v", flows)
	}
	if got := tracker.Unresolved(); got != 2 {
		t.Errorf("unresolved = %d, want 2", got)
	}
}

func TestFlowTracker_SnapshotOrdering(t *testing.T) {
	tracker := NewFlowTracker()
	addrs := map[NodeID]MacAddress{
		"alpha": macA,
		"beta":  macB,
		"gamma": macC,
	}
	for node, mac := range addrs {
		if err := tracker.RegisterAddress(mac, node); err != nil {
			t.Fatalf("RegisterAddress: %v", err)
		}
	}

	// Insert in a scrambled order.
	tracker.OnTransmitBegin("", macC, macA, 1)
	tracker.OnTransmitBegin("", macB, macC, 1)
	tracker.OnTransmitBegin("", macA, macC, 1)
	tracker.OnTransmitBegin("", macA, macB, 1)

	flows := tracker.SnapshotFlows()
	want := []FlowKey{
		{Src: "alpha", Dst: "beta"},
		{Src: "alpha", Dst: "gamma"},
		{Src: "beta", Dst: "gamma"},
		{Src: "gamma", Dst: "alpha"},
	}
	if len(flows) != len(want) {
		t.Fatalf("expected %d flows, got %d", len(want), len(flows))
	}
	for i, k := range want {
		if flows[i].Key != k {
			t.Errorf("flow %d = %v, want %v", i, flows[i].Key, k)
		}
	}
}

func TestFlowTracker_SnapshotIsACopy(t *testing.T) {
	tracker := newPopulatedTracker(t)
	tracker.OnTransmitBegin("alpha:radio0", macA, macB, 100)
	tracker.OnReceiveDrop("beta:radio0", macA, macB, 100, "decode-error")

	snap := tracker.SnapshotFlows()
	snap[0].TxFrames = 999
	snap[0].Drops["decode-error"] = 999

	fresh := tracker.SnapshotFlows()
	if fresh[0].TxFrames != 1 || fresh[0].Drops["decode-error"] != 1 {
		t.Errorf("snapshot mutation leaked into the tracker: %+v", fresh[0])
	}
}

type fakeDevice struct {
	tx   func(src, dst MacAddress, n int)
	rx   func(src, dst MacAddress, n int)
	drop func(src, dst MacAddress, n int, reason DropReason)
}

func (d *fakeDevice) HookTransmit(fn func(MacAddress, MacAddress, int)) { d.tx = fn }
func (d *fakeDevice) HookReceive(fn func(MacAddress, MacAddress, int))  { d.rx = fn }
func (d *fakeDevice) HookDrop(fn func(MacAddress, MacAddress, int, DropReason)) {
	d.drop = fn
}

func TestFlowTracker_Attach(t *testing.T) {
	tracker := NewFlowTracker()
	if err := tracker.RegisterAddress(macA, "alpha"); err != nil {
		t.Fatalf("RegisterAddress: %v", err)
	}
	if err := tracker.RegisterAddress(macB, "beta"); err != nil {
		t.Fatalf("RegisterAddress: %v", err)
	}

	dev := &fakeDevice{}
	tracker.Attach("alpha:radio0", "alpha", dev)

	dev.tx(macA, macB, 500)
	dev.rx(macB, macA, 500)
	dev.drop(macA, macB, 500, "preamble-detect-failure")

	flows := tracker.SnapshotFlows()
	if len(flows) != 2 {
		t.Fatalf("expected 2 flows, got %d", len(flows))
	}
	devices := tracker.SnapshotDevices()
	if len(devices) != 1 || devices[0].TxFrames != 1 || devices[0].RxFrames != 1 || devices[0].Dropped != 1 {
		t.Errorf("attached device counters wrong: %+v", devices)
	}
}

type recordedEvents struct {
	tx, rx, drops int
}

func (r *recordedEvents) RecordFlowTx(src, dst string)           { r.tx++ }
func (r *recordedEvents) RecordFlowRx(src, dst string)           { r.rx++ }
func (r *recordedEvents) RecordFlowDrop(src, dst, reason string) { r.drops++ }

func TestFlowTracker_MetricsRecorderHook(t *testing.T) {
	rec := &recordedEvents{}
	tracker := NewFlowTracker(WithMetricsRecorder(rec))
	if err := tracker.RegisterAddress(macA, "alpha"); err != nil {
		t.Fatalf("RegisterAddress: %v", err)
	}
	if err := tracker.RegisterAddress(macB, "beta"); err != nil {
		t.Fatalf("RegisterAddress: %v", err)
	}

	tracker.OnTransmitBegin("", macA, macB, 1)
	tracker.OnReceiveSuccess("", macA, macB, 1)
	tracker.OnReceiveDrop("", macA, macB, 1, "decode-error")
	// Unresolved and group traffic never reach the recorder.
	tracker.OnTransmitBegin("", macA, macC, 1)
	tracker.OnTransmitBegin("", macA, MustParseMAC("ff:ff:ff:ff:ff:ff"), 1)

	if rec.tx != 1 || rec.rx != 1 || rec.drops != 1 {
		t.Errorf("recorder saw tx=%d rx=%d drops=%d", rec.tx, rec.rx, rec.drops)
	}
}
