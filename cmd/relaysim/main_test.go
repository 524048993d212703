package main

import (
	"context"
	"io"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/signalsfoundry/relay-link-sim/core"
	"github.com/signalsfoundry/relay-link-sim/internal/logging"
)

const testScenario = `
name: span-check
start_time: 2026-01-01T00:00:00Z
tick: 100ms
run_for: 500ms
platform:
  id: hap-1
  kind: hap
  motion: circular
  altitude_m: 20000
  angular_vel_rad_per_s: 0.02
  orbit_radius_m: 5000
  start_position: { x: 5000, y: 0, z: 20000 }
  boresight: { x: 0, y: 0, z: 0 }
atmosphere:
  rain_rate_db_per_km: 0.4
  oxygen_rate_db_per_km: 0.01
  water_vapor_rate_db_per_km: 0.05
  rain_cloud_height_m: 3000
  dense_atmosphere_m: 10000
links:
  - id: gw-link
    peer_node: gw-1
    peer_position: { x: 0, y: 12000, z: 0 }
    frequency_hz: 2.4e9
    tx_power_dbm: 38
    rx_sensitivity_dbm: -96
    direction: up
    antenna: { max_gain_dbi: 23, beamwidth_exponent: 2 }
nodes:
  - id: gw-1
    mac: "00:00:00:00:00:01"
  - id: hap-1
    mac: "00:00:00:00:00:10"
traffic:
  - from: hap-1
    to: gw-1
    link: gw-link
    interval: 200ms
`

func TestRunEmitsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	scn, err := core.LoadScenario(strings.NewReader(testScenario))
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}

	r := newRun(context.Background(), scn, logging.Noop(), nil)
	r.printStartupBudgets(io.Discard)
	r.runDiscreteEvent()

	names := map[string]int{}
	var runAttrs map[string]string
	for _, span := range recorder.Ended() {
		names[span.Name()]++
		if span.Name() == "run" {
			runAttrs = map[string]string{}
			for _, attr := range span.Attributes() {
				runAttrs[string(attr.Key)] = attr.Value.Emit()
			}
		}
	}

	if names["startup-budgets"] != 1 {
		t.Errorf("expected one startup-budgets span, got %d", names["startup-budgets"])
	}
	if names["run"] != 1 {
		t.Fatalf("expected one run span, got %d", names["run"])
	}
	if runAttrs["mode"] != "des" || runAttrs["scenario"] != "span-check" {
		t.Errorf("run span attributes = %v", runAttrs)
	}
}

func TestRunTrafficAccounting(t *testing.T) {
	scn, err := core.LoadScenario(strings.NewReader(testScenario))
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}

	r := newRun(context.Background(), scn, logging.Noop(), nil)
	r.runDiscreteEvent()

	// 500 ms horizon with a 200 ms interval: frames at 200 and 400 ms.
	flows := r.flows.SnapshotFlows()
	if len(flows) != 1 {
		t.Fatalf("expected 1 flow, got %d", len(flows))
	}
	if flows[0].TxFrames != 2 {
		t.Errorf("tx frames = %d, want 2", flows[0].TxFrames)
	}
	if flows[0].RxFrames+flows[0].Dropped != flows[0].TxFrames {
		t.Errorf("rx+dropped = %d, want %d", flows[0].RxFrames+flows[0].Dropped, flows[0].TxFrames)
	}
}
