package core

import (
	"strings"
	"testing"
	"time"
)

const validScenario = `
name: test-run
start_time: 2026-01-01T00:00:00Z
tick: 100ms
run_for: 10s
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

func TestLoadScenario(t *testing.T) {
	scn, err := LoadScenario(strings.NewReader(validScenario))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if scn.Name != "test-run" {
		t.Errorf("name = %q", scn.Name)
	}
	if scn.Tick.Std() != 100*time.Millisecond {
		t.Errorf("tick = %v", scn.Tick.Std())
	}
	if scn.RunFor.Std() != 10*time.Second {
		t.Errorf("run_for = %v", scn.RunFor.Std())
	}
	if len(scn.Links) != 1 || scn.Links[0].FrequencyHz != 2.4e9 {
		t.Errorf("links parsed wrong: %+v", scn.Links)
	}
	if PathDirectionOf(scn.Links[0]) != PathUpward {
		t.Errorf("expected upward direction")
	}

	atmo := scn.Atmosphere()
	if atmo.RainCloudHeightM != 3000 || atmo.DenseAtmosphereM != 10000 {
		t.Errorf("atmosphere parsed wrong: %+v", atmo)
	}
}

func TestLoadScenario_Invalid(t *testing.T) {
	cases := []struct {
		name    string
		mangle  func(string) string
		wantErr string
	}{
		{
			name:    "zero tick",
			mangle:  func(s string) string { return strings.Replace(s, "tick: 100ms", "tick: 0s", 1) },
			wantErr: "tick must be positive",
		},
		{
			name:    "unknown motion",
			mangle:  func(s string) string { return strings.Replace(s, "motion: circular", "motion: warp", 1) },
			wantErr: "unknown motion",
		},
		{
			name:    "traffic references unknown node",
			mangle:  func(s string) string { return strings.Replace(s, "to: gw-1", "to: nowhere", 1) },
			wantErr: "unknown node",
		},
		{
			name:    "traffic references unknown link",
			mangle:  func(s string) string { return strings.Replace(s, "link: gw-link", "link: missing", 1) },
			wantErr: "unknown link",
		},
		{
			name: "orbit radius disagrees with start position",
			mangle: func(s string) string {
				return strings.Replace(s, "orbit_radius_m: 5000", "orbit_radius_m: 4000", 1)
			},
			wantErr: "does not match orbit_radius_m",
		},
		{
			name:    "unknown field",
			mangle:  func(s string) string { return s + "\nbogus_key: 1\n" },
			wantErr: "decode",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadScenario(strings.NewReader(tc.mangle(validScenario)))
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestLoadScenario_OrbitRadiusDerivedFromStart(t *testing.T) {
	yaml := strings.Replace(validScenario, "  orbit_radius_m: 5000\n", "", 1)
	scn, err := LoadScenario(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	build := scn.BuildEngine(nil, nil)
	if got := build.Platform.OrbitRadiusM; got != 5000 {
		t.Errorf("derived orbit radius = %v, want 5000", got)
	}
}

func TestBuildEngine(t *testing.T) {
	scn, err := LoadScenario(strings.NewReader(validScenario))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	build := scn.BuildEngine(nil, nil)

	if build.Platform.ID != "hap-1" {
		t.Errorf("platform id = %q", build.Platform.ID)
	}
	if len(build.Radios) != 1 || build.Radios["gw-link"] == nil {
		t.Fatalf("radios not built: %+v", build.Radios)
	}
	if build.Radios["gw-link"].RxSensitivityDbm != -96 {
		t.Errorf("sensitivity = %v", build.Radios["gw-link"].RxSensitivityDbm)
	}

	// One step must steer the radio away from its zero-value gains.
	build.Engine.Step(scn.Tick.Std())
	tx, rx := build.Radios["gw-link"].GainsDbi()
	if tx == 0 || rx == 0 {
		t.Errorf("radio never steered: tx=%v rx=%v", tx, rx)
	}
}
