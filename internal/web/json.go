package web

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pigenny/pigenny/internal/status"
)

type jsonStatus struct {
	State              string     `json:"state"`
	Manual             bool       `json:"manual"`
	Failures           int        `json:"failures"`
	Uptime             string     `json:"uptime"`
	GeneratorRuntime   string     `json:"generator_runtime,omitempty"`
	GeneratorStartedAt *time.Time `json:"generator_started_at,omitempty"`

	SOC            int       `json:"soc"`
	SOH            int       `json:"soh"`
	BatteryVolts   float64   `json:"batt_v"`
	PVWatts        int       `json:"pv_w"`
	ChargeWatts    int       `json:"charge_w"`
	DischargeWatts int       `json:"discharge_w"`
	LoadWatts      int       `json:"load_w"`
	TelemetryAt    time.Time `json:"telemetry_at"`

	StartSOC int `json:"start_soc"`
	StopSOC  int `json:"stop_soc"`
}

func formatJSON(snap status.Snapshot) ([]byte, error) {
	js := jsonStatus{
		State:          snap.State,
		Manual:         snap.Manual,
		Failures:       snap.Failures,
		Uptime:         snap.Uptime().String(),
		SOC:            snap.Telemetry.SOC,
		SOH:            snap.Telemetry.SOH,
		BatteryVolts:   snap.Telemetry.BatteryVolts,
		PVWatts:        snap.Telemetry.PVWatts,
		ChargeWatts:    snap.Telemetry.ChargeWatts,
		DischargeWatts: snap.Telemetry.DischargeWatts,
		LoadWatts:      snap.Telemetry.LoadWatts,
		TelemetryAt:    snap.TelemetryAt,
		StartSOC:       snap.Config.StartSOC,
		StopSOC:        snap.Config.StopSOC,
	}
	if !snap.GeneratorStartedAt.IsZero() {
		at := snap.GeneratorStartedAt
		js.GeneratorStartedAt = &at
		js.GeneratorRuntime = snap.GeneratorRuntime().String()
	}
	b, err := json.MarshalIndent(js, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal status: %w", err)
	}
	return b, nil
}
