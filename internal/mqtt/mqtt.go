// Package mqtt publishes supervisor telemetry and state transition
// events to the house broker.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pigenny/pigenny/internal/inverter"
)

const (
	TopicTelemetry = "energy/genny/telemetry"
	TopicEvents    = "energy/genny/events"
)

// Event is one supervisor state transition.
type Event struct {
	Timestamp time.Time `json:"ts"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Reason    string    `json:"reason"`
	SOC       int       `json:"soc"`
}

// Publisher sinks telemetry and events.
type Publisher interface {
	PublishTelemetry(tel inverter.Telemetry, at time.Time) error
	PublishEvent(ev Event) error
	Close() error
}

type telemetryPayload struct {
	Timestamp      time.Time `json:"ts"`
	SOC            int       `json:"soc"`
	SOH            int       `json:"soh"`
	BatteryVolts   float64   `json:"batt_v"`
	PV1Volts       float64   `json:"pv1_v"`
	PV2Volts       float64   `json:"pv2_v"`
	PVWatts        int       `json:"pv_w"`
	ChargeWatts    int       `json:"charge_w"`
	DischargeWatts int       `json:"discharge_w"`
	LoadWatts      int       `json:"load_w"`
}

// FormatTelemetry renders the telemetry payload published on
// TopicTelemetry.
func FormatTelemetry(tel inverter.Telemetry, at time.Time) ([]byte, error) {
	p := telemetryPayload{
		Timestamp:      at.UTC(),
		SOC:            tel.SOC,
		SOH:            tel.SOH,
		BatteryVolts:   tel.BatteryVolts,
		PV1Volts:       tel.PV1Volts,
		PV2Volts:       tel.PV2Volts,
		PVWatts:        tel.PVWatts,
		ChargeWatts:    tel.ChargeWatts,
		DischargeWatts: tel.DischargeWatts,
		LoadWatts:      tel.LoadWatts,
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal telemetry: %w", err)
	}
	return b, nil
}

// FormatEvent renders the event payload published on TopicEvents.
func FormatEvent(ev Event) ([]byte, error) {
	ev.Timestamp = ev.Timestamp.UTC()
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return b, nil
}
