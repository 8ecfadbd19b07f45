// Package inverter reads battery and photovoltaic telemetry from the
// solar inverter over Modbus RTU.
package inverter

import "fmt"

// Input register offsets within the block read from the inverter. Raw
// voltages are in tenths of a volt; SOC and SOH share one register,
// packed low/high byte.
const (
	regPV1Volts       = 1
	regPV2Volts       = 2
	regBattVolts      = 4
	regSOC            = 5
	regPVWatts        = 9
	regChargeWatts    = 10
	regDischargeWatts = 11
	regLoadWatts      = 12

	readBase  = 0
	readCount = 20
)

// Telemetry is one decoded reading.
type Telemetry struct {
	SOC            int     // battery state of charge, percent
	SOH            int     // battery state of health, percent
	BatteryVolts   float64
	PV1Volts       float64
	PV2Volts       float64
	PVWatts        int
	ChargeWatts    int
	DischargeWatts int
	LoadWatts      int
}

func (t Telemetry) String() string {
	return fmt.Sprintf("SOC=%d%% batt=%.1fV pv=%dW charge=%dW discharge=%dW load=%dW",
		t.SOC, t.BatteryVolts, t.PVWatts, t.ChargeWatts, t.DischargeWatts, t.LoadWatts)
}

// Reader yields inverter telemetry.
type Reader interface {
	Read() (Telemetry, error)
	Close() error
}

// decode maps a block of readCount input registers to Telemetry.
func decode(regs []uint16) Telemetry {
	return Telemetry{
		SOC:            int(regs[regSOC] & 0xFF),
		SOH:            int(regs[regSOC] >> 8),
		BatteryVolts:   float64(regs[regBattVolts]) / 10,
		PV1Volts:       float64(regs[regPV1Volts]) / 10,
		PV2Volts:       float64(regs[regPV2Volts]) / 10,
		PVWatts:        int(regs[regPVWatts]),
		ChargeWatts:    int(regs[regChargeWatts]),
		DischargeWatts: int(regs[regDischargeWatts]),
		LoadWatts:      int(regs[regLoadWatts]),
	}
}
