// Package modio models the Olimex MOD-IO relay board that drives the
// generator: four relay circuits written as one byte, four optoisolated
// status inputs read as one byte. The real implementation talks to the
// board over I2C; the fake allows testing without hardware.
package modio

import (
	"fmt"
	"strings"
)

// I2C address and register map of the MOD-IO board.
const (
	DeviceAddr = 0x58
	RegRelay   = 0x10
	RegInput   = 0x20
)

// Relay circuit bits. A relay byte is the OR of these, 0x00-0x0F.
const (
	RelayStarter  byte = 0x01 // starter motor
	RelayCharger  byte = 0x02 // charger enable
	RelayGlow     byte = 0x04 // glow plugs
	RelayIgnition byte = 0x08 // fuel solenoid

	// AllOff is the only relay state guaranteed safe at rest.
	AllOff byte = 0x00

	// RelayMax is the highest valid relay byte.
	RelayMax byte = 0x0F
)

// RunningSignature is the input value that proves the engine is running:
// lines 1 and 2 asserted, 3 and 4 clear. Any other value means not
// running.
const RunningSignature = 3

// InvalidInputs marks a failed input read when input values are carried
// as ints.
const InvalidInputs = -1

// Bus reads the input register and writes the relay register. Either
// operation may fail with a bus error; callers must treat failures as
// results, never as reasons to crash.
type Bus interface {
	ReadInputs() (byte, error)
	WriteRelays(b byte) error
	Close() error
}

// IsRunning reports whether an input value matches the running signature.
func IsRunning(v int) bool {
	return v == RunningSignature
}

// RelayNames returns the names of the energized circuits in display
// order. The list is empty exactly for the all-off byte.
func RelayNames(b byte) []string {
	var names []string
	if b&RelayIgnition != 0 {
		names = append(names, "IGN")
	}
	if b&RelayGlow != 0 {
		names = append(names, "GLOW")
	}
	if b&RelayCharger != 0 {
		names = append(names, "CHARGER")
	}
	if b&RelayStarter != 0 {
		names = append(names, "START")
	}
	return names
}

// FormatRelays renders a relay byte as a "+"-joined name list, "OFF" for
// the all-off byte.
func FormatRelays(b byte) string {
	names := RelayNames(b)
	if len(names) == 0 {
		return "OFF"
	}
	return strings.Join(names, "+")
}

// DecodeInputs splits an input value into its four lines. Values outside
// 0-15 decode as all clear.
func DecodeInputs(v int) (in1, in2, in3, in4 bool) {
	if v < 0 || v > 15 {
		return false, false, false, false
	}
	return v&0x01 != 0, v&0x02 != 0, v&0x04 != 0, v&0x08 != 0
}

// FormatInputs renders an input value the way the STATUS report shows
// it. Negative values (failed reads) render as "ERROR".
func FormatInputs(v int) string {
	if v < 0 {
		return "ERROR"
	}
	in1, in2, in3, in4 := DecodeInputs(v)
	return fmt.Sprintf("IN1=%d IN2=%d IN3=%d IN4=%d raw=%d",
		b2i(in1), b2i(in2), b2i(in3), b2i(in4), v)
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
