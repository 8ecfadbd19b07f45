package modio

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// RealBus talks to the MOD-IO board over the Linux I2C bus.
type RealBus struct {
	bus i2c.BusCloser
	dev *i2c.Dev
}

// NewRealBus opens the named I2C bus ("" selects the first available)
// and addresses the MOD-IO at its fixed device address.
func NewRealBus(name string) (*RealBus, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init host: %w", err)
	}
	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus: %w", err)
	}
	return &RealBus{
		bus: bus,
		dev: &i2c.Dev{Addr: DeviceAddr, Bus: bus},
	}, nil
}

// ReadInputs reads the input register.
func (r *RealBus) ReadInputs() (byte, error) {
	var buf [1]byte
	if err := r.dev.Tx([]byte{RegInput}, buf[:]); err != nil {
		return 0, fmt.Errorf("read input register: %w", err)
	}
	return buf[0], nil
}

// WriteRelays writes the relay register.
func (r *RealBus) WriteRelays(b byte) error {
	if b > RelayMax {
		return fmt.Errorf("relay byte 0x%02X out of range", b)
	}
	if err := r.dev.Tx([]byte{RegRelay, b}, nil); err != nil {
		return fmt.Errorf("write relay register: %w", err)
	}
	return nil
}

// Close releases the I2C bus.
func (r *RealBus) Close() error {
	return r.bus.Close()
}
