package inverter

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// port is the slice of serial.Port the reader uses. Tests substitute a
// scripted implementation.
type port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// RealReader polls the inverter over an RS485 serial line.
type RealReader struct {
	port port
	unit byte
}

// responseLen is the full Read Input Registers response for readCount
// registers: unit + fn + byte count + data + crc.
const responseLen = 3 + readCount*2 + 2

// Open connects to the inverter on the given serial device at 9600 8N1.
func Open(device string, unit byte) (*RealReader, error) {
	p, err := serial.Open(device, &serial.Mode{
		BaudRate: 9600,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", device, err)
	}
	if err := p.SetReadTimeout(3 * time.Second); err != nil {
		p.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	return &RealReader{port: p, unit: unit}, nil
}

// Read polls one telemetry block.
func (r *RealReader) Read() (Telemetry, error) {
	req := buildReadRequest(r.unit, readBase, readCount)
	if _, err := r.port.Write(req); err != nil {
		return Telemetry{}, fmt.Errorf("write request: %w", err)
	}

	// The serial layer returns reads in arbitrary chunks; accumulate
	// until the frame is complete. A zero-byte read means the timeout
	// expired with the inverter silent.
	frame := make([]byte, 0, responseLen)
	buf := make([]byte, responseLen)
	for len(frame) < responseLen {
		n, err := r.port.Read(buf[:responseLen-len(frame)])
		if err != nil {
			return Telemetry{}, fmt.Errorf("read response: %w", err)
		}
		if n == 0 {
			return Telemetry{}, fmt.Errorf("read response: timeout after %d of %d bytes", len(frame), responseLen)
		}
		frame = append(frame, buf[:n]...)
		if isException(frame) && len(frame) >= 5 {
			break
		}
	}

	regs, err := parseReadResponse(r.unit, readCount, frame)
	if err != nil {
		return Telemetry{}, fmt.Errorf("parse response: %w", err)
	}
	return decode(regs), nil
}

func (r *RealReader) Close() error {
	return r.port.Close()
}
