package inverter

import (
	"encoding/binary"
	"fmt"
)

const fnReadInputRegisters = 4

// crc16 is the Modbus CRC (poly 0xA001, init 0xFFFF).
func crc16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = crc>>1 ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

// buildReadRequest frames a Read Input Registers request. The CRC goes
// on the wire low byte first.
func buildReadRequest(unit byte, start, count uint16) []byte {
	frame := make([]byte, 8)
	frame[0] = unit
	frame[1] = fnReadInputRegisters
	binary.BigEndian.PutUint16(frame[2:], start)
	binary.BigEndian.PutUint16(frame[4:], count)
	crc := crc16(frame[:6])
	frame[6] = byte(crc)
	frame[7] = byte(crc >> 8)
	return frame
}

// parseReadResponse validates a Read Input Registers response frame and
// returns its count registers.
func parseReadResponse(unit byte, count uint16, frame []byte) ([]uint16, error) {
	if len(frame) < 5 {
		return nil, fmt.Errorf("short frame (%d bytes)", len(frame))
	}
	if frame[0] != unit {
		return nil, fmt.Errorf("response from unit %d, want %d", frame[0], unit)
	}
	if frame[1] == fnReadInputRegisters|0x80 {
		return nil, fmt.Errorf("modbus exception 0x%02X", frame[2])
	}
	if frame[1] != fnReadInputRegisters {
		return nil, fmt.Errorf("unexpected function 0x%02X", frame[1])
	}

	want := int(count) * 2
	if int(frame[2]) != want {
		return nil, fmt.Errorf("byte count %d, want %d", frame[2], want)
	}
	if len(frame) != 3+want+2 {
		return nil, fmt.Errorf("frame length %d, want %d", len(frame), 3+want+2)
	}

	body := frame[:len(frame)-2]
	wire := uint16(frame[len(frame)-2]) | uint16(frame[len(frame)-1])<<8
	if crc := crc16(body); crc != wire {
		return nil, fmt.Errorf("crc mismatch: got 0x%04X, want 0x%04X", wire, crc)
	}

	regs := make([]uint16, count)
	for i := range regs {
		regs[i] = binary.BigEndian.Uint16(frame[3+2*i:])
	}
	return regs, nil
}

// isException reports whether frame carries an exception function code,
// meaning no further register bytes will follow.
func isException(frame []byte) bool {
	return len(frame) >= 2 && frame[1]&0x80 != 0
}
