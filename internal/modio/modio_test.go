package modio

import (
	"errors"
	"strings"
	"testing"
)

func TestRelayNamesRoundTrip(t *testing.T) {
	bits := map[string]byte{
		"IGN":     RelayIgnition,
		"GLOW":    RelayGlow,
		"CHARGER": RelayCharger,
		"START":   RelayStarter,
	}

	for v := byte(0); v <= RelayMax; v++ {
		names := RelayNames(v)
		if v == 0 && len(names) != 0 {
			t.Errorf("RelayNames(0): got %v, want empty", names)
		}
		var rebuilt byte
		for _, n := range names {
			bit, ok := bits[n]
			if !ok {
				t.Fatalf("RelayNames(%d): unknown name %q", v, n)
			}
			rebuilt |= bit
		}
		if rebuilt != v {
			t.Errorf("RelayNames(%d): rebuilt 0x%02X from %v", v, rebuilt, names)
		}
	}
}

func TestFormatRelays(t *testing.T) {
	tests := []struct {
		b    byte
		want string
	}{
		{0x00, "OFF"},
		{0x01, "START"},
		{0x08, "IGN"},
		{0x09, "IGN+START"},
		{0x0A, "IGN+CHARGER"},
		{0x0D, "IGN+GLOW+START"},
		{0x0F, "IGN+GLOW+CHARGER+START"},
	}
	for _, tt := range tests {
		if got := FormatRelays(tt.b); got != tt.want {
			t.Errorf("FormatRelays(0x%02X): got %q, want %q", tt.b, got, tt.want)
		}
	}
}

func TestDecodeInputsRoundTrip(t *testing.T) {
	for v := 0; v <= 15; v++ {
		in1, in2, in3, in4 := DecodeInputs(v)
		rebuilt := b2i(in1) | b2i(in2)<<1 | b2i(in3)<<2 | b2i(in4)<<3
		if rebuilt != v {
			t.Errorf("DecodeInputs(%d): rebuilt %d", v, rebuilt)
		}
	}
}

func TestFormatInputs(t *testing.T) {
	tests := []struct {
		v    int
		want string
	}{
		{InvalidInputs, "ERROR"},
		{0, "IN1=0 IN2=0 IN3=0 IN4=0 raw=0"},
		{3, "IN1=1 IN2=1 IN3=0 IN4=0 raw=3"},
		{5, "IN1=1 IN2=0 IN3=1 IN4=0 raw=5"},
		{15, "IN1=1 IN2=1 IN3=1 IN4=1 raw=15"},
	}
	for _, tt := range tests {
		if got := FormatInputs(tt.v); got != tt.want {
			t.Errorf("FormatInputs(%d): got %q, want %q", tt.v, got, tt.want)
		}
	}
}

func TestIsRunning(t *testing.T) {
	for v := 0; v <= 15; v++ {
		want := v == 3
		if got := IsRunning(v); got != want {
			t.Errorf("IsRunning(%d): got %v, want %v", v, got, want)
		}
	}
	if IsRunning(InvalidInputs) {
		t.Error("IsRunning(InvalidInputs): got true, want false")
	}
}

func TestFakeBusScript(t *testing.T) {
	f := NewFakeBus(0, 5, 3)

	want := []byte{0, 5, 3, 3, 3}
	for i, w := range want {
		got, err := f.ReadInputs()
		if err != nil {
			t.Fatalf("read %d: unexpected error %v", i, err)
		}
		if got != w {
			t.Errorf("read %d: got %d, want %d", i, got, w)
		}
	}
}

func TestFakeBusEmptyScriptReadsZero(t *testing.T) {
	f := NewFakeBus()
	got, err := f.ReadInputs()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0 {
		t.Errorf("got %d, want 0", got)
	}
}

func TestFakeBusRecordsWrites(t *testing.T) {
	f := NewFakeBus()
	f.WriteRelays(0x08)
	f.WriteRelays(0x00)

	log := f.WriteLog()
	if len(log) != 2 || log[0] != 0x08 || log[1] != 0x00 {
		t.Errorf("WriteLog: got %v, want [8 0]", log)
	}
	if f.LastWrite() != 0x00 {
		t.Errorf("LastWrite: got 0x%02X, want 0x00", f.LastWrite())
	}
}

func TestFakeBusWriteFailure(t *testing.T) {
	f := NewFakeBus()
	f.WriteErr = errors.New("bus fault")
	f.FailAfter = 1

	if err := f.WriteRelays(0x08); err != nil {
		t.Fatalf("first write should succeed, got %v", err)
	}
	err := f.WriteRelays(0x09)
	if err == nil || !strings.Contains(err.Error(), "bus fault") {
		t.Fatalf("second write: got %v, want bus fault", err)
	}
	// Failed writes are still recorded so tests can assert fail-safe
	// attempts.
	if len(f.WriteLog()) != 2 {
		t.Errorf("WriteLog: got %d entries, want 2", len(f.WriteLog()))
	}
}

func TestFakeBusReadError(t *testing.T) {
	f := NewFakeBus(3)
	f.ReadErr = errors.New("bus fault")
	if _, err := f.ReadInputs(); err == nil {
		t.Fatal("expected read error")
	}
}
