package sequence

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pigenny/pigenny/internal/modio"
)

func newTestEngine(bus *modio.FakeBus) (*Engine, *[]time.Duration) {
	e := New(bus)
	e.logf = func(string, ...interface{}) {}
	var sleeps []time.Duration
	e.Sleep = func(d time.Duration) { sleeps = append(sleeps, d) }
	return e, &sleeps
}

func TestStartSuccess(t *testing.T) {
	// First read: pre-check, not running. Second read: post-coast,
	// running signature.
	bus := modio.NewFakeBus(0, 3)
	e, sleeps := newTestEngine(bus)

	if err := e.Start(); err != nil {
		t.Fatalf("Start: unexpected error %v", err)
	}

	wantWrites := []byte{0x00, 0x08, 0x09, 0x0D, 0x08, 0x0A}
	got := bus.WriteLog()
	if len(got) != len(wantWrites) {
		t.Fatalf("writes: got %v, want %v", got, wantWrites)
	}
	for i := range wantWrites {
		if got[i] != wantWrites[i] {
			t.Errorf("write %d: got 0x%02X, want 0x%02X", i, got[i], wantWrites[i])
		}
	}

	wantSleeps := []time.Duration{
		time.Second, 500 * time.Millisecond, 10 * time.Second,
		2 * time.Second, 4 * time.Second, 60 * time.Second,
	}
	if len(*sleeps) != len(wantSleeps) {
		t.Fatalf("sleeps: got %v, want %v", *sleeps, wantSleeps)
	}
	for i := range wantSleeps {
		if (*sleeps)[i] != wantSleeps[i] {
			t.Errorf("sleep %d: got %v, want %v", i, (*sleeps)[i], wantSleeps[i])
		}
	}

	if e.Relays() != 0x0A {
		t.Errorf("final relays: got 0x%02X, want 0x0A", e.Relays())
	}
	if e.InProgress() {
		t.Error("InProgress should be false after completion")
	}
}

func TestStartFailureForcesRelaysOff(t *testing.T) {
	// Engine never catches: both reads return 0.
	bus := modio.NewFakeBus(0, 0)
	e, _ := newTestEngine(bus)

	err := e.Start()
	var se *StartError
	if !errors.As(err, &se) {
		t.Fatalf("Start: got %v, want StartError", err)
	}
	if se.Status != 0 {
		t.Errorf("StartError.Status: got %d, want 0", se.Status)
	}
	if bus.LastWrite() != modio.AllOff {
		t.Errorf("final write: got 0x%02X, want all off", bus.LastWrite())
	}
	if e.Relays() != modio.AllOff {
		t.Errorf("recorded relays: got 0x%02X, want all off", e.Relays())
	}
}

func TestStartFailureReportsReadError(t *testing.T) {
	bus := modio.NewFakeBus(0)
	e, _ := newTestEngine(bus)

	// Fail the post-coast read only.
	origSleep := e.Sleep
	e.Sleep = func(d time.Duration) {
		origSleep(d)
		if d == 4*time.Second {
			bus.ReadErr = errors.New("bus fault")
		}
	}

	err := e.Start()
	var se *StartError
	if !errors.As(err, &se) {
		t.Fatalf("Start: got %v, want StartError", err)
	}
	if se.Status != modio.InvalidInputs {
		t.Errorf("StartError.Status: got %d, want %d", se.Status, modio.InvalidInputs)
	}
	if bus.LastWrite() != modio.AllOff {
		t.Errorf("final write: got 0x%02X, want all off", bus.LastWrite())
	}
}

func TestStartRejectedWhenAlreadyRunning(t *testing.T) {
	bus := modio.NewFakeBus(3)
	e, _ := newTestEngine(bus)

	if err := e.Start(); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("Start: got %v, want ErrAlreadyRunning", err)
	}
	if len(bus.WriteLog()) != 0 {
		t.Errorf("no relays should be written, got %v", bus.WriteLog())
	}
}

func TestStartRejectedWhileInProgress(t *testing.T) {
	bus := modio.NewFakeBus(0, 0)
	e, _ := newTestEngine(bus)

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	e.Sleep = func(time.Duration) {
		once.Do(func() { close(entered) })
		<-release
	}

	errCh := make(chan error, 1)
	go func() { errCh <- e.Start() }()
	<-entered

	if !e.InProgress() {
		t.Error("InProgress should be true during a sequence")
	}
	if err := e.Start(); !errors.Is(err, ErrStartInProgress) {
		t.Fatalf("concurrent Start: got %v, want ErrStartInProgress", err)
	}

	close(release)
	if err := <-errCh; err == nil {
		t.Fatal("first Start should fail with inputs stuck at 0")
	}
	if e.InProgress() {
		t.Error("InProgress should be false after the sequence exits")
	}
}

func TestWriteFaultMidSequenceFailsSafe(t *testing.T) {
	bus := modio.NewFakeBus(0)
	// Reset and ignition succeed; the crank write fails.
	bus.WriteErr = errors.New("bus fault")
	bus.FailAfter = 2
	e, _ := newTestEngine(bus)

	err := e.Start()
	if err == nil || !errors.Is(err, bus.WriteErr) {
		t.Fatalf("Start: got %v, want wrapped bus fault", err)
	}

	// The last attempted write must be the fail-safe all-off, even
	// though it also fails against this bus.
	if bus.LastWrite() != modio.AllOff {
		t.Errorf("final attempted write: got 0x%02X, want all off", bus.LastWrite())
	}

	// The guard is released even on the fault path.
	if e.InProgress() {
		t.Error("InProgress should be false after a fault")
	}
}

func TestSetRelaysRecordsState(t *testing.T) {
	bus := modio.NewFakeBus()
	e, _ := newTestEngine(bus)

	if err := e.SetRelays(0x0A); err != nil {
		t.Fatalf("SetRelays: %v", err)
	}
	if e.Relays() != 0x0A {
		t.Errorf("Relays: got 0x%02X, want 0x0A", e.Relays())
	}

	bus.WriteErr = errors.New("bus fault")
	if err := e.SetRelays(0x05); err == nil {
		t.Fatal("SetRelays should surface the bus error")
	}
	// A failed write must not update the recorded state.
	if e.Relays() != 0x0A {
		t.Errorf("Relays after failed write: got 0x%02X, want 0x0A", e.Relays())
	}
}

func TestReadInputsErrorMapsToInvalid(t *testing.T) {
	bus := modio.NewFakeBus(3)
	bus.ReadErr = errors.New("bus fault")
	e, _ := newTestEngine(bus)

	if got := e.ReadInputs(); got != modio.InvalidInputs {
		t.Errorf("ReadInputs: got %d, want %d", got, modio.InvalidInputs)
	}
}
