// Package sequence executes the phased generator start sequence and owns
// the shared relay/session state the command server operates on.
package sequence

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/pigenny/pigenny/internal/modio"
)

// Phase hold durations. The crank phase is the long one; the warm-up
// after a confirmed start dominates the total sequence time.
const (
	resetHold    = 1 * time.Second
	ignitionHold = 500 * time.Millisecond
	crankHold    = 10 * time.Second
	glowHold     = 2 * time.Second
	coastHold    = 4 * time.Second
	warmupHold   = 60 * time.Second
)

var (
	// ErrStartInProgress is returned when a start sequence is already
	// running.
	ErrStartInProgress = errors.New("start already in progress")

	// ErrAlreadyRunning is returned when the inputs already show the
	// running signature before the sequence touches a relay.
	ErrAlreadyRunning = errors.New("generator already running")
)

// StartError reports a sequence that completed but did not end with the
// engine running. Status is the input value observed after the coast
// phase, modio.InvalidInputs for a failed read.
type StartError struct {
	Status int
}

func (e *StartError) Error() string {
	return fmt.Sprintf("generator failed to start (status=%d)", e.Status)
}

// Engine owns the relay state and runs the start sequence.
//
// The mutex guards only the session fields (last relay byte, in-progress
// flag) and is never held across a sequence phase. Direct relay writes
// arriving on other connections are therefore not excluded while a start
// is in flight; that boundary matches the deployed server and must not
// be widened here without widening the protocol lock with it.
type Engine struct {
	// Sleep is called for each phase hold. Tests replace it; the
	// default is time.Sleep.
	Sleep func(time.Duration)

	mu         sync.Mutex
	bus        modio.Bus
	relays     byte
	inProgress bool

	logf func(format string, v ...interface{})
}

// New creates an engine over the given bus.
func New(bus modio.Bus) *Engine {
	return &Engine{
		Sleep: time.Sleep,
		bus:   bus,
		logf:  log.Printf,
	}
}

// SetRelays writes the relay byte and records it as the session state.
func (e *Engine) SetRelays(b byte) error {
	if err := e.bus.WriteRelays(b); err != nil {
		return err
	}
	e.mu.Lock()
	e.relays = b
	e.mu.Unlock()
	return nil
}

// Relays returns the last relay byte successfully written.
func (e *Engine) Relays() byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.relays
}

// ReadInputs returns the current input value, modio.InvalidInputs on a
// failed read. Read failures are logged, never fatal.
func (e *Engine) ReadInputs() int {
	b, err := e.bus.ReadInputs()
	if err != nil {
		e.logf("input read error: %v", err)
		return modio.InvalidInputs
	}
	return int(b)
}

// InProgress reports whether a start sequence is running.
func (e *Engine) InProgress() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inProgress
}

// AllOff forces every relay off, the only state safe at rest.
func (e *Engine) AllOff() error {
	return e.SetRelays(modio.AllOff)
}

// Start runs the phased start sequence. It blocks for the full duration,
// over a minute on success. Exactly one sequence may run at a time; a
// concurrent call fails fast with ErrStartInProgress. Every failure path
// after the first relay write forces the relays off before returning.
func (e *Engine) Start() error {
	e.mu.Lock()
	if e.inProgress {
		e.mu.Unlock()
		return ErrStartInProgress
	}
	e.inProgress = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.inProgress = false
		e.mu.Unlock()
	}()

	if modio.IsRunning(e.ReadInputs()) {
		return ErrAlreadyRunning
	}

	e.logf("starting generator sequence")

	phases := []struct {
		name   string
		relays byte
		hold   time.Duration
	}{
		{"reset", modio.AllOff, resetHold},
		{"ignition on", modio.RelayIgnition, ignitionHold},
		{"crank", modio.RelayIgnition | modio.RelayStarter, crankHold},
		{"glow + crank", modio.RelayIgnition | modio.RelayGlow | modio.RelayStarter, glowHold},
		{"coast/check", modio.RelayIgnition, coastHold},
	}

	for i, p := range phases {
		e.logf("phase %d: %s (%v)", i+1, p.name, p.hold)
		if err := e.SetRelays(p.relays); err != nil {
			e.failSafe()
			return fmt.Errorf("phase %d (%s): %w", i+1, p.name, err)
		}
		e.Sleep(p.hold)
	}

	status := e.ReadInputs()
	if !modio.IsRunning(status) {
		e.logf("start failed (status=%d), shutting down", status)
		e.failSafe()
		return &StartError{Status: status}
	}

	e.logf("generator running, warming up (%v)", warmupHold)
	e.Sleep(warmupHold)

	e.logf("enabling charger")
	if err := e.SetRelays(modio.RelayIgnition | modio.RelayCharger); err != nil {
		e.failSafe()
		return fmt.Errorf("enable charger: %w", err)
	}
	return nil
}

// failSafe forces the relays off. A failure here is logged and dropped:
// there is nothing safer left to do.
func (e *Engine) failSafe() {
	if err := e.AllOff(); err != nil {
		e.logf("fail-safe relay shutdown failed: %v", err)
	}
}
