// Package supervisor decides when the generator runs. It polls battery
// state of charge from the inverter and drives the generator server
// through a small state machine with failure backoff and file-based
// manual overrides.
package supervisor

// State is the supervisor's position in the charge cycle.
type State string

const (
	// StateIdle: generator off, watching SOC.
	StateIdle State = "IDLE"
	// StateStarting: a start attempt is in flight. The attempt
	// completes within one poll cycle, so this state is visible only in
	// transition events, never across cycles.
	StateStarting State = "STARTING"
	// StateRunning: generator confirmed running and charging.
	StateRunning State = "RUNNING"
	// StateStopping: a stop is in flight, same single-cycle visibility
	// as StateStarting.
	StateStopping State = "STOPPING"
	// StateErrorRecovery: start attempts exhausted or the generator
	// died unexpectedly; waiting before trying again.
	StateErrorRecovery State = "ERROR_RECOVERY"
	// StateError is a dead end retained for operators who watch for it.
	// No path enters it; recovery handling replaced it.
	StateError State = "ERROR"
)

// Generator is the supervisor's view of the remote generator server.
type Generator interface {
	// Start runs the start sequence and blocks until it settles.
	Start() error
	// Stop forces all relays off.
	Stop() error
	// Running reports whether the engine is running, debounced against
	// transient stumbles.
	Running() (bool, error)
	// Health fetches the controller's health report.
	Health() (string, error)
}
