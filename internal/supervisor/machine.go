package supervisor

import (
	"fmt"
	"log"
	"time"
)

// Machine is the supervisor state machine. It is stepped once per poll
// cycle with the current state of charge and is otherwise inert; all
// I/O goes through the injected Generator and Overrides.
type Machine struct {
	// OnTransition, when set, observes every state change.
	OnTransition func(from, to State, reason string)

	cfg Config
	gen Generator
	ovr Overrides

	state     State
	manual    bool
	startedAt time.Time
	stoppedAt time.Time
	backoff   Backoff

	now  func() time.Time
	logf func(format string, v ...interface{})
}

func NewMachine(cfg Config, gen Generator, ovr Overrides) *Machine {
	return &Machine{
		cfg:   cfg,
		gen:   gen,
		ovr:   ovr,
		state: StateIdle,
		backoff: Backoff{
			MaxAttempts: cfg.MaxStartAttempts,
			Window:      cfg.RecoveryWait,
		},
		now:  time.Now,
		logf: log.Printf,
	}
}

func (m *Machine) State() State         { return m.state }
func (m *Machine) Manual() bool         { return m.manual }
func (m *Machine) Failures() int        { return m.backoff.Failures() }
func (m *Machine) StartedAt() time.Time { return m.startedAt }

// Step advances the machine one poll cycle.
func (m *Machine) Step(soc int) {
	switch m.state {
	case StateIdle:
		m.stepIdle(soc)
	case StateRunning:
		m.stepRunning(soc)
	case StateErrorRecovery:
		m.stepRecovery(soc)
	case StateError:
		m.logf("in terminal ERROR state; manual intervention required")
	default:
		// STARTING and STOPPING resolve within the cycle that entered
		// them and are never observed here.
		m.logf("unexpected state %s at cycle start, treating as IDLE", m.state)
		m.state = StateIdle
	}
}

func (m *Machine) stepIdle(soc int) {
	if m.ovr.ForceCharge() {
		m.attemptStart(true)
		return
	}
	if soc < m.cfg.StartSOC {
		m.logf("SOC %d%% below start threshold %d%%", soc, m.cfg.StartSOC)
		m.attemptStart(false)
	}
}

// attemptStart drives one start attempt to completion. Success lands in
// RUNNING; failure either returns to IDLE or, once the attempt budget
// is exhausted, enters ERROR_RECOVERY with the counter preserved.
func (m *Machine) attemptStart(manual bool) {
	reason := "battery low"
	if manual {
		reason = "force-charge override"
	}
	m.transition(StateStarting, reason)

	if err := m.gen.Start(); err != nil {
		m.backoff.Failure(m.now())
		m.logf("start attempt %d/%d failed: %v", m.backoff.Failures(), m.cfg.MaxStartAttempts, err)
		if m.backoff.Exhausted() {
			m.transition(StateErrorRecovery,
				fmt.Sprintf("%d consecutive start failures", m.backoff.Failures()))
		} else {
			m.transition(StateIdle, "start failed")
		}
		return
	}

	m.startedAt = m.now()
	m.manual = manual
	m.backoff.Reset()
	m.transition(StateRunning, reason)
}

func (m *Machine) stepRunning(soc int) {
	// Force-stop outranks everything, including a simultaneous
	// SOC-stop condition.
	if m.ovr.ForceStop() {
		if err := m.ovr.ClearForceStop(); err != nil {
			m.logf("failed to clear force-stop flag: %v", err)
		}
		m.stopToIdle("force-stop override")
		return
	}

	if m.manual && !m.ovr.ForceCharge() {
		m.stopToIdle("manual charge cancelled")
		return
	}

	running, err := m.gen.Running()
	if err != nil {
		m.logf("running check failed: %v", err)
		return
	}
	if !running {
		// Fuel out or stall. Best-effort relay clear, then back off
		// before restarting; the failure counter carries over.
		m.logf("generator stopped unsolicited")
		if err := m.gen.Stop(); err != nil {
			m.logf("relay clear after unsolicited stop failed: %v", err)
		}
		m.startedAt = time.Time{}
		m.stoppedAt = m.now()
		m.manual = false
		m.backoff.OpenWindow(m.now())
		m.transition(StateErrorRecovery, "unsolicited stop")
		return
	}

	if !m.manual && soc >= m.cfg.StopSOC {
		m.stopToIdle(fmt.Sprintf("SOC %d%% reached stop threshold %d%%", soc, m.cfg.StopSOC))
		return
	}

	if runtime := m.now().Sub(m.startedAt); runtime >= m.cfg.MaxRuntime {
		m.stopToIdle(fmt.Sprintf("max runtime %v reached", m.cfg.MaxRuntime))
	}
}

// stopToIdle issues a deliberate stop, verifies once, and lands in
// IDLE regardless of the verification result.
func (m *Machine) stopToIdle(reason string) {
	m.transition(StateStopping, reason)
	if err := m.gen.Stop(); err != nil {
		m.logf("stop failed: %v", err)
	}
	if running, err := m.gen.Running(); err != nil {
		m.logf("post-stop check failed: %v", err)
	} else if running {
		m.logf("generator still reports running after stop")
	}
	m.startedAt = time.Time{}
	m.stoppedAt = m.now()
	m.manual = false
	m.transition(StateIdle, reason)
}

func (m *Machine) stepRecovery(soc int) {
	if soc >= m.cfg.StartSOC {
		// Solar brought the battery back on its own.
		m.backoff.Reset()
		m.transition(StateIdle, "battery recovered without generator")
		return
	}

	if m.backoff.Exhausted() {
		if !m.backoff.Ready(m.now()) {
			return
		}
		m.logf("recovery window elapsed after %d failures, resuming start attempts", m.backoff.Failures())
		m.backoff.Reset()
	}

	m.attemptStart(false)
}

func (m *Machine) transition(to State, reason string) {
	from := m.state
	if from == to {
		return
	}
	m.state = to
	m.logf("state %s -> %s: %s", from, to, reason)
	if m.OnTransition != nil {
		m.OnTransition(from, to, reason)
	}
}
