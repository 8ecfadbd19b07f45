// Package status tracks the supervisor's last observed state for the
// web status page.
package status

import (
	"sync"
	"time"

	"github.com/pigenny/pigenny/internal/inverter"
)

// Config is the subset of supervisor settings echoed on the status page.
type Config struct {
	GeneratorAddr string
	StartSOC      int
	StopSOC       int
	PollInterval  time.Duration
	MaxRuntime    time.Duration
}

// Snapshot is a point-in-time copy of everything the page renders.
type Snapshot struct {
	State              string
	Manual             bool
	Failures           int
	GeneratorStartedAt time.Time
	Telemetry          inverter.Telemetry
	TelemetryAt        time.Time
	StartTime          time.Time
	Now                time.Time
	Config             Config
}

// Uptime is how long the supervisor has been up.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime).Truncate(time.Second)
}

// GeneratorRuntime is how long the current generator run has lasted,
// zero when the generator is not running.
func (s Snapshot) GeneratorRuntime() time.Duration {
	if s.GeneratorStartedAt.IsZero() {
		return 0
	}
	return s.Now.Sub(s.GeneratorStartedAt).Truncate(time.Second)
}

// Tracker holds the latest snapshot behind a lock. The supervisor loop
// writes, HTTP handlers read.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

func NewTracker(cfg Config) *Tracker {
	return &Tracker{snap: Snapshot{
		State:     "IDLE",
		StartTime: time.Now(),
		Config:    cfg,
	}}
}

// Update records the supervisor's state after a poll cycle.
func (t *Tracker) Update(state string, manual bool, failures int, genStarted time.Time, tel inverter.Telemetry, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.State = state
	t.snap.Manual = manual
	t.snap.Failures = failures
	t.snap.GeneratorStartedAt = genStarted
	t.snap.Telemetry = tel
	t.snap.TelemetryAt = at
}

// Snapshot returns a copy of the current state with Now filled in.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	snap := t.snap
	snap.Now = time.Now()
	return snap
}
