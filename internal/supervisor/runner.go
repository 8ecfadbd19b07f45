package supervisor

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/pigenny/pigenny/internal/inverter"
	"github.com/pigenny/pigenny/internal/mqtt"
	"github.com/pigenny/pigenny/internal/status"
)

// Runner owns the poll loop: read telemetry, publish it, step the
// machine, refresh the status tracker. A failed telemetry read skips
// the machine step for that cycle, so stale SOC never drives a
// decision and the override flags are only honored alongside good
// telemetry.
type Runner struct {
	cfg     Config
	machine *Machine
	inv     inverter.Reader
	gen     Generator
	pub     mqtt.Publisher  // nil disables publishing
	tracker *status.Tracker // nil disables the status page

	lastLog    time.Time
	lastHealth time.Time
	lastSOC    int

	now  func() time.Time
	logf func(format string, v ...interface{})
}

func NewRunner(cfg Config, machine *Machine, inv inverter.Reader, gen Generator, pub mqtt.Publisher, tracker *status.Tracker) *Runner {
	r := &Runner{
		cfg:     cfg,
		machine: machine,
		inv:     inv,
		gen:     gen,
		pub:     pub,
		tracker: tracker,
		now:     time.Now,
		logf:    log.Printf,
	}
	machine.OnTransition = func(from, to State, reason string) {
		if r.pub == nil {
			return
		}
		ev := mqtt.Event{
			Timestamp: r.now(),
			From:      string(from),
			To:        string(to),
			Reason:    reason,
			SOC:       r.lastSOC,
		}
		if err := r.pub.PublishEvent(ev); err != nil {
			r.logf("publish event %s -> %s: %v", from, to, err)
		}
	}
	return r
}

// Run cycles until ctx is cancelled. The first cycle runs immediately.
func (r *Runner) Run(ctx context.Context) error {
	r.Cycle()
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.Cycle()
		}
	}
}

// Cycle runs one poll iteration.
func (r *Runner) Cycle() {
	tel, err := r.inv.Read()
	if err != nil {
		r.logf("telemetry read failed, skipping cycle: %v", err)
		return
	}
	now := r.now()
	r.lastSOC = tel.SOC

	if r.pub != nil {
		if err := r.pub.PublishTelemetry(tel, now); err != nil {
			r.logf("publish telemetry: %v", err)
		}
	}

	if now.Sub(r.lastLog) >= r.cfg.LogInterval {
		r.lastLog = now
		r.logf("telemetry: %s state=%s failures=%d", tel, r.machine.State(), r.machine.Failures())
	}

	if now.Sub(r.lastHealth) >= r.cfg.HealthInterval {
		r.lastHealth = now
		if report, err := r.gen.Health(); err != nil {
			r.logf("health probe failed: %v", err)
		} else {
			r.logf("controller health: %s", compactHealth(report))
		}
	}

	r.machine.Step(tel.SOC)

	if r.tracker != nil {
		r.tracker.Update(string(r.machine.State()), r.machine.Manual(),
			r.machine.Failures(), r.machine.StartedAt(), tel, now)
	}
}

// compactHealth folds a multi-line health report onto one log line.
func compactHealth(report string) string {
	return strings.Join(strings.Split(report, "\n"), ", ")
}
