package mqtt

import (
	"sync"
	"time"

	"github.com/pigenny/pigenny/internal/inverter"
)

// FakePublisher records everything published.
type FakePublisher struct {
	mu         sync.Mutex
	Telemetry  []inverter.Telemetry
	Events     []Event
	PublishErr error
	Closed     bool
}

func (f *FakePublisher) PublishTelemetry(tel inverter.Telemetry, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishErr != nil {
		return f.PublishErr
	}
	f.Telemetry = append(f.Telemetry, tel)
	return nil
}

func (f *FakePublisher) PublishEvent(ev Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishErr != nil {
		return f.PublishErr
	}
	f.Events = append(f.Events, ev)
	return nil
}

func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}
