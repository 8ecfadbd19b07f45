package supervisor

import (
	"fmt"
	"time"

	"github.com/pigenny/pigenny/internal/client"
)

// RemoteGenerator adapts the protocol client to the Generator
// interface the state machine drives.
type RemoteGenerator struct {
	Client           *client.Client
	DebounceChecks   int
	DebounceInterval time.Duration
}

// Start runs the start sequence. The server answers OK only once the
// engine is confirmed running and the charger is on; any other response
// is a failure.
func (g *RemoteGenerator) Start() error {
	resp, err := g.Client.Start()
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	if !isOK(resp) {
		return fmt.Errorf("start refused: %s", resp)
	}
	return nil
}

func (g *RemoteGenerator) Stop() error {
	resp, err := g.Client.Stop()
	if err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	if !isOK(resp) {
		return fmt.Errorf("stop refused: %s", resp)
	}
	return nil
}

func (g *RemoteGenerator) Running() (bool, error) {
	return g.Client.Running(g.DebounceChecks, g.DebounceInterval)
}

func (g *RemoteGenerator) Health() (string, error) {
	return g.Client.Health()
}

func isOK(resp string) bool {
	return len(resp) >= 2 && resp[:2] == "OK"
}
