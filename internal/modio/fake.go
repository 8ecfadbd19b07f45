package modio

import "sync"

// FakeBus is a test double that returns scripted input values and
// records relay writes. It also backs the server's simulated mode when
// the real bus cannot be opened, so it is safe for concurrent use.
type FakeBus struct {
	mu sync.Mutex

	// Inputs contains scripted input values. Each ReadInputs call
	// consumes the next one; the last value repeats once exhausted.
	// An empty script reads as 0 (all inputs off), matching the
	// simulated mode of the deployed server.
	Inputs []byte
	index  int

	// Writes records every WriteRelays value in order, including writes
	// that were made to fail.
	Writes []byte

	// ReadErr, if set, is returned by ReadInputs.
	ReadErr error

	// WriteErr, if set, is returned by WriteRelays after FailAfter
	// successful writes.
	WriteErr  error
	FailAfter int

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeBus creates a FakeBus with the given input script.
func NewFakeBus(inputs ...byte) *FakeBus {
	return &FakeBus{Inputs: inputs}
}

// ReadInputs returns the next scripted input value.
func (f *FakeBus) ReadInputs() (byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadErr != nil {
		return 0, f.ReadErr
	}
	if len(f.Inputs) == 0 {
		return 0, nil
	}
	v := f.Inputs[f.index]
	if f.index < len(f.Inputs)-1 {
		f.index++
	}
	return v, nil
}

// WriteRelays records the write, failing once the configured number of
// successful writes has passed.
func (f *FakeBus) WriteRelays(b byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Writes = append(f.Writes, b)
	if f.WriteErr != nil && len(f.Writes) > f.FailAfter {
		return f.WriteErr
	}
	return nil
}

// Close marks the bus as closed.
func (f *FakeBus) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// LastWrite returns the most recent relay write, AllOff if none.
func (f *FakeBus) LastWrite() byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Writes) == 0 {
		return AllOff
	}
	return f.Writes[len(f.Writes)-1]
}

// WriteLog returns a copy of the recorded writes.
func (f *FakeBus) WriteLog() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]byte, len(f.Writes))
	copy(out, f.Writes)
	return out
}

// Reset rewinds the input script and clears recorded writes.
func (f *FakeBus) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.index = 0
	f.Writes = nil
	f.Closed = false
}
