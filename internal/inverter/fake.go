package inverter

import "sync"

// FakeReader serves scripted telemetry. The last record repeats once the
// script is exhausted.
type FakeReader struct {
	mu      sync.Mutex
	Records []Telemetry
	ReadErr error
	Closed  bool
	reads   int
}

func NewFakeReader(records ...Telemetry) *FakeReader {
	return &FakeReader{Records: records}
}

func (f *FakeReader) Read() (Telemetry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadErr != nil {
		return Telemetry{}, f.ReadErr
	}
	if len(f.Records) == 0 {
		return Telemetry{}, nil
	}
	i := f.reads
	if i >= len(f.Records) {
		i = len(f.Records) - 1
	}
	f.reads++
	return f.Records[i], nil
}

func (f *FakeReader) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}
