package supervisor

import (
	"fmt"
	"os"
)

// Overrides exposes the operator's manual controls. The force-stop flag
// is consumed by the supervisor once acted on; force-charge persists
// until the operator removes it.
type Overrides interface {
	ForceCharge() bool
	ForceStop() bool
	ClearForceStop() error
}

// FileOverrides reads overrides as marker files: the file existing is
// the flag being set. Operators toggle them with touch and rm over ssh.
type FileOverrides struct {
	ChargePath string
	StopPath   string
}

func (f *FileOverrides) ForceCharge() bool {
	return fileExists(f.ChargePath)
}

func (f *FileOverrides) ForceStop() bool {
	return fileExists(f.StopPath)
}

func (f *FileOverrides) ClearForceStop() error {
	if err := os.Remove(f.StopPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear force-stop: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// FakeOverrides is the in-memory test double.
type FakeOverrides struct {
	Charge   bool
	Stop     bool
	Cleared  int
	ClearErr error
}

func (f *FakeOverrides) ForceCharge() bool { return f.Charge }
func (f *FakeOverrides) ForceStop() bool   { return f.Stop }

func (f *FakeOverrides) ClearForceStop() error {
	if f.ClearErr != nil {
		return f.ClearErr
	}
	f.Stop = false
	f.Cleared++
	return nil
}
