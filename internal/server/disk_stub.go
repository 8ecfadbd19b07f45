//go:build !linux

package server

// diskUsage is only implemented on Linux, where the controller runs.
func diskUsage(string) string {
	return "unknown"
}
