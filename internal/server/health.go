package server

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// healthReport builds the multi-line HEALTH response consumed by the
// supervisor's periodic health probe and the genstatus tool. Probes that
// cannot be answered on this platform render "unknown" rather than
// failing the command.
func (s *Server) healthReport() string {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	lines := []string{
		fmt.Sprintf("THREADS: %d", runtime.NumGoroutine()),
		"UPTIME: " + formatUptime(time.Since(s.started)),
		fmt.Sprintf("MEMORY: %.1fMB", float64(m.HeapInuse)/(1<<20)),
		"DISK: " + diskUsage("/"),
		"END",
	}
	return strings.Join(lines, "\n")
}

func formatUptime(d time.Duration) string {
	return d.Truncate(time.Second).String()
}
