// Command genstatus queries a running genserver and prints its status
// and health in one of three formats, for humans, one-line dashboards,
// and scripts respectively.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/pigenny/pigenny/internal/client"
)

func main() {
	host := flag.String("host", "127.0.0.1", "Server hostname or IP")
	port := flag.Int("port", 9999, "Server port")
	format := flag.String("format", "human", "Output format: human, compact, kv")
	timeout := flag.Duration("timeout", 5*time.Second, "Connection timeout")

	flag.Parse()

	if err := run(os.Stdout, *host, *port, *format, *timeout); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(w io.Writer, host string, port int, format string, timeout time.Duration) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	c := client.New(addr, timeout)
	if err := c.Connect(); err != nil {
		return err
	}
	defer c.Disconnect()

	report := map[string]string{}

	statusText, err := c.Status()
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	parseReport(statusText, report)

	// Health is optional: an older server without the HEALTH command
	// still gets its status printed.
	if healthText, err := c.Health(); err == nil {
		parseReport(healthText, report)
	}

	switch format {
	case "human":
		formatHuman(w, report, host, port)
	case "compact":
		formatCompact(w, report, host, port)
	case "kv":
		formatKV(w, report, host, port)
	default:
		return fmt.Errorf("unknown format %q (want human, compact, or kv)", format)
	}
	return nil
}

// parseReport folds "KEY: value" lines into dst, skipping END and
// anything unkeyed.
func parseReport(text string, dst map[string]string) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == "END" {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		dst[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
}

func get(report map[string]string, key string) string {
	if v, ok := report[key]; ok {
		return v
	}
	return "unknown"
}

func formatHuman(w io.Writer, report map[string]string, host string, port int) {
	rule := strings.Repeat("=", 60)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Generator Server Status - %s:%d\n", host, port)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "GENERATOR:")
	fmt.Fprintf(w, "  Running:        %s\n", get(report, "RUNNING"))
	fmt.Fprintf(w, "  Start Progress: %s\n", get(report, "START_IN_PROGRESS"))
	fmt.Fprintf(w, "  Relays:         %s\n", get(report, "RELAYS"))
	fmt.Fprintf(w, "  Inputs:         %s\n", get(report, "INPUTS"))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "SYSTEM HEALTH:")
	fmt.Fprintf(w, "  Active Threads: %s\n", get(report, "THREADS"))
	fmt.Fprintf(w, "  Uptime:         %s\n", get(report, "UPTIME"))
	fmt.Fprintf(w, "  Memory Used:    %s\n", get(report, "MEMORY"))
	fmt.Fprintf(w, "  Disk Usage:     %s\n", get(report, "DISK"))
	fmt.Fprintf(w, "  I2C Status:     %s\n", get(report, "I2C"))
	fmt.Fprintln(w)
}

func formatCompact(w io.Writer, report map[string]string, host string, port int) {
	relays := get(report, "RELAYS")
	if f := strings.Fields(relays); len(f) > 0 {
		relays = f[0] // relay names without the hex echo
	}
	fmt.Fprintf(w, "[%s:%d] RUN=%s RELAY=%s THR=%s UP=%s MEM=%s\n",
		host, port, get(report, "RUNNING"), relays,
		get(report, "THREADS"), get(report, "UPTIME"), get(report, "MEMORY"))
}

func formatKV(w io.Writer, report map[string]string, host string, port int) {
	fmt.Fprintf(w, "host=%s\n", host)
	fmt.Fprintf(w, "port=%d\n", port)
	keys := make([]string, 0, len(report))
	for k := range report {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s=%s\n", strings.ToLower(strings.ReplaceAll(k, " ", "_")), report[k])
	}
}
