package client

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// startServer runs a minimal protocol server on a loopback listener.
// handler maps a command line to its full response (multi-line responses
// include their END marker). greet runs right after the welcome line,
// before any command is read.
func startServer(t *testing.T, handler func(cmd string) string, greet func(conn net.Conn)) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				fmt.Fprintln(conn, "GENNY SERVER READY")
				if greet != nil {
					greet(conn)
				}
				sc := bufio.NewScanner(conn)
				for sc.Scan() {
					cmd := strings.TrimSpace(sc.Text())
					if cmd == "QUIT" {
						fmt.Fprintln(conn, "BYE")
						return
					}
					fmt.Fprintln(conn, handler(cmd))
				}
			}(conn)
		}
	}()
	return ln.Addr().String()
}

func newTestClient(t *testing.T, addr string) *Client {
	t.Helper()
	c := New(addr, 2*time.Second)
	c.Sleep = func(time.Duration) {}
	c.logf = func(string, ...interface{}) {}
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(c.Disconnect)
	return c
}

func statusResponse(inputs int) string {
	running := "NO"
	if inputs == 3 {
		running = "YES"
	}
	return strings.Join([]string{
		fmt.Sprintf("INPUTS: IN1=1 IN2=1 IN3=0 IN4=0 raw=%d", inputs),
		"RELAYS: OFF (0x00)",
		"RUNNING: " + running,
		"START_IN_PROGRESS: NO",
		"I2C: OK",
		"END",
	}, "\n")
}

func TestPing(t *testing.T) {
	addr := startServer(t, func(cmd string) string {
		if cmd != "PING" {
			t.Errorf("server got %q, want PING", cmd)
		}
		return "PONG"
	}, nil)

	c := newTestClient(t, addr)
	got, err := c.Ping()
	if err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if got != "PONG" {
		t.Errorf("Ping: got %q, want PONG", got)
	}
}

func TestStatusReadsToEnd(t *testing.T) {
	addr := startServer(t, func(string) string { return statusResponse(3) }, nil)

	c := newTestClient(t, addr)
	got, err := c.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if strings.Contains(got, "END") {
		t.Errorf("Status should strip the END marker:\n%s", got)
	}
	if !strings.Contains(got, "RUNNING: YES") {
		t.Errorf("Status missing RUNNING line:\n%s", got)
	}
	if lines := strings.Split(got, "\n"); len(lines) != 5 {
		t.Errorf("Status: got %d lines, want 5:\n%s", len(lines), got)
	}
}

func TestHelpAndHealthAreMultiLine(t *testing.T) {
	addr := startServer(t, func(cmd string) string {
		switch cmd {
		case "HELP":
			return "Commands:\n  PING\n  STATUS\nEND"
		case "HEALTH":
			return "THREADS: 4\nUPTIME: 1h2m3s\nMEMORY: 1.5MB\nDISK: 40%\nEND"
		}
		return "ERROR: unexpected"
	}, nil)

	c := newTestClient(t, addr)
	help, err := c.Send("HELP")
	if err != nil {
		t.Fatalf("HELP: %v", err)
	}
	if !strings.Contains(help, "STATUS") || strings.Contains(help, "END") {
		t.Errorf("HELP: got %q", help)
	}

	health, err := c.Health()
	if err != nil {
		t.Fatalf("HEALTH: %v", err)
	}
	if !strings.HasPrefix(health, "THREADS: 4") || !strings.Contains(health, "DISK: 40%") {
		t.Errorf("HEALTH: got %q", health)
	}
}

func TestRelayFormatsHex(t *testing.T) {
	var got atomic.Value
	addr := startServer(t, func(cmd string) string {
		got.Store(cmd)
		return "OK: Relays set to 0x0A (IGN+CHARGER)"
	}, nil)

	c := newTestClient(t, addr)
	if _, err := c.Relay(0x0A); err != nil {
		t.Fatalf("Relay: %v", err)
	}
	if cmd := got.Load(); cmd != "RELAY 0A" {
		t.Errorf("Relay sent %q, want RELAY 0A", cmd)
	}
}

func TestStopDrainsStaleResponse(t *testing.T) {
	// A response left over from an abandoned exchange must not be taken
	// for STOP's.
	addr := startServer(t, func(cmd string) string {
		if cmd != "STOP" {
			t.Errorf("server got %q, want STOP", cmd)
		}
		return "OK: Generator stopped"
	}, func(conn net.Conn) {
		fmt.Fprintln(conn, "ERROR: Generator failed to start (status=0)")
	})

	c := newTestClient(t, addr)
	// Give the stale line time to land in the socket.
	time.Sleep(100 * time.Millisecond)

	got, err := c.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got != "OK: Generator stopped" {
		t.Errorf("Stop: got %q, want the fresh response", got)
	}
}

func TestStartReconnects(t *testing.T) {
	var conns int32
	addr := startServer(t, func(cmd string) string {
		if cmd != "START" {
			t.Errorf("server got %q, want START", cmd)
		}
		return "OK: Generator started and charger enabled"
	}, func(net.Conn) {
		atomic.AddInt32(&conns, 1)
	})

	c := newTestClient(t, addr)
	got, err := c.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got != "OK: Generator started and charger enabled" {
		t.Errorf("Start: got %q", got)
	}
	if n := atomic.LoadInt32(&conns); n != 2 {
		t.Errorf("Start should open a fresh connection: got %d connections, want 2", n)
	}
}

func TestRunningDebounce(t *testing.T) {
	tests := []struct {
		name       string
		script     []int
		want       bool
		wantSleeps int
	}{
		{"immediately running", []int{3}, true, 0},
		{"recovers on recheck", []int{0, 0, 3}, true, 2},
		{"consistently stopped", []int{0, 0, 0}, false, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var call int32
			addr := startServer(t, func(string) string {
				i := int(atomic.AddInt32(&call, 1)) - 1
				if i >= len(tt.script) {
					i = len(tt.script) - 1
				}
				return statusResponse(tt.script[i])
			}, nil)

			c := newTestClient(t, addr)
			sleeps := 0
			c.Sleep = func(d time.Duration) {
				sleeps++
				if d != 2*time.Second {
					t.Errorf("sleep interval: got %v, want 2s", d)
				}
			}

			got, err := c.Running(3, 2*time.Second)
			if err != nil {
				t.Fatalf("Running: %v", err)
			}
			if got != tt.want {
				t.Errorf("Running: got %v, want %v", got, tt.want)
			}
			if sleeps != tt.wantSleeps {
				t.Errorf("sleeps: got %d, want %d", sleeps, tt.wantSleeps)
			}
		})
	}
}

func TestDisconnectSendsQuit(t *testing.T) {
	var sawQuit atomic.Bool
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		fmt.Fprintln(conn, "GENNY SERVER READY")
		sc := bufio.NewScanner(conn)
		for sc.Scan() {
			if strings.TrimSpace(sc.Text()) == "QUIT" {
				sawQuit.Store(true)
				fmt.Fprintln(conn, "BYE")
				return
			}
		}
	}()

	c := New(ln.Addr().String(), 2*time.Second)
	c.logf = func(string, ...interface{}) {}
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	c.Disconnect()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("server did not see session end")
	}
	if !sawQuit.Load() {
		t.Error("Disconnect should send QUIT")
	}
	if c.conn != nil {
		t.Error("Disconnect should clear the connection")
	}
}

func TestSendWithoutConnection(t *testing.T) {
	c := New("127.0.0.1:1", time.Second)
	if _, err := c.Send("PING"); err == nil {
		t.Error("Send before Connect should fail")
	}
}
