// Package server implements the line-oriented TCP command protocol in
// front of the generator relay controller.
//
// Commands are newline-terminated ASCII, case-insensitive. Responses are
// single lines except STATUS, HEALTH, and HELP, which are terminated by
// a literal END line. One goroutine handles each connection; commands on
// a connection are processed strictly in arrival order.
package server

import (
	"bufio"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/pigenny/pigenny/internal/modio"
	"github.com/pigenny/pigenny/internal/sequence"
)

// DefaultPort is the TCP port the server listens on.
const DefaultPort = 9999

// Welcome is the banner sent on every new connection.
const Welcome = "GENNY SERVER READY"

const helpText = `Commands:
  PING    - Connection test (returns PONG)
  STATUS  - Full status report
  INPUTS  - Read input states only
  HEALTH  - Process health report
  START   - Start generator sequence
  STOP    - Stop generator
  RELAY xx - Set relay byte (hex 00-0F)
  HELP    - This help
  QUIT    - Close connection
END`

// Server accepts command connections and dispatches them against the
// shared engine state.
type Server struct {
	engine    *sequence.Engine
	simulated bool
	started   time.Time
	logf      func(format string, v ...interface{})
}

// New creates a Server over the given engine. simulated marks a server
// running against the fake bus because the real one could not be opened;
// STATUS reports it so operators can tell the difference.
func New(engine *sequence.Engine, simulated bool) *Server {
	return &Server{
		engine:    engine,
		simulated: simulated,
		started:   time.Now(),
		logf:      log.Printf,
	}
}

// ListenAndServe binds addr and serves until the listener fails.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Serve forces the relays into the safe all-off state, then accepts
// connections on ln until it fails. The relays are forced off again
// before the error is returned.
func (s *Server) Serve(ln net.Listener) error {
	defer ln.Close()

	if err := s.engine.AllOff(); err != nil {
		s.logf("initial relay reset failed: %v", err)
	}
	s.logf("generator server listening on %s", ln.Addr())

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.logf("accept error: %v", err)
			s.logf("emergency relay shutdown")
			if offErr := s.engine.AllOff(); offErr != nil {
				s.logf("relay shutdown failed: %v", offErr)
			}
			return err
		}
		go s.handleConn(conn)
	}
}

// handleConn runs one client session: welcome banner, then one command
// per line until QUIT or disconnect.
func (s *Server) handleConn(conn net.Conn) {
	remote := conn.RemoteAddr()
	s.logf("client connected: %s", remote)
	defer func() {
		s.logf("client disconnected: %s", remote)
		conn.Close()
	}()

	if _, err := fmt.Fprintf(conn, "%s\n", Welcome); err != nil {
		return
	}

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		s.logf("command from %s: %s", remote, line)

		resp, quit := s.handleCommand(line)
		if quit {
			fmt.Fprintln(conn, "BYE")
			return
		}
		if _, err := fmt.Fprintf(conn, "%s\n", resp); err != nil {
			return
		}
	}
	if err := sc.Err(); err != nil {
		s.logf("read error from %s: %v", remote, err)
	}
}

// handleCommand processes one command line and returns the response and
// whether the session should end. Malformed commands get an ERROR line;
// the connection stays open.
func (s *Server) handleCommand(line string) (resp string, quit bool) {
	parts := strings.Fields(strings.ToUpper(line))
	if len(parts) == 0 {
		return "ERROR: Empty command", false
	}

	switch parts[0] {
	case "PING":
		return "PONG", false
	case "STATUS":
		return s.statusReport(), false
	case "START":
		return s.doStart(), false
	case "STOP":
		return s.doStop(), false
	case "RELAY":
		return s.doRelay(parts), false
	case "INPUTS":
		return modio.FormatInputs(s.engine.ReadInputs()), false
	case "HEALTH":
		return s.healthReport(), false
	case "HELP":
		return helpText, false
	case "QUIT":
		return "", true
	default:
		return fmt.Sprintf("ERROR: Unknown command %q (try HELP)", parts[0]), false
	}
}

// statusReport builds the multi-line STATUS response. The running flag
// is derived from a fresh input read on every call, never cached.
func (s *Server) statusReport() string {
	inputs := s.engine.ReadInputs()
	relays := s.engine.Relays()

	bus := "OK"
	if s.simulated {
		bus = "SIMULATED"
	}

	lines := []string{
		"INPUTS: " + modio.FormatInputs(inputs),
		fmt.Sprintf("RELAYS: %s (0x%02X)", modio.FormatRelays(relays), relays),
		"RUNNING: " + yesNo(modio.IsRunning(inputs)),
		"START_IN_PROGRESS: " + yesNo(s.engine.InProgress()),
		"I2C: " + bus,
		"END",
	}
	return strings.Join(lines, "\n")
}

// doStart runs the start sequence synchronously on the handling
// connection; the caller blocks for the full sequence duration.
func (s *Server) doStart() string {
	err := s.engine.Start()
	switch {
	case err == nil:
		return "OK: Generator started and charger enabled"
	case errors.Is(err, sequence.ErrStartInProgress):
		return "ERROR: Start already in progress"
	case errors.Is(err, sequence.ErrAlreadyRunning):
		return "ERROR: Generator already running"
	default:
		var se *sequence.StartError
		if errors.As(err, &se) {
			return fmt.Sprintf("ERROR: Generator failed to start (status=%d)", se.Status)
		}
		return "ERROR: " + err.Error()
	}
}

func (s *Server) doStop() string {
	s.logf("stopping generator")
	if err := s.engine.AllOff(); err != nil {
		return "ERROR: " + err.Error()
	}
	return "OK: Generator stopped"
}

func (s *Server) doRelay(parts []string) string {
	if len(parts) < 2 {
		return "ERROR: RELAY requires hex value (e.g., RELAY 0A)"
	}
	v, err := strconv.ParseUint(parts[1], 16, 8)
	if err != nil {
		return "ERROR: Invalid hex value"
	}
	if v > uint64(modio.RelayMax) {
		return "ERROR: Relay value must be 0x00-0x0F"
	}
	if err := s.engine.SetRelays(byte(v)); err != nil {
		return "ERROR: " + err.Error()
	}
	return fmt.Sprintf("OK: Relays set to 0x%02X (%s)", v, modio.FormatRelays(byte(v)))
}

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}
