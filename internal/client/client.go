// Package client implements the generator protocol client used by the
// supervisor and the genstatus tool.
//
// The server's START command can block for over a minute. A caller that
// timed out waiting on an earlier START may still have that response
// sitting unread in its receive buffer, where the next read would pick
// it up and misattribute it. The client therefore reconnects before
// START and drains buffered bytes before START, STOP, and every running
// check, so the next read always belongs to the current exchange.
package client

import (
	"bufio"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"time"
)

// DefaultTimeout is the socket timeout. It must exceed the longest
// blocking command (START, ~80s on a successful sequence) or the client
// will abandon an in-flight success.
const DefaultTimeout = 120 * time.Second

// drainTimeout bounds the socket sweep for stale bytes.
const drainTimeout = 50 * time.Millisecond

var errNotConnected = errors.New("not connected")

// Client owns one connection to the generator server at a time.
type Client struct {
	// Sleep spaces the debounced running checks. Tests replace it; the
	// default is time.Sleep.
	Sleep func(time.Duration)

	addr    string
	timeout time.Duration
	conn    net.Conn
	r       *bufio.Reader
	logf    func(format string, v ...interface{})
}

// New creates a client for the server at addr. A timeout <= 0 selects
// DefaultTimeout.
func New(addr string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		Sleep:   time.Sleep,
		addr:    addr,
		timeout: timeout,
		logf:    log.Printf,
	}
}

// Connect dials the server and consumes the welcome line.
func (c *Client) Connect() error {
	conn, err := net.DialTimeout("tcp", c.addr, c.timeout)
	if err != nil {
		return fmt.Errorf("connect %s: %w", c.addr, err)
	}
	c.conn = conn
	c.r = bufio.NewReader(conn)
	if _, err := c.readLine(); err != nil {
		conn.Close()
		c.conn = nil
		c.r = nil
		return fmt.Errorf("read welcome: %w", err)
	}
	return nil
}

// Disconnect sends QUIT, consumes the acknowledgement, and closes.
// Errors on the way out are ignored; the connection is closed
// regardless.
func (c *Client) Disconnect() {
	if c.conn == nil {
		return
	}
	if _, err := fmt.Fprintln(c.conn, "QUIT"); err == nil {
		c.readLine() // BYE
	}
	c.conn.Close()
	c.conn = nil
	c.r = nil
}

// reconnect closes and reopens the connection, discarding all socket
// state from earlier exchanges.
func (c *Client) reconnect() error {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
		c.r = nil
	}
	return c.Connect()
}

// drain discards any bytes already readable, both buffered in the
// reader and queued in the socket. After drain the next read belongs to
// the next exchange.
func (c *Client) drain() int {
	if c.conn == nil {
		return 0
	}
	n := 0
	if b := c.r.Buffered(); b > 0 {
		c.r.Discard(b)
		n += b
	}
	c.conn.SetReadDeadline(time.Now().Add(drainTimeout))
	buf := make([]byte, 1024)
	for {
		k, err := c.conn.Read(buf)
		n += k
		if err != nil {
			break
		}
	}
	c.conn.SetReadDeadline(time.Time{})
	if n > 0 {
		c.logf("flushed %d stale bytes from receive buffer", n)
	}
	return n
}

func (c *Client) readLine() (string, error) {
	if c.conn == nil {
		return "", errNotConnected
	}
	c.conn.SetReadDeadline(time.Now().Add(c.timeout))
	line, err := c.r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Send writes one command line and returns the full response, reading
// through to the END marker for multi-line responses.
func (c *Client) Send(cmd string) (string, error) {
	if c.conn == nil {
		return "", errNotConnected
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	if _, err := fmt.Fprintf(c.conn, "%s\n", strings.TrimSpace(cmd)); err != nil {
		return "", fmt.Errorf("send %s: %w", cmd, err)
	}

	first, err := c.readLine()
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if !multiLine(first) {
		return first, nil
	}

	lines := []string{first}
	for {
		line, err := c.readLine()
		if err != nil {
			return "", fmt.Errorf("read response: %w", err)
		}
		if line == "END" {
			break
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n"), nil
}

// multiLine reports whether a first response line opens a multi-line
// payload: STATUS opens on INPUTS:, HELP on Commands:, HEALTH on
// THREADS:.
func multiLine(first string) bool {
	return strings.HasPrefix(first, "INPUTS:") ||
		strings.HasPrefix(first, "Commands:") ||
		strings.HasPrefix(first, "THREADS:")
}

// Ping checks liveness.
func (c *Client) Ping() (string, error) { return c.Send("PING") }

// Status returns the multi-line status report (without the END marker).
func (c *Client) Status() (string, error) { return c.Send("STATUS") }

// Inputs returns the decoded input line.
func (c *Client) Inputs() (string, error) { return c.Send("INPUTS") }

// Health returns the controller's health report.
func (c *Client) Health() (string, error) { return c.Send("HEALTH") }

// Relay sets the relay byte directly.
func (c *Client) Relay(b byte) (string, error) {
	return c.Send(fmt.Sprintf("RELAY %02X", b))
}

// Start runs the start sequence. The connection is reopened and drained
// first so a response queued for an earlier timed-out exchange cannot be
// taken for this one's.
func (c *Client) Start() (string, error) {
	if err := c.reconnect(); err != nil {
		return "", err
	}
	c.drain()
	return c.Send("START")
}

// Stop forces all relays off, draining first for the same reason as
// Start.
func (c *Client) Stop() (string, error) {
	c.drain()
	return c.Send("STOP")
}

// Running reports whether the generator is running, debounced: a first
// "not running" reading triggers up to checks-1 further readings spaced
// by interval; any running reading short-circuits to true, and only
// checks consecutive "not running" readings yield false. A generator
// that stumbles after a fuel-delivery hiccup and recovers is therefore
// not reported as stopped.
func (c *Client) Running(checks int, interval time.Duration) (bool, error) {
	c.drain()
	status, err := c.Status()
	if err != nil {
		return false, err
	}
	if reportsRunning(status) {
		return true, nil
	}

	for i := 1; i < checks; i++ {
		c.logf("running check %d/%d: not running, rechecking in %v", i, checks, interval)
		c.Sleep(interval)
		c.drain()
		status, err = c.Status()
		if err != nil {
			return false, err
		}
		if reportsRunning(status) {
			c.logf("running on recheck %d", i)
			return true, nil
		}
	}
	return false, nil
}

func reportsRunning(status string) bool {
	return strings.Contains(status, "RUNNING: YES")
}
