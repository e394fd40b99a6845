package daemon

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"
)

// ErrNotRunning means the daemon socket is unreachable. Callers turn
// this into the actionable "start the daemon" message.
var ErrNotRunning = errors.New("daemon: not running")

// DefaultSocketPath returns the per-user daemon socket location.
func DefaultSocketPath() string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("sidetrack-%d.sock", os.Getuid()))
}

// DefaultPIDFile returns the per-user daemon pid file location.
func DefaultPIDFile() string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("sidetrack-%d.pid", os.Getuid()))
}

// Client sends line commands to a running daemon.
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates an IPC client for the daemon socket at socketPath.
func NewClient(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		timeout:    5 * time.Second,
	}
}

// send writes one command line and reads one response line.
func (c *Client) send(command string) (string, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotRunning, err)
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(c.timeout))

	if _, err := fmt.Fprintln(conn, command); err != nil {
		return "", fmt.Errorf("failed to send command: %w", err)
	}

	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	return line[:len(line)-1], nil
}

// Start asks the daemon to start playback.
func (c *Client) Start() error {
	return c.expectOK("start")
}

// Stop asks the daemon to stop playback.
func (c *Client) Stop() error {
	return c.expectOK("stop")
}

// Status returns the daemon's current state.
func (c *Client) Status() (*Status, error) {
	resp, err := c.send("status")
	if err != nil {
		return nil, err
	}

	var status Status
	if err := json.Unmarshal([]byte(resp), &status); err != nil {
		return nil, fmt.Errorf("malformed status response %q: %w", resp, err)
	}
	return &status, nil
}

// expectOK sends a command and verifies the OK acknowledgement.
func (c *Client) expectOK(command string) error {
	resp, err := c.send(command)
	if err != nil {
		return err
	}
	if resp != "OK" {
		return fmt.Errorf("daemon rejected %q: %s", command, resp)
	}
	return nil
}
