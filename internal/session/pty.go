// Package session owns the wrapped assistant process: it spawns it
// inside a pseudo-terminal, duplexes its I/O against the controlling
// terminal, and guarantees cleanup on every exit path.
package session

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/creack/pty"
)

// ErrCommandNotFound means the target executable could not be located.
// Callers print an installation hint for this error instead of a
// generic spawn failure.
var ErrCommandNotFound = errors.New("session: command not found")

// Handle is a running child attached to a pseudo-terminal.
type Handle struct {
	ptmx *os.File
	cmd  *exec.Cmd
}

// Spawn starts command inside a new PTY so the child perceives a real
// interactive terminal. size may be nil, in which case the PTY gets a
// default geometry until the first resize.
//
// A missing executable fails with ErrCommandNotFound; every other
// spawn failure is returned as-is. Spawn failures are fatal to the
// session, there are no retries.
func Spawn(command string, args []string, env []string, size *pty.Winsize) (*Handle, error) {
	if _, err := exec.LookPath(command); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrCommandNotFound, command)
		}
		return nil, fmt.Errorf("failed to locate %q: %w", command, err)
	}

	cmd := exec.Command(command, args...)
	if env != nil {
		cmd.Env = env
	}

	ptmx, err := pty.StartWithSize(cmd, size)
	if err != nil {
		return nil, fmt.Errorf("failed to start %q in a pty: %w", command, err)
	}

	return &Handle{ptmx: ptmx, cmd: cmd}, nil
}

// Pid returns the child's process id, persisted as the session
// identifier that scopes hook firing to this session.
func (h *Handle) Pid() int {
	return h.cmd.Process.Pid
}

// Output is the PTY master; reading it yields the child's output
// verbatim, with no interpretation or buffering delay.
func (h *Handle) Output() *os.File {
	return h.ptmx
}

// Write injects bytes as if typed by the user.
func (h *Handle) Write(p []byte) (int, error) {
	return h.ptmx.Write(p)
}

// Resize propagates a terminal-size change to the child. Must be
// called whenever the real terminal size changes, otherwise the
// child's rendering goes stale.
func (h *Handle) Resize(cols, rows uint16) error {
	return pty.Setsize(h.ptmx, &pty.Winsize{Cols: cols, Rows: rows})
}

// InheritSize copies the size of the given terminal onto the child's PTY.
func (h *Handle) InheritSize(from *os.File) error {
	return pty.InheritSize(from, h.ptmx)
}

// Signal forwards a signal to the child.
func (h *Handle) Signal(sig os.Signal) error {
	return h.cmd.Process.Signal(sig)
}

// Kill forcibly terminates the child.
func (h *Handle) Kill() error {
	return h.cmd.Process.Kill()
}

// Wait blocks until the child terminates and returns its exit code.
// A child killed by a signal reports 128 plus the signal number, the
// shell convention, so the wrapper always exits with a defined code.
func (h *Handle) Wait() int {
	err := h.cmd.Wait()
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return code
		}
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return 128 + int(status.Signal())
		}
	}
	return 1
}

// Close releases the PTY master.
func (h *Handle) Close() error {
	return h.ptmx.Close()
}
