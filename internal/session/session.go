package session

import (
	"context"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"github.com/rs/zerolog"
	"github.com/sidetrack-cli/sidetrack/internal/activity"
	"golang.org/x/term"
)

// Options configures a wrap-mode session.
type Options struct {
	Command     string   // assistant executable
	Args        []string // arguments passed through verbatim
	Env         []string // nil inherits the wrapper's environment
	NoPause     bool     // suppress engine-originated pauses
	IdleTimeout time.Duration

	// Intent receives every playback signal the session produces.
	Intent activity.IntentFunc

	// OnSpawn runs after the child starts, with its pid. Used to
	// persist the session identifier before any hook can fire.
	OnSpawn func(pid int) error

	// Stdin/Stdout default to the process's own; overridable in tests.
	Stdin  *os.File
	Stdout io.Writer
}

// Session wires the PTY child, the activity engine and the cleanup
// path together for one wrapper invocation.
type Session struct {
	opts   Options
	engine *activity.Engine
	logger zerolog.Logger

	cleanupOnce sync.Once
	cleanupFns  []func()
	restoreTerm func()
}

// New creates a session. Run may be called once.
func New(opts Options, logger zerolog.Logger) *Session {
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	return &Session{
		opts:   opts,
		logger: logger.With().Str("component", "session").Logger(),
	}
}

// OnCleanup registers fn to run during cleanup. Functions run in
// reverse registration order, once, on every exit path.
func (s *Session) OnCleanup(fn func()) {
	s.cleanupFns = append(s.cleanupFns, fn)
}

// Run spawns the child and blocks until it exits or ctx is cancelled.
// It returns the process exit code: the child's own code on a normal
// exit, 130 when the session was interrupted.
func (s *Session) Run(ctx context.Context) (int, error) {
	size := s.initialSize()

	handle, err := Spawn(s.opts.Command, s.opts.Args, s.opts.Env, size)
	if err != nil {
		// Spawn failed after hooks were installed: cleanup still runs.
		s.Cleanup()
		return 1, err
	}
	defer handle.Close()

	if s.opts.OnSpawn != nil {
		if err := s.opts.OnSpawn(handle.Pid()); err != nil {
			_ = handle.Kill()
			s.Cleanup()
			return 1, err
		}
	}

	s.engine = activity.New(activity.Config{
		IdleTimeout: s.opts.IdleTimeout,
		NoPause:     s.opts.NoPause,
	}, s.opts.Intent, s.logger)

	// A fresh session means the assistant is (or is about to be)
	// working; start the music right away.
	s.engine.Start()

	s.enterRawMode()
	stopResize := s.forwardResizes(handle)
	defer stopResize()

	// Child output goes to the real terminal verbatim.
	outputDone := make(chan struct{})
	go func() {
		defer close(outputDone)
		_, _ = io.Copy(s.opts.Stdout, handle.Output())
	}()

	// User input is teed into the activity engine on its way to the
	// child. Engine work is synchronous and cheap; playback calls it
	// triggers are fire-and-forget.
	go func() {
		buf := make([]byte, 1024)
		for {
			n, err := s.opts.Stdin.Read(buf)
			if n > 0 {
				s.engine.HandleInput(buf[:n])
				if _, err := handle.Write(buf[:n]); err != nil {
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	// Interruption forwards the signal to the child; the child's exit
	// then unwinds the session normally.
	go func() {
		<-ctx.Done()
		_ = handle.Signal(os.Interrupt)
	}()

	exitCode := handle.Wait()
	_ = handle.Close()
	<-outputDone

	s.Cleanup()

	if ctx.Err() != nil {
		return 130, nil
	}
	return exitCode, nil
}

// Cleanup runs the registered cleanup functions exactly once: it
// cancels the idle timer, restores the terminal, unwinds the cleanup
// stack (hook restoration, identifier removal) and forces a pause.
// Safe to call from any exit path, any number of times.
func (s *Session) Cleanup() {
	s.cleanupOnce.Do(func() {
		if s.engine != nil {
			s.engine.Close()
		}
		if s.restoreTerm != nil {
			s.restoreTerm()
		}
		for i := len(s.cleanupFns) - 1; i >= 0; i-- {
			s.cleanupFns[i]()
		}
		if s.opts.Intent != nil {
			s.opts.Intent(activity.SignalPause, "cleanup")
		}
		s.logger.Debug().Msg("Session cleaned up")
	})
}

// initialSize reads the controlling terminal's dimensions, or nil when
// stdin is not a terminal.
func (s *Session) initialSize() *pty.Winsize {
	if !term.IsTerminal(int(s.opts.Stdin.Fd())) {
		return nil
	}
	rows, cols, err := pty.Getsize(s.opts.Stdin)
	if err != nil {
		return nil
	}
	return &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)}
}

// enterRawMode puts the controlling terminal into raw mode so every
// keystroke reaches the child (and the engine) immediately. Restoration
// happens in Cleanup.
func (s *Session) enterRawMode() {
	fd := int(s.opts.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to enter raw mode")
		return
	}
	s.restoreTerm = func() {
		_ = term.Restore(fd, oldState)
	}
}

// forwardResizes propagates SIGWINCH to the child's PTY. Returns a stop
// function.
func (s *Session) forwardResizes(handle *Handle) func() {
	if !term.IsTerminal(int(s.opts.Stdin.Fd())) {
		return func() {}
	}

	winch := make(chan os.Signal, 1)
	signal.Notify(winch, syscall.SIGWINCH)
	done := make(chan struct{})

	// Propagate the initial size before any output renders.
	if err := handle.InheritSize(s.opts.Stdin); err != nil {
		s.logger.Debug().Err(err).Msg("Initial resize failed")
	}

	go func() {
		for {
			select {
			case <-done:
				return
			case <-winch:
				if err := handle.InheritSize(s.opts.Stdin); err != nil {
					s.logger.Debug().Err(err).Msg("Resize failed")
				}
			}
		}
	}()

	return func() {
		signal.Stop(winch)
		close(done)
	}
}
