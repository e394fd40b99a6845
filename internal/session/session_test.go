package session

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sidetrack-cli/sidetrack/internal/activity"
)

func TestSpawn_CommandNotFound(t *testing.T) {
	_, err := Spawn("definitely-not-a-real-binary-xyz", nil, nil, nil)
	if !errors.Is(err, ErrCommandNotFound) {
		t.Errorf("err = %v, want ErrCommandNotFound", err)
	}
}

func TestSpawn_WaitReportsExitCode(t *testing.T) {
	handle, err := Spawn("sh", []string{"-c", "exit 3"}, nil, nil)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer handle.Close()

	if code := handle.Wait(); code != 3 {
		t.Errorf("exit code = %d, want 3", code)
	}
}

func TestSpawn_OutputForwardedVerbatim(t *testing.T) {
	handle, err := Spawn("sh", []string{"-c", "printf hello-from-child"}, nil, nil)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer handle.Close()

	out, _ := io.ReadAll(handle.Output())
	handle.Wait()

	if got := string(out); got != "hello-from-child" {
		t.Errorf("output = %q", got)
	}
}

func TestSpawn_WaitMapsSignalDeathToExitCode(t *testing.T) {
	handle, err := Spawn("sh", []string{"-c", "sleep 30"}, nil, nil)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer handle.Close()

	if err := handle.Kill(); err != nil {
		t.Fatalf("Kill: %v", err)
	}

	// SIGKILL is 9; the shell convention maps signal death to 128+N.
	if code := handle.Wait(); code != 137 {
		t.Errorf("exit code = %d, want 137", code)
	}
}

// newSessionPipes returns an os.Pipe pair usable as the session's stdin.
func newSessionPipes(t *testing.T) (*os.File, *os.File) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	t.Cleanup(func() {
		r.Close()
		w.Close()
	})
	return r, w
}

func TestRun_CleanupExactlyOnce_NormalExit(t *testing.T) {
	stdinR, _ := newSessionPipes(t)

	var cleanups atomic.Int32
	s := New(Options{
		Command: "sh",
		Args:    []string{"-c", "exit 0"},
		Intent:  func(activity.Signal, string) {},
		Stdin:   stdinR,
		Stdout:  io.Discard,
	}, zerolog.Nop())
	s.OnCleanup(func() { cleanups.Add(1) })

	code, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if code != 0 {
		t.Errorf("exit code = %d", code)
	}

	// Extra Cleanup calls (as happen on racing exit paths) are no-ops.
	s.Cleanup()
	s.Cleanup()

	if got := cleanups.Load(); got != 1 {
		t.Errorf("cleanup ran %d times, want exactly 1", got)
	}
}

func TestRun_CleanupRunsOnSpawnError(t *testing.T) {
	stdinR, _ := newSessionPipes(t)

	var cleanups atomic.Int32
	s := New(Options{
		Command: "definitely-not-a-real-binary-xyz",
		Intent:  func(activity.Signal, string) {},
		Stdin:   stdinR,
		Stdout:  io.Discard,
	}, zerolog.Nop())
	s.OnCleanup(func() { cleanups.Add(1) })

	code, err := s.Run(context.Background())
	if !errors.Is(err, ErrCommandNotFound) {
		t.Errorf("err = %v, want ErrCommandNotFound", err)
	}
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if got := cleanups.Load(); got != 1 {
		t.Errorf("cleanup ran %d times, want exactly 1", got)
	}
}

func TestRun_InterruptReturns130(t *testing.T) {
	stdinR, _ := newSessionPipes(t)

	ctx, cancel := context.WithCancel(context.Background())
	s := New(Options{
		Command: "sh",
		Args:    []string{"-c", "sleep 30"},
		Intent:  func(activity.Signal, string) {},
		Stdin:   stdinR,
		Stdout:  io.Discard,
	}, zerolog.Nop())

	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	code, err := s.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if code != 130 {
		t.Errorf("exit code = %d, want 130", code)
	}
}

func TestRun_FinalPauseForcedOnCleanup(t *testing.T) {
	stdinR, _ := newSessionPipes(t)

	var last struct {
		signal activity.Signal
		cause  string
	}
	var count atomic.Int32
	s := New(Options{
		Command: "sh",
		Args:    []string{"-c", "exit 0"},
		NoPause: true, // even no-pause sessions pause on cleanup
		Intent: func(sig activity.Signal, cause string) {
			last.signal = sig
			last.cause = cause
			count.Add(1)
		},
		Stdin:  stdinR,
		Stdout: io.Discard,
	}, zerolog.Nop())

	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if last.signal != activity.SignalPause || last.cause != "cleanup" {
		t.Errorf("final signal = %v (%s), want pause(cleanup)", last.signal, last.cause)
	}
	if count.Load() < 2 {
		t.Error("expected at least the launch play and the cleanup pause")
	}
}

func TestRun_OnSpawnReceivesChildPid(t *testing.T) {
	stdinR, _ := newSessionPipes(t)

	var gotPid int
	s := New(Options{
		Command: "sh",
		Args:    []string{"-c", "exit 0"},
		Intent:  func(activity.Signal, string) {},
		OnSpawn: func(pid int) error {
			gotPid = pid
			return nil
		},
		Stdin:  stdinR,
		Stdout: io.Discard,
	}, zerolog.Nop())

	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if gotPid <= 0 {
		t.Errorf("OnSpawn pid = %d", gotPid)
	}
}

func TestIdentifierFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.pid")

	if err := WriteIdentifier(path, 4242); err != nil {
		t.Fatalf("WriteIdentifier: %v", err)
	}

	pid, err := ReadIdentifier(path)
	if err != nil {
		t.Fatalf("ReadIdentifier: %v", err)
	}
	if pid != 4242 {
		t.Errorf("pid = %d, want 4242", pid)
	}

	if !IdentifierMatches(path, 4242) {
		t.Error("identifier should match its own pid")
	}
	if IdentifierMatches(path, 4243) {
		t.Error("identifier matched a different session's pid")
	}

	if err := RemoveIdentifier(path); err != nil {
		t.Fatalf("RemoveIdentifier: %v", err)
	}
	if IdentifierMatches(path, 4242) {
		t.Error("identifier matched after removal")
	}
	// Removing again is a no-op.
	if err := RemoveIdentifier(path); err != nil {
		t.Errorf("RemoveIdentifier (again): %v", err)
	}
}

func TestIdentifierMatches_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.pid")
	if err := os.WriteFile(path, []byte("not-a-pid"), 0644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if IdentifierMatches(path, 1) {
		t.Error("malformed identifier must never match")
	}
}
