package daemon

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sidetrack-cli/sidetrack/internal/player"
)

// fakeController records play/pause calls.
type fakeController struct {
	mu     sync.Mutex
	plays  int
	pauses int
}

func (f *fakeController) Probe(ctx context.Context) error { return nil }
func (f *fakeController) Play(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plays++
	return nil
}
func (f *fakeController) Pause(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauses++
	return nil
}
func (f *fakeController) CurrentTrack(ctx context.Context) (*player.Track, error) {
	return nil, nil
}
func (f *fakeController) Mode() string { return "native" }

func (f *fakeController) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.plays, f.pauses
}

func newTestDaemon(t *testing.T) (*Daemon, *fakeController, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := Config{
		SocketPath: filepath.Join(dir, "d.sock"),
		PIDFile:    filepath.Join(dir, "d.pid"),
		StateFile:  filepath.Join(dir, "state.json"),
	}
	ctrl := &fakeController{}
	d, err := New(cfg, ctrl, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = d.Shutdown() })

	// Serve connections without the signal plumbing of Run.
	go func() {
		for {
			conn, err := d.listener.Accept()
			if err != nil {
				return
			}
			go d.handleConn(context.Background(), conn)
		}
	}()

	return d, ctrl, cfg.SocketPath
}

func TestIPC_StartStopStatus(t *testing.T) {
	_, ctrl, socket := newTestDaemon(t)
	client := NewClient(socket)

	if err := client.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Playing {
		t.Error("status.Playing = false after start")
	}
	if status.Mode != "native" {
		t.Errorf("status.Mode = %q", status.Mode)
	}
	if status.LastUpdate.IsZero() {
		t.Error("status.LastUpdate not set")
	}

	if err := client.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	status, err = client.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Playing {
		t.Error("status.Playing = true after stop")
	}

	plays, pauses := ctrl.counts()
	if plays != 1 || pauses != 1 {
		t.Errorf("controller calls = %d plays, %d pauses", plays, pauses)
	}
}

func TestIPC_UnknownCommand(t *testing.T) {
	_, _, socket := newTestDaemon(t)

	conn, err := net.Dial("unix", socket)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("dance\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	buf := make([]byte, 256)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got := string(buf[:n]); got == "OK\n" {
		t.Errorf("unknown command acknowledged: %q", got)
	}
}

func TestSingleton_SecondDaemonRefused(t *testing.T) {
	dir := t.TempDir()
	pidFile := filepath.Join(dir, "d.pid")

	// A live process (this test) holds the pid file.
	if err := os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		t.Fatalf("seed pid file: %v", err)
	}

	_, err := New(Config{
		SocketPath: filepath.Join(dir, "d.sock"),
		PIDFile:    pidFile,
		StateFile:  filepath.Join(dir, "state.json"),
	}, &fakeController{}, zerolog.Nop())

	if !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("err = %v, want ErrAlreadyRunning", err)
	}
}

func TestSingleton_StalePIDFileTakenOver(t *testing.T) {
	dir := t.TempDir()
	pidFile := filepath.Join(dir, "d.pid")

	// Pid 1 is init and never ours; an absurdly high pid is stale.
	if err := os.WriteFile(pidFile, []byte("999999999"), 0644); err != nil {
		t.Fatalf("seed pid file: %v", err)
	}

	d, err := New(Config{
		SocketPath: filepath.Join(dir, "d.sock"),
		PIDFile:    pidFile,
		StateFile:  filepath.Join(dir, "state.json"),
	}, &fakeController{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New with stale pid file: %v", err)
	}
	defer d.Shutdown()

	pid, err := ReadPID(pidFile)
	if err != nil {
		t.Fatalf("ReadPID: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("pid file = %d, want this process", pid)
	}
}

func TestClient_DaemonUnreachable(t *testing.T) {
	client := NewClient(filepath.Join(t.TempDir(), "nowhere.sock"))

	if err := client.Start(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("err = %v, want ErrNotRunning", err)
	}
	if _, err := client.Status(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("err = %v, want ErrNotRunning", err)
	}
}

func TestState_PersistsAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	stateFile := filepath.Join(dir, "state.json")

	s1, err := NewState(stateFile, "remote")
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	if err := s1.SetPlaying(true); err != nil {
		t.Fatalf("SetPlaying: %v", err)
	}

	s2, err := NewState(stateFile, "remote")
	if err != nil {
		t.Fatalf("NewState (restart): %v", err)
	}
	if !s2.Get().Playing {
		t.Error("playing flag lost across restart")
	}
}
