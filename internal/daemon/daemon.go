// Package daemon implements the simpler wrapper mode: a long-running
// singleton process that toggles playback on line commands received
// over a local socket, so short-lived `sidetrack run` and
// `sidetrack signal` invocations can share one playback state.
package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/sidetrack-cli/sidetrack/internal/history"
	"github.com/sidetrack-cli/sidetrack/internal/player"
)

// Config holds daemon configuration
type Config struct {
	SocketPath string // Unix socket for IPC commands
	PIDFile    string // Singleton lock file
	StateFile  string // Path to state persistence file
	HistoryDB  string // Path to the playback event log
}

// ErrAlreadyRunning means another live daemon holds the pid file.
var ErrAlreadyRunning = errors.New("daemon: already running")

// Daemon owns the playback state shared between signal senders.
type Daemon struct {
	config     Config
	controller player.Controller
	state      *State
	events     *history.Log
	listener   net.Listener
	logger     zerolog.Logger
}

// New creates a new Daemon instance. It enforces the host-wide
// singleton via the pid file before binding the socket.
func New(cfg Config, controller player.Controller, logger zerolog.Logger) (*Daemon, error) {
	if err := acquirePIDFile(cfg.PIDFile); err != nil {
		return nil, err
	}

	state, err := NewState(cfg.StateFile, controller.Mode())
	if err != nil {
		return nil, fmt.Errorf("failed to create state: %w", err)
	}

	var events *history.Log
	if cfg.HistoryDB != "" {
		events, err = history.Open(cfg.HistoryDB)
		if err != nil {
			return nil, fmt.Errorf("failed to open history: %w", err)
		}
	}

	// A socket left behind by a crashed daemon blocks the bind; the
	// pid-file liveness check above already proved it is stale.
	_ = os.Remove(cfg.SocketPath)

	listener, err := net.Listen("unix", cfg.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to bind socket: %w", err)
	}

	return &Daemon{
		config:     cfg,
		controller: controller,
		state:      state,
		events:     events,
		listener:   listener,
		logger:     logger.With().Str("component", "daemon").Logger(),
	}, nil
}

// Run serves IPC commands and blocks until a shutdown signal is received.
func (d *Daemon) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Handle first signal gracefully, second signal forces exit
	go func() {
		<-sigChan
		d.logger.Info().Msg("Shutdown signal received, initiating graceful shutdown")
		cancel()
		_ = d.listener.Close()

		<-sigChan
		d.logger.Warn().Msg("Second shutdown signal received, forcing exit")
		os.Exit(1)
	}()

	d.logger.Info().
		Str("socket", d.config.SocketPath).
		Str("mode", d.controller.Mode()).
		Msg("Daemon listening")

	for {
		conn, err := d.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			d.logger.Error().Err(err).Msg("Accept failed")
			continue
		}
		go d.handleConn(ctx, conn)
	}
}

// handleConn serves line commands on one connection: `start`, `stop`,
// `status`. Responses are `OK`, a JSON status blob, or an ERR line.
func (d *Daemon) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		command := strings.TrimSpace(scanner.Text())
		d.logger.Debug().Str("command", command).Msg("IPC command")

		switch command {
		case "start":
			if err := d.setPlaying(ctx, true); err != nil {
				d.logger.Warn().Err(err).Msg("Play failed")
			}
			fmt.Fprintln(conn, "OK")

		case "stop":
			if err := d.setPlaying(ctx, false); err != nil {
				d.logger.Warn().Err(err).Msg("Pause failed")
			}
			fmt.Fprintln(conn, "OK")

		case "status":
			blob, err := json.Marshal(d.state.Get())
			if err != nil {
				fmt.Fprintln(conn, "ERR internal")
				continue
			}
			fmt.Fprintln(conn, string(blob))

		default:
			fmt.Fprintf(conn, "ERR unknown command %q\n", command)
		}
	}
}

// setPlaying toggles the backend and records the transition. Playback
// failures are logged, never returned to the IPC peer as failures: the
// daemon replies OK and stays up.
func (d *Daemon) setPlaying(ctx context.Context, playing bool) error {
	var err error
	if playing {
		err = d.controller.Play(ctx)
	} else {
		err = d.controller.Pause(ctx)
	}

	if stateErr := d.state.SetPlaying(playing); stateErr != nil {
		d.logger.Warn().Err(stateErr).Msg("Failed to persist state")
	}

	if d.events != nil {
		sig := "pause"
		if playing {
			sig = "play"
		}
		if recErr := d.events.Record(ctx, sig, "daemon", d.controller.Mode()); recErr != nil {
			d.logger.Warn().Err(recErr).Msg("Failed to record event")
		}
	}

	return err
}

// Shutdown releases the socket and the singleton pid file.
func (d *Daemon) Shutdown() error {
	d.logger.Info().Msg("Shutting down daemon")

	_ = d.listener.Close()
	_ = os.Remove(d.config.SocketPath)
	_ = os.Remove(d.config.PIDFile)

	if d.events != nil {
		if err := d.events.Close(); err != nil {
			return fmt.Errorf("failed to close history: %w", err)
		}
	}
	return nil
}

// acquirePIDFile enforces the one-daemon-per-host invariant: an
// existing pid file only blocks startup when the recorded process is
// still alive.
func acquirePIDFile(path string) error {
	data, err := os.ReadFile(path)
	if err == nil {
		pid, convErr := strconv.Atoi(strings.TrimSpace(string(data)))
		if convErr == nil {
			alive, _ := process.PidExists(int32(pid))
			if alive && pid != os.Getpid() {
				return fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, pid)
			}
		}
		// Stale or unreadable pid file: take it over.
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read pid file: %w", err)
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		return fmt.Errorf("failed to write pid file: %w", err)
	}
	return nil
}

// ReadPID returns the pid recorded in the daemon pid file, or an error
// when no daemon has written one.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("malformed pid file: %w", err)
	}
	return pid, nil
}
