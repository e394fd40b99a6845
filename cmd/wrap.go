package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/sidetrack-cli/sidetrack/internal/activity"
	"github.com/sidetrack-cli/sidetrack/internal/config"
	"github.com/sidetrack-cli/sidetrack/internal/history"
	"github.com/sidetrack-cli/sidetrack/internal/hooks"
	"github.com/sidetrack-cli/sidetrack/internal/player"
	"github.com/sidetrack-cli/sidetrack/internal/session"
	"github.com/spf13/cobra"
)

var wrapNoPause bool

var wrapCmd = &cobra.Command{
	Use:   "wrap [assistant-args...]",
	Short: "Wrap the coding assistant and sync music with its activity",
	Long: `Wrap spawns the coding assistant inside a pseudo-terminal, passes
every keystroke and all output through untouched, and toggles playback
from what it observes: submissions and typing bursts start the music,
idle periods and turn completion pause it.

For the duration of the session the assistant's settings file gains
hook entries that report tool use back to sidetrack; the file is
restored byte for byte when the session ends, however it ends.`,
	Args: cobra.ArbitraryArgs,
	RunE: runWrap,
}

func init() {
	wrapCmd.Flags().BoolVar(&wrapNoPause, "no-pause", false, "start playback on activity but never pause it")
	wrapCmd.Flags().SetInterspersed(false)
	rootCmd.AddCommand(wrapCmd)
}

func runWrap(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// The PTY owns the terminal for the whole session, so logs default
	// to a file instead of stderr.
	wrapLogFile := logFile
	if wrapLogFile == "" {
		wrapLogFile = filepath.Join(config.GetDataDir(), "sidetrack.log")
	}
	logger := setupLogger(wrapLogFile, logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	controller, err := player.Select(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sidetrack: no usable playback backend, continuing without music control")
		logger.Warn().Err(err).Msg("Playback disabled for this session")
	}

	var events *history.Log
	events, err = history.Open(filepath.Join(config.GetDataDir(), "history.db"))
	if err != nil {
		logger.Warn().Err(err).Msg("Playback history disabled")
		events = nil
	} else {
		defer events.Close()
	}

	d := &dispatcher{controller: controller, events: events, logger: logger}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate own executable: %w", err)
	}

	identifierPath := session.IdentifierPath()
	manager := hooks.NewManager(hooks.DefaultSettingsPath(), logger)
	snapshot, err := manager.Install(hooks.InstallOptions{
		Executable:  exe,
		SessionFile: identifierPath,
		EnablePause: !wrapNoPause,
	})
	if err != nil {
		return fmt.Errorf("failed to install hooks: %w", err)
	}

	sess := session.New(session.Options{
		Command:     cfg.AssistantCommand,
		Args:        args,
		NoPause:     wrapNoPause,
		IdleTimeout: time.Duration(cfg.IdleTimeoutMS) * time.Millisecond,
		Intent:      d.intent,
		OnSpawn: func(pid int) error {
			return session.WriteIdentifier(identifierPath, pid)
		},
	}, logger)

	sess.OnCleanup(func() {
		if err := manager.Restore(snapshot); err != nil {
			logger.Error().Err(err).Msg("Failed to restore settings")
			fmt.Fprintf(os.Stderr, "sidetrack: failed to restore %s: %v\n", hooks.DefaultSettingsPath(), err)
		}
	})
	sess.OnCleanup(func() {
		if err := session.RemoveIdentifier(identifierPath); err != nil {
			logger.Warn().Err(err).Msg("Failed to remove session identifier")
		}
	})

	code, err := sess.Run(ctx)

	// The final pause fired during cleanup is asynchronous; give it a
	// chance to reach the backend before the process exits.
	d.drain(5 * time.Second)

	if err != nil {
		if errors.Is(err, session.ErrCommandNotFound) {
			fmt.Fprintf(os.Stderr, "sidetrack: %q not found in PATH; set assistant_command in %s\n",
				cfg.AssistantCommand, filepath.Join(config.GetConfigDir(), "config.yaml"))
			os.Exit(1)
		}
		return fmt.Errorf("session failed: %w", err)
	}
	if code != 0 {
		os.Exit(code)
	}
	return nil
}

// dispatcher turns activity signals into fire-and-forget backend calls.
// The engine's input path must never wait on the network.
type dispatcher struct {
	controller player.Controller
	events     *history.Log
	logger     zerolog.Logger
	wg         sync.WaitGroup
}

func (d *dispatcher) intent(sig activity.Signal, cause string) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		var err error
		if sig == activity.SignalPlay {
			err = d.controller.Play(ctx)
		} else {
			err = d.controller.Pause(ctx)
		}
		if err != nil {
			d.logger.Debug().Err(err).
				Str("signal", sig.String()).
				Str("cause", cause).
				Msg("Playback call failed")
		}

		if d.events != nil {
			if err := d.events.Record(ctx, sig.String(), cause, d.controller.Mode()); err != nil {
				d.logger.Debug().Err(err).Msg("Failed to record event")
			}
		}
	}()
}

// drain waits for in-flight playback calls, up to timeout.
func (d *dispatcher) drain(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		d.logger.Warn().Msg("Timed out waiting for playback calls")
	}
}
