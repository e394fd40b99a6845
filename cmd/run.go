package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sidetrack-cli/sidetrack/internal/config"
	"github.com/sidetrack-cli/sidetrack/internal/history"
	"github.com/sidetrack-cli/sidetrack/internal/player"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <command> [args...]",
	Short: "Play music for the duration of any command",
	Long: `Run starts playback, executes the given command with inherited
standard streams, and pauses playback when it exits. No PTY, no typing
inference: the music simply follows the command's lifetime.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().SetInterspersed(false)
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := setupLogger(logFile, logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	controller, err := player.Select(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sidetrack: no usable playback backend, running without music")
		logger.Warn().Err(err).Msg("Playback disabled")
	}

	events, err := history.Open(filepath.Join(config.GetDataDir(), "history.db"))
	if err != nil {
		logger.Warn().Err(err).Msg("Playback history disabled")
		events = nil
	} else {
		defer events.Close()
	}

	toggle := func(playing bool) {
		callCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		sig := "pause"
		var err error
		if playing {
			sig = "play"
			err = controller.Play(callCtx)
		} else {
			err = controller.Pause(callCtx)
		}
		if err != nil {
			logger.Debug().Err(err).Str("signal", sig).Msg("Playback call failed")
		}
		if events != nil {
			if err := events.Record(callCtx, sig, "run", controller.Mode()); err != nil {
				logger.Debug().Err(err).Msg("Failed to record event")
			}
		}
	}

	toggle(true)
	// Whatever happens to the child, the music stops with it.
	defer toggle(false)

	child := exec.Command(args[0], args[1:]...)
	child.Stdin = os.Stdin
	child.Stdout = os.Stdout
	child.Stderr = os.Stderr

	if err := child.Start(); err != nil {
		return fmt.Errorf("failed to start %q: %w", args[0], err)
	}

	go func() {
		<-ctx.Done()
		_ = child.Process.Signal(os.Interrupt)
	}()

	waitErr := child.Wait()

	if ctx.Err() != nil {
		toggle(false)
		os.Exit(130)
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		toggle(false)
		os.Exit(exitErr.ExitCode())
	}
	if waitErr != nil {
		return fmt.Errorf("command failed: %w", waitErr)
	}
	return nil
}
