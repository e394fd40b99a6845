package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/sidetrack-cli/sidetrack/internal/config"
	"github.com/sidetrack-cli/sidetrack/internal/daemon"
	"github.com/sidetrack-cli/sidetrack/internal/player"
	"github.com/spf13/cobra"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon [stop]",
	Short: "Run the playback daemon",
	Long: `Daemon runs the long-lived playback process used by the simpler
signal-driven mode: it listens on a local socket for start, stop and
status commands (see ` + "`sidetrack signal`" + ` and ` + "`sidetrack status`" + `)
and keeps one shared playing/paused state per host.

` + "`sidetrack daemon stop`" + ` terminates a running daemon.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		if args[0] != "stop" {
			return fmt.Errorf("unknown daemon action %q (did you mean \"stop\"?)", args[0])
		}
		return stopDaemon()
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := setupLogger(logFile, logLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	controller, err := player.Select(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sidetrack: no usable playback backend, daemon will acknowledge commands without playing")
		logger.Warn().Err(err).Msg("Playback disabled")
	}

	d, err := daemon.New(daemon.Config{
		SocketPath: daemon.DefaultSocketPath(),
		PIDFile:    daemon.DefaultPIDFile(),
		StateFile:  filepath.Join(config.GetDataDir(), "daemon-state.json"),
		HistoryDB:  filepath.Join(config.GetDataDir(), "history.db"),
	}, controller, logger)
	if err != nil {
		if errors.Is(err, daemon.ErrAlreadyRunning) {
			return fmt.Errorf("a daemon is already running; stop it with `sidetrack daemon stop`")
		}
		return fmt.Errorf("failed to start daemon: %w", err)
	}
	defer func() {
		if err := d.Shutdown(); err != nil {
			logger.Warn().Err(err).Msg("Shutdown incomplete")
		}
	}()

	return d.Run()
}

// stopDaemon terminates the running daemon found via the pid file.
func stopDaemon() error {
	pidFile := daemon.DefaultPIDFile()

	pid, err := daemon.ReadPID(pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("Daemon is not running.")
			return nil
		}
		return fmt.Errorf("failed to read pid file: %w", err)
	}

	alive, _ := process.PidExists(int32(pid))
	if !alive {
		_ = os.Remove(pidFile)
		fmt.Println("Daemon is not running (removed stale pid file).")
		return nil
	}

	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to signal daemon (pid %d): %w", pid, err)
	}

	fmt.Printf("Stopped daemon (pid %d).\n", pid)
	return nil
}
