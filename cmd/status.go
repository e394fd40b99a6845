package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mattn/go-runewidth"
	"github.com/sidetrack-cli/sidetrack/internal/config"
	"github.com/sidetrack-cli/sidetrack/internal/daemon"
	"github.com/sidetrack-cli/sidetrack/internal/player"
	"github.com/spf13/cobra"
)

// trackWidth caps the current-track line so status output stays on one
// terminal row even for long titles.
const trackWidth = 60

var statusWatch bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon state and the current track",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusWatch, "watch", false, "keep printing state changes until interrupted")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := setupLogger(logFile, "error")

	client := daemon.NewClient(daemon.DefaultSocketPath())
	printDaemonStatus(client)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if controller, err := player.Select(ctx, cfg, logger); err == nil {
		if track, err := controller.CurrentTrack(ctx); err == nil && track != nil {
			line := fmt.Sprintf("%s by %s", track.Name, track.Artist)
			fmt.Printf("track:  %s\n", runewidth.Truncate(line, trackWidth, "..."))
		}
	}

	if !statusWatch {
		return nil
	}
	return watchStatus(client)
}

// watchStatus re-prints the daemon state whenever its persisted state
// file changes, until interrupted.
func watchStatus(client *daemon.Client) error {
	stateFile := filepath.Join(config.GetDataDir(), "daemon-state.json")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// The daemon replaces the state file by rename, so watch the
	// directory and filter for the file itself.
	if err := watcher.Add(filepath.Dir(stateFile)); err != nil {
		return fmt.Errorf("failed to watch state directory: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != stateFile {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			printDaemonStatus(client)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch failed: %w", err)
		}
	}
}

func printDaemonStatus(client *daemon.Client) {
	status, err := client.Status()
	if err != nil {
		if errors.Is(err, daemon.ErrNotRunning) {
			fmt.Println("daemon: not running")
		} else {
			fmt.Printf("daemon: error (%v)\n", err)
		}
		return
	}

	state := "paused"
	if status.Playing {
		state = "playing"
	}
	fmt.Printf("daemon: %s (mode %s, updated %s)\n",
		state, status.Mode, status.LastUpdate.Format(time.RFC3339))
}
