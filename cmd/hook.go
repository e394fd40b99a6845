package cmd

import (
	"context"
	"path/filepath"
	"time"

	"github.com/sidetrack-cli/sidetrack/internal/config"
	"github.com/sidetrack-cli/sidetrack/internal/history"
	"github.com/sidetrack-cli/sidetrack/internal/player"
	"github.com/sidetrack-cli/sidetrack/internal/session"
	"github.com/spf13/cobra"
)

var (
	hookSessionFile string
	hookParent      int
)

// hookCmd is invoked by the injected settings hooks, never by users
// directly. It must exit quickly and quietly: the assistant waits for
// hook commands to finish.
var hookCmd = &cobra.Command{
	Use:       "hook <play|pause>",
	Hidden:    true,
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"play", "pause"},
	RunE:      runHook,
}

func init() {
	hookCmd.Flags().StringVar(&hookSessionFile, "session-file", "", "session identifier file")
	hookCmd.Flags().IntVar(&hookParent, "parent", 0, "pid of the assistant that fired the hook")
	rootCmd.AddCommand(hookCmd)
}

func runHook(cmd *cobra.Command, args []string) error {
	// Only hooks fired from the wrapped assistant control playback.
	// A hook from any other assistant process on the host, or one that
	// outlived its session, matches nothing and does nothing.
	if hookSessionFile == "" || !session.IdentifierMatches(hookSessionFile, hookParent) {
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return nil
	}
	logger := setupLogger(filepath.Join(config.GetDataDir(), "sidetrack.log"), "warn")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	controller, err := player.Select(ctx, cfg, logger)
	if err != nil {
		return nil
	}

	action := args[0]
	if action == "play" {
		err = controller.Play(ctx)
	} else {
		err = controller.Pause(ctx)
	}
	if err != nil {
		logger.Debug().Err(err).Str("action", action).Msg("Hook playback call failed")
	}

	if events, openErr := history.Open(filepath.Join(config.GetDataDir(), "history.db")); openErr == nil {
		if recErr := events.Record(ctx, action, "hook", controller.Mode()); recErr != nil {
			logger.Debug().Err(recErr).Msg("Failed to record event")
		}
		if closeErr := events.Close(); closeErr != nil {
			logger.Debug().Err(closeErr).Msg("Failed to close history")
		}
	}

	return nil
}
