package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/sidetrack-cli/sidetrack/internal/config"
	"github.com/sidetrack-cli/sidetrack/internal/history"
	"github.com/spf13/cobra"
)

var (
	historyLimit int
	historyPrune time.Duration
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent playback transitions",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of events to show")
	historyCmd.Flags().DurationVar(&historyPrune, "prune", 0, "also remove events older than this (e.g. 720h)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	events, err := history.Open(filepath.Join(config.GetDataDir(), "history.db"))
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer events.Close()

	ctx := cmd.Context()

	if historyPrune > 0 {
		removed, err := events.Cleanup(ctx, historyPrune)
		if err != nil {
			return fmt.Errorf("failed to prune history: %w", err)
		}
		fmt.Printf("Pruned %d events older than %s.\n", removed, historyPrune)
	}

	recent, err := events.Recent(ctx, historyLimit)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}
	if len(recent) == 0 {
		fmt.Println("No playback events recorded.")
		return nil
	}

	for _, e := range recent {
		fmt.Printf("%s  %-5s  %-7s  %s\n",
			e.Timestamp.Format("2006-01-02 15:04:05"), e.Signal, e.Cause, e.Mode)
	}
	return nil
}
