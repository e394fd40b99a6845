package cmd

import (
	"fmt"

	"github.com/sidetrack-cli/sidetrack/internal/auth"
	"github.com/sidetrack-cli/sidetrack/internal/config"
	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the persisted Spotify token",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}

func runLogout(cmd *cobra.Command, args []string) error {
	store := auth.NewStore(config.TokenPath())

	token, err := store.Load()
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}
	if token == nil {
		fmt.Println("Not logged in.")
		return nil
	}

	if err := store.Clear(); err != nil {
		return fmt.Errorf("failed to remove token: %w", err)
	}

	fmt.Println("Logged out. Remote playback control is disabled until you run `sidetrack auth` again.")
	return nil
}
