package cmd

import (
	"errors"
	"fmt"

	"github.com/sidetrack-cli/sidetrack/internal/daemon"
	"github.com/spf13/cobra"
)

var signalCmd = &cobra.Command{
	Use:       "signal <start|stop>",
	Short:     "Tell the running daemon to start or stop playback",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"start", "stop"},
	RunE:      runSignal,
}

func init() {
	rootCmd.AddCommand(signalCmd)
}

func runSignal(cmd *cobra.Command, args []string) error {
	client := daemon.NewClient(daemon.DefaultSocketPath())

	var err error
	switch args[0] {
	case "start":
		err = client.Start()
	case "stop":
		err = client.Stop()
	}

	if errors.Is(err, daemon.ErrNotRunning) {
		return fmt.Errorf("daemon is not running; start it with `sidetrack daemon`")
	}
	return err
}
