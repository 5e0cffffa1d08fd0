package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root tickreplay command.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tickreplay",
		Short: "Replay cached exchange market data",
		Long: `tickreplay reads minute slices of historical exchange messages from a
local cache and replays them in order, waiting for slices that another
process has not written yet.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newReplayCmd(),
		newExchangesCmd(),
		newGenerateCmd(),
		newServeCmd(),
	)

	return root
}
