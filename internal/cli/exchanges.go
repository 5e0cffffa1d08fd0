package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/tickreplay/internal/registry"
)

func newExchangesCmd() *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:   "exchanges [exchange...]",
		Short: "List supported exchanges and their channels",
		Example: `  tickreplay exchanges
  tickreplay exchanges bitmex deribit
  tickreplay exchanges --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := registry.Default()

			ids := args
			if len(ids) == 0 {
				ids = reg.Exchanges()
			}
			for _, id := range ids {
				if !reg.IsExchange(id) {
					return fmt.Errorf("unknown exchange %q", id)
				}
			}

			if outputJSON {
				out := make(map[string][]string, len(ids))
				for _, id := range ids {
					out[id] = reg.Channels(id)
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "EXCHANGE\tCHANNELS")
			for _, id := range ids {
				fmt.Fprintf(tw, "%s\t%s\n", id, strings.Join(reg.Channels(id), ", "))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "output as JSON")
	return cmd
}
