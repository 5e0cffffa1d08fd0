package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/tickreplay/internal/config"
	"github.com/SmitUplenchwar2687/tickreplay/internal/feed"
	"github.com/SmitUplenchwar2687/tickreplay/internal/generate"
	"github.com/SmitUplenchwar2687/tickreplay/internal/registry"
)

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate sample cache slices and config",
		Long: `Generates sample data for testing and experimentation.

Use "generate slices" to fill the cache with synthetic trade messages.
Use "generate config" to create an example config JSON file.`,
	}

	cmd.AddCommand(newGenerateSlicesCmd(), newGenerateConfigCmd())
	return cmd
}

func newGenerateSlicesCmd() *cobra.Command {
	var (
		opts        clientOptions
		exchange    string
		from        string
		count       int
		duration    time.Duration
		pattern     string
		seed        int64
		filterFlags []string
		filtersJSON string
	)

	def := generate.DefaultOptions()

	cmd := &cobra.Command{
		Use:   "slices",
		Short: "Write synthetic slices into the cache",
		Long: `Writes one slice per minute of [from, from+duration) with synthetic
trade messages, and announces each slice so waiting replays pick it up.

Patterns:
  steady    Evenly distributed messages
  burst     Concentrated bursts with quiet periods
  ramp      Gradually increasing message rate`,
		Example: `  tickreplay generate slices --exchange bitmex --from 2019-06-01 --duration 10m --filter trade:XBTUSD
  tickreplay generate slices --count 5000 --pattern burst --notify redis`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.load(cmd); err != nil {
				return err
			}
			if !registry.Default().IsExchange(exchange) {
				return fmt.Errorf("unknown exchange %q", exchange)
			}

			filters, err := buildFilters(filterFlags, filtersJSON)
			if err != nil {
				return err
			}

			var start time.Time
			if from != "" {
				if start, err = feed.ParseISO(from); err != nil {
					return fmt.Errorf("invalid --from %q: %w", from, err)
				}
			}

			rt, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			paths, err := generate.WriteCache(cmd.Context(), rt.cfg.CacheDir, generate.Options{
				Exchange: exchange,
				Filters:  filters,
				Count:    count,
				Duration: duration,
				Pattern:  pattern,
				Start:    start,
				Seed:     seed,
			}, rt.publisher)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Generated %d messages in %d slices under %s\n", count, len(paths), rt.cfg.CacheDir)
			fmt.Fprintf(out, "  Exchange: %s\n", exchange)
			fmt.Fprintf(out, "  Duration: %s\n", duration)
			fmt.Fprintf(out, "  Pattern:  %s\n", pattern)
			return nil
		},
	}

	opts.addFlags(cmd)
	cmd.Flags().StringVar(&exchange, "exchange", def.Exchange, "exchange id")
	cmd.Flags().StringVar(&from, "from", "", "first minute to write, ISO 8601 (default: current minute)")
	cmd.Flags().IntVar(&count, "count", def.Count, "number of messages to generate")
	cmd.Flags().DurationVar(&duration, "duration", def.Duration, "time span to cover")
	cmd.Flags().StringVar(&pattern, "pattern", def.Pattern, "message pattern (steady, burst, ramp)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 = time based)")
	cmd.Flags().StringArrayVar(&filterFlags, "filter", nil, "channel filter, channel[:SYM1,SYM2] (repeatable)")
	cmd.Flags().StringVar(&filtersJSON, "filters", "", "filters as JSON")

	return cmd
}

func newGenerateConfigCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:     "config",
		Short:   "Generate an example config JSON file",
		Example: `  tickreplay generate config --output tickreplay.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = "tickreplay.json"
			}
			if err := config.WriteExample(output); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Generated example config at %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVar(&output, "output", "tickreplay.json", "output file path")
	return cmd
}
