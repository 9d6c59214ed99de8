package cli

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show server operation statistics",
	Long: `Show uptime, per-operation timings, token usage and intent counts
reported by the server.`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	out := cmd.OutOrStdout()

	snap, err := apiClient.Stats(ctx)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}

	uptime := time.Duration(snap.UptimeSeconds * float64(time.Second)).Round(time.Second)
	fmt.Fprintf(out, "Uptime: %s\n", uptime)
	if snap.StoredMemories != nil {
		fmt.Fprintf(out, "Memories: %d\n", *snap.StoredMemories)
	}
	fmt.Fprintln(out)

	if len(snap.Operations) > 0 {
		fmt.Fprintln(out, "Operations:")
		ops := make([]string, 0, len(snap.Operations))
		for name := range snap.Operations {
			ops = append(ops, name)
		}
		sort.Strings(ops)
		for _, name := range ops {
			op := snap.Operations[name]
			fmt.Fprintf(out, "  %-16s count=%-6d avg=%.1fms max=%dms", name, op.Count, op.AvgTimeMs, op.MaxTimeMs)
			if op.Errors > 0 {
				fmt.Fprint(out, defaultTheme.errorStyle().Render(fmt.Sprintf(" errors=%d", op.Errors)))
			}
			if op.TotalInputTokens != nil && op.TotalOutputTokens != nil {
				fmt.Fprintf(out, " tokens=%d/%d", *op.TotalInputTokens, *op.TotalOutputTokens)
			}
			fmt.Fprintln(out)
		}
		fmt.Fprintln(out)
	}

	if len(snap.Intents) > 0 {
		fmt.Fprintln(out, "Intents:")
		kinds := make([]string, 0, len(snap.Intents))
		for k := range snap.Intents {
			kinds = append(kinds, k)
		}
		sort.Slice(kinds, func(i, j int) bool { return snap.Intents[kinds[i]] > snap.Intents[kinds[j]] })
		for _, k := range kinds {
			fmt.Fprintf(out, "  %-18s %d\n", k, snap.Intents[k])
		}
		fmt.Fprintf(out, "  (%d classified by fallback rules)\n", snap.Fallbacks)
	}

	if snap.EventsDropped > 0 {
		fmt.Fprintln(out, defaultTheme.warningStyle().Render(fmt.Sprintf("\n%d events dropped", snap.EventsDropped)))
	}
	return nil
}
