package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/raphaelgruber/jarvis/internal/client"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session <id>",
	Short: "Show the history of a session",
	Long: `Print the recorded history and any pending confirmation of a session.

Sessions expire after a period of inactivity.

Examples:
  jarvis session 3f2a6c1e-...`,
	Args: cobra.ExactArgs(1),
	RunE: runSession,
}

func runSession(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	out := cmd.OutOrStdout()

	sc, err := apiClient.Session(ctx, args[0])
	if errors.Is(err, client.ErrNotFound) {
		fmt.Fprintln(out, "Session not found (it may have expired).")
		return nil
	}
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}

	fmt.Fprintf(out, "Session %s (%d messages)\n\n", sc.SessionID, len(sc.History))
	for _, m := range sc.History {
		label := defaultTheme.statusStyle().Render(fmt.Sprintf("%-9s", m.Role))
		line := fmt.Sprintf("%s %s %s", m.Timestamp.Local().Format("15:04:05"), label, m.Content)
		if m.Intent != nil && verbose {
			line += defaultTheme.hintStyle().Render(fmt.Sprintf("  [%s]", *m.Intent))
		}
		fmt.Fprintln(out, line)
	}

	if p := sc.PendingConfirmation; p != nil {
		fmt.Fprintf(out, "\nPending confirmation: %s (expires %s)\n", p.Action, p.ExpiresAt.Local().Format("15:04:05"))
	}
	return nil
}
