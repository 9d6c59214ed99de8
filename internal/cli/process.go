package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/raphaelgruber/jarvis/internal/agent"
	"github.com/spf13/cobra"
)

var (
	processSession string
	processSource  string
)

var processCmd = &cobra.Command{
	Use:   "process <text>",
	Short: "Send one utterance to the assistant",
	Long: `Send one utterance to the assistant and print its answer.

The utterance is classified, routed and recorded in the session. Pass
--session to continue an earlier conversation.

Examples:
  jarvis process "Souviens-toi que le code du portail est 4521"
  jarvis process "Quel est le code du portail ?" --session 3f2a...
  jarvis process "oui" --session 3f2a... --source voice`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVar(&processSession, "session", "", "session ID to continue")
	processCmd.Flags().StringVar(&processSource, "source", string(agent.SourceAPI), "request source (voice, ui, api)")
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	resp, err := apiClient.Process(ctx, agent.ProcessRequest{
		SessionID: processSession,
		Text:      strings.Join(args, " "),
		Source:    processSource,
	})
	if err != nil {
		return fmt.Errorf("process: %w", err)
	}

	printResponse(cmd.OutOrStdout(), resp)
	if processSession == "" {
		fmt.Fprintln(cmd.OutOrStdout(), defaultTheme.hintStyle().Render("Continue with --session "+resp.SessionID))
	}
	return nil
}
