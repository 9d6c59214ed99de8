package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var classifyJSON bool

var classifyCmd = &cobra.Command{
	Use:   "classify <text>",
	Short: "Show how an utterance is classified without acting on it",
	Long: `Classify an utterance and print the detected intent, confidence,
extracted content and entities. Nothing is stored.

Examples:
  jarvis classify "Rappelle-moi d'appeler Paul demain à 9h"
  jarvis classify "annule" --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().BoolVar(&classifyJSON, "json", false, "print the raw classification as JSON")
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	out := cmd.OutOrStdout()

	res, err := apiClient.Classify(ctx, strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("classify: %w", err)
	}

	if classifyJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Fprintln(out, defaultTheme.intentLine(newConfidenceBar(), res.Primary, res.Confidence))
	if res.Secondary != nil {
		fmt.Fprintf(out, "  Secondary: %s\n", *res.Secondary)
	}
	fmt.Fprintf(out, "  Priority:  %s\n", res.Priority)
	if res.ExtractedContent != "" {
		fmt.Fprintf(out, "  Content:   %s\n", res.ExtractedContent)
	}
	if verbose {
		data, err := json.Marshal(res.Entities)
		if err == nil {
			fmt.Fprintf(out, "  Entities:  %s\n", data)
		}
	}
	return nil
}
