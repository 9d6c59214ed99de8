package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var ingestSource string

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Index a text document for question answering",
	Long: `Split a text or Markdown document into chunks, embed them and store them
so the assistant can answer questions about it. Use "-" to read stdin.

Examples:
  jarvis ingest notes/contrat-assurance.md
  cat manuel.txt | jarvis ingest - --source manuel-chaudiere`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestSource, "source", "", "source name stored with the chunks (default: file name)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	path := args[0]

	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	source := ingestSource
	if source == "" {
		if path == "-" {
			return fmt.Errorf("--source is required when reading stdin")
		}
		source = filepath.Base(path)
	}

	res, err := apiClient.Ingest(ctx, source, string(data))
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), defaultTheme.answerStyle().Render("✓ Indexed"))
	fmt.Fprintf(cmd.OutOrStdout(), "  Source: %s\n  Chunks: %d\n", res.Source, res.Chunks)
	return nil
}
