// Package cli provides the command-line interface for jarvis.
package cli

import (
	"github.com/raphaelgruber/jarvis/internal/client"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose   bool
	serverURL string

	// Shared API client, created before each command runs.
	apiClient *client.Client
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "jarvis",
	Short: "Talk to the Jarvis personal assistant",
	Long: `Jarvis is a French-speaking personal assistant. It classifies what you say,
remembers facts you tell it, answers from your indexed documents and keeps
short conversational sessions.

This CLI talks to a running jarvis-server over HTTP and websocket.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		apiClient = client.New(serverURL)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "", "server URL (default $JARVIS_SERVER_URL or "+client.DefaultServerURL+")")

	// Add subcommands
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(statsCmd)
}
