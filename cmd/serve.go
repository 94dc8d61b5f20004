package cmd

import (
	"github.com/iamvkosarev/whatsapp-ai-bridge/internal/app"
	"github.com/spf13/cobra"
)

var runServer = app.Run

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook server (default command)",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	return runServer(cmd.Context(), cfg, logger)
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
