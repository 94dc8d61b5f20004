package cmd

import (
	"fmt"
	"github.com/iamvkosarev/whatsapp-ai-bridge/config"
	"github.com/iamvkosarev/whatsapp-ai-bridge/internal/app"
	"github.com/spf13/cobra"
	"log/slog"
	"os"
)

var (
	cfgPath string
	envFile string

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "whatsbridge",
	Short:         "WhatsApp Cloud API to LLM webhook bridge",
	Long:          `Receives WhatsApp messages on a webhook, answers them with a Groq hosted model and keeps a JSONL log of every exchange.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	// without a subcommand the bridge starts serving
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd, args)
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadEnvFile(envFile); err != nil {
			return err
		}
		if cfgPath == "" {
			cfgPath = os.Getenv("CONFIG_PATH")
		}
		var err error
		if cfg, err = config.LoadConfig(cfgPath); err != nil {
			return err
		}
		logger = app.NewLogger(cfg.Server, os.Stderr)
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "optional yaml config file, environment variables win")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default accesos.env, then .env)")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
