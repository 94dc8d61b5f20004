package cmd

import (
	"fmt"
	"github.com/iamvkosarev/whatsapp-ai-bridge/config"
	"github.com/spf13/cobra"
	"io"
)

var verifyConfigCmd = &cobra.Command{
	Use:   "verify-config",
	Short: "Load the configuration and print the effective values",
	RunE: func(cmd *cobra.Command, args []string) error {
		printConfig(cmd.OutOrStdout(), cfg)
		return nil
	},
}

// printConfig never prints secrets, only whether they are set.
func printConfig(w io.Writer, c *config.Config) {
	fmt.Fprintf(w, "port:              %s\n", c.Server.Port)
	fmt.Fprintf(w, "log:               %s (%s)\n", c.Server.LogLevel, c.Server.LogFormat)
	fmt.Fprintf(w, "webhook:           /webhook/%s\n", c.WhatsApp.ChannelSlug)
	fmt.Fprintf(w, "graph url:         %s\n", c.WhatsApp.GraphBaseURL)
	fmt.Fprintf(w, "phone id:          %s\n", orUnset(c.WhatsApp.PhoneID))
	fmt.Fprintf(w, "whatsapp token:    %s\n", setOrUnset(c.WhatsApp.Token))
	fmt.Fprintf(w, "verify token:      %s\n", setOrUnset(c.WhatsApp.VerifyToken))
	fmt.Fprintf(w, "model:             %s @ %s\n", c.LLM.Model, c.LLM.BaseURL)
	fmt.Fprintf(w, "groq api key:      %s\n", setOrUnset(c.LLM.APIKey))
	fmt.Fprintf(w, "event sink:        %s\n", c.Storage.Sink)
	fmt.Fprintf(w, "chat log:          %s\n", c.Storage.LogFile())
	fmt.Fprintf(w, "redis mirror:      %s\n", orUnset(c.Redis.Endpoint))
	fmt.Fprintf(w, "bot language:      %s\n", c.Bot.Language)
}

func setOrUnset(secret string) string {
	if secret == "" {
		return "<unset>"
	}
	return "set"
}

func orUnset(s string) string {
	if s == "" {
		return "<unset>"
	}
	return s
}

func init() {
	rootCmd.AddCommand(verifyConfigCmd)
}
