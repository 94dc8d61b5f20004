package cmd

import (
	"fmt"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/iamvkosarev/whatsapp-ai-bridge/internal/app"
	"github.com/iamvkosarev/whatsapp-ai-bridge/internal/model"
	"github.com/iamvkosarev/whatsapp-ai-bridge/internal/whatsapp"
	"github.com/spf13/cobra"
)

const eventTextWidth = 60

var (
	eventsLimit  int
	eventsSource string
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show the latest logged chat events",
	RunE: func(cmd *cobra.Command, args []string) error {
		reader, closeReader, err := app.NewEventReader(cfg, eventsSource)
		if err != nil {
			return err
		}
		defer func() { _ = closeReader() }()

		events, err := reader.ListEvents(cmd.Context(), eventsLimit)
		if err != nil {
			return fmt.Errorf("failed to list events: %w", err)
		}
		if len(events) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No chat events yet.")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderEvents(events))
		return nil
	},
}

func renderEvents(events []model.ChatEvent) string {
	rows := make([][]string, 0, len(events))
	for _, event := range events {
		rows = append(rows, []string{
			event.Timestamp,
			event.UserID,
			ellipsis(event.UserText),
			ellipsis(event.BotText),
		})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		Headers("Time", "User", "User Text", "Bot Text").
		Rows(rows...)
	return t.String()
}

func ellipsis(s string) string {
	cut := whatsapp.Truncate(s, eventTextWidth)
	if cut != s {
		return cut + "…"
	}
	return s
}

func init() {
	eventsCmd.Flags().IntVarP(&eventsLimit, "limit", "n", 20, "number of latest events, 0 for all")
	eventsCmd.Flags().StringVar(&eventsSource, "source", app.SourceFile, "where to read from: file or redis")
	rootCmd.AddCommand(eventsCmd)
}
