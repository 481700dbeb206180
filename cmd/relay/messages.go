package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alfredjeanlab/relay/internal/model"
	"github.com/alfredjeanlab/relay/internal/ui"
	"github.com/spf13/cobra"
)

var messagesCmd = &cobra.Command{
	Use:     "messages",
	Aliases: []string{"ls"},
	Short:   "List the server's current message snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		messages, err := relayClient.Messages(context.Background())
		if err != nil {
			return fmt.Errorf("listing messages: %w", err)
		}

		if jsonOutput {
			data, err := json.MarshalIndent(messages, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling JSON: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		for _, m := range messages {
			printMessage(m)
		}
		fmt.Println(ui.RenderMuted(fmt.Sprintf("%d messages", len(messages))))
		return nil
	},
}

func printMessage(m *model.Message) {
	prefix := ui.RenderAccent(fmt.Sprintf("%6d", m.ID))
	if !m.CreatedAt.IsZero() {
		prefix += ui.RenderMuted("  " + m.CreatedAt.Local().Format("15:04:05"))
	}
	fmt.Printf("%s  %s\n", prefix, m.Text)
}
