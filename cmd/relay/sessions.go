package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alfredjeanlab/relay/internal/ui"
	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List stream sessions attached to the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		sessions, err := relayClient.Sessions(context.Background())
		if err != nil {
			return fmt.Errorf("listing sessions: %w", err)
		}

		if jsonOutput {
			data, err := json.MarshalIndent(sessions, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling JSON: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		if len(sessions) == 0 {
			fmt.Println(ui.RenderMuted("no active sessions; attach one with ") + ui.RenderCommand("relay tail"))
			return nil
		}

		for _, s := range sessions {
			line := fmt.Sprintf("%s  last_id=%d sent=%d", s.SessionID, s.LastSentID, s.SentCount)
			if s.GapCount > 0 {
				line += ui.RenderWarn(fmt.Sprintf(" gaps=%d", s.GapCount))
			}
			line += ui.RenderMuted(fmt.Sprintf("  attached %s", s.AttachedAt.Local().Format("15:04:05")))
			fmt.Println(line)
		}
		fmt.Println(ui.RenderMuted(fmt.Sprintf("%d sessions", len(sessions))))
		return nil
	},
}
