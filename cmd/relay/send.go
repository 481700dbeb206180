package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send <text>...",
	Short: "Submit a message to the relay",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")

		id, err := relayClient.Send(context.Background(), text)
		if err != nil {
			return fmt.Errorf("sending message: %w", err)
		}

		if jsonOutput {
			data, err := json.MarshalIndent(map[string]int64{"id": id}, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling JSON: %w", err)
			}
			fmt.Println(string(data))
		} else {
			fmt.Printf("Sent message %d\n", id)
		}
		return nil
	},
}
