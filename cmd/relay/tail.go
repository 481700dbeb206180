package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/alfredjeanlab/relay/internal/client"
	"github.com/alfredjeanlab/relay/internal/ui"
	"github.com/spf13/cobra"
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Follow the live message stream",
	Long: `Follow the live message stream.

The server replays its full message history first, then every new
message as it arrives. A gap marker means the stream fell behind and
some messages were skipped; rerun "relay messages" for the full log.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		err := relayClient.Tail(ctx, func(ev client.StreamEvent) error {
			switch ev.Kind {
			case client.EventKeepalive:
				// Idle heartbeat, nothing to show.
			case client.EventGap:
				if jsonOutput {
					fmt.Println(`{"gap":true}`)
				} else {
					fmt.Println(ui.RenderWarn("... some messages were skipped ..."))
				}
			case client.EventMessage:
				if jsonOutput {
					data, err := json.Marshal(map[string]any{"id": ev.ID, "text": ev.Text})
					if err != nil {
						return err
					}
					fmt.Println(string(data))
				} else {
					fmt.Printf("%s  %s\n", ui.RenderAccent(fmt.Sprintf("%6d", ev.ID)), ev.Text)
				}
			}
			return nil
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}
