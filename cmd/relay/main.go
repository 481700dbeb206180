package main

import (
	"os"

	"github.com/alfredjeanlab/relay/internal/client"
	"github.com/alfredjeanlab/relay/internal/ui"
	"github.com/spf13/cobra"
)

var (
	serverURL  string
	jsonOutput bool

	relayClient *client.Client
)

func defaultServerURL() string {
	if s := os.Getenv("RELAY_URL"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

var rootCmd = &cobra.Command{
	Use:   "relay <command>",
	Short: "Live message relay server and client",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if !ui.ShouldUseColor() {
			ui.ForceNoColor()
		}
		relayClient = client.New(serverURL)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if relayClient != nil {
			relayClient.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "url", defaultServerURL(), "relay server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(messagesCmd)
	rootCmd.AddCommand(tailCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(healthCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
