package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/waypoint/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve tour sessions over HTTP",
	Long: `Starts the session API. Hosts open a session per learner, mirror their DOM
and routes into it and follow the tour over server-sent events. With a
browser URL configured, each session drives its own browser tab instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		stack, err := openStack(cmd, func(cfg *config.Config) {
			if cmd.Flags().Changed("addr") {
				cfg.HTTP.Addr, _ = cmd.Flags().GetString("addr")
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.HTTP.MetricsAddr, _ = cmd.Flags().GetString("metrics-addr")
			}
			if cmd.Flags().Changed("browser-url") {
				cfg.Browser.URL, _ = cmd.Flags().GetString("browser-url")
			}
		})
		if err != nil {
			return err
		}
		defer stack.Close()
		return stack.Serve(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	f := serveCmd.Flags()
	f.StringP("addr", "a", "", "Listen address (default from config, :8080)")
	f.String("metrics-addr", "", "Separate listener for /metrics")
	f.String("browser-url", "", "Drive a browser tab at this URL per session")
}
