package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp [tour]",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes tour authoring tools to AI agents.

Supported transports:
- stdio (default): Standard input/output, for local process integration.
- sse: Server-sent events over HTTP, for remote agents.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stack, err := openStack(cmd, withTourArg(args))
		if err != nil {
			return err
		}
		defer stack.Close()

		transport, _ := cmd.Flags().GetString("transport")
		addr, _ := cmd.Flags().GetString("addr")
		baseURL, _ := cmd.Flags().GetString("base-url")

		switch transport {
		case "stdio":
			stack.Logger.Info("starting MCP server", "transport", transport)
			return stack.ServeMCP(cmd.Context(), "", "")
		case "sse":
			stack.Logger.Info("starting MCP server", "transport", transport, "addr", addr)
			return stack.ServeMCP(cmd.Context(), addr, baseURL)
		default:
			return fmt.Errorf("unknown transport %q, supported: stdio, sse", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	f := mcpCmd.Flags()
	f.String("transport", "stdio", "Transport protocol: stdio or sse")
	f.String("addr", ":8081", "Listen address (sse only)")
	f.String("base-url", "", "Public base URL (sse only)")
}
