package main

import (
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph [tour]",
	Short: "Print the tour as a Mermaid flowchart",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stack, err := openStack(cmd, withTourArg(args))
		if err != nil {
			return err
		}
		defer stack.Close()

		session, _ := cmd.Flags().GetString("session")
		return stack.Graph(cmd.Context(), cmd.OutOrStdout(), session)
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("session", "", "Highlight the saved progress of this session")
}
