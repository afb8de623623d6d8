package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/waypoint/internal/cli"
	"github.com/aretw0/waypoint/internal/config"
)

var previewCmd = &cobra.Command{
	Use:   "preview [tour]",
	Short: "Walk through a tour in the terminal",
	Long: `Runs the tour against a simulated page holding every step target and
renders each step as it is shown. Type "help" at the prompt for commands.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stack, err := openStack(cmd, withTourArg(args))
		if err != nil {
			return err
		}
		defer stack.Close()

		jsonMode, _ := cmd.Flags().GetBool("json")
		resume, _ := cmd.Flags().GetBool("resume")
		watch, _ := cmd.Flags().GetBool("watch")
		session, _ := cmd.Flags().GetString("session")
		missing, _ := cmd.Flags().GetStringSlice("missing")

		return stack.Preview(cmd.Context(), cli.PreviewOptions{
			In:        os.Stdin,
			Out:       cmd.OutOrStdout(),
			JSON:      jsonMode,
			Resume:    resume,
			Watch:     watch,
			SessionID: session,
			Missing:   missing,
			Banner:    true,
		})
	},
}

func init() {
	rootCmd.AddCommand(previewCmd)
	f := previewCmd.Flags()
	f.Bool("json", false, "Speak JSON lines instead of rendering markdown")
	f.Bool("resume", false, "Continue from saved progress")
	f.Bool("watch", false, "Reload when the tour source changes")
	f.String("session", cli.DefaultPreviewSession, "Progress key")
	f.StringSlice("missing", nil, "Targets to leave out of the simulated page")
}

// withTourArg lets a positional argument override the tour source.
func withTourArg(args []string) func(*config.Config) {
	return func(cfg *config.Config) {
		if len(args) > 0 {
			cfg.Tour = args[0]
		}
	}
}
