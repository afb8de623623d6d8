package main

import (
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [tour]",
	Short: "Check a tour for structural problems and missing targets",
	Long: `Validates the tour definition. With --url, the page is opened in a browser
and the targets of the steps on that page's route are looked up.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stack, err := openStack(cmd, withTourArg(args))
		if err != nil {
			return err
		}
		defer stack.Close()

		url, _ := cmd.Flags().GetString("url")
		return stack.Validate(cmd.Context(), cmd.OutOrStdout(), url)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().String("url", "", "Page to check targets against")
}
