package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aretw0/waypoint/internal/cli"
	"github.com/aretw0/waypoint/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "waypoint",
	Short: "Waypoint runs guided product tours",
	Long: `Waypoint walks learners through a web application one highlighted element
at a time. Tours are YAML/JSON files or directories of markdown steps.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it until an
// interrupt or termination signal arrives.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringP("config", "c", "", "Config file (.yaml, .json or .toml)")
	f.StringP("tour", "t", "", "Tour file or directory (default: built-in tour)")
	f.String("log-level", "", "Log level: debug, info, warn, error")
	f.String("log-format", "", "Log format: text or json")
}

// loadConfig reads the config file and applies flag overrides on top.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if cmd.Flags().Changed("tour") {
		cfg.Tour, _ = cmd.Flags().GetString("tour")
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level, _ = cmd.Flags().GetString("log-level")
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Log.Format, _ = cmd.Flags().GetString("log-format")
	}
	return cfg, cfg.Validate()
}

// openStack loads the config, lets adjust tweak it and builds the stack.
// Logs go to stderr so stdout stays free for the preview and MCP stdio.
func openStack(cmd *cobra.Command, adjust func(*config.Config)) (*cli.Stack, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if adjust != nil {
		adjust(&cfg)
	}
	logger, err := cli.NewLogger(os.Stderr, cfg.Log)
	if err != nil {
		return nil, err
	}
	return cli.Build(cmd.Context(), cfg, logger)
}
