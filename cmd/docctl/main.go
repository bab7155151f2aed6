package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"docqr-backend/internal/shared/config"
	"docqr-backend/internal/shared/telemetry"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "docctl",
	Short: "Operator tools for the document pipeline",
	Long: `docctl runs pipeline stages against local files with the same
configuration as the API server, and mints tokens for manual testing.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		level := cfg.LogLevel
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			level = "debug"
		}
		telemetry.Setup(os.Stderr, level, "console")
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "V", false, "Enable debug logging")
	rootCmd.AddCommand(extractCmd, enrichCmd, tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		telemetry.Logger().Error().Err(err).Msg("command failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
