// Package cmd implements the repopulse CLI using cobra.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"
const logo = "📡"

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "repopulse",
	Short: logo + " repopulse — repository pulse reports",
	Long:  logo + " repopulse — agentic repository reports over a hosted tool session",
}

// Execute runs the root command and exits on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = version

	rootCmd.AddCommand(onboardCmd)
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(workflowCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(statusCmd)
}
