package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/repopulse/repopulse/internal/config"
	"github.com/repopulse/repopulse/internal/workflow"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize configuration and the default workflow",
	RunE:  runOnboard,
}

func runOnboard(_ *cobra.Command, _ []string) error {
	cfgPath := config.ConfigPath()

	if _, err := os.Stat(cfgPath); err == nil {
		fmt.Printf("Config already exists at %s\n", cfgPath)
	} else {
		cfg := config.DefaultConfig()
		if err := config.Save(&cfg, cfgPath); err != nil {
			return err
		}
		fmt.Printf("✓ Created config at %s\n", cfgPath)
	}

	wfPath := config.WorkflowPath()
	if _, err := os.Stat(wfPath); err == nil {
		fmt.Printf("Workflow already exists at %s\n", wfPath)
	} else {
		def := workflow.DefaultDefinition()
		if err := workflow.SaveDefinition(&def, wfPath); err != nil {
			return err
		}
		fmt.Printf("✓ Created workflow at %s\n", wfPath)
	}

	fmt.Printf("\n%s repopulse is ready!\n\n", logo)
	fmt.Println("Next steps:")
	fmt.Printf("  1. Set your session id: export %s=<id> (or edit hosted.sessionId in %s)\n", config.SessionIDEnv, cfgPath)
	fmt.Printf("  2. Add your LLM API key to %s\n", cfgPath)
	fmt.Printf("  3. Check connectivity: repopulse status\n")
	fmt.Printf("  4. Chat: repopulse agent -m \"What changed in golang/go this week?\"\n")
	fmt.Printf("  5. Run the report: repopulse workflow run\n")
	return nil
}
