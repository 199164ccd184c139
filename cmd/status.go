package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/repopulse/repopulse/internal/config"
	"github.com/repopulse/repopulse/internal/hosted"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show repopulse status",
	RunE:  runStatus,
}

func runStatus(_ *cobra.Command, _ []string) error {
	cfgPath := config.ConfigPath()

	fmt.Printf("%s repopulse Status\n\n", logo)

	_, statErr := os.Stat(cfgPath)
	cfgMark := "✗"
	if statErr == nil {
		cfgMark = "✓"
	}
	fmt.Printf("Config:    %s %s\n", cfgPath, cfgMark)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  (could not load config: %v)\n", err)
		return nil
	}

	fmt.Printf("Model:     %s\n", cfg.LLM.Model)
	llmMark := "(not set)"
	if cfg.LLM.APIKey != "" {
		llmMark = "✓"
	}
	fmt.Printf("LLM key:   %s\n\n", llmMark)

	sessionID := cfg.Hosted.ResolveSessionID()
	fmt.Printf("Session:   %s ", cfg.Hosted.BaseURL)
	if sessionID == "" {
		fmt.Printf("(no session id: set %s or hosted.sessionId)\n", config.SessionIDEnv)
		return nil
	}
	fmt.Println("✓")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client, err := hosted.NewClient(cfg.Hosted, sessionID)
	if err != nil {
		fmt.Printf("Catalog:   ✗ (%v)\n", err)
		return nil
	}
	tools, err := client.ListTools(ctx)
	if err != nil {
		fmt.Printf("Catalog:   ✗ (%v)\n", err)
		return nil
	}
	fmt.Printf("Catalog:   ✓ %d tools\n", len(tools))
	return nil
}
