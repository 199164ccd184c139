package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/repopulse/repopulse/internal/config"
	"github.com/repopulse/repopulse/internal/dependency"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools discovered from the hosted session",
	RunE:  runTools,
}

func runTools(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	container, err := dependency.New(ctx, cfg)
	if err != nil {
		return err
	}

	registry := container.Registry()
	names := registry.Names()
	fmt.Printf("%s %d tools available:\n\n", logo, len(names))
	for _, name := range names {
		tool := registry.Get(name)
		desc := tool.Description()
		if len(desc) > 70 {
			desc = desc[:67] + "..."
		}
		fmt.Printf("  %-28s %s\n", name, desc)
	}
	return nil
}
