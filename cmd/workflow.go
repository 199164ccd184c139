package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/repopulse/repopulse/internal/config"
	"github.com/repopulse/repopulse/internal/dependency"
	"github.com/repopulse/repopulse/internal/workflow"
)

var workflowFile string

var workflowCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Manage the repo report workflow",
}

func init() {
	workflowCmd.AddCommand(workflowRunCmd)
	workflowCmd.AddCommand(workflowInitCmd)
	workflowCmd.PersistentFlags().StringVarP(&workflowFile, "file", "f", "", "Workflow definition file (default ~/.repopulse/workflow.yaml)")
}

var workflowRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the workflow once",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := config.Load(config.ConfigPath())
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
		defer cancel()

		container, err := dependency.New(ctx, cfg)
		if err != nil {
			return err
		}
		return runWorkflowOnce(ctx, container)
	},
}

var workflowInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default workflow definition",
	RunE: func(_ *cobra.Command, _ []string) error {
		path := workflowFile
		if path == "" {
			path = config.WorkflowPath()
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
		def := workflow.DefaultDefinition()
		if err := workflow.SaveDefinition(&def, path); err != nil {
			return err
		}
		fmt.Printf("✓ Wrote default workflow to %s\n", path)
		return nil
	},
}

// runWorkflowOnce loads the definition and drives one engine run.
// Shared with the schedule command's job callback.
func runWorkflowOnce(ctx context.Context, container *dependency.Container) error {
	path := workflowFile
	if path == "" {
		path = config.WorkflowPath()
	}
	def, err := workflow.LoadDefinition(path)
	if err != nil {
		return fmt.Errorf("load workflow: %w", err)
	}
	if err := def.Validate(); err != nil {
		return fmt.Errorf("invalid workflow %s: %w", path, err)
	}

	st := &workflow.State{Def: def}
	if err := container.WorkflowEngine().Run(ctx, st); err != nil {
		return err
	}

	fmt.Printf("%s Workflow %q complete (%d calls", logo, def.Name, len(st.Collected))
	if st.TaskID != "" {
		fmt.Printf(", task %s", st.TaskID)
	}
	fmt.Println(")")
	fmt.Printf("\n%s\n", st.Summary)
	return nil
}
