package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/repopulse/repopulse/internal/config"
	"github.com/repopulse/repopulse/internal/dependency"
)

var agentMessage string

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Chat with the repository agent",
	RunE:  runAgent,
}

func init() {
	agentCmd.Flags().StringVarP(&agentMessage, "message", "m", "", "Send a single message and exit")
}

var exitCommands = map[string]bool{
	"exit":  true,
	"quit":  true,
	"/exit": true,
	"/quit": true,
	":q":    true,
}

func runAgent(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, err := dependency.New(ctx, cfg)
	if err != nil {
		return err
	}
	ag := container.Agent()

	if agentMessage != "" {
		return runSingleMessage(ctx, ag, agentMessage)
	}
	return runInteractive(ctx, ag)
}

// runSingleMessage sends one prompt to the agent and prints the response.
func runSingleMessage(ctx context.Context, ag analyzer, prompt string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	fmt.Fprintf(os.Stderr, "  ↳ thinking...\n")
	text, used, err := ag.Execute(ctx, prompt)
	if err != nil {
		return err
	}
	printResponse(text, used)
	return nil
}

// runInteractive starts the REPL loop: reads lines from stdin, runs each
// through the agent, and prints the reply before prompting again.
func runInteractive(ctx context.Context, ag analyzer) error {
	fmt.Printf("%s Interactive mode (type 'exit' or Ctrl+C to quit)\n\n", logo)

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("You: ")

		if !scanner.Scan() {
			fmt.Println("\nGoodbye!")
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if exitCommands[strings.ToLower(line)] {
			fmt.Println("Goodbye!")
			return nil
		}

		turnCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		text, used, err := ag.Execute(turnCtx, line)
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		printResponse(text, used)
	}
}

// analyzer is the slice of the agent the CLI needs.
type analyzer interface {
	Execute(ctx context.Context, prompt string) (string, []string, error)
}

func printResponse(text string, toolsUsed []string) {
	if len(toolsUsed) > 0 {
		fmt.Fprintf(os.Stderr, "  (tools: %s)\n", strings.Join(toolsUsed, ", "))
	}
	fmt.Printf("\n%s\n\n", text)
}
