// Package agent drives the LLM ↔ tool iteration loop over the adapted tool
// registry.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/repopulse/repopulse/internal/schema"
	"github.com/repopulse/repopulse/internal/tools"
)

// Settings bounds one agent run.
type Settings struct {
	Model       string
	MaxTokens   int
	Temperature float64
	MaxIter     int
}

// Runner executes the LLM ↔ tool loop until the model produces a terminal
// response or the iteration budget is exhausted.
type Runner struct {
	provider schema.LLMProvider
	settings Settings
}

func NewRunner(provider schema.LLMProvider, settings Settings) *Runner {
	if settings.MaxIter <= 0 {
		settings.MaxIter = 20
	}
	return &Runner{provider: provider, settings: settings}
}

// Run iterates chat turns, dispatching every requested tool call against the
// registry. Tool failures arrive as result text (the tools contain their own
// errors), so the loop itself has no per-tool error handling.
func (r *Runner) Run(ctx context.Context, conversation schema.Messages, registry *tools.Registry) (string, []string, error) {
	var toolsUsed []string

	for i := 0; i < r.settings.MaxIter; i++ {
		resp, err := r.provider.Chat(ctx,
			conversation,
			registry.Definitions(),
			schema.ChatOptions{
				Model:       r.settings.Model,
				MaxTokens:   r.settings.MaxTokens,
				Temperature: r.settings.Temperature,
			},
		)
		if err != nil {
			return "", toolsUsed, fmt.Errorf("llm chat: %w", err)
		}

		if !resp.HasToolCalls() {
			content := ""
			if resp.Content != nil {
				content = *resp.Content
			}
			return content, toolsUsed, nil
		}

		conversation.AddAssistant(resp.Content, resp.ToolCalls)

		for _, tc := range resp.ToolCalls {
			toolsUsed = append(toolsUsed, tc.Name)
			argsJSON, _ := json.Marshal(tc.Arguments)
			slog.Info("tool call", "name", tc.Name, "args", truncate(string(argsJSON), 200))

			var result string
			if t := registry.Get(tc.Name); t != nil {
				result, _ = t.Execute(ctx, tc.Arguments)
			} else {
				result = fmt.Sprintf("Error: tool %q not found", tc.Name)
			}
			conversation.AddToolResult(tc.ID, tc.Name, result)
		}
	}

	return "", toolsUsed, fmt.Errorf("no final answer after %d tool iterations", r.settings.MaxIter)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
