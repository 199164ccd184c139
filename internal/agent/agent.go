package agent

import (
	"context"

	"github.com/repopulse/repopulse/internal/schema"
	"github.com/repopulse/repopulse/internal/tools"
)

const systemPrompt = `You are repopulse, an assistant for analyzing software repositories.
You have tools backed by a hosted session (GitHub and Slack operations, discovered at startup) plus fetch_url for reading linked pages.
Tool failures come back as results whose text starts with "Error:"; inspect them and decide whether to retry with different arguments, use another tool, or report the problem.
Be concise and concrete; cite issue/PR numbers when you mention them.`

// Agent combines the provider, the adapted tool registry, and the system
// prompt into a single Execute surface.
type Agent struct {
	runner   *Runner
	registry *tools.Registry
}

func New(provider schema.LLMProvider, registry *tools.Registry, settings Settings) *Agent {
	return &Agent{
		runner:   NewRunner(provider, settings),
		registry: registry,
	}
}

// Registry exposes the agent's tool set (for the tools listing command).
func (a *Agent) Registry() *tools.Registry { return a.registry }

// Execute runs one request through the loop and returns the final text plus
// the names of the tools used.
func (a *Agent) Execute(ctx context.Context, prompt string) (string, []string, error) {
	conversation := schema.NewMessages()
	conversation.AddSystem(systemPrompt)
	conversation.AddUser(prompt)
	return a.runner.Run(ctx, conversation, a.registry)
}
