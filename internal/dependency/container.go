// Package dependency wires core repopulse services using go.uber.org/dig.
package dependency

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/dig"

	"github.com/repopulse/repopulse/internal/agent"
	"github.com/repopulse/repopulse/internal/config"
	"github.com/repopulse/repopulse/internal/hosted"
	"github.com/repopulse/repopulse/internal/notify"
	"github.com/repopulse/repopulse/internal/providers"
	"github.com/repopulse/repopulse/internal/schema"
	"github.com/repopulse/repopulse/internal/sched"
	"github.com/repopulse/repopulse/internal/tools"
	"github.com/repopulse/repopulse/internal/workflow"
)

// Container holds the resolved core service singletons.
// Callers use the typed getter methods; they never need to import dig directly.
type Container struct {
	client   *hosted.Client
	adapter  *hosted.Adapter
	provider schema.LLMProvider
	registry *tools.Registry
	ag       *agent.Agent
	notifier *notify.SlackNotifier
	engine   *workflow.Engine
	schedSvc *sched.Service
}

func (c *Container) Client() *hosted.Client           { return c.client }
func (c *Container) Adapter() *hosted.Adapter         { return c.adapter }
func (c *Container) Provider() schema.LLMProvider     { return c.provider }
func (c *Container) Registry() *tools.Registry        { return c.registry }
func (c *Container) Agent() *agent.Agent              { return c.ag }
func (c *Container) Notifier() *notify.SlackNotifier  { return c.notifier }
func (c *Container) WorkflowEngine() *workflow.Engine { return c.engine }
func (c *Container) Scheduler() *sched.Service        { return c.schedSvc }

// New builds and wires all core services from cfg. The hosted catalog is
// fetched during construction; a missing session id or an unreachable
// session is a construction error, not a deferred one.
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	d := dig.New()

	if err := d.Provide(func() *config.Config { return cfg }); err != nil {
		return nil, err
	}
	if err := d.Provide(func() context.Context { return ctx }); err != nil {
		return nil, err
	}
	if err := d.Provide(newClient); err != nil {
		return nil, err
	}
	if err := d.Provide(newAdapter); err != nil {
		return nil, err
	}
	if err := d.Provide(newProvider); err != nil {
		return nil, err
	}
	if err := d.Provide(newRegistry); err != nil {
		return nil, err
	}
	if err := d.Provide(newAgent); err != nil {
		return nil, err
	}
	if err := d.Provide(newNotifier); err != nil {
		return nil, err
	}
	if err := d.Provide(newWorkflowEngine); err != nil {
		return nil, err
	}
	if err := d.Provide(newScheduler); err != nil {
		return nil, err
	}

	var result *Container
	err := d.Invoke(func(
		client *hosted.Client,
		adapter *hosted.Adapter,
		provider schema.LLMProvider,
		registry *tools.Registry,
		ag *agent.Agent,
		notifier *notify.SlackNotifier,
		engine *workflow.Engine,
		schedSvc *sched.Service,
	) {
		result = &Container{
			client:   client,
			adapter:  adapter,
			provider: provider,
			registry: registry,
			ag:       ag,
			notifier: notifier,
			engine:   engine,
			schedSvc: schedSvc,
		}
	})
	return result, err
}

func newClient(cfg *config.Config) (*hosted.Client, error) {
	sessionID := cfg.Hosted.ResolveSessionID()
	if sessionID == "" {
		return nil, fmt.Errorf("no session id configured: set %s or hosted.sessionId in %s",
			config.SessionIDEnv, config.ConfigPath())
	}
	return hosted.NewClient(cfg.Hosted, sessionID)
}

func newAdapter(ctx context.Context, client *hosted.Client) (*hosted.Adapter, error) {
	return hosted.NewAdapter(ctx, client)
}

func newProvider(cfg *config.Config) (schema.LLMProvider, error) {
	if cfg.LLM.APIKey == "" {
		return nil, fmt.Errorf("no LLM API key configured: edit %s", config.ConfigPath())
	}
	return providers.New(cfg.LLM), nil
}

func newRegistry(cfg *config.Config, adapter *hosted.Adapter) *tools.Registry {
	ts := adapter.Tools()
	if cfg.Agent.FetchURL {
		ts = append(ts, tools.NewFetchURLTool(0))
	}
	return tools.NewRegistry(ts...)
}

func newAgent(cfg *config.Config, provider schema.LLMProvider, registry *tools.Registry) *agent.Agent {
	return agent.New(provider, registry, agent.Settings{
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.Agent.MaxTokens,
		Temperature: cfg.Agent.Temperature,
		MaxIter:     cfg.Agent.MaxToolIter,
	})
}

func newNotifier(cfg *config.Config) *notify.SlackNotifier {
	return notify.NewSlackNotifier(cfg.Slack.BotToken)
}

func newWorkflowEngine(adapter *hosted.Adapter, ag *agent.Agent, client *hosted.Client, notifier *notify.SlackNotifier) *workflow.Engine {
	return workflow.New(adapter, ag, client, posterFrom(notifier))
}

// posterFrom converts the notifier without wrapping a nil *SlackNotifier in
// the interface, which would defeat the dispatch step's nil check.
func posterFrom(notifier *notify.SlackNotifier) workflow.Poster {
	if notifier == nil {
		return nil
	}
	return notifier
}

func newScheduler() *sched.Service {
	return sched.NewService(filepath.Join(config.DataDir(), "sched", "jobs.json"))
}
