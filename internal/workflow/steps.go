package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/repopulse/repopulse/internal/hosted"
)

// collectConcurrency bounds the fan-out against the hosted session.
const collectConcurrency = 4

// Catalog is the slice of the adapter the collect step needs.
// *hosted.Adapter satisfies it; tests substitute fakes.
type Catalog interface {
	Get(name string) *hosted.Operation
}

// Analyzer is the slice of the agent the analyze step needs.
type Analyzer interface {
	Execute(ctx context.Context, prompt string) (string, []string, error)
}

// TaskDispatcher is the slice of the session client the dispatch step needs.
type TaskDispatcher interface {
	CreateTask(ctx context.Context, spec hosted.TaskSpec) (*hosted.Task, error)
	TriggerTask(ctx context.Context, id string) error
	WaitForTask(ctx context.Context, id string) (*hosted.Task, error)
}

// Poster is the direct-notification fallback (Slack Web API).
type Poster interface {
	Post(ctx context.Context, channel, text string) error
}

// ---------------------------------------------------------------------------
// collect
// ---------------------------------------------------------------------------

// CollectStep calls one catalog operation per repo × source, concurrently.
type CollectStep struct {
	catalog Catalog
}

func NewCollectStep(catalog Catalog) *CollectStep {
	return &CollectStep{catalog: catalog}
}

func (s *CollectStep) Name() string { return "collect" }

func (s *CollectStep) Run(ctx context.Context, st *State) error {
	type unit struct {
		repo   string
		source Source
	}
	var units []unit
	for _, repo := range st.Def.Repos {
		for _, src := range st.Def.Sources {
			units = append(units, unit{repo: repo, source: src})
		}
	}

	var mu sync.Mutex
	results := make([]Collected, 0, len(units))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(collectConcurrency)
	for _, u := range units {
		u := u
		g.Go(func() error {
			res := s.collectOne(gctx, u.repo, u.source)
			mu.Lock()
			results = append(results, Collected{Repo: u.repo, Source: u.source.Name, Result: res})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// Deterministic order for the analysis prompt.
	sort.Slice(results, func(i, j int) bool {
		if results[i].Repo != results[j].Repo {
			return results[i].Repo < results[j].Repo
		}
		return results[i].Source < results[j].Source
	})
	st.Collected = results

	failed := 0
	for _, c := range results {
		if c.Result.Failed() {
			failed++
		}
	}
	slog.Info("collection finished", "calls", len(results), "failed", failed)
	return nil
}

// collectOne resolves and invokes a single operation. A missing operation is
// reported the same way a failing one is: as a failed CallResult in the
// collected data.
func (s *CollectStep) collectOne(ctx context.Context, repo string, src Source) hosted.CallResult {
	op := s.catalog.Get(src.Operation)
	if op == nil {
		isErr := true
		return hosted.CallResult{
			Content: []hosted.ContentItem{{
				Type: "text",
				Text: fmt.Sprintf("operation %q not found in catalog", src.Operation),
			}},
			IsError: &isErr,
		}
	}

	owner, name, ok := strings.Cut(repo, "/")
	if !ok {
		isErr := true
		return hosted.CallResult{
			Content: []hosted.ContentItem{{
				Type: "text",
				Text: fmt.Sprintf("repo %q is not in owner/name form", repo),
			}},
			IsError: &isErr,
		}
	}

	args := map[string]any{"owner": owner, "repo": name}
	for k, v := range src.Extra {
		args[k] = v
	}
	return op.Invoke(ctx, args)
}

// ---------------------------------------------------------------------------
// analyze
// ---------------------------------------------------------------------------

// AnalyzeStep runs the agent over the collected material.
type AnalyzeStep struct {
	analyzer Analyzer
}

func NewAnalyzeStep(analyzer Analyzer) *AnalyzeStep {
	return &AnalyzeStep{analyzer: analyzer}
}

func (s *AnalyzeStep) Name() string { return "analyze" }

func (s *AnalyzeStep) Run(ctx context.Context, st *State) error {
	if len(st.Collected) == 0 {
		return fmt.Errorf("nothing collected")
	}

	summary, used, err := s.analyzer.Execute(ctx, buildAnalysisPrompt(st))
	if err != nil {
		return fmt.Errorf("analysis: %w", err)
	}
	if strings.TrimSpace(summary) == "" {
		return fmt.Errorf("analysis produced no text")
	}
	st.Summary = summary
	st.ToolsUsed = used
	return nil
}

func buildAnalysisPrompt(st *State) string {
	var b strings.Builder
	b.WriteString(st.Def.Prompt)
	b.WriteString("\n\nCollected data:\n")
	for _, c := range st.Collected {
		fmt.Fprintf(&b, "\n## %s — %s\n", c.Repo, c.Source)
		if c.Result.Failed() {
			fmt.Fprintf(&b, "(collection failed: %s)\n", c.Result.Text())
			continue
		}
		text := c.Result.Text()
		if text == "" {
			text = "(empty)"
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String()
}

// ---------------------------------------------------------------------------
// dispatch
// ---------------------------------------------------------------------------

// DispatchStep delivers the summary: through a hosted notification task in
// "task" mode, or straight to Slack in "slack" mode.
type DispatchStep struct {
	dispatcher TaskDispatcher
	poster     Poster
}

func NewDispatchStep(dispatcher TaskDispatcher, poster Poster) *DispatchStep {
	return &DispatchStep{dispatcher: dispatcher, poster: poster}
}

func (s *DispatchStep) Name() string { return "dispatch" }

func (s *DispatchStep) Run(ctx context.Context, st *State) error {
	n := st.Def.Notify
	switch n.Mode {
	case "slack":
		if s.poster == nil {
			return fmt.Errorf("notify.mode is slack but no Slack bot token is configured")
		}
		return s.poster.Post(ctx, n.Channel, st.Summary)
	case "task":
		return s.dispatchTask(ctx, st)
	default:
		return fmt.Errorf("unknown notify.mode %q", n.Mode)
	}
}

func (s *DispatchStep) dispatchTask(ctx context.Context, st *State) error {
	n := st.Def.Notify
	taskName := n.TaskName
	if taskName == "" {
		taskName = st.Def.Name + "-notification"
	}
	taskTool := n.TaskTool
	if taskTool == "" {
		taskTool = "slack_send_message"
	}

	task, err := s.dispatcher.CreateTask(ctx, hosted.TaskSpec{
		Name: taskName,
		Tool: taskTool,
		Arguments: map[string]any{
			"channel": n.Channel,
			"text":    st.Summary,
		},
	})
	if err != nil {
		return fmt.Errorf("create notification task: %w", err)
	}
	st.TaskID = task.ID

	if err := s.dispatcher.TriggerTask(ctx, task.ID); err != nil {
		return fmt.Errorf("trigger task %s: %w", task.ID, err)
	}

	final, err := s.dispatcher.WaitForTask(ctx, task.ID)
	if err != nil {
		return fmt.Errorf("wait for task %s: %w", task.ID, err)
	}
	if final.Status != "succeeded" {
		return fmt.Errorf("notification task %s ended %s: %s", task.ID, final.Status, final.Error)
	}
	slog.Info("notification dispatched", "task", task.ID, "channel", n.Channel)
	return nil
}

// New assembles the standard three-step pipeline.
func New(catalog Catalog, analyzer Analyzer, dispatcher TaskDispatcher, poster Poster) *Engine {
	return NewEngine(
		NewCollectStep(catalog),
		NewAnalyzeStep(analyzer),
		NewDispatchStep(dispatcher, poster),
	)
}
