package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/repopulse/repopulse/internal/hosted"
)

// State is the shared scratch space the steps read and write.
type State struct {
	Def       *Definition
	Collected []Collected
	Summary   string
	ToolsUsed []string
	TaskID    string
}

// Collected is the outcome of one catalog call during the collect step.
// Failed calls stay in the slice as their isError CallResults; containment
// in the adapter means collection itself never aborts.
type Collected struct {
	Repo   string
	Source string
	Result hosted.CallResult
}

// Step is one stage of the pipeline.
type Step interface {
	Name() string
	Run(ctx context.Context, st *State) error
}

// Engine runs steps in order, stopping at the first error.
type Engine struct {
	steps []Step
}

func NewEngine(steps ...Step) *Engine {
	return &Engine{steps: steps}
}

// Run executes the pipeline against st.
func (e *Engine) Run(ctx context.Context, st *State) error {
	for _, step := range e.steps {
		start := time.Now()
		slog.Info("workflow step starting", "step", step.Name())
		if err := step.Run(ctx, st); err != nil {
			return fmt.Errorf("step %s: %w", step.Name(), err)
		}
		slog.Info("workflow step done", "step", step.Name(), "took", time.Since(start).Round(time.Millisecond))
	}
	return nil
}
