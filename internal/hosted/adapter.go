package hosted

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/repopulse/repopulse/internal/schema"
)

// Adapter holds the registry of operations derived from one catalog snapshot.
//
// The catalog is fetched exactly once, at construction; a fetch failure fails
// the whole construction (no partial catalog). Refreshing the catalog means
// building a new Adapter. The registry is immutable afterwards, so concurrent
// invocations need no locking.
type Adapter struct {
	registry map[string]*Operation
}

// NewAdapter fetches the session's tool catalog and wraps every tool into an
// Operation. Duplicate tool names are resolved last-write-wins with a logged
// warning; a tool with an unusable input schema is still registered, with a
// permissive validator.
func NewAdapter(ctx context.Context, client *Client) (*Adapter, error) {
	descriptors, err := client.ListTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch tool catalog: %w", err)
	}

	registry := make(map[string]*Operation, len(descriptors))
	for _, d := range descriptors {
		if d.Name == "" {
			slog.Warn("catalog entry without a name, skipping")
			continue
		}
		if _, exists := registry[d.Name]; exists {
			slog.Warn("duplicate tool name in catalog, replacing earlier entry", "tool", d.Name)
		}
		registry[d.Name] = NewOperation(client, d)
		slog.Debug("tool registered", "tool", d.Name)
	}

	slog.Info("tool catalog adapted", "tools", len(registry))
	return &Adapter{registry: registry}, nil
}

// Get returns the operation with the given id, or nil.
func (a *Adapter) Get(name string) *Operation {
	return a.registry[name]
}

// Len returns the number of registered operations.
func (a *Adapter) Len() int { return len(a.registry) }

// Names returns the operation ids in sorted order.
func (a *Adapter) Names() []string {
	names := make([]string, 0, len(a.registry))
	for name := range a.registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tools returns the operations as schema.Tool values, sorted by name, ready
// to hand to the agent's tool registry.
func (a *Adapter) Tools() []schema.Tool {
	tools := make([]schema.Tool, 0, len(a.registry))
	for _, name := range a.Names() {
		tools = append(tools, a.registry[name])
	}
	return tools
}
