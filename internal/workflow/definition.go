// Package workflow composes the repo-report pipeline: collect repository data
// through the adapted catalog operations, analyze it with the agent, and
// dispatch a notification.
package workflow

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Source names one catalog operation used to collect one kind of repository
// data. The operation is expected to take {owner, repo} arguments.
type Source struct {
	Name      string         `yaml:"name"`      // label in the collected report, e.g. "issues"
	Operation string         `yaml:"operation"` // catalog operation id, e.g. "gh_list_issues"
	Extra     map[string]any `yaml:"extra,omitempty"`
}

// Notify selects how the final summary is delivered.
// Mode "task" dispatches through the hosted task API; mode "slack" posts
// directly via the Slack Web API.
type Notify struct {
	Mode     string `yaml:"mode"`
	Channel  string `yaml:"channel"`
	TaskName string `yaml:"taskName,omitempty"`
	TaskTool string `yaml:"taskTool,omitempty"`
}

// Definition is the YAML workflow file (~/.repopulse/workflow.yaml).
type Definition struct {
	Name    string   `yaml:"name"`
	Repos   []string `yaml:"repos"` // "owner/name" entries
	Sources []Source `yaml:"sources"`
	Prompt  string   `yaml:"prompt"`
	Notify  Notify   `yaml:"notify"`
}

// DefaultDefinition is what `repopulse onboard` writes.
func DefaultDefinition() Definition {
	return Definition{
		Name:  "repo-report",
		Repos: []string{"golang/go"},
		Sources: []Source{
			{Name: "issues", Operation: "gh_list_issues", Extra: map[string]any{"state": "open"}},
			{Name: "pull requests", Operation: "gh_list_pulls", Extra: map[string]any{"state": "open"}},
			{Name: "commits", Operation: "gh_list_commits"},
		},
		Prompt: "Summarize the current activity of each repository: notable issues, " +
			"stalled pull requests, and recent commit themes. End with up to three " +
			"suggested follow-ups.",
		Notify: Notify{
			Mode:     "task",
			Channel:  "#eng",
			TaskName: "repo-report-notification",
			TaskTool: "slack_send_message",
		},
	}
}

// LoadDefinition reads and validates a workflow file.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow %s: %w", path, err)
	}
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse workflow %s: %w", path, err)
	}
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("workflow %s: %w", path, err)
	}
	return &def, nil
}

// SaveDefinition writes def to path as YAML.
func SaveDefinition(def *Definition, path string) error {
	data, err := yaml.Marshal(def)
	if err != nil {
		return fmt.Errorf("marshal workflow: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write workflow %s: %w", path, err)
	}
	return nil
}

// Validate checks the definition for the mistakes a hand-edited file is
// likely to contain.
func (d *Definition) Validate() error {
	if len(d.Repos) == 0 {
		return fmt.Errorf("no repos configured")
	}
	if len(d.Sources) == 0 {
		return fmt.Errorf("no sources configured")
	}
	for i, s := range d.Sources {
		if s.Operation == "" {
			return fmt.Errorf("source %d has no operation", i)
		}
	}
	switch d.Notify.Mode {
	case "task", "slack":
	case "":
		return fmt.Errorf("notify.mode is required (task or slack)")
	default:
		return fmt.Errorf("unknown notify.mode %q", d.Notify.Mode)
	}
	if d.Notify.Channel == "" {
		return fmt.Errorf("notify.channel is required")
	}
	return nil
}
