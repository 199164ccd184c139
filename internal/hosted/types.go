// Package hosted adapts the dynamic tool catalog of a hosted tool-execution
// session into locally invocable operations with schema validation, a uniform
// result shape, and per-call error containment.
package hosted

import (
	"encoding/json"
	"strings"
)

// ToolDescriptor is one tool as described by the remote catalog.
// InputSchema is an open JSON Schema document and may be structurally
// arbitrary; the adapter never assumes anything about its shape.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// ContentItem is the normalised unit of tool output.
// Text is always populated, even if empty; Data carries an optional base64
// payload.
type ContentItem struct {
	Type     string  `json:"type"` // "text" | "image" | "resource"
	Text     string  `json:"text"`
	Data     *string `json:"data"`
	MimeType *string `json:"mimeType"`
}

// CallResult is the uniform contract every operation returns, on every code
// path. Invocation failures are carried as data (IsError plus an explanatory
// text item), never as a Go error.
type CallResult struct {
	Content []ContentItem `json:"content"`
	IsError *bool         `json:"isError,omitempty"`
}

// Failed reports whether the remote tool (or the adapter) flagged the call
// as an error.
func (r CallResult) Failed() bool {
	return r.IsError != nil && *r.IsError
}

// Text joins the non-empty text items, one per line.
func (r CallResult) Text() string {
	parts := make([]string, 0, len(r.Content))
	for _, item := range r.Content {
		if item.Text != "" {
			parts = append(parts, item.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// failedResult builds the single-text-item failure CallResult used by the
// operation wrapper.
func failedResult(text string) CallResult {
	isErr := true
	return CallResult{
		Content: []ContentItem{{Type: "text", Text: text}},
		IsError: &isErr,
	}
}

// TaskSpec describes a scheduled task to create on the hosted session.
type TaskSpec struct {
	Name      string         `json:"name"`
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Task is the remote state of a scheduled task.
type Task struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"` // "pending" | "running" | "succeeded" | "failed"
	Error  string `json:"error,omitempty"`
}

// Done reports whether the task reached a terminal status.
func (t Task) Done() bool {
	return t.Status == "succeeded" || t.Status == "failed"
}
