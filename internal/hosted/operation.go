package hosted

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/repopulse/repopulse/internal/hosted/inputschema"
	"github.com/repopulse/repopulse/internal/schema"
)

// ToolCaller is the slice of the session client an operation needs.
// *Client satisfies it; tests substitute fakes.
type ToolCaller interface {
	CallTool(ctx context.Context, toolName string, args map[string]any) (*CallResult, error)
}

// noResponseText is returned when the session resolves a call to nothing.
const noResponseText = "No response received from tool"

// Operation is one tool of the catalog made locally invocable.
// It closes over the session client and the tool name; it is immutable after
// construction and safe for concurrent invocation.
type Operation struct {
	caller      ToolCaller
	name        string
	description string
	parameters  json.RawMessage // raw catalog schema, handed to the LLM unchanged
	validator   *inputschema.Spec
}

// NewOperation derives an Operation from a catalog descriptor.
// A missing or malformed input schema degrades the validator to permissive;
// descriptor problems never fail construction.
func NewOperation(caller ToolCaller, d ToolDescriptor) *Operation {
	params := d.InputSchema
	if len(params) == 0 {
		params = json.RawMessage(`{"type":"object","properties":{}}`)
	}
	return &Operation{
		caller:      caller,
		name:        d.Name,
		description: d.Description,
		parameters:  params,
		validator:   inputschema.Translate(d.InputSchema),
	}
}

// Invoke validates args, forwards the call to the session, and normalises the
// response into a CallResult. Every failure (validation, transport, a remote
// error object, a malformed payload) is contained and reported as a CallResult
// with IsError set; Invoke never panics and never returns a Go error.
func (o *Operation) Invoke(ctx context.Context, args map[string]any) (result CallResult) {
	defer func() {
		if r := recover(); r != nil {
			result = o.failure(fmt.Sprintf("%v", r))
		}
	}()

	if args == nil {
		args = map[string]any{}
	}
	if err := o.validator.Validate(args); err != nil {
		return o.failure(err.Error())
	}

	resp, err := o.caller.CallTool(ctx, o.name, args)
	if err != nil {
		return o.failure(err.Error())
	}
	if resp == nil {
		return failedResult(noResponseText)
	}

	content := resp.Content
	if content == nil {
		content = []ContentItem{}
	}
	return CallResult{Content: content, IsError: resp.IsError}
}

func (o *Operation) failure(msg string) CallResult {
	return failedResult(fmt.Sprintf("An error occurred while executing %s: %s.", o.name, msg))
}

// ---------------------------------------------------------------------------
// schema.Tool surface
// ---------------------------------------------------------------------------

func (o *Operation) Name() string                { return o.name }
func (o *Operation) Description() string         { return o.description }
func (o *Operation) Parameters() json.RawMessage { return o.parameters }

// Execute implements schema.Tool for the agent loop. The CallResult is
// rendered as text; containment holds here too, so the returned error is
// always nil.
func (o *Operation) Execute(ctx context.Context, params map[string]any) (string, error) {
	res := o.Invoke(ctx, params)
	text := res.Text()
	if res.Failed() {
		if text == "" {
			text = "tool reported an error"
		}
		if !strings.HasPrefix(text, "Error") {
			text = "Error: " + text
		}
		return text, nil
	}
	if text == "" {
		text = "(no output)"
	}
	return text, nil
}

var _ schema.Tool = (*Operation)(nil)
