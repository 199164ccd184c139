package hosted

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
)

// fakeCaller scripts CallTool behaviour for operation tests.
type fakeCaller struct {
	result  *CallResult
	err     error
	panicV  any
	gotName string
	gotArgs map[string]any
	calls   int
}

func (f *fakeCaller) CallTool(_ context.Context, name string, args map[string]any) (*CallResult, error) {
	f.calls++
	f.gotName = name
	f.gotArgs = args
	if f.panicV != nil {
		panic(f.panicV)
	}
	return f.result, f.err
}

func descriptorWith(schemaDoc string) ToolDescriptor {
	d := ToolDescriptor{Name: "gh_list_issues", Description: "List issues"}
	if schemaDoc != "" {
		d.InputSchema = json.RawMessage(schemaDoc)
	}
	return d
}

const ownerRepoSchema = `{
	"type": "object",
	"properties": {"owner": {"type": "string"}, "repo": {"type": "string"}},
	"required": ["owner", "repo"]
}`

func TestInvoke_ForwardsArgumentsVerbatim(t *testing.T) {
	data := "aGVsbG8="
	mime := "image/png"
	caller := &fakeCaller{result: &CallResult{Content: []ContentItem{
		{Type: "text", Text: "first"},
		{Type: "image", Text: "", Data: &data, MimeType: &mime},
		{Type: "text", Text: "last"},
	}}}
	op := NewOperation(caller, descriptorWith(ownerRepoSchema))

	args := map[string]any{"owner": "a", "repo": "b"}
	res := op.Invoke(context.Background(), args)

	if caller.gotName != "gh_list_issues" {
		t.Errorf("forwarded tool name %q", caller.gotName)
	}
	if !reflect.DeepEqual(caller.gotArgs, args) {
		t.Errorf("forwarded args %v, want %v", caller.gotArgs, args)
	}
	if res.Failed() {
		t.Fatalf("unexpected failure: %+v", res)
	}
	// Content copied verbatim, same length and order.
	if len(res.Content) != 3 {
		t.Fatalf("content length %d, want 3", len(res.Content))
	}
	if !reflect.DeepEqual(res.Content, caller.result.Content) {
		t.Errorf("content not copied verbatim: %+v", res.Content)
	}
}

func TestInvoke_PassesThroughIsError(t *testing.T) {
	remoteErr := true
	caller := &fakeCaller{result: &CallResult{
		Content: []ContentItem{{Type: "text", Text: "remote failed"}},
		IsError: &remoteErr,
	}}
	op := NewOperation(caller, descriptorWith(""))

	res := op.Invoke(context.Background(), nil)
	if !res.Failed() {
		t.Error("remote isError flag not passed through")
	}
}

func TestInvoke_AbsentContentBecomesEmpty(t *testing.T) {
	caller := &fakeCaller{result: &CallResult{}}
	op := NewOperation(caller, descriptorWith(""))

	res := op.Invoke(context.Background(), nil)
	if res.Content == nil || len(res.Content) != 0 {
		t.Errorf("expected empty content sequence, got %#v", res.Content)
	}
	if res.Failed() {
		t.Error("empty success response reported as failure")
	}
}

func TestInvoke_RemoteErrorContained(t *testing.T) {
	caller := &fakeCaller{err: errors.New("Timeout")}
	op := NewOperation(caller, descriptorWith(ownerRepoSchema))

	res := op.Invoke(context.Background(), map[string]any{"owner": "a", "repo": "b"})
	if !res.Failed() {
		t.Fatal("transport error not flagged")
	}
	want := "An error occurred while executing gh_list_issues: Timeout."
	if len(res.Content) != 1 || res.Content[0].Text != want {
		t.Errorf("failure text %q, want %q", res.Text(), want)
	}
	if res.Content[0].Type != "text" || res.Content[0].Data != nil || res.Content[0].MimeType != nil {
		t.Errorf("unexpected failure content item: %+v", res.Content[0])
	}
}

func TestInvoke_NilResponse(t *testing.T) {
	caller := &fakeCaller{result: nil}
	op := NewOperation(caller, descriptorWith(""))

	res := op.Invoke(context.Background(), nil)
	if !res.Failed() {
		t.Fatal("nil response not flagged")
	}
	if len(res.Content) != 1 || res.Content[0].Text != "No response received from tool" {
		t.Errorf("unexpected text: %q", res.Text())
	}
}

func TestInvoke_ValidationFailureContained(t *testing.T) {
	caller := &fakeCaller{result: &CallResult{}}
	op := NewOperation(caller, descriptorWith(ownerRepoSchema))

	res := op.Invoke(context.Background(), map[string]any{"owner": "a"})
	if !res.Failed() {
		t.Fatal("validation failure not flagged")
	}
	if caller.calls != 0 {
		t.Error("invalid input was still forwarded to the session")
	}
	if txt := res.Text(); !containsAll(txt, "gh_list_issues", "repo") {
		t.Errorf("failure text %q should name the tool and the missing field", txt)
	}
}

func TestInvoke_PanicContained(t *testing.T) {
	caller := &fakeCaller{panicV: "malformed payload"}
	op := NewOperation(caller, descriptorWith(""))

	res := op.Invoke(context.Background(), nil)
	if !res.Failed() {
		t.Fatal("panic escaped containment")
	}
	if txt := res.Text(); !containsAll(txt, "gh_list_issues", "malformed payload") {
		t.Errorf("unexpected failure text: %q", txt)
	}
}

func TestInvoke_Idempotent(t *testing.T) {
	caller := &fakeCaller{result: &CallResult{Content: []ContentItem{{Type: "text", Text: "same"}}}}
	op := NewOperation(caller, descriptorWith(ownerRepoSchema))

	args := map[string]any{"owner": "a", "repo": "b"}
	first := op.Invoke(context.Background(), args)
	second := op.Invoke(context.Background(), args)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("identical invocations differ: %+v vs %+v", first, second)
	}
	if caller.calls != 2 {
		t.Errorf("expected 2 round trips, got %d", caller.calls)
	}
}

func TestExecute_NeverReturnsError(t *testing.T) {
	caller := &fakeCaller{err: errors.New("boom")}
	op := NewOperation(caller, descriptorWith(""))

	out, err := op.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("Execute leaked an error: %v", err)
	}
	if !containsAll(out, "Error", "boom") {
		t.Errorf("rendered failure %q should carry the error text", out)
	}
}

func TestNewOperation_MalformedSchemaIsPermissive(t *testing.T) {
	caller := &fakeCaller{result: &CallResult{}}
	op := NewOperation(caller, descriptorWith(`{"type": ["not", 1, "parseable"`))

	res := op.Invoke(context.Background(), map[string]any{"whatever": true})
	if res.Failed() {
		t.Errorf("permissive fallback still rejected input: %q", res.Text())
	}
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
