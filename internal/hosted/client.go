package hosted

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/repopulse/repopulse/internal/config"
)

// sessionHeader carries the session identifier on every RPC request.
const sessionHeader = "X-Session-ID"

// Client speaks JSON-RPC 2.0 over HTTP to a hosted tool session.
// The session is assumed to be already provisioned; the client only attaches
// the externally supplied session identifier.
type Client struct {
	baseURL    string
	sessionID  string
	headers    map[string]string
	httpClient *http.Client
	nextID     int64
}

// NewClient builds a Client from the hosted-session config.
// The session identifier must already be resolved by the caller; an empty
// base URL is a configuration error.
func NewClient(cfg config.HostedConfig, sessionID string) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("hosted session: no baseUrl configured")
	}
	return &Client{
		baseURL:   cfg.BaseURL,
		sessionID: sessionID,
		headers:   cfg.Headers,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// BaseURL returns the configured RPC endpoint.
func (c *Client) BaseURL() string { return c.baseURL }

// ListTools returns the tools currently exposed by the session.
func (c *Client) ListTools(ctx context.Context) ([]ToolDescriptor, error) {
	resp, err := c.call(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}
	var result struct {
		Tools []ToolDescriptor `json:"tools"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("parse tool list: %w", err)
	}
	return result.Tools, nil
}

// CallTool invokes a named tool on the session with the given arguments.
// A JSON null result is reported as a nil CallResult with no error; callers
// decide how to treat the absence of a response.
func (c *Client) CallTool(ctx context.Context, toolName string, args map[string]any) (*CallResult, error) {
	payload := map[string]any{
		"name":      toolName,
		"arguments": args,
	}
	resp, err := c.call(ctx, "tools/call", payload)
	if err != nil {
		return nil, err
	}
	if isJSONNull(resp) {
		return nil, nil
	}
	var result CallResult
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("parse tool response: %w", err)
	}
	return &result, nil
}

// CreateTask registers a scheduled task on the session.
func (c *Client) CreateTask(ctx context.Context, spec TaskSpec) (*Task, error) {
	resp, err := c.call(ctx, "tasks/create", spec)
	if err != nil {
		return nil, err
	}
	var task Task
	if err := json.Unmarshal(resp, &task); err != nil {
		return nil, fmt.Errorf("parse task: %w", err)
	}
	if task.ID == "" {
		return nil, fmt.Errorf("tasks/create returned no task id")
	}
	return &task, nil
}

// TriggerTask asks the session to run a previously created task now.
func (c *Client) TriggerTask(ctx context.Context, id string) error {
	_, err := c.call(ctx, "tasks/trigger", map[string]any{"id": id})
	return err
}

// GetTask fetches the current state of a task.
func (c *Client) GetTask(ctx context.Context, id string) (*Task, error) {
	resp, err := c.call(ctx, "tasks/get", map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	var task Task
	if err := json.Unmarshal(resp, &task); err != nil {
		return nil, fmt.Errorf("parse task: %w", err)
	}
	return &task, nil
}

// ---------------------------------------------------------------------------
// JSON-RPC plumbing
// ---------------------------------------------------------------------------

func (c *Client) nextRequestID() int64 {
	return atomic.AddInt64(&c.nextID, 1)
}

func (c *Client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	req := map[string]any{
		"jsonrpc": "2.0",
		"id":      c.nextRequestID(),
		"method":  method,
	}
	if params != nil {
		req["params"] = params
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(sessionHeader, c.sessionID)
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("session RPC %s: HTTP %d", method, resp.StatusCode)
	}

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("session error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	return rpcResp.Result, nil
}

func isJSONNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
