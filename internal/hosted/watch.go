package hosted

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const defaultPollInterval = 2 * time.Second

// taskEvent is one status update pushed on the session's event stream.
type taskEvent struct {
	TaskID string `json:"taskId"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// WaitForTask blocks until the task reaches a terminal status or ctx is
// cancelled. It subscribes to the session's websocket event stream when
// available and falls back to HTTP polling when the stream cannot be
// established or drops.
func (c *Client) WaitForTask(ctx context.Context, id string) (*Task, error) {
	if task, err := c.watchTask(ctx, id); err == nil {
		return task, nil
	} else if ctx.Err() != nil {
		return nil, ctx.Err()
	} else {
		slog.Debug("task event stream unavailable, polling", "task", id, "err", err)
	}
	return c.pollTask(ctx, id, defaultPollInterval)
}

func (c *Client) watchTask(ctx context.Context, id string) (*Task, error) {
	wsURL, err := c.eventsURL(id)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set(sessionHeader, c.sessionID)
	for k, v := range c.headers {
		header.Set(k, v)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	// Unblock ReadMessage when ctx is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		var ev taskEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			continue // skip malformed frames
		}
		if ev.TaskID != id {
			continue
		}
		slog.Debug("task event", "task", id, "status", ev.Status)
		task := Task{ID: ev.TaskID, Status: ev.Status, Error: ev.Error}
		if task.Done() {
			return &task, nil
		}
	}
}

func (c *Client) pollTask(ctx context.Context, id string, interval time.Duration) (*Task, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		task, err := c.GetTask(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("poll task %s: %w", id, err)
		}
		if task.Done() {
			return task, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// eventsURL derives the websocket event-stream URL from the RPC base URL:
// http(s)://host/rpc → ws(s)://host/events?task=<id>.
func (c *Client) eventsURL(taskID string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/rpc") + "/events"
	q := u.Query()
	q.Set("task", taskID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
