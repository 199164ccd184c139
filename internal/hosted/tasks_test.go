package hosted

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/repopulse/repopulse/internal/config"
)

// taskServer fakes the session's task lifecycle: created tasks start pending
// and move to succeeded after trigger + a couple of polls.
type taskServer struct {
	mu        sync.Mutex
	statuses  map[string]string
	pollsLeft map[string]int
	wsEvents  bool // serve /events over websocket
}

func (s *taskServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/rpc", s.handleRPC)
	if s.wsEvents {
		mux.HandleFunc("/events", s.handleEvents)
	}
	return mux
}

func (s *taskServer) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     any            `json:"id"`
		Method string         `json:"method"`
		Params map[string]any `json:"params"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	s.mu.Lock()
	defer s.mu.Unlock()

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	switch req.Method {
	case "tasks/create":
		id := "task-1"
		s.statuses[id] = "pending"
		s.pollsLeft[id] = 2
		name, _ := req.Params["name"].(string)
		resp["result"] = map[string]any{"id": id, "name": name, "status": "pending"}
	case "tasks/trigger":
		id, _ := req.Params["id"].(string)
		s.statuses[id] = "running"
		resp["result"] = map[string]any{}
	case "tasks/get":
		id, _ := req.Params["id"].(string)
		if s.pollsLeft[id] > 0 {
			s.pollsLeft[id]--
		} else if s.statuses[id] == "running" {
			s.statuses[id] = "succeeded"
		}
		resp["result"] = map[string]any{"id": id, "status": s.statuses[id]}
	default:
		resp["error"] = map[string]any{"code": -32601, "message": "method not found"}
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *taskServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	taskID := r.URL.Query().Get("task")
	_ = conn.WriteJSON(map[string]any{"taskId": taskID, "status": "running"})
	_ = conn.WriteJSON(map[string]any{"taskId": "other-task", "status": "failed"})
	_ = conn.WriteJSON(map[string]any{"taskId": taskID, "status": "succeeded"})
}

func newTaskClient(t *testing.T, s *taskServer) *Client {
	t.Helper()
	srv := httptest.NewServer(s.handler())
	t.Cleanup(srv.Close)
	client, err := NewClient(config.HostedConfig{BaseURL: srv.URL + "/rpc"}, "sess-test")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	// Poll quickly in tests.
	client.httpClient.Timeout = 5 * time.Second
	return client
}

func newTaskServer(ws bool) *taskServer {
	return &taskServer{
		statuses:  map[string]string{},
		pollsLeft: map[string]int{},
		wsEvents:  ws,
	}
}

func TestTaskLifecycle_PollFallback(t *testing.T) {
	client := newTaskClient(t, newTaskServer(false))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	task, err := client.CreateTask(ctx, TaskSpec{
		Name:      "notify-eng",
		Tool:      "slack_send_message",
		Arguments: map[string]any{"channel": "#eng", "text": "report ready"},
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.ID == "" || task.Status != "pending" {
		t.Fatalf("unexpected created task: %+v", task)
	}

	if err := client.TriggerTask(ctx, task.ID); err != nil {
		t.Fatalf("trigger task: %v", err)
	}

	final, err := client.pollTask(ctx, task.ID, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("poll task: %v", err)
	}
	if final.Status != "succeeded" {
		t.Errorf("final status %q, want succeeded", final.Status)
	}
}

func TestWaitForTask_WebSocketEvents(t *testing.T) {
	client := newTaskClient(t, newTaskServer(true))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	task, err := client.watchTask(ctx, "task-9")
	if err != nil {
		t.Fatalf("watch task: %v", err)
	}
	// The "other-task" failure frame must be ignored.
	if task.ID != "task-9" || task.Status != "succeeded" {
		t.Errorf("unexpected terminal task: %+v", task)
	}
}

func TestWaitForTask_FallsBackWhenNoStream(t *testing.T) {
	s := newTaskServer(false)
	client := newTaskClient(t, s)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	task, err := client.CreateTask(ctx, TaskSpec{Name: "n", Tool: "slack_send_message"})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if err := client.TriggerTask(ctx, task.ID); err != nil {
		t.Fatalf("trigger: %v", err)
	}

	done, err := client.WaitForTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if done.Status != "succeeded" {
		t.Errorf("status %q, want succeeded", done.Status)
	}
}
