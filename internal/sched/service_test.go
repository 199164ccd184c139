package sched

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

// newTestService creates a Service backed by a temp file.
func newTestService(t *testing.T) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "jobs.json")
	return NewService(path), path
}

// startService starts the service in the background and returns a cancel func.
func startService(t *testing.T, s *Service) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = s.Start(ctx) }()
	// Give Start() a moment to arm timers.
	time.Sleep(20 * time.Millisecond)
	return cancel
}

func TestAddJob_Every(t *testing.T) {
	s, _ := newTestService(t)
	id, err := s.AddJob("tick", "every", 5000, "", "", 0, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty id")
	}
	jobs := s.ListJobs()
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	if jobs[0].Schedule.Kind != "every" {
		t.Errorf("expected kind=every, got %q", jobs[0].Schedule.Kind)
	}
	if jobs[0].Schedule.EveryMs == nil || *jobs[0].Schedule.EveryMs != 5000 {
		t.Errorf("unexpected everyMs: %v", jobs[0].Schedule.EveryMs)
	}
}

func TestAddJob_At(t *testing.T) {
	s, _ := newTestService(t)
	futureMs := time.Now().Add(time.Hour).UnixMilli()
	id, err := s.AddJob("once", "at", 0, "", "", futureMs, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	jobs := s.ListJobs()
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	if jobs[0].ID != id {
		t.Errorf("id mismatch: got %q", jobs[0].ID)
	}
	if !jobs[0].DeleteAfterRun {
		t.Error("expected deleteAfterRun=true")
	}
}

func TestAddJob_Cron(t *testing.T) {
	s, _ := newTestService(t)
	id, err := s.AddJob("daily", "cron", 0, "0 9 * * *", "UTC", 0, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	jobs := s.ListJobs()
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	if jobs[0].ID != id {
		t.Errorf("id mismatch")
	}
	if jobs[0].Schedule.Expr == nil || *jobs[0].Schedule.Expr != "0 9 * * *" {
		t.Errorf("unexpected expr: %v", jobs[0].Schedule.Expr)
	}
	if jobs[0].Schedule.TZ == nil || *jobs[0].Schedule.TZ != "UTC" {
		t.Errorf("unexpected tz: %v", jobs[0].Schedule.TZ)
	}
}

func TestAddJob_UnknownKind(t *testing.T) {
	s, _ := newTestService(t)
	_, err := s.AddJob("bad", "weekly", 0, "", "", 0, false)
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestRemoveJob_Exists(t *testing.T) {
	s, _ := newTestService(t)
	id, _ := s.AddJob("job", "every", 1000, "", "", 0, false)
	if !s.RemoveJob(id) {
		t.Fatal("expected RemoveJob to return true")
	}
	if len(s.ListJobs()) != 0 {
		t.Error("expected empty job list after remove")
	}
}

func TestRemoveJob_NotFound(t *testing.T) {
	s, _ := newTestService(t)
	if s.RemoveJob("nonexistent") {
		t.Fatal("expected RemoveJob to return false for unknown id")
	}
}

func TestPersistence_RoundTrip(t *testing.T) {
	s, path := newTestService(t)
	id, _ := s.AddJob("persist", "every", 5000, "", "", 0, false)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read jobs.json: %v", err)
	}
	var store jobStore
	if err := json.Unmarshal(data, &store); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(store.Jobs) != 1 {
		t.Fatalf("expected 1 persisted job, got %d", len(store.Jobs))
	}
	if store.Jobs[0].ID != id {
		t.Errorf("id mismatch in persisted file")
	}
}

func TestPersistence_LoadExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jobs.json")
	existing := `{"version":1,"jobs":[{"id":"aabbccdd","name":"loaded","enabled":true,
		"schedule":{"kind":"every","everyMs":3000},
		"state":{},"createdAtMs":1000,"updatedAtMs":1000,"deleteAfterRun":false}]}`
	os.WriteFile(path, []byte(existing), 0o644)

	s := NewService(path)
	cancel := startService(t, s)
	defer cancel()

	jobs := s.ListJobs()
	if len(jobs) != 1 {
		t.Fatalf("expected 1 loaded job, got %d", len(jobs))
	}
	if jobs[0].Name != "loaded" {
		t.Errorf("unexpected job name: %q", jobs[0].Name)
	}
	if jobs[0].State.NextRunAtMs == nil {
		t.Error("expected next run recomputed on start")
	}
}

func TestPersistence_SharedStoreAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jobs.json")

	first := NewService(path)
	idOne, err := first.AddJob("one", "every", 1000, "", "", 0, false)
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	// A second instance must see the first job and keep it when adding.
	second := NewService(path)
	if _, err := second.AddJob("two", "every", 2000, "", "", 0, false); err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	jobs := second.ListJobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs after add from fresh instance, got %d", len(jobs))
	}

	// A third instance lists both and can remove the original job.
	third := NewService(path)
	if got := third.ListJobs(); len(got) != 2 {
		t.Fatalf("expected 2 jobs from fresh instance, got %d", len(got))
	}
	if !third.RemoveJob(idOne) {
		t.Fatal("expected RemoveJob to find persisted job")
	}

	remaining := NewService(path).ListJobs()
	if len(remaining) != 1 {
		t.Fatalf("expected 1 job after remove, got %d", len(remaining))
	}
	if remaining[0].Name != "two" {
		t.Errorf("unexpected surviving job: %q", remaining[0].Name)
	}
}

func TestPersistence_MissingFile(t *testing.T) {
	s, _ := newTestService(t)
	cancel := startService(t, s)
	defer cancel()
	if jobs := s.ListJobs(); len(jobs) != 0 {
		t.Fatalf("expected 0 jobs from missing file, got %d", len(jobs))
	}
}

func TestComputeNextRun_Every(t *testing.T) {
	everyMs := int64(5000)
	now := int64(1_000_000)
	sched := Schedule{Kind: "every", EveryMs: &everyMs}
	result := computeNextRun(sched, now)
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if *result != now+everyMs {
		t.Errorf("expected %d, got %d", now+everyMs, *result)
	}
}

func TestComputeNextRun_At_Future(t *testing.T) {
	future := time.Now().Add(time.Hour).UnixMilli()
	sched := Schedule{Kind: "at", AtMs: &future}
	result := computeNextRun(sched, time.Now().UnixMilli())
	if result == nil || *result != future {
		t.Errorf("expected future=%d, got %v", future, result)
	}
}

func TestComputeNextRun_At_Past(t *testing.T) {
	past := time.Now().Add(-time.Hour).UnixMilli()
	sched := Schedule{Kind: "at", AtMs: &past}
	result := computeNextRun(sched, time.Now().UnixMilli())
	if result != nil {
		t.Errorf("expected nil for past at-job, got %d", *result)
	}
}

func TestComputeNextRun_Cron_UTC(t *testing.T) {
	expr := "0 12 * * *"
	tz := "UTC"
	sched := Schedule{Kind: "cron", Expr: &expr, TZ: &tz}
	result := computeNextRun(sched, time.Now().UnixMilli())
	if result == nil {
		t.Fatal("expected non-nil cron next run")
	}
	if *result <= time.Now().UnixMilli() {
		t.Error("next run should be in the future")
	}
}

func TestComputeNextRun_Cron_InvalidExpr(t *testing.T) {
	expr := "not a cron"
	sched := Schedule{Kind: "cron", Expr: &expr}
	result := computeNextRun(sched, time.Now().UnixMilli())
	if result != nil {
		t.Error("expected nil for invalid cron expression")
	}
}

func TestExecuteJob_CallsOnJob(t *testing.T) {
	s, _ := newTestService(t)

	var called atomic.Int32
	s.SetOnJob(func(_ context.Context, job Job) error {
		if job.Name == "fast" {
			called.Add(1)
		}
		return nil
	})

	if _, err := s.AddJob("fast", "every", 50, "", "", 0, false); err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	cancel := startService(t, s)
	defer cancel()

	deadline := time.After(2 * time.Second)
	for called.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("job never executed")
		case <-time.After(10 * time.Millisecond):
		}
	}

	jobs := s.ListJobs()
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	if jobs[0].State.LastStatus == nil || *jobs[0].State.LastStatus != "ok" {
		t.Errorf("unexpected lastStatus: %v", jobs[0].State.LastStatus)
	}
	if jobs[0].State.LastRunAtMs == nil {
		t.Error("expected lastRunAtMs to be set")
	}
}

func TestExecuteJob_DeleteAfterRun(t *testing.T) {
	s, _ := newTestService(t)

	var called atomic.Int32
	s.SetOnJob(func(_ context.Context, _ Job) error {
		called.Add(1)
		return nil
	})

	atMs := time.Now().Add(60 * time.Millisecond).UnixMilli()
	if _, err := s.AddJob("once", "at", 0, "", "", atMs, true); err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	cancel := startService(t, s)
	defer cancel()

	deadline := time.After(2 * time.Second)
	for called.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("job never executed")
		case <-time.After(10 * time.Millisecond):
		}
	}
	// The store mutation happens after onJob returns.
	time.Sleep(50 * time.Millisecond)

	if jobs := s.ListJobs(); len(jobs) != 0 {
		t.Fatalf("expected job removed after run, got %d", len(jobs))
	}
}
