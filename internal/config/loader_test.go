package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir string, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.json")
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	def := DefaultConfig()
	if cfg.LLM.Model != def.LLM.Model {
		t.Errorf("expected default model %q, got %q", def.LLM.Model, cfg.LLM.Model)
	}
}

func TestLoad_ValidConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, map[string]any{
		"hosted": map[string]any{
			"baseUrl":   "https://tools.local/rpc",
			"sessionId": "sess-123",
		},
		"llm": map[string]any{"model": "gpt-4o-mini"},
	})

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Hosted.BaseURL != "https://tools.local/rpc" {
		t.Errorf("unexpected baseUrl: %q", cfg.Hosted.BaseURL)
	}
	if cfg.Hosted.SessionID != "sess-123" {
		t.Errorf("unexpected sessionId: %q", cfg.Hosted.SessionID)
	}
	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("unexpected model: %q", cfg.LLM.Model)
	}
	// Unset fields keep their defaults.
	if cfg.Agent.MaxToolIter != DefaultConfig().Agent.MaxToolIter {
		t.Errorf("expected default maxToolIterations, got %d", cfg.Agent.MaxToolIter)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte("{not valid json"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error for malformed config")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "config.json")

	cfg := DefaultConfig()
	cfg.Hosted.SessionID = "sess-xyz"
	if err := Save(&cfg, path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Hosted.SessionID != "sess-xyz" {
		t.Errorf("round trip lost sessionId: %q", loaded.Hosted.SessionID)
	}
}

func TestResolveSessionID_EnvWins(t *testing.T) {
	t.Setenv(SessionIDEnv, "from-env")
	h := HostedConfig{SessionID: "from-config"}
	if got := h.ResolveSessionID(); got != "from-env" {
		t.Errorf("expected env override, got %q", got)
	}
}

func TestResolveSessionID_ConfigFallback(t *testing.T) {
	t.Setenv(SessionIDEnv, "")
	h := HostedConfig{SessionID: "from-config"}
	if got := h.ResolveSessionID(); got != "from-config" {
		t.Errorf("expected config value, got %q", got)
	}
}
