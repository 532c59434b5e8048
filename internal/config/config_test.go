package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/resolving/chatsync/internal/chat"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("server:\n  url: https://chat.example\n"))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if cfg.Heartbeat.Interval != 30*time.Second {
		t.Errorf("heartbeat interval = %v, want 30s", cfg.Heartbeat.Interval)
	}
	if cfg.Actions.Timeout != 10*time.Second {
		t.Errorf("actions timeout = %v, want 10s", cfg.Actions.Timeout)
	}
	if cfg.Reconnect.InitialDelay != 2*time.Second || cfg.Reconnect.MaxDelay != 30*time.Second {
		t.Errorf("unexpected reconnect defaults: %+v", cfg.Reconnect)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestParse_MissingURL(t *testing.T) {
	_, err := Parse([]byte("logging:\n  level: debug\n"))
	if chat.CodeOf(err) != chat.ErrCodeConfig {
		t.Errorf("expected CONFIG_ERROR, got %v", err)
	}
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte("server:\n  url: https://x\n  shiny: true\n"))
	if err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestParse_Empty(t *testing.T) {
	if _, err := Parse([]byte("")); chat.CodeOf(err) != chat.ErrCodeConfig {
		t.Errorf("expected CONFIG_ERROR for empty input, got %v", err)
	}
}

func TestParse_InvalidJitter(t *testing.T) {
	_, err := Parse([]byte("server:\n  url: https://x\nreconnect:\n  jitter: 2.0\n"))
	if chat.CodeOf(err) != chat.ErrCodeConfig {
		t.Errorf("expected CONFIG_ERROR, got %v", err)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("CHATSYNC_TEST_TOKEN", "sekrit")

	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "server:\n  url: https://chat.example\n  token: ${CHATSYNC_TEST_TOKEN}\nuser:\n  id: 7\n  username: ann\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Token != "sekrit" {
		t.Errorf("token = %q, want env-expanded value", cfg.Server.Token)
	}
	if cfg.User.ID != 7 || cfg.User.Username != "ann" {
		t.Errorf("user block = %+v", cfg.User)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); chat.CodeOf(err) != chat.ErrCodeConfig {
		t.Errorf("expected CONFIG_ERROR, got %v", err)
	}
}
