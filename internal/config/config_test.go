package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Delivery.MaxLength != 4000 {
		t.Errorf("max_length = %d, want default 4000", cfg.Delivery.MaxLength)
	}
	if cfg.Batch.MaxMessages != 10 {
		t.Errorf("max_messages = %d, want default 10", cfg.Batch.MaxMessages)
	}
	if cfg.Provider.Model != "gpt-4o-mini" {
		t.Errorf("model = %q, want default gpt-4o-mini", cfg.Provider.Model)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lingobot.yaml")
	content := `
provider:
  model: gpt-4o
batch:
  wait_ms: 2000
  max_messages: 5
delivery:
  max_length: 3500
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Provider.Model != "gpt-4o" {
		t.Errorf("model = %q, want gpt-4o", cfg.Provider.Model)
	}
	if cfg.BatchWait() != 2*time.Second {
		t.Errorf("batch wait = %v, want 2s", cfg.BatchWait())
	}
	if cfg.Delivery.MaxLength != 3500 {
		t.Errorf("max_length = %d, want 3500", cfg.Delivery.MaxLength)
	}
	// Untouched sections keep defaults.
	if cfg.Documents.ChunkSize != 1000 {
		t.Errorf("chunk_size = %d, want default 1000", cfg.Documents.ChunkSize)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lingobot.yaml")
	content := "telegram:\n  token: from-file\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("TELEGRAM_BOT_TOKEN", "from-env")
	t.Setenv("LINGOBOT_DB_PATH", "/tmp/env.db")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "from-env" {
		t.Errorf("token = %q, want env override", cfg.Telegram.Token)
	}
	if cfg.Store.Path != "/tmp/env.db" {
		t.Errorf("db path = %q, want env override", cfg.Store.Path)
	}
}

func TestLoad_RejectsOverHardLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lingobot.yaml")
	content := "delivery:\n  max_length: 5000\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("max_length above 4096 must be rejected")
	}
}
