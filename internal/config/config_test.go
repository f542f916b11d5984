package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SCHEDD_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg := Load()
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("expected default addr, got %q", cfg.HTTPAddr)
	}
	if cfg.Timezone != "Asia/Manila" {
		t.Fatalf("expected default timezone, got %q", cfg.Timezone)
	}
	if cfg.DBPath != filepath.Join("data", "schedd.db") {
		t.Fatalf("expected default db path, got %q", cfg.DBPath)
	}
}

func TestLoadYAMLThenEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schedd.yaml")
	yaml := "http_addr: \":9090\"\ntimezone: Europe/Berlin\nbot_user_id: BOT42\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SCHEDD_CONFIG", path)
	t.Setenv("SCHEDD_TIMEZONE", "UTC")

	cfg := Load()
	if cfg.HTTPAddr != ":9090" {
		t.Fatalf("expected yaml addr, got %q", cfg.HTTPAddr)
	}
	if cfg.BotUserID != "BOT42" {
		t.Fatalf("expected yaml bot id, got %q", cfg.BotUserID)
	}
	// Environment wins over the file.
	if cfg.Timezone != "UTC" {
		t.Fatalf("expected env timezone, got %q", cfg.Timezone)
	}
}
