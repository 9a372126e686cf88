package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "werkstatt.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Model != "claude-sonnet-4-20250514" {
		t.Errorf("Model = %q", cfg.Model)
	}
	if cfg.Memory.UserID != "default_user" {
		t.Errorf("UserID = %q", cfg.Memory.UserID)
	}
	if cfg.Langfuse.Host != "https://cloud.langfuse.com" {
		t.Errorf("Langfuse.Host = %q", cfg.Langfuse.Host)
	}
	if cfg.Archive.Path != "werkstatt.db" {
		t.Errorf("Archive.Path = %q", cfg.Archive.Path)
	}
	if cfg.Search.BaseURL != "https://api.tavily.com/search" {
		t.Errorf("Search.BaseURL = %q", cfg.Search.BaseURL)
	}
}

func TestLoadFull(t *testing.T) {
	dir := t.TempDir()
	personaPath := filepath.Join(dir, "scientist.md")
	if err := os.WriteFile(personaPath, []byte("You are a careful scientist.\n"), 0o644); err != nil {
		t.Fatalf("write persona: %v", err)
	}

	path := writeConfig(t, dir, `
model: claude-test
default_persona: scientist
personas:
  - id: scientist
    name: Dr. Sage
    description: Careful and precise
    file: scientist.md
memory:
  enabled: true
  server_url: http://localhost:8000
  user_id: alice
langfuse:
  enabled: true
archive:
  enabled: true
  path: /tmp/test.db
search:
  enabled: true
log_level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Model != "claude-test" {
		t.Errorf("Model = %q", cfg.Model)
	}
	p := cfg.Persona("scientist")
	if p == nil {
		t.Fatal("Persona(scientist) = nil")
	}
	if p.Name != "Dr. Sage" {
		t.Errorf("persona name = %q", p.Name)
	}
	// The file path is replaced with the trimmed file content.
	if p.File != "You are a careful scientist." {
		t.Errorf("persona content = %q", p.File)
	}
	if !cfg.Memory.Enabled || cfg.Memory.UserID != "alice" {
		t.Errorf("memory = %+v", cfg.Memory)
	}
}

func TestLoadDefaultPersonaFallsBackToFirst(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "p.md"), []byte("persona"), 0o644); err != nil {
		t.Fatal(err)
	}
	path := writeConfig(t, dir, `
personas:
  - id: only
    name: Only
    file: p.md
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DefaultPersona != "only" {
		t.Errorf("DefaultPersona = %q, want first persona", cfg.DefaultPersona)
	}
}

func TestLoadMissingPersonaFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
personas:
  - id: ghost
    name: Ghost
    file: nowhere.md
`)
	if _, err := Load(path); err == nil {
		t.Fatal("missing persona file accepted")
	}
}

func TestLoadUnknownDefaultPersona(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "p.md"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	path := writeConfig(t, dir, `
default_persona: nobody
personas:
  - id: someone
    name: Someone
    file: p.md
`)
	if _, err := Load(path); err == nil {
		t.Fatal("unknown default persona accepted")
	}
}

func TestLoadBadLogLevel(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "log_level: shouting\n")
	_, err := Load(path)
	if err == nil {
		t.Fatal("bad log level accepted")
	}
	if !strings.Contains(err.Error(), "shouting") {
		t.Errorf("err = %v", err)
	}
}

func TestFindConfigExplicitMissing(t *testing.T) {
	if _, err := FindConfig("/does/not/exist.yaml"); err == nil {
		t.Fatal("missing explicit config accepted")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Model == "" || cfg.Archive.Path == "" {
		t.Errorf("Default() left zero values: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default() invalid: %v", err)
	}
}
