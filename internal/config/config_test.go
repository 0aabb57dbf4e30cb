package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewUsesDefaultsWhenMissing(t *testing.T) {
	baseDir := t.TempDir()
	cfg, err := New(baseDir)
	if err != nil {
		t.Fatalf("new config: %v", err)
	}
	if cfg.Settings.Defaults.Provider != "openai" {
		t.Fatalf("default provider = %q, want openai", cfg.Settings.Defaults.Provider)
	}
	if cfg.Settings.Defaults.MaxSections != 20 {
		t.Fatalf("default max_sections = %d, want 20", cfg.Settings.Defaults.MaxSections)
	}
	if cfg.Settings.Defaults.StopToken != "<end_of_book>" {
		t.Fatalf("default stop_token = %q", cfg.Settings.Defaults.StopToken)
	}
	if !strings.HasSuffix(cfg.LibraryDir, filepath.Join(DistillDir, "library")) {
		t.Fatalf("library dir not under %s: %s", DistillDir, cfg.LibraryDir)
	}
}

func TestInitCreatesStructure(t *testing.T) {
	baseDir := t.TempDir()
	if err := Init(baseDir); err != nil {
		t.Fatalf("init: %v", err)
	}
	for _, sub := range []string{"library", "logs", "exports"} {
		if info, err := os.Stat(filepath.Join(baseDir, DistillDir, sub)); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", sub, err)
		}
	}
	if _, err := os.Stat(filepath.Join(baseDir, DistillDir, "config.yaml")); err != nil {
		t.Fatalf("expected config.yaml: %v", err)
	}
	// Init must not clobber an existing config.
	path := filepath.Join(baseDir, DistillDir, "config.yaml")
	if err := os.WriteFile(path, []byte("version: 1\ndefaults:\n  provider: anthropic\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Init(baseDir); err != nil {
		t.Fatalf("second init: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "anthropic") {
		t.Fatalf("init overwrote user config")
	}
}

func TestNewParsesOverrides(t *testing.T) {
	baseDir := t.TempDir()
	if err := Init(baseDir); err != nil {
		t.Fatalf("init: %v", err)
	}
	configYAML := strings.TrimSpace(`
version: 1
defaults:
  provider: anthropic
  model: claude-sonnet-4-20250514
  max_sections: 5
providers:
  anthropic:
    credential_env: DISTILL_TEST_ANTHROPIC_KEY
`)
	if err := os.WriteFile(filepath.Join(baseDir, DistillDir, "config.yaml"), []byte(configYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := New(baseDir)
	if err != nil {
		t.Fatalf("new config: %v", err)
	}
	if cfg.Settings.Defaults.Provider != "anthropic" {
		t.Fatalf("provider = %q, want anthropic", cfg.Settings.Defaults.Provider)
	}
	if cfg.Settings.Defaults.MaxSections != 5 {
		t.Fatalf("max_sections = %d, want 5", cfg.Settings.Defaults.MaxSections)
	}
	// Omitted fields keep their defaults.
	if cfg.Settings.Defaults.StopToken != "<end_of_book>" {
		t.Fatalf("stop_token = %q, want default", cfg.Settings.Defaults.StopToken)
	}
	t.Setenv("DISTILL_TEST_ANTHROPIC_KEY", "sk-test")
	if got := cfg.CredentialFor("anthropic"); got != "sk-test" {
		t.Fatalf("credential = %q, want sk-test", got)
	}
	if got := cfg.CredentialFor("nonexistent"); got != "" {
		t.Fatalf("credential for unknown provider = %q, want empty", got)
	}
}

func TestNegativeMaxSectionsFallsBackToDefault(t *testing.T) {
	baseDir := t.TempDir()
	if err := Init(baseDir); err != nil {
		t.Fatalf("init: %v", err)
	}
	configYAML := "version: 1\ndefaults:\n  max_sections: -3\n"
	if err := os.WriteFile(filepath.Join(baseDir, DistillDir, "config.yaml"), []byte(configYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(baseDir); err != nil {
		t.Fatalf("negative max_sections should fall back to default, got error: %v", err)
	}
}
