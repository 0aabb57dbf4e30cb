// Package config handles the .distill directory structure and user settings.
// Every directory distill runs from gets a .distill/ folder holding the
// document library, run logs, exports, and config.yaml.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DistillDir is the name of the directory created in the working directory.
const DistillDir = ".distill"

const defaultConfigYAML = `# distill configuration
version: 1

# Defaults applied to newly added documents. Each document keeps its own
# run configuration once created; editing this file does not change
# existing documents.
defaults:
  provider: openai
  model: gpt-4o
  stop_token: "<end_of_book>"
  max_sections: 20
  auto_advance: false
  system_prompt: |
    You are distilling a book into a sequence of sections. Each response is
    one section: a heading followed by a faithful, compressed retelling of
    the next portion of the book. Preserve the author's argument and voice.
    Do not summarize material you have already covered.

# Credentials are read from environment variables, never from this file.
# A .env file next to the binary is loaded at startup.
providers:
  openai:
    credential_env: OPENAI_API_KEY
  anthropic:
    credential_env: ANTHROPIC_API_KEY
  gemini:
    credential_env: GEMINI_API_KEY
`

// Defaults seed the run configuration of newly added documents.
type Defaults struct {
	Provider     string `yaml:"provider"`
	Model        string `yaml:"model"`
	StopToken    string `yaml:"stop_token"`
	MaxSections  int    `yaml:"max_sections"`
	AutoAdvance  bool   `yaml:"auto_advance"`
	SystemPrompt string `yaml:"system_prompt"`
}

// ProviderSettings declares how to locate a provider credential.
type ProviderSettings struct {
	CredentialEnv string `yaml:"credential_env"`
}

// Settings models .distill/config.yaml.
type Settings struct {
	Version   int                         `yaml:"version"`
	Defaults  Defaults                    `yaml:"defaults"`
	Providers map[string]ProviderSettings `yaml:"providers"`
}

// Config holds resolved paths and parsed settings for one distill home.
type Config struct {
	// BaseDir is the directory the user ran distill from.
	BaseDir string

	// HomeDir is BaseDir/.distill.
	HomeDir string

	LibraryDir string
	LogDir     string
	ExportDir  string

	Settings Settings
}

// Init creates the .distill directory structure and a default config.yaml
// if one does not exist yet.
func Init(baseDir string) error {
	home := filepath.Join(baseDir, DistillDir)
	for _, dir := range []string{home, filepath.Join(home, "library"), filepath.Join(home, "logs"), filepath.Join(home, "exports")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create %s: %w", dir, err)
		}
	}
	path := filepath.Join(home, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: stat %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigYAML), 0o644); err != nil {
		return fmt.Errorf("config: write default config: %w", err)
	}
	return nil
}

// New resolves paths under baseDir and loads config.yaml, falling back to
// defaults for anything the file omits.
func New(baseDir string) (*Config, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("config: resolve base dir: %w", err)
	}
	home := filepath.Join(abs, DistillDir)
	cfg := &Config{
		BaseDir:    abs,
		HomeDir:    home,
		LibraryDir: filepath.Join(home, "library"),
		LogDir:     filepath.Join(home, "logs"),
		ExportDir:  filepath.Join(home, "exports"),
		Settings:   defaultSettings(),
	}
	if err := cfg.loadSettings(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultSettings() Settings {
	var settings Settings
	// The embedded default is authoritative; a parse failure here is a
	// programming error caught by the config tests.
	if err := yaml.Unmarshal([]byte(defaultConfigYAML), &settings); err != nil {
		panic(fmt.Sprintf("config: invalid embedded defaults: %v", err))
	}
	return settings
}

func (c *Config) loadSettings() error {
	path := filepath.Join(c.HomeDir, "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	var settings Settings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	c.applySettings(settings)
	return c.validate()
}

func (c *Config) applySettings(settings Settings) {
	if settings.Version != 0 {
		c.Settings.Version = settings.Version
	}
	if strings.TrimSpace(settings.Defaults.Provider) != "" {
		c.Settings.Defaults.Provider = settings.Defaults.Provider
	}
	if strings.TrimSpace(settings.Defaults.Model) != "" {
		c.Settings.Defaults.Model = settings.Defaults.Model
	}
	if strings.TrimSpace(settings.Defaults.StopToken) != "" {
		c.Settings.Defaults.StopToken = settings.Defaults.StopToken
	}
	if settings.Defaults.MaxSections > 0 {
		c.Settings.Defaults.MaxSections = settings.Defaults.MaxSections
	}
	c.Settings.Defaults.AutoAdvance = settings.Defaults.AutoAdvance
	if strings.TrimSpace(settings.Defaults.SystemPrompt) != "" {
		c.Settings.Defaults.SystemPrompt = settings.Defaults.SystemPrompt
	}
	if len(settings.Providers) > 0 {
		if c.Settings.Providers == nil {
			c.Settings.Providers = map[string]ProviderSettings{}
		}
		for id, ps := range settings.Providers {
			c.Settings.Providers[id] = ps
		}
	}
}

func (c *Config) validate() error {
	if c.Settings.Defaults.MaxSections < 1 {
		return fmt.Errorf("config: defaults.max_sections must be at least 1")
	}
	if _, ok := c.Settings.Providers[c.Settings.Defaults.Provider]; !ok {
		return fmt.Errorf("config: defaults.provider %q has no providers entry", c.Settings.Defaults.Provider)
	}
	return nil
}

// CredentialFor resolves the API credential for a provider from the
// environment. An empty string means no credential is configured.
func (c *Config) CredentialFor(providerID string) string {
	ps, ok := c.Settings.Providers[strings.TrimSpace(providerID)]
	if !ok || strings.TrimSpace(ps.CredentialEnv) == "" {
		return ""
	}
	return os.Getenv(ps.CredentialEnv)
}
