// Package config handles Werkstatt configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./werkstatt.yaml, ~/.config/werkstatt/config.yaml,
// /etc/werkstatt/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"werkstatt.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "werkstatt", "config.yaml"))
	}

	paths = append(paths, "/etc/werkstatt/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all Werkstatt configuration.
type Config struct {
	Model          string          `yaml:"model"`
	Personas       []PersonaConfig `yaml:"personas"`
	DefaultPersona string          `yaml:"default_persona"`
	Memory         MemoryConfig    `yaml:"memory"`
	Langfuse       LangfuseConfig  `yaml:"langfuse"`
	Archive        ArchiveConfig   `yaml:"archive"`
	Workspace      WorkspaceConfig `yaml:"workspace"`
	Search         SearchConfig    `yaml:"search"`
	LogLevel       string          `yaml:"log_level"`
}

// PersonaConfig declares one selectable persona. File points to the
// persona text on disk; Load resolves relative paths against the
// config file's directory and replaces File with the file's content.
type PersonaConfig struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	File        string `yaml:"file"`
}

// MemoryConfig defines the optional long-term memory service.
// The server speaks the mem0-style HTTP API (search/add).
type MemoryConfig struct {
	Enabled   bool   `yaml:"enabled"`
	ServerURL string `yaml:"server_url"` // e.g. http://localhost:8000
	UserID    string `yaml:"user_id"`    // defaults to "default_user"
}

// LangfuseConfig defines the optional trace export backend.
// Credentials come from LANGFUSE_PUBLIC_KEY / LANGFUSE_SECRET_KEY.
type LangfuseConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"` // defaults to https://cloud.langfuse.com
}

// ArchiveConfig defines the local SQLite exchange archive.
type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // defaults to werkstatt.db
}

// WorkspaceConfig defines where the file_writer tool may write.
// If Path is empty the tool writes relative to the working directory.
type WorkspaceConfig struct {
	Path string `yaml:"path"`
}

// SearchConfig defines the web search tool settings.
// The API key comes from TAVILY_API_KEY.
type SearchConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"` // defaults to https://api.tavily.com/search
}

// Default returns a config with all defaults applied and no personas.
// Used when no config file exists on disk.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// Load reads and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.loadPersonaFiles(filepath.Dir(path)); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyDefaults fills in zero-value fields.
func (c *Config) applyDefaults() {
	if c.Model == "" {
		c.Model = "claude-sonnet-4-20250514"
	}
	if c.Memory.UserID == "" {
		c.Memory.UserID = "default_user"
	}
	if c.Langfuse.Host == "" {
		c.Langfuse.Host = "https://cloud.langfuse.com"
	}
	if c.Archive.Path == "" {
		c.Archive.Path = "werkstatt.db"
	}
	if c.Search.BaseURL == "" {
		c.Search.BaseURL = "https://api.tavily.com/search"
	}
	if c.DefaultPersona == "" && len(c.Personas) > 0 {
		c.DefaultPersona = c.Personas[0].ID
	}
}

// loadPersonaFiles replaces each persona's File path with the file's
// content. Relative paths resolve against the config directory.
func (c *Config) loadPersonaFiles(configDir string) error {
	for i, p := range c.Personas {
		if p.File == "" {
			return fmt.Errorf("persona %q: missing file", p.ID)
		}
		path := p.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(configDir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("persona %q: %w", p.ID, err)
		}
		c.Personas[i].File = strings.TrimSpace(string(data))
	}
	return nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.DefaultPersona != "" && len(c.Personas) == 0 {
		return fmt.Errorf("default_persona %q set but no personas defined", c.DefaultPersona)
	}
	if len(c.Personas) > 0 && c.Persona(c.DefaultPersona) == nil {
		return fmt.Errorf("default persona %q not found in personas", c.DefaultPersona)
	}
	if c.LogLevel != "" {
		if _, err := ParseLogLevel(c.LogLevel); err != nil {
			return err
		}
	}
	return nil
}

// Persona returns the persona with the given ID, or nil if not found.
func (c *Config) Persona(id string) *PersonaConfig {
	for i := range c.Personas {
		if c.Personas[i].ID == id {
			return &c.Personas[i]
		}
	}
	return nil
}
