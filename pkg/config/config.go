// Package config loads the relay configuration from YAML and the
// environment.
//
// Values are resolved in this order: built-in defaults, then the YAML file
// (with ${ENV_VAR} references expanded before parsing), then the well-known
// environment variables for anything still unset. A configuration without a
// file is valid as long as the environment supplies the credentials.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"go.uber.org/zap/zapcore"
)

// ErrInvalid marks configuration errors. The process must not serve traffic
// with an invalid configuration.
var ErrInvalid = errors.New("config: invalid")

// Environment variables consulted when the file leaves a value empty.
const (
	EnvAPIKey             = "GEMINI_API_KEY"
	EnvChannelSecret      = "LINE_CHANNEL_SECRET"
	EnvChannelAccessToken = "LINE_CHANNEL_ACCESS_TOKEN"
	EnvDefaultWorkdir     = "DEFAULT_WORKDIR"
)

// Defaults.
const (
	DefaultProvider        = "google"
	DefaultModel           = "gemini-2.5-flash"
	DefaultHistoryDriver   = "jsonl"
	DefaultHistoryWindow   = 12 * time.Hour
	DefaultToolPath        = "gemini"
	DefaultDirectiveTag    = "gemini-cli"
	DefaultLINEAPIBaseURL  = "https://api.line.me"
	DefaultServerAddr      = ":5000"
	DefaultCallbackPath    = "/callback"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultLogLevel        = "info"
)

// Config is the YAML structure of the relay config file.
type Config struct {
	// Provider selects the model backend: "google" (REST) or "genai" (SDK).
	Provider string `yaml:"provider"`

	// Model ID, e.g. "gemini-2.5-flash".
	Model string `yaml:"model"`

	// APIKey can be a literal key or "${ENV_VAR}". Falls back to GEMINI_API_KEY.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the REST endpoint (google provider only).
	BaseURL string `yaml:"base_url"`

	// Temperature controls randomness (nil = provider default).
	Temperature *float64 `yaml:"temperature"`

	// MaxTokens caps the response length (0 = provider default).
	MaxTokens int `yaml:"max_tokens"`

	// SystemPrompt replaces the built-in preamble. SystemPromptFile reads it
	// from a Markdown file instead. The inline value wins.
	SystemPrompt     string `yaml:"system_prompt"`
	SystemPromptFile string `yaml:"system_prompt_file"`

	History   HistoryConfig   `yaml:"history"`
	Workdir   WorkdirConfig   `yaml:"workdir"`
	Tool      ToolConfig      `yaml:"tool"`
	Shell     ShellConfig     `yaml:"shell"`
	Directive DirectiveConfig `yaml:"directive"`
	LINE      LINEConfig      `yaml:"line"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
}

type HistoryConfig struct {
	// Driver is "jsonl" (one file per user under Path) or "sqlite" (Path is
	// the database file).
	Driver string        `yaml:"driver"`
	Path   string        `yaml:"path"`
	Window time.Duration `yaml:"window"`
}

type WorkdirConfig struct {
	// Default is the starting directory for every user. Falls back to
	// DEFAULT_WORKDIR, then the process working directory.
	Default string `yaml:"default"`
}

type ToolConfig struct {
	Path    string        `yaml:"path"`
	Timeout time.Duration `yaml:"timeout"` // 0 = no limit
}

type ShellConfig struct {
	Timeout time.Duration `yaml:"timeout"` // 0 = no limit
}

type DirectiveConfig struct {
	Tag string `yaml:"tag"`
}

type LINEConfig struct {
	ChannelSecret      string `yaml:"channel_secret"`
	ChannelAccessToken string `yaml:"channel_access_token"`
	APIBaseURL         string `yaml:"api_base_url"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	Path            string        `yaml:"path"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// DefaultPath returns the platform-appropriate config file location.
func DefaultPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "relay", "config.yaml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "relay", "config.yaml")
}

// DefaultDataDir returns the directory holding history by default.
func DefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "relay")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "relay")
}

// Locate picks the file to load: explicit if set, otherwise DefaultPath when
// it exists, otherwise "" (environment only).
func Locate(explicit string) string {
	if explicit != "" {
		return explicit
	}
	p := DefaultPath()
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return ""
}

// Load reads path (skipped when empty), applies environment fallbacks and
// defaults, and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		// Expand environment variables in the raw YAML before parsing.
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %w", ErrInvalid, path, err)
		}
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	setIfEmpty(&c.APIKey, os.Getenv(EnvAPIKey))
	setIfEmpty(&c.LINE.ChannelSecret, os.Getenv(EnvChannelSecret))
	setIfEmpty(&c.LINE.ChannelAccessToken, os.Getenv(EnvChannelAccessToken))
	setIfEmpty(&c.Workdir.Default, os.Getenv(EnvDefaultWorkdir))
}

func (c *Config) applyDefaults() {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	c.History.Driver = strings.ToLower(strings.TrimSpace(c.History.Driver))

	setIfEmpty(&c.Provider, DefaultProvider)
	setIfEmpty(&c.Model, DefaultModel)
	setIfEmpty(&c.History.Driver, DefaultHistoryDriver)
	if c.History.Path == "" {
		if c.History.Driver == "sqlite" {
			c.History.Path = filepath.Join(DefaultDataDir(), "history.db")
		} else {
			c.History.Path = filepath.Join(DefaultDataDir(), "history")
		}
	}
	if c.History.Window == 0 {
		c.History.Window = DefaultHistoryWindow
	}
	setIfEmpty(&c.Tool.Path, DefaultToolPath)
	setIfEmpty(&c.Directive.Tag, DefaultDirectiveTag)
	setIfEmpty(&c.LINE.APIBaseURL, DefaultLINEAPIBaseURL)
	setIfEmpty(&c.Server.Addr, DefaultServerAddr)
	setIfEmpty(&c.Server.Path, DefaultCallbackPath)
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	setIfEmpty(&c.Log.Level, DefaultLogLevel)
}

// Validate checks the settings every command needs. Credentials are checked
// separately by the commands that use them.
func (c *Config) Validate() error {
	var errs []error
	switch c.Provider {
	case "google", "genai":
	default:
		errs = append(errs, fmt.Errorf("unknown provider %q (want google or genai)", c.Provider))
	}
	if c.Model == "" {
		errs = append(errs, errors.New("model is required"))
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		errs = append(errs, fmt.Errorf("temperature %v out of range [0, 2]", *c.Temperature))
	}
	if c.MaxTokens < 0 {
		errs = append(errs, errors.New("max_tokens must not be negative"))
	}
	switch c.History.Driver {
	case "jsonl", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unknown history driver %q (want jsonl or sqlite)", c.History.Driver))
	}
	if c.History.Window < 0 {
		errs = append(errs, errors.New("history.window must be positive"))
	}
	if c.Tool.Timeout < 0 || c.Shell.Timeout < 0 || c.Server.ShutdownTimeout < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	if strings.ContainsAny(c.Directive.Tag, "<>/ \t\n") {
		errs = append(errs, fmt.Errorf("directive.tag %q must be a bare tag name", c.Directive.Tag))
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if !strings.HasPrefix(c.Server.Path, "/") {
		errs = append(errs, fmt.Errorf("server.path %q must start with /", c.Server.Path))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// RequireAPIKey checks that a model API key is configured.
func (c *Config) RequireAPIKey() error {
	if c.APIKey == "" {
		return fmt.Errorf("%w: api_key is required (or set %s)", ErrInvalid, EnvAPIKey)
	}
	return nil
}

// RequireLINE checks the credentials the webhook server needs.
func (c *Config) RequireLINE() error {
	var missing []string
	if c.LINE.ChannelSecret == "" {
		missing = append(missing, "line.channel_secret ("+EnvChannelSecret+")")
	}
	if c.LINE.ChannelAccessToken == "" {
		missing = append(missing, "line.channel_access_token ("+EnvChannelAccessToken+")")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalid, strings.Join(missing, ", "))
	}
	return nil
}

func setIfEmpty(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}
