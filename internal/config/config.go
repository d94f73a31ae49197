// Package config provides the Config struct and loader for .llamachat.yaml.
//
// Precedence, lowest first: built-in defaults, the YAML file, LLAMACHAT_*
// environment variables, command-line flags (applied by the caller).
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/petasbytes/llamachat/internal/completion"
	"github.com/petasbytes/llamachat/internal/controller"
	"gopkg.in/yaml.v3"
)

const (
	DefaultFile        = ".llamachat.yaml"
	DefaultURL         = completion.DefaultURL
	DefaultMode        = "single-shot"
	DefaultExecTimeout = 60 * time.Second

	DefaultSystemPrompt = "Environment: ipython\n\n# Tool Instructions\n- You have access to the stateful ipython environment\n"
)

// ServerConfig holds completion endpoint settings.
type ServerConfig struct {
	URL         string `yaml:"url,omitempty"`
	Stream      *bool  `yaml:"stream,omitempty"`
	CachePrompt *bool  `yaml:"cache_prompt,omitempty"`
	NPredict    int    `yaml:"n_predict,omitempty"`
}

// SessionConfig holds conversation settings.
type SessionConfig struct {
	Mode             string `yaml:"mode,omitempty"`
	SystemPrompt     string `yaml:"system_prompt,omitempty"`
	SystemPromptFile string `yaml:"system_prompt_file,omitempty"`
	Verbose          *bool  `yaml:"verbose,omitempty"`
	MaxTurns         int    `yaml:"max_turns,omitempty"`
	LogFile          string `yaml:"log_file,omitempty"`
	Dump             string `yaml:"dump,omitempty"`
	// ResetOnReload starts a fresh conversation when the system prompt
	// file changes.
	ResetOnReload *bool `yaml:"reset_on_reload,omitempty"`
}

// SandboxConfig holds tool execution settings.
type SandboxConfig struct {
	Python      string        `yaml:"python,omitempty"`
	WorkDir     string        `yaml:"workdir,omitempty"`
	ExecTimeout time.Duration `yaml:"exec_timeout,omitempty"`
}

type Config struct {
	Server  ServerConfig  `yaml:"server,omitempty"`
	Session SessionConfig `yaml:"session,omitempty"`
	Sandbox SandboxConfig `yaml:"sandbox,omitempty"`
}

// New returns a Config with all defaults populated.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			URL:         DefaultURL,
			Stream:      boolPtr(false),
			CachePrompt: boolPtr(true),
		},
		Session: SessionConfig{
			Mode:          DefaultMode,
			Verbose:       boolPtr(false),
			ResetOnReload: boolPtr(false),
		},
		Sandbox: SandboxConfig{
			ExecTimeout: DefaultExecTimeout,
		},
	}
}

// Load reads path and fills in missing fields with defaults. A missing file
// yields defaults with a nil error; other I/O and parse errors are returned.
func Load(path string) (*Config, error) {
	cfg := New()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	mergeConfig(cfg, &fileCfg)
	return cfg, nil
}

// ApplyEnv overlays LLAMACHAT_* variables. getenv is usually os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("LLAMACHAT_URL"); v != "" {
		c.Server.URL = v
	}
	if v := getenv("LLAMACHAT_SYSTEM_PROMPT_FILE"); v != "" {
		c.Session.SystemPromptFile = v
	}
	if v := getenv("LLAMACHAT_MODE"); v != "" {
		c.Session.Mode = v
	}
	if v := getenv("LLAMACHAT_STREAM"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LLAMACHAT_STREAM: %w", err)
		}
		c.Server.Stream = &b
	}
	return nil
}

// Validate checks values that would otherwise fail late, mid-session.
func (c *Config) Validate() error {
	var errs []error
	u, err := url.Parse(c.Server.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("server.url %q must be an absolute http(s) URL", c.Server.URL))
	}
	if c.Server.NPredict < 0 {
		errs = append(errs, fmt.Errorf("server.n_predict must be >= 0"))
	}
	if _, err := controller.ParseMode(c.Session.Mode); err != nil {
		errs = append(errs, fmt.Errorf("session.mode: %w", err))
	}
	if c.Session.SystemPrompt != "" && c.Session.SystemPromptFile != "" {
		errs = append(errs, errors.New("session.system_prompt and session.system_prompt_file are mutually exclusive"))
	}
	if c.Session.MaxTurns < 0 {
		errs = append(errs, fmt.Errorf("session.max_turns must be >= 0"))
	}
	if c.Sandbox.ExecTimeout < 0 {
		errs = append(errs, fmt.Errorf("sandbox.exec_timeout must be >= 0"))
	}
	return errors.Join(errs...)
}

// Mode returns the parsed session mode.
func (c *Config) Mode() controller.Mode {
	m, _ := controller.ParseMode(c.Session.Mode)
	return m
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *Config) {
	// Server
	if src.Server.URL != "" {
		dst.Server.URL = src.Server.URL
	}
	if src.Server.Stream != nil {
		dst.Server.Stream = src.Server.Stream
	}
	if src.Server.CachePrompt != nil {
		dst.Server.CachePrompt = src.Server.CachePrompt
	}
	if src.Server.NPredict != 0 {
		dst.Server.NPredict = src.Server.NPredict
	}

	// Session
	if src.Session.Mode != "" {
		dst.Session.Mode = src.Session.Mode
	}
	if src.Session.SystemPrompt != "" {
		dst.Session.SystemPrompt = src.Session.SystemPrompt
	}
	if src.Session.SystemPromptFile != "" {
		dst.Session.SystemPromptFile = src.Session.SystemPromptFile
	}
	if src.Session.Verbose != nil {
		dst.Session.Verbose = src.Session.Verbose
	}
	if src.Session.MaxTurns != 0 {
		dst.Session.MaxTurns = src.Session.MaxTurns
	}
	if src.Session.LogFile != "" {
		dst.Session.LogFile = src.Session.LogFile
	}
	if src.Session.Dump != "" {
		dst.Session.Dump = src.Session.Dump
	}
	if src.Session.ResetOnReload != nil {
		dst.Session.ResetOnReload = src.Session.ResetOnReload
	}

	// Sandbox
	if src.Sandbox.Python != "" {
		dst.Sandbox.Python = src.Sandbox.Python
	}
	if src.Sandbox.WorkDir != "" {
		dst.Sandbox.WorkDir = src.Sandbox.WorkDir
	}
	if src.Sandbox.ExecTimeout != 0 {
		dst.Sandbox.ExecTimeout = src.Sandbox.ExecTimeout
	}
}

func boolPtr(b bool) *bool {
	return &b
}
