package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/petasbytes/llamachat/internal/controller"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ReturnsAllDefaults(t *testing.T) {
	cfg := New()

	assert.Equal(t, "http://127.0.0.1:8080/completion", cfg.Server.URL)
	assert.False(t, *cfg.Server.Stream)
	assert.True(t, *cfg.Server.CachePrompt)
	assert.Zero(t, cfg.Server.NPredict)

	assert.Equal(t, "single-shot", cfg.Session.Mode)
	assert.Empty(t, cfg.Session.SystemPrompt)
	assert.False(t, *cfg.Session.Verbose)
	assert.False(t, *cfg.Session.ResetOnReload)
	assert.Zero(t, cfg.Session.MaxTurns)

	assert.Equal(t, 60*time.Second, cfg.Sandbox.ExecTimeout)
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), DefaultFile))
	require.NoError(t, err)
	assert.Equal(t, New(), cfg)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, New(), cfg)
}

func TestLoad_PartialConfigMergesDefaults(t *testing.T) {
	p := writeFile(t, `
server:
  url: http://gpu-box:9000/completion
  stream: true
session:
  mode: interactive
  max_turns: 12
  reset_on_reload: true
sandbox:
  exec_timeout: 5s
  python: /usr/bin/python3.12
`)
	cfg, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, "http://gpu-box:9000/completion", cfg.Server.URL)
	assert.True(t, *cfg.Server.Stream)
	assert.True(t, *cfg.Server.CachePrompt, "unset fields keep defaults")
	assert.Equal(t, controller.Interactive, cfg.Mode())
	assert.Equal(t, 12, cfg.Session.MaxTurns)
	assert.True(t, *cfg.Session.ResetOnReload)
	assert.False(t, *cfg.Session.Verbose, "unset fields keep defaults")
	assert.Equal(t, 5*time.Second, cfg.Sandbox.ExecTimeout)
	assert.Equal(t, "/usr/bin/python3.12", cfg.Sandbox.Python)
}

func TestLoad_ExplicitFalseOverridesDefault(t *testing.T) {
	p := writeFile(t, "server:\n  cache_prompt: false\n")
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.False(t, *cfg.Server.CachePrompt)
}

func TestLoad_InvalidYAML(t *testing.T) {
	p := writeFile(t, "server: [unclosed\n")
	_, err := Load(p)
	require.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"LLAMACHAT_URL":                "https://example.test/completion",
		"LLAMACHAT_SYSTEM_PROMPT_FILE": "/tmp/sys.txt",
		"LLAMACHAT_MODE":               "autonomous",
		"LLAMACHAT_STREAM":             "1",
	}
	cfg := New()
	require.NoError(t, cfg.ApplyEnv(func(k string) string { return env[k] }))

	assert.Equal(t, "https://example.test/completion", cfg.Server.URL)
	assert.Equal(t, "/tmp/sys.txt", cfg.Session.SystemPromptFile)
	assert.Equal(t, controller.Autonomous, cfg.Mode())
	assert.True(t, *cfg.Server.Stream)

	env["LLAMACHAT_STREAM"] = "maybe"
	require.Error(t, New().ApplyEnv(func(k string) string { return env[k] }))
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"relative url", func(c *Config) { c.Server.URL = "/completion" }},
		{"bad scheme", func(c *Config) { c.Server.URL = "ftp://host/completion" }},
		{"negative n_predict", func(c *Config) { c.Server.NPredict = -1 }},
		{"unknown mode", func(c *Config) { c.Session.Mode = "chaos" }},
		{"both prompts", func(c *Config) {
			c.Session.SystemPrompt = "x"
			c.Session.SystemPromptFile = "y"
		}},
		{"negative max turns", func(c *Config) { c.Session.MaxTurns = -1 }},
		{"negative timeout", func(c *Config) { c.Sandbox.ExecTimeout = -time.Second }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := New()
			tc.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), DefaultFile)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}
