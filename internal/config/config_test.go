package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// unsetAfter removes keys a dotenv file may have written into the process.
func unsetAfter(t *testing.T, keys ...string) {
	t.Cleanup(func() {
		for _, k := range keys {
			_ = os.Unsetenv(k)
		}
	})
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10*time.Second, cfg.Run.Timeout)
	assert.Equal(t, time.Second, cfg.Run.JitterMin)
	assert.Equal(t, 3*time.Second, cfg.Run.JitterMax)
	assert.True(t, cfg.Browser.NoSandbox)
	assert.False(t, cfg.Browser.Headless)
}

func TestLoadYAML(t *testing.T) {
	t.Setenv("IN_DOCKER", "false")
	path := writeFile(t, "snapup.yaml", `
program_name: momo
run:
  policy: fail-soft
  timeout: 5s
  jitter_min: 0s
  jitter_max: 500ms
browser:
  width: 1280
  height: 800
log:
  format: json
`)

	cfg, err := NewLoader().WithConfigPath(path).WithEnvFile("").Load()
	require.NoError(t, err)
	assert.Equal(t, "momo", cfg.Program)
	assert.Equal(t, "fail-soft", cfg.Run.Policy)
	assert.Equal(t, 5*time.Second, cfg.Run.Timeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Run.JitterMax)
	assert.Equal(t, 1280, cfg.Browser.Width)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "lenient", cfg.Run.Resilience, "unset keys keep defaults")
}

func TestEnvOverridesYAML(t *testing.T) {
	t.Setenv("IN_DOCKER", "false")
	t.Setenv("PROGRAM_NAME", "from-env")
	t.Setenv("SNAPUP_TIMEOUT", "2s")
	t.Setenv("SNAPUP_HEADLESS", "true")
	path := writeFile(t, "snapup.yaml", "program_name: from-yaml\nrun:\n  timeout: 5s\n")

	cfg, err := NewLoader().WithConfigPath(path).WithEnvFile("").Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Program)
	assert.Equal(t, 2*time.Second, cfg.Run.Timeout)
	assert.True(t, cfg.Browser.Headless)
}

func TestDotEnvLoadedOutsideDocker(t *testing.T) {
	t.Setenv("IN_DOCKER", "false")
	unsetAfter(t, "LINE_TOKEN", "SNAPUP_RECORD")
	env := writeFile(t, ".env", "LINE_TOKEN=dotenv-token\nSNAPUP_RECORD=run.gif\n")

	cfg, err := NewLoader().WithEnvFile(env).Load()
	require.NoError(t, err)
	assert.Equal(t, "dotenv-token", cfg.Notify.Token)
	assert.Equal(t, "run.gif", cfg.Run.Record)
}

func TestDotEnvDoesNotOverrideProcessEnv(t *testing.T) {
	t.Setenv("IN_DOCKER", "false")
	t.Setenv("LINE_TOKEN", "process-token")
	env := writeFile(t, ".env", "LINE_TOKEN=dotenv-token\n")

	cfg, err := NewLoader().WithEnvFile(env).Load()
	require.NoError(t, err)
	assert.Equal(t, "process-token", cfg.Notify.Token)
}

func TestDotEnvSkippedInDocker(t *testing.T) {
	t.Setenv("IN_DOCKER", "true")
	unsetAfter(t, "SNAPUP_POLICY")
	_ = os.Unsetenv("SNAPUP_POLICY")
	env := writeFile(t, ".env", "SNAPUP_POLICY=fail-soft\n")

	cfg, err := NewLoader().WithEnvFile(env).Load()
	require.NoError(t, err)
	assert.Equal(t, "fail-fast", cfg.Run.Policy)
	assert.True(t, cfg.InDocker)
	assert.True(t, cfg.Browser.Headless)
}

func TestMissingDotEnvIsIgnored(t *testing.T) {
	t.Setenv("IN_DOCKER", "false")
	_, err := NewLoader().WithEnvFile(filepath.Join(t.TempDir(), ".env")).Load()
	assert.NoError(t, err)
}

func TestBadEnvValues(t *testing.T) {
	t.Setenv("IN_DOCKER", "false")
	t.Setenv("SNAPUP_WIDTH", "wide")
	t.Setenv("SNAPUP_TIMEOUT", "soon")

	_, err := NewLoader().WithEnvFile("").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SNAPUP_WIDTH")
	assert.Contains(t, err.Error(), "SNAPUP_TIMEOUT")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"policy", func(c *Config) { c.Run.Policy = "retry" }, "run.policy"},
		{"resilience", func(c *Config) { c.Run.Resilience = "heroic" }, "run.resilience"},
		{"format", func(c *Config) { c.Actions.Format = "xml" }, "actions.format"},
		{"log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"log format", func(c *Config) { c.Log.Format = "logfmt" }, "log.format"},
		{"timeout", func(c *Config) { c.Run.Timeout = 0 }, "run.timeout"},
		{"jitter", func(c *Config) { c.Run.JitterMax = 0 }, "run.jitter"},
		{"window", func(c *Config) { c.Browser.Width = 0 }, "browser"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}
