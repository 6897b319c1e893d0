package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// clearEnv blanks every variable the loader reads. t.Setenv restores the
// previous values when the test ends.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range []string{
		"NEST_CONFIG_PATH",
		"NEST_PORT",
		"NEST_READ_TIMEOUT",
		"NEST_WRITE_TIMEOUT",
		"NEST_CACHE_BACKEND",
		"NEST_CACHE_DSN",
		"NEST_REDIS_URL",
		"NEST_SWEEP_INTERVAL",
		"NEST_AI_MODEL",
		"NEST_LOG_LEVEL",
		"NEST_LOG_FORMAT",
		"NEST_RULE_FILES",
		"OPENAI_API_KEY",
	} {
		t.Setenv(v, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("NEST_CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout.Std())
	assert.Equal(t, BackendSQLite, cfg.Cache.Backend)
	assert.Equal(t, "data/nest.db", cfg.Cache.DSN)
	assert.Equal(t, 5*time.Minute, cfg.Cache.SweepInterval.Std())
	assert.Equal(t, 1024, cfg.Cache.RegistrySize)
	assert.Equal(t, "gpt-4o-mini", cfg.AI.Model)
	assert.False(t, cfg.AI.Enabled())
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Rules.Builtin)
	assert.Empty(t, cfg.Rules.Files)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
server:
  port: 9090
  read_timeout: 5s
cache:
  backend: memory
  sweep_interval: 30s
ai:
  model: gpt-4o
log:
  level: debug
  format: console
rules:
  builtin: false
  files: [rules/home.yaml, rules/extra.json]
`)
	t.Setenv("NEST_CONFIG_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout.Std())
	assert.Equal(t, 60*time.Second, cfg.Server.WriteTimeout.Std(), "unset keys keep defaults")
	assert.Equal(t, BackendMemory, cfg.Cache.Backend)
	assert.Equal(t, 30*time.Second, cfg.Cache.SweepInterval.Std())
	assert.Equal(t, "gpt-4o", cfg.AI.Model)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.False(t, cfg.Rules.Builtin)
	assert.Equal(t, []string{"rules/home.yaml", "rules/extra.json"}, cfg.Rules.Files)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
server:
  port: 9090
cache:
  backend: memory
`)
	t.Setenv("NEST_CONFIG_PATH", path)
	t.Setenv("NEST_PORT", "7070")
	t.Setenv("NEST_CACHE_BACKEND", "REDIS")
	t.Setenv("NEST_REDIS_URL", "redis://localhost:6379/2")
	t.Setenv("NEST_SWEEP_INTERVAL", "1m")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("NEST_RULE_FILES", "a.yaml, b.json ,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, BackendRedis, cfg.Cache.Backend)
	assert.Equal(t, "redis://localhost:6379/2", cfg.Cache.RedisURL)
	assert.Equal(t, time.Minute, cfg.Cache.SweepInterval.Std())
	assert.True(t, cfg.AI.Enabled())
	assert.Equal(t, []string{"a.yaml", "b.json"}, cfg.Rules.Files)
}

func TestLoad_InvalidEnvValuesAreIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("NEST_CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("NEST_PORT", "not-a-number")
	t.Setenv("NEST_SWEEP_INTERVAL", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5*time.Minute, cfg.Cache.SweepInterval.Std())
}

func TestLoad_Validation(t *testing.T) {
	cases := map[string]string{
		"unknown backend":   "cache:\n  backend: etcd\n",
		"postgres no dsn":   "cache:\n  backend: postgres\n  dsn: \"\"\n",
		"redis no url":      "cache:\n  backend: redis\n",
		"zero sweep":        "cache:\n  sweep_interval: 0s\n",
		"bad registry size": "cache:\n  registry_size: 0\n",
		"bad port":          "server:\n  port: 70000\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("NEST_CONFIG_PATH", writeConfig(t, body))
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	t.Setenv("NEST_CONFIG_PATH", writeConfig(t, "server:\n  read_timeout: forever\n"))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	clearEnv(t)
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDuration_MarshalYAML(t *testing.T) {
	out, err := yaml.Marshal(struct {
		D Duration `yaml:"d"`
	}{Duration(90 * time.Second)})
	require.NoError(t, err)
	assert.Equal(t, "d: 1m30s\n", string(out))
}
