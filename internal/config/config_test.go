package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/waypoint/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, config.Duration(5*time.Second), cfg.Engine.ElementTimeout)
	assert.Equal(t, config.Duration(100*time.Millisecond), cfg.Engine.VisibilityInterval)
	assert.Equal(t, config.Duration(2*time.Second), cfg.Engine.ValidationTimeout)
	assert.Equal(t, config.Duration(500*time.Millisecond), cfg.Engine.CompletionDelay)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 500 * time.Millisecond, time.Second}, cfg.Engine.Delays())
	assert.Len(t, cfg.Engine.Protected, 3)
	assert.Equal(t, config.StoreMemory, cfg.Store.Backend)
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	t.Setenv("WAYPOINT_LOG_LEVEL", "")

	t.Run("yaml", func(t *testing.T) {
		path := writeConfig(t, "waypoint.yaml", `
tour: ./tours/onboarding.yaml
engine:
  element_timeout: 2s
  cleanup_delays: [50ms, 250ms]
  protected:
    - selector: "#sidebar"
      properties: [height]
store:
  backend: redis
  redis_addr: redis:6379
  ttl: 24h
`)
		cfg, err := config.Load(path)
		require.NoError(t, err)
		assert.Equal(t, "./tours/onboarding.yaml", cfg.Tour)
		assert.Equal(t, config.Duration(2*time.Second), cfg.Engine.ElementTimeout)
		assert.Equal(t, []time.Duration{50 * time.Millisecond, 250 * time.Millisecond}, cfg.Engine.Delays())
		require.Len(t, cfg.Engine.Protected, 1)
		assert.Equal(t, "#sidebar", cfg.Engine.Protected[0].Selector)
		assert.Equal(t, config.StoreRedis, cfg.Store.Backend)
		assert.Equal(t, config.Duration(24*time.Hour), cfg.Store.TTL)
		assert.Equal(t, config.Duration(500*time.Millisecond), cfg.Engine.CompletionDelay, "unset keys keep defaults")
	})

	t.Run("toml", func(t *testing.T) {
		path := writeConfig(t, "waypoint.toml", `
tour = "tours/steps"

[engine]
element_timeout = "750ms"
strict_validation = true

[store]
backend = "sqlite"
sqlite_dsn = "file:tours.db"

[log]
format = "json"
`)
		cfg, err := config.Load(path)
		require.NoError(t, err)
		assert.Equal(t, config.Duration(750*time.Millisecond), cfg.Engine.ElementTimeout)
		assert.True(t, cfg.Engine.StrictValidation)
		assert.Equal(t, config.StoreSQLite, cfg.Store.Backend)
		assert.Equal(t, "json", cfg.Log.Format)
	})

	t.Run("unknown keys are rejected", func(t *testing.T) {
		_, err := config.Load(writeConfig(t, "bad.yaml", "engine:\n  element_timout: 1s\n"))
		assert.Error(t, err)

		_, err = config.Load(writeConfig(t, "bad.toml", "[engine]\nelement_timout = \"1s\"\n"))
		assert.Error(t, err)
	})

	t.Run("invalid backend", func(t *testing.T) {
		_, err := config.Load(writeConfig(t, "bad.yaml", "store:\n  backend: cassandra\n"))
		assert.ErrorContains(t, err, "cassandra")
	})
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"WAYPOINT_STORE":            "file",
		"WAYPOINT_ELEMENT_TIMEOUT":  "3s",
		"WAYPOINT_BROWSER_HEADLESS": "false",
		"WAYPOINT_HTTP_ADDR":        ":9090",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := config.Default()
	require.NoError(t, cfg.ApplyEnv(lookup))
	assert.Equal(t, config.StoreFile, cfg.Store.Backend)
	assert.Equal(t, config.Duration(3*time.Second), cfg.Engine.ElementTimeout)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)

	env["WAYPOINT_ELEMENT_TIMEOUT"] = "soon"
	assert.Error(t, cfg.ApplyEnv(lookup))
}
