package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsFillMissingFields(t *testing.T) {
	path := writeConfig(t, `
environment: test
backend:
  base_url: https://screener.example.com/api/
storage:
  type: memory
`)

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://screener.example.com/api/", c.Backend.BaseURL)
	assert.Equal(t, 30*time.Second, c.Backend.Timeout)
	assert.Equal(t, 5*time.Minute, c.Backend.ScreenTimeout)
	assert.Equal(t, "token/refresh/", c.Backend.RefreshPath)
	assert.Equal(t, "memory", c.Storage.Type)
	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, "finscreen.runs", c.Kafka.Topic)
	assert.False(t, c.Kafka.Enabled)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"bad storage":       "storage:\n  type: sqlite\n",
		"bad url":           "backend:\n  base_url: not a url\n",
		"kafka w/o brokers": "kafka:\n  enabled: true\n",
		"short screen call": "backend:\n  timeout: 1m\n  screen_timeout: 10s\n",
		"bad log level":     "logging:\n  level: loud\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadWithEnv_Overrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("FINSCREEN_BACKEND_URL", "http://10.0.0.5:8000/api/")
	t.Setenv("FINSCREEN_STORAGE", "redis")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("LOG_LEVEL", "DEBUG")

	c, err := LoadWithEnv("")
	require.NoError(t, err)

	assert.Equal(t, "http://10.0.0.5:8000/api/", c.Backend.BaseURL)
	assert.Equal(t, "redis", c.Storage.Type)
	assert.Equal(t, "redis:6379", c.Storage.Redis.Addr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, "debug", c.Logging.Level)
}
