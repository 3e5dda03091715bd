package clickhouse

import (
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/stretchr/testify/assert"
)

func TestBuildOptions(t *testing.T) {
	cfg := defaultClientConfig()
	for _, opt := range []ClientOption{
		WithHost("ch.internal"),
		WithDatabase("finscreen"),
		WithCredentials("svc", "p@ss/word"),
		WithTimeouts(2*time.Second, 0),
		WithMaxExecutionTime(30 * time.Second),
		WithAsyncInsert(true, true),
	} {
		opt(&cfg)
	}

	opts := buildOptions(cfg)

	assert.Equal(t, []string{"ch.internal:9000"}, opts.Addr)
	assert.Equal(t, clickhouse.Auth{Database: "finscreen", Username: "svc", Password: "p@ss/word"}, opts.Auth)
	assert.Equal(t, clickhouse.Native, opts.Protocol)
	assert.Equal(t, 2*time.Second, opts.DialTimeout)
	assert.Equal(t, 10*time.Second, opts.ReadTimeout)
	assert.Equal(t, clickhouse.CompressionLZ4, opts.Compression.Method)
	assert.Equal(t, clickhouse.Settings{
		"max_execution_time":    30,
		"async_insert":          1,
		"wait_for_async_insert": 1,
	}, opts.Settings)
}

func TestBuildOptions_HTTP(t *testing.T) {
	cfg := defaultClientConfig()
	WithHost("localhost")(&cfg)
	WithPort(8123)(&cfg)
	WithHTTP(true)(&cfg)

	opts := buildOptions(cfg)

	assert.Equal(t, []string{"localhost:8123"}, opts.Addr)
	assert.Equal(t, clickhouse.HTTP, opts.Protocol)
	assert.Equal(t, "default", opts.Auth.Database)
	assert.Empty(t, opts.Settings)
}

func TestNewClient_RequiresHost(t *testing.T) {
	_, err := NewClient()
	assert.Error(t, err)
}
