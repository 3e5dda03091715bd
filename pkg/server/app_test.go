package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"FinScreen/pkg/config"
	xhttp "FinScreen/pkg/http"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noRoutes struct{}

func (noRoutes) RegisterRoutes(*echo.Echo) {}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Metrics.Enabled = false
	cfg.Backend.Timeout = time.Second
	return cfg
}

func TestAppStartRunsHooksInOrder(t *testing.T) {
	app := New(testConfig(t), nil, xhttp.Handler(noRoutes{}))

	var ran []string
	app.OnStart("session", func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		ran = append(ran, "session")
		return errors.New("backend down")
	})
	app.OnStart("config", func(context.Context) error {
		ran = append(ran, "config")
		return nil
	})

	require.NoError(t, app.Start(context.Background()))
	assert.Equal(t, []string{"session", "config"}, ran)
	require.NoError(t, app.Shutdown(context.Background()))
}

func TestAppShutdownClosesEverything(t *testing.T) {
	app := New(testConfig(t), nil, xhttp.Handler(noRoutes{}))

	var closed []string
	boom := errors.New("close failed")
	app.OnClose("events", closerFunc(func() error { closed = append(closed, "events"); return nil }))
	app.OnClose("kafka", closerFunc(func() error { closed = append(closed, "kafka"); return boom }))
	app.OnClose("storage", closerFunc(func() error { closed = append(closed, "storage"); return nil }))

	require.NoError(t, app.Start(context.Background()))
	err := app.Shutdown(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"events", "kafka", "storage"}, closed)

	// closers run once
	require.NoError(t, app.Shutdown(context.Background()))
	assert.Len(t, closed, 3)
}
