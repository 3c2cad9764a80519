package server

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gohgeo-lang/back-auto-review-insight/internal/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Tracing.Enabled = false
	return cfg
}

func TestBuildInMemory(t *testing.T) {
	app, err := Build(context.Background(), testConfig(t), zap.NewNop())
	require.NoError(t, err)
	require.Nil(t, app.pgStore)
	require.Nil(t, app.publisher)
	require.Nil(t, app.redisClient)

	srv := httptest.NewServer(app.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, app.Close(context.Background()))
}

func TestBuildWithLocalSnapshotsAndLease(t *testing.T) {
	redisSrv := miniredis.RunT(t)

	cfg := testConfig(t)
	cfg.Snapshots.Backend = "local"
	cfg.Snapshots.LocalDir = filepath.Join(t.TempDir(), "snapshots")
	cfg.Redis.Addr = redisSrv.Addr()
	cfg.Tracing.Enabled = true
	cfg.Tracing.SampleRatio = 1

	app, err := Build(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, app.redisClient)
	require.NotNil(t, app.tracerShutdown)
	require.NoError(t, app.redisClient.Ping(context.Background()).Err())

	summary := app.scheduler.Tick(context.Background())
	require.NoError(t, summary.Err)
	require.Zero(t, summary.Stores)
	require.False(t, summary.LeaseMissed)

	require.NoError(t, app.Close(context.Background()))
}

func TestBuildFailsOnBadDSN(t *testing.T) {
	cfg := testConfig(t)
	cfg.DB.DSN = "postgres://%zz"
	cfg.DB.Migrate = false

	_, err := Build(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Port = freePort(t)

	app, err := Build(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()
	cancel()
	require.NoError(t, <-done)
}

func freePort(t *testing.T) int {
	t.Helper()
	l := httptest.NewUnstartedServer(http.NotFoundHandler()).Listener
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}
