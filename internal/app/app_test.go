package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shard-federator/internal/common/errors"
	"shard-federator/internal/config"
	"shard-federator/internal/testutil"
)

func testTopology(t *testing.T) *config.Topology {
	t.Helper()
	dir := t.TempDir()

	doc := fmt.Sprintf(`
default: s1
shards:
  - identity: s1
    driver: sqlite3
    dsn: %s
  - identity: s2
    driver: sqlite3
    dsn: %s
    pool_size: 2
rules:
  - statement: user.insert
    condition: region == "us"
    shards: [s2]
  - statement: user.all
    shards: [s1, s2]
statements:
  user.insert: INSERT INTO users (id, name, region) VALUES (:id, :name, :region)
  user.all: SELECT id, name, region FROM users ORDER BY id
`, filepath.Join(dir, "s1.db"), filepath.Join(dir, "s2.db"))

	topo, err := config.ParseTopology([]byte(doc))
	require.NoError(t, err)
	return topo
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Load()
	cfg.DefaultShard = ""
	cfg.AuditEnabled = false
	cfg.AuditRedisAddress = ""
	cfg.BreakerEnabled = true
	cfg.BreakerMaxFailures = "5"
	cfg.BreakerTimeout = "30s"
	cfg.RateLimitEnabled = false
	cfg.RouteCacheTTL = "0s"
	cfg.ShutdownGrace = "5s"
	return cfg
}

func newApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := New(context.Background(), cfg, testTopology(t))
	require.NoError(t, err)
	t.Cleanup(func() {
		a.Shutdown(context.Background())
		a.Cleanup()
	})

	for _, p := range a.Providers {
		_, err := p.DB().Exec(testutil.UserSchema)
		require.NoError(t, err)
	}
	return a
}

func TestNew_RoutesThroughTopology(t *testing.T) {
	a := newApp(t, testConfig(t))
	ctx := context.Background()

	assert.True(t, a.Template.RoutingEnabled())
	assert.Equal(t, 2, a.Registry.Len())

	_, err := a.Template.Insert(ctx, "user.insert", map[string]interface{}{"id": 1, "name": "ada", "region": "eu"})
	require.NoError(t, err)
	_, err = a.Template.Insert(ctx, "user.insert", map[string]interface{}{"id": 2, "name": "bob", "region": "us"})
	require.NoError(t, err)

	rows, err := a.Template.SelectList(ctx, "user.all", nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ada", rows[0]["name"])
	assert.Equal(t, "bob", rows[1]["name"])

	var n int
	require.NoError(t, a.Providers["s1"].DB().QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n))
	assert.Equal(t, 1, n, "unmatched insert goes to the default shard")

	_, ok := a.Breakers.Get("s1")
	assert.True(t, ok)
}

func TestNew_DefaultShardOverride(t *testing.T) {
	cfg := testConfig(t)
	cfg.DefaultShard = "s2"
	a := newApp(t, cfg)

	_, err := a.Template.Insert(context.Background(), "user.insert", map[string]interface{}{"id": 3, "name": "cyd", "region": "ap"})
	require.NoError(t, err)

	var n int
	require.NoError(t, a.Providers["s2"].DB().QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestNew_UnknownDefaultShard(t *testing.T) {
	cfg := testConfig(t)
	cfg.DefaultShard = "s9"

	_, err := New(context.Background(), cfg, testTopology(t))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
}

func TestNew_GuardsAndCache(t *testing.T) {
	cfg := testConfig(t)
	cfg.RateLimitEnabled = true
	cfg.RateLimitRPS = "1000"
	cfg.RateLimitBurst = "100"
	cfg.RouteCacheTTL = "1m"
	a := newApp(t, cfg)

	require.NotNil(t, a.Limiter)
	_, err := a.Template.SelectList(context.Background(), "user.all", nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"s1", "s2"}, a.Limiter.Keys())
}

func TestNew_RedisAudit(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cfg := testConfig(t)
	cfg.AuditRedisAddress = mr.Addr()
	cfg.AuditRedisKey = "test:audit"
	a := newApp(t, cfg)
	require.NotNil(t, a.RedisClient)

	_, err = a.Template.SelectList(context.Background(), "user.all", nil)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		list, err := mr.List("test:audit")
		return err == nil && len(list) == 1
	}, time.Second, 5*time.Millisecond)

	router := mux.NewRouter()
	a.SetupRoutes(router)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"statement":"user.all"`)
}

func TestNew_RedisUnavailableFallsBackToLogAudit(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	cfg := testConfig(t)
	cfg.AuditRedisAddress = addr
	a := newApp(t, cfg)

	assert.Nil(t, a.RedisClient)
	assert.NotNil(t, a.auditor)
}

func TestSetupRoutes(t *testing.T) {
	a := newApp(t, testConfig(t))
	router := mux.NewRouter()
	a.SetupRoutes(router)

	for _, path := range []string{"/health", "/shards", "/shards/s1"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestShutdown_DisposesPools(t *testing.T) {
	a := newApp(t, testConfig(t))
	_, err := a.Template.SelectList(context.Background(), "user.all", nil)
	require.NoError(t, err)

	require.NoError(t, a.Shutdown(context.Background()))
	assert.True(t, a.Template.Manager().IsDisposed())

	_, err = a.Template.SelectList(context.Background(), "user.all", nil)
	assert.True(t, errors.IsType(err, errors.ErrTypeDisposed))
}
