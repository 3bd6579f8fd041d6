package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/benfogiel/Sparkpad/internal/config"
	"github.com/benfogiel/Sparkpad/internal/domain"
	"github.com/benfogiel/Sparkpad/internal/store"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Store:               "sqlite",
		DBPath:              t.TempDir() + "/reemind.db",
		PushTransport:       "log",
		Schedule:            "*/15 * * * *",
		BatchTimeout:        time.Minute,
		DispatchConcurrency: 2,
		MaxRecent:           10,
		DefaultTZ:           "UTC",
		DefaultTimeLower:    "00:00",
		DefaultTimeUpper:    "00:00",
		HTTPAddr:            "127.0.0.1:0",
	}
}

func TestApp_RunOnceDeliversThroughSQLite(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	a, err := New(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	sqlite, ok := a.repo.(*store.SQLiteRepo)
	require.True(t, ok)
	require.NoError(t, sqlite.UpsertUser(ctx, &domain.User{ID: "u1", FCMToken: "tok"}))
	require.NoError(t, sqlite.AddReminder(ctx, "u1", domain.Reminder{ID: "r1", Quote: "q"}))

	a.RunOnce(ctx)

	u, err := sqlite.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.NotNil(t, u.LastNotificationDate)
	recent, err := sqlite.ListRecent(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestApp_HTTPEndpoints(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store = "memory"
	a, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	for path, want := range map[string]int{"/healthz": http.StatusOK, "/metrics": http.StatusOK} {
		rec := httptest.NewRecorder()
		a.httpSrv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, rec.Code, path)
	}
}
