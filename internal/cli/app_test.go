package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"teamflow/backend/internal/logging"
	"teamflow/backend/internal/monitoring"
	"teamflow/backend/internal/seed"
	"teamflow/backend/internal/worker"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sqliteEnv(t *testing.T, mode string) {
	t.Helper()
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_SQLITE_PATH", filepath.Join(t.TempDir(), "teamflow.db"))
	t.Setenv("FANOUT_MODE", mode)
	t.Setenv("BCRYPT_COST", "4")
	t.Setenv("LOG_LEVEL", "ERROR")
	t.Setenv("SMTP_ENABLED", "false")
	t.Setenv("REDIS_ENABLED", "false")
}

func newTestApp(t *testing.T) *app {
	t.Helper()
	cfg, _, err := loadConfig()
	require.NoError(t, err)

	a, err := newApp(context.Background(), cfg, logging.Nop())
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func TestNewApp_InlineSeedAndProbes(t *testing.T) {
	sqliteEnv(t, "inline")
	a := newTestApp(t)
	assert.Nil(t, a.worker)
	assert.Nil(t, a.async)

	fixtures, err := seed.Demo()
	require.NoError(t, err)
	res, err := seed.NewSeeder(a.seedServices(), logging.Nop()).Apply(context.Background(), fixtures)
	require.NoError(t, err)
	assert.Equal(t, 11, res.Tasks)
	assert.Equal(t, 2, res.Links)

	warmed, err := a.boards.WarmRecent(context.Background(), 10, 2)
	require.NoError(t, err)
	// Three personal projects from registration plus the two seeded ones.
	assert.Equal(t, 5, warmed.Warmed)

	monitoring.Reset()
	t.Cleanup(monitoring.Reset)
	a.registerProbes()

	checks := monitoring.RunHealthChecks(context.Background())
	require.Contains(t, checks, "database")
	assert.Equal(t, "healthy", checks["database"].Status)
	assert.NotContains(t, checks, "redis")
}

func TestNewApp_AsyncSinkDrainsOnClose(t *testing.T) {
	sqliteEnv(t, "async")
	cfg, _, err := loadConfig()
	require.NoError(t, err)

	a, err := newApp(context.Background(), cfg, logging.Nop())
	require.NoError(t, err)
	require.NotNil(t, a.async)

	fixtures, err := seed.Demo()
	require.NoError(t, err)
	_, err = seed.NewSeeder(a.seedServices(), logging.Nop()).Apply(context.Background(), fixtures)
	require.NoError(t, err)

	assert.NotPanics(t, a.Close)
}

func TestNewApp_QueueModeEnqueuesFanout(t *testing.T) {
	mr := miniredis.RunT(t)
	sqliteEnv(t, "queue")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_HOST", mr.Host())
	t.Setenv("REDIS_PORT", mr.Port())

	a := newTestApp(t)
	require.NotNil(t, a.worker)
	require.NotNil(t, a.jobs)

	fixtures, err := seed.Demo()
	require.NoError(t, err)
	_, err = seed.NewSeeder(a.seedServices(), logging.Nop()).Apply(context.Background(), fixtures)
	require.NoError(t, err)

	n, err := a.jobs.GetQueueSize(context.Background(), worker.QueueHighPriority)
	require.NoError(t, err)
	assert.Positive(t, n)

	monitoring.Reset()
	t.Cleanup(monitoring.Reset)
	a.registerProbes()
	checks := monitoring.RunHealthChecks(context.Background())
	assert.Equal(t, "healthy", checks["redis"].Status)
}

func TestLoadFixtures_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixtures.yaml")
	require.NoError(t, os.WriteFile(path, []byte("users:\n  - name: Solo\n    email: solo@teamflow.dev\n    password: password123\n"), 0o600))

	seedFile = path
	t.Cleanup(func() { seedFile = "" })

	f, err := loadFixtures()
	require.NoError(t, err)
	require.Len(t, f.Users, 1)
	assert.Equal(t, "Solo", f.Users[0].Name)
}
