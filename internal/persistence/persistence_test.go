package persistence

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-pipeline/internal/config"
)

func TestRedisKey(t *testing.T) {
	assert.Equal(t, "tp:tickets:t1", (&Redis{Prefix: "tp"}).Key("tickets", "t1"))
	assert.Equal(t, "tickets:t1", (&Redis{}).Key("tickets", "t1"))
}

func TestNewRedisPings(t *testing.T) {
	mr := miniredis.RunT(t)
	r, err := NewRedis(context.Background(), config.RedisConfig{Addr: mr.Addr(), KeyPrefix: "tp"}, zap.NewNop())
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, "tp", r.Prefix)

	mr.Close()
	assert.Error(t, r.Ping(context.Background()))
}

func TestLoadMigrationsOrdersSQLFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "002_b.sql"), []byte("SELECT 2;"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "001_a.sql"), []byte("SELECT 1;"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("notes"), 0o600))

	migrations, err := LoadMigrations(dir)
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, "001_a.sql", migrations[0].Name)
	assert.Equal(t, "SELECT 2;", migrations[1].SQL)
	assert.Len(t, migrations[0].Checksum, 64)
}

func TestPendingSkipsAppliedAndDetectsEdits(t *testing.T) {
	migrations := []Migration{
		{Name: "001_a.sql", Checksum: "aaa"},
		{Name: "002_b.sql", Checksum: "bbb"},
	}

	pending, err := Pending(migrations, map[string]string{"001_a.sql": "aaa"})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "002_b.sql", pending[0].Name)

	_, err = Pending(migrations, map[string]string{"001_a.sql": "changed"})
	assert.Error(t, err)
}

func TestShippedMigrationsLoad(t *testing.T) {
	migrations, err := LoadMigrations(filepath.Join("..", "..", "migrations"))
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	assert.Equal(t, "001_ticket_items.sql", migrations[0].Name)
}
