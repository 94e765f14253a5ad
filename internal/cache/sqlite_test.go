package cache

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestSQLite opens a file-backed cache in a temp dir.
func createTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.db")
	s, err := OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestSQLite(t *testing.T) {
	s, _ := createTestSQLite(t)
	exerciseCache(t, s)

	n, err := s.Len(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLiteInMemory(t *testing.T) {
	s, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer s.Close()
	exerciseCache(t, s)
}

func TestSQLitePragmas(t *testing.T) {
	s, _ := createTestSQLite(t)
	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("synchronous", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestSQLitePersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	s, path := createTestSQLite(t)
	require.NoError(t, s.Set(ctx, "k", sampleUnit("k")))
	require.NoError(t, s.Close())

	reopened, err := OpenSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, ok, err := reopened.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "User", got.Entity)
}

func TestSQLiteCountsHits(t *testing.T) {
	ctx := context.Background()
	s, _ := createTestSQLite(t)
	require.NoError(t, s.Set(ctx, "k", sampleUnit("k")))

	for range 3 {
		_, ok, err := s.Get(ctx, "k")
		require.NoError(t, err)
		require.True(t, ok)
	}
	hits, err := s.Hits(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(3), hits)

	hits, err = s.Hits(ctx, "absent")
	require.NoError(t, err)
	assert.Zero(t, hits)
}

func TestSQLiteDetectsCorruption(t *testing.T) {
	ctx := context.Background()
	s, _ := createTestSQLite(t)
	require.NoError(t, s.Set(ctx, "k", sampleUnit("k")))

	_, err := s.db.Exec(`UPDATE compiled_units SET fingerprint = 'bogus' WHERE source_key = 'k'`)
	require.NoError(t, err)
	_, ok, err := s.Get(ctx, "k")
	assert.False(t, ok)
	assert.ErrorContains(t, err, "fingerprint mismatch")

	_, err = s.db.Exec(`UPDATE compiled_units SET unit = '{' WHERE source_key = 'k'`)
	require.NoError(t, err)
	_, _, err = s.Get(ctx, "k")
	assert.ErrorContains(t, err, "decode compiled unit")
}

func TestSQLiteMigratesV0(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE compiled_units (
		source_key TEXT PRIMARY KEY,
		entity TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		unit TEXT NOT NULL
	)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()
	assert.NoError(t, s.verifyPragma("user_version", "1"))
	exerciseCache(t, s)
}
