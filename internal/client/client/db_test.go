package client

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/storefront/internal/client/models"
	"github.com/dmitrijs2005/storefront/internal/client/repositories/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDatabase_AppliesMigrations(t *testing.T) {
	ctx := context.Background()
	db, err := InitDatabase(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := session.NewSQLiteRepository(db)
	require.NoError(t, repo.Save(ctx, models.SavedSession{Email: "a@x.com", RefreshToken: "rt", UpdatedAt: time.Now()}))

	s, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "rt", s.RefreshToken)
}

func TestInitDatabase_IsReentrant(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.db")

	db, err := InitDatabase(ctx, path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = InitDatabase(ctx, path)
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestInitDatabase_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "session.db")

	db, err := InitDatabase(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, db.Close())
	assert.FileExists(t, path)
}

func TestInitDatabase_BadPath(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	_, err := InitDatabase(context.Background(), filepath.Join(blocker, "x.db"))
	require.Error(t, err)
}
