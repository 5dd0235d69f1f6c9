package session

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/dmitrijs2005/storefront/internal/client/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE saved_session (
  id            INTEGER PRIMARY KEY CHECK (id = 1),
  email         TEXT NOT NULL,
  refresh_token TEXT NOT NULL,
  updated_at    TIMESTAMP NOT NULL
);`)
	require.NoError(t, err)
	return db
}

func TestLoad_Empty_ReturnsNilNil(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))

	s, err := r.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestSaveAndLoad(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, r.Save(ctx, models.SavedSession{Email: "a@x.com", RefreshToken: "rt1", UpdatedAt: now}))

	s, err := r.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "a@x.com", s.Email)
	assert.Equal(t, "rt1", s.RefreshToken)
	assert.True(t, now.Equal(s.UpdatedAt))
}

func TestSave_OverwritesSingleRow(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Save(ctx, models.SavedSession{Email: "a@x.com", RefreshToken: "rt1", UpdatedAt: time.Now()}))
	require.NoError(t, r.Save(ctx, models.SavedSession{Email: "b@x.com", RefreshToken: "rt2", UpdatedAt: time.Now()}))

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM saved_session`).Scan(&n))
	assert.Equal(t, 1, n)

	s, err := r.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b@x.com", s.Email)
	assert.Equal(t, "rt2", s.RefreshToken)
}

func TestClear_IsIdempotent(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Save(ctx, models.SavedSession{Email: "a@x.com", RefreshToken: "rt1", UpdatedAt: time.Now()}))
	require.NoError(t, r.Clear(ctx))
	require.NoError(t, r.Clear(ctx))

	s, err := r.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestErrors_WhenTableMissing(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	_, err = r.Load(ctx)
	assert.ErrorContains(t, err, "failed to load session")
	assert.ErrorContains(t, r.Save(ctx, models.SavedSession{}), "failed to save session")
	assert.ErrorContains(t, r.Clear(ctx), "failed to clear session")
}
