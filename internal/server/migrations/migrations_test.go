package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsEmbedded(t *testing.T) {
	names, err := fs.Glob(Migrations, "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)

	for _, n := range names {
		body, err := fs.ReadFile(Migrations, n)
		require.NoError(t, err)
		s := string(body)
		assert.True(t, strings.Contains(s, "-- +goose Up"), n)
		assert.True(t, strings.Contains(s, "-- +goose Down"), n)
	}
}

func TestInitCreatesTables(t *testing.T) {
	body, err := fs.ReadFile(Migrations, "00001_init.sql")
	require.NoError(t, err)
	s := string(body)
	assert.Contains(t, s, "CREATE TABLE IF NOT EXISTS users")
	assert.Contains(t, s, "CREATE TABLE IF NOT EXISTS refresh_tokens")
	assert.Contains(t, s, "ON DELETE CASCADE")
}
