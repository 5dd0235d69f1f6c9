package services

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRefreshTokenStore_RequiresKey(t *testing.T) {
	_, err := NewRefreshTokenStore(&fakeRepoManager{}, nil, "")
	require.ErrorIs(t, err, common.ErrConfig)
}

func TestNewRefreshTokenStore_RejectsSigningSecretAsKey(t *testing.T) {
	env := newTestEnv(t)

	_, err := NewRefreshTokenStore(&fakeRepoManager{}, env.codec, "refresh-secret")
	require.ErrorIs(t, err, common.ErrConfig)

	_, err = NewRefreshTokenStore(&fakeRepoManager{}, env.codec, "access-secret")
	require.ErrorIs(t, err, common.ErrConfig)
}

func TestRefreshTokenStore_HashIsKeyedAndStable(t *testing.T) {
	env := newTestEnv(t)
	other, err := NewRefreshTokenStore(&fakeRepoManager{}, env.codec, "another-key")
	require.NoError(t, err)

	h := env.tokens.Hash("token")
	assert.Len(t, h, 64)
	assert.Equal(t, h, env.tokens.Hash("token"))
	assert.NotEqual(t, h, env.tokens.Hash("token2"))
	assert.NotEqual(t, h, other.Hash("token"))

	assert.True(t, env.tokens.Matches("token", h))
	assert.False(t, env.tokens.Matches("token2", h))
	assert.False(t, env.tokens.Matches("token", ""))
}

func TestRefreshTokenStore_SaveStoresHashAndExpiry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tok, err := env.codec.IssueRefreshToken("u1")
	require.NoError(t, err)
	require.NoError(t, env.tokens.Save(ctx, env.db, "u1", tok))

	rec, err := env.refresh.Get(ctx, "u1")
	require.NoError(t, err)
	assert.NotEqual(t, tok, rec.TokenHash)
	assert.Equal(t, env.tokens.Hash(tok), rec.TokenHash)

	exp, err := env.codec.PeekExpiry(tok)
	require.NoError(t, err)
	assert.True(t, rec.ExpiresAt.Equal(exp))

	got, err := env.tokens.GetHash(ctx, env.db, "u1")
	require.NoError(t, err)
	assert.Equal(t, rec.TokenHash, got)
}

func TestRefreshTokenStore_SaveRejectsNonJWT(t *testing.T) {
	env := newTestEnv(t)

	err := env.tokens.Save(context.Background(), env.db, "u1", "opaque")
	require.ErrorIs(t, err, common.ErrInvalidToken)
	assert.False(t, env.refresh.has("u1"))
}

func TestRefreshTokenStore_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.tokens.GetHash(ctx, env.db, "nobody")
	require.ErrorIs(t, err, common.ErrorNotFound)
	assert.NotErrorIs(t, err, common.ErrStore)

	env.refresh.getErr = errors.New("boom")
	_, err = env.tokens.GetHash(ctx, env.db, "u1")
	require.ErrorIs(t, err, common.ErrStore)

	env.refresh.deleteErr = errors.New("boom")
	require.ErrorIs(t, env.tokens.Delete(ctx, env.db, "u1"), common.ErrStore)

	tok, err := env.codec.IssueRefreshToken("u1")
	require.NoError(t, err)
	env.refresh.upsertErr = errors.New("boom")
	require.ErrorIs(t, env.tokens.Save(ctx, env.db, "u1", tok), common.ErrStore)
}

func TestRefreshTokenStore_Rotate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t1, err := env.codec.IssueRefreshToken("u1")
	require.NoError(t, err)
	t2, err := env.codec.IssueRefreshToken("u1")
	require.NoError(t, err)
	t3, err := env.codec.IssueRefreshToken("u1")
	require.NoError(t, err)

	require.NoError(t, env.tokens.Save(ctx, env.db, "u1", t1))
	require.NoError(t, env.tokens.Rotate(ctx, env.db, "u1", t1, t2))

	// t1 is gone, so swapping from it must fail and leave t2 in place
	require.ErrorIs(t, env.tokens.Rotate(ctx, env.db, "u1", t1, t3), common.ErrVersionConflict)
	got, err := env.tokens.GetHash(ctx, env.db, "u1")
	require.NoError(t, err)
	assert.True(t, env.tokens.Matches(t2, got))

	require.ErrorIs(t, env.tokens.Rotate(ctx, env.db, "u1", t2, "opaque"), common.ErrInvalidToken)

	env.refresh.casErr = errors.New("boom")
	require.ErrorIs(t, env.tokens.Rotate(ctx, env.db, "u1", t2, t3), common.ErrStore)
}
