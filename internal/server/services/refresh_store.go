package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/cryptox"
	"github.com/dmitrijs2005/storefront/internal/dbx"
	"github.com/dmitrijs2005/storefront/internal/server/auth"
	"github.com/dmitrijs2005/storefront/internal/server/models"
	"github.com/dmitrijs2005/storefront/internal/server/repositories/repomanager"
)

// RefreshTokenStore keeps at most one refresh token per user, persisted only
// as a keyed HMAC-SHA256 hash. The raw token never reaches the repository.
type RefreshTokenStore struct {
	repomanager repomanager.RepositoryManager
	codec       *auth.Codec
	hashKey     []byte
}

func NewRefreshTokenStore(m repomanager.RepositoryManager, codec *auth.Codec, hashKey string) (*RefreshTokenStore, error) {
	if hashKey == "" {
		return nil, fmt.Errorf("%w: refresh token hash key is not set", common.ErrConfig)
	}
	if codec != nil && codec.UsesSecret([]byte(hashKey)) {
		return nil, fmt.Errorf("%w: refresh token hash key must differ from the signing secrets", common.ErrConfig)
	}
	return &RefreshTokenStore{repomanager: m, codec: codec, hashKey: []byte(hashKey)}, nil
}

// Hash returns the hex-encoded HMAC-SHA256 of token.
func (s *RefreshTokenStore) Hash(token string) string {
	return cryptox.HMACHex(s.hashKey, token)
}

// Matches compares in constant time.
func (s *RefreshTokenStore) Matches(presented, storedHash string) bool {
	return cryptox.EqualHex(s.Hash(presented), storedHash)
}

func (s *RefreshTokenStore) record(userID, token string) (*models.RefreshToken, error) {
	expiresAt, err := s.codec.PeekExpiry(token)
	if err != nil {
		return nil, err
	}
	return &models.RefreshToken{UserID: userID, TokenHash: s.Hash(token), ExpiresAt: expiresAt}, nil
}

// Save stores token as the user's only live refresh token, replacing any
// previous one.
func (s *RefreshTokenStore) Save(ctx context.Context, db dbx.DBTX, userID, token string) error {
	rec, err := s.record(userID, token)
	if err != nil {
		return err
	}
	if err := s.repomanager.RefreshTokens(db).Upsert(ctx, rec); err != nil {
		return fmt.Errorf("%w: %w", common.ErrStore, err)
	}
	return nil
}

// GetHash returns common.ErrorNotFound if the user has no live record.
func (s *RefreshTokenStore) GetHash(ctx context.Context, db dbx.DBTX, userID string) (string, error) {
	rec, err := s.repomanager.RefreshTokens(db).Get(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("%w: %w", common.ErrStore, err)
	}
	return rec.TokenHash, nil
}

func (s *RefreshTokenStore) Delete(ctx context.Context, db dbx.DBTX, userID string) error {
	if err := s.repomanager.RefreshTokens(db).Delete(ctx, userID); err != nil {
		return fmt.Errorf("%w: %w", common.ErrStore, err)
	}
	return nil
}

// Rotate replaces presented with next only if presented is still the stored
// token. Losing a race returns common.ErrVersionConflict.
func (s *RefreshTokenStore) Rotate(ctx context.Context, db dbx.DBTX, userID, presented, next string) error {
	rec, err := s.record(userID, next)
	if err != nil {
		return err
	}

	err = s.repomanager.RefreshTokens(db).CompareAndSwap(ctx, s.Hash(presented), rec)
	if err != nil {
		if errors.Is(err, common.ErrVersionConflict) {
			return common.ErrVersionConflict
		}
		return fmt.Errorf("%w: %w", common.ErrStore, err)
	}
	return nil
}
