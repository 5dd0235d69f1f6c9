// Package refreshtokens stores the single live refresh token record per user.
// Only keyed hashes of tokens are persisted.
package refreshtokens

import (
	"context"

	"github.com/dmitrijs2005/storefront/internal/server/models"
)

type Repository interface {
	// Upsert replaces any existing record for rec.UserID.
	Upsert(ctx context.Context, rec *models.RefreshToken) error
	// Get returns common.ErrorNotFound when the user has no record.
	Get(ctx context.Context, userID string) (*models.RefreshToken, error)
	// Delete is a no-op when the user has no record.
	Delete(ctx context.Context, userID string) error
	// CompareAndSwap replaces the record only if its current hash equals oldHash,
	// otherwise it returns common.ErrVersionConflict.
	CompareAndSwap(ctx context.Context, oldHash string, rec *models.RefreshToken) error
}
