package session

import (
	"context"

	"github.com/dmitrijs2005/storefront/internal/client/models"
)

// Repository persists the single saved CLI session.
//
// Load returns (nil, nil) when nothing is saved. Clear is idempotent.
type Repository interface {
	Load(ctx context.Context) (*models.SavedSession, error)
	Save(ctx context.Context, s models.SavedSession) error
	Clear(ctx context.Context) error
}
