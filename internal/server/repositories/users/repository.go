// Package users declares the server-side user store contract and its
// PostgreSQL implementation.
package users

import (
	"context"

	"github.com/dmitrijs2005/storefront/internal/server/models"
)

// Repository is the user store. Lookups return common.ErrorNotFound when the
// user is absent; Create returns common.ErrorAlreadyExists on a duplicate email.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	UpdateRole(ctx context.Context, id string, role string) error
	Delete(ctx context.Context, id string) error
}
