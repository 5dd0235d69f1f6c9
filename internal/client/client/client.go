package client

import (
	"context"

	"github.com/dmitrijs2005/storefront/internal/client/models"
)

type Client interface {
	Close() error
	Signup(ctx context.Context, email, password, name string) (*models.Session, error)
	Login(ctx context.Context, email, password string) (*models.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*models.User, error)
	Ping(ctx context.Context) error
	Tokens() models.TokenPair
}
