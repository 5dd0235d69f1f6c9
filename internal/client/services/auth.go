// Package services contains application services for the storefront CLI.
// This file defines the authentication service: signup, login, resuming a
// saved session, refresh, logout and the liveness probe.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/storefront/internal/client/client"
	"github.com/dmitrijs2005/storefront/internal/client/models"
	"github.com/dmitrijs2005/storefront/internal/client/repositories/session"
	"github.com/dmitrijs2005/storefront/internal/common"
)

// AuthService defines authentication operations for the CLI.
//
// Every operation that yields a new refresh token persists it, so a later
// run can Resume without the password. All methods honor context
// cancellation.
type AuthService interface {
	Signup(ctx context.Context, email string, password []byte, name string) (*models.User, error)
	Login(ctx context.Context, email string, password []byte) (*models.User, error)
	Resume(ctx context.Context) (*models.User, error)
	Refresh(ctx context.Context) error
	Me(ctx context.Context) (*models.User, error)
	Logout(ctx context.Context) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

type authService struct {
	client client.Client
	repo   session.Repository

	mu        sync.Mutex
	email     string
	lastSaved string
}

// NewAuthService constructs an AuthService bound to the given API client and
// the CLI's local database.
func NewAuthService(c client.Client, db *sql.DB) AuthService {
	return &authService{client: c, repo: session.NewSQLiteRepository(db)}
}

func (a *authService) remember(ctx context.Context, email string) error {
	tokens := a.client.Tokens()

	a.mu.Lock()
	defer a.mu.Unlock()

	if email != "" {
		a.email = email
	}
	if tokens.RefreshToken == "" || tokens.RefreshToken == a.lastSaved {
		return nil
	}
	err := a.repo.Save(ctx, models.SavedSession{
		Email:        a.email,
		RefreshToken: tokens.RefreshToken,
		UpdatedAt:    time.Now(),
	})
	if err != nil {
		return fmt.Errorf("session saving error: %w", err)
	}
	a.lastSaved = tokens.RefreshToken
	return nil
}

func (a *authService) forget(ctx context.Context) error {
	a.mu.Lock()
	a.email, a.lastSaved = "", ""
	a.mu.Unlock()
	return a.repo.Clear(ctx)
}

// Signup creates the account and starts a session for it.
func (a *authService) Signup(ctx context.Context, email string, password []byte, name string) (*models.User, error) {
	defer common.WipeByteArray(password)

	s, err := a.client.Signup(ctx, email, string(password), name)
	if err != nil {
		return nil, fmt.Errorf("signup error: %w", err)
	}
	if err := a.remember(ctx, s.User.Email); err != nil {
		return nil, err
	}
	return &s.User, nil
}

func (a *authService) Login(ctx context.Context, email string, password []byte) (*models.User, error) {
	defer common.WipeByteArray(password)

	s, err := a.client.Login(ctx, email, string(password))
	if err != nil {
		return nil, fmt.Errorf("login error: %w", err)
	}
	if err := a.remember(ctx, s.User.Email); err != nil {
		return nil, err
	}
	return &s.User, nil
}

// Resume exchanges the saved refresh token for a fresh pair. A rejected token
// is dropped from disk so the user is asked to log in again.
func (a *authService) Resume(ctx context.Context) (*models.User, error) {
	saved, err := a.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	if saved == nil {
		return nil, client.ErrNotLoggedIn
	}

	if _, err := a.client.Refresh(ctx, saved.RefreshToken); err != nil {
		if errors.Is(err, client.ErrUnauthorized) {
			_ = a.forget(ctx)
		}
		return nil, fmt.Errorf("resume error: %w", err)
	}
	if err := a.remember(ctx, saved.Email); err != nil {
		return nil, err
	}
	return a.Me(ctx)
}

// Refresh rotates the current pair.
func (a *authService) Refresh(ctx context.Context) error {
	tokens := a.client.Tokens()
	if tokens.RefreshToken == "" {
		return client.ErrNotLoggedIn
	}
	if _, err := a.client.Refresh(ctx, tokens.RefreshToken); err != nil {
		return fmt.Errorf("refresh error: %w", err)
	}
	return a.remember(ctx, "")
}

// Me returns the current account. The transport may have refreshed the pair
// on the way, even when the call itself then failed, so the latest refresh
// token is persisted either way.
func (a *authService) Me(ctx context.Context) (*models.User, error) {
	u, err := a.client.Me(ctx)

	email := ""
	if err == nil {
		email = u.Email
	}
	if serr := a.remember(ctx, email); serr != nil {
		return nil, errors.Join(err, serr)
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Logout ends the session on the server and always drops the local copy.
func (a *authService) Logout(ctx context.Context) error {
	err := a.client.Logout(ctx)
	if cerr := a.forget(ctx); cerr != nil {
		return errors.Join(err, cerr)
	}
	return err
}

// Ping proxies a liveness check to the underlying client.
func (a *authService) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}

// Close releases resources held by the underlying client.
func (a *authService) Close(ctx context.Context) error {
	return a.client.Close()
}
