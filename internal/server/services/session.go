// Package services contains server-side business logic: the session
// lifecycle (signup, login, refresh, logout) and user administration.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/dbx"
	"github.com/dmitrijs2005/storefront/internal/logging"
	"github.com/dmitrijs2005/storefront/internal/server/auth"
	"github.com/dmitrijs2005/storefront/internal/server/metrics"
	"github.com/dmitrijs2005/storefront/internal/server/models"
	"github.com/dmitrijs2005/storefront/internal/server/repositories/repomanager"
)

// MinPasswordLength is counted in bytes.
const MinPasswordLength = 8

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Session is what signup and login hand back to the caller.
type Session struct {
	TokenPair
	User models.UserSummary `json:"user"`
}

type SignupInput struct {
	Email    string
	Password string
	Name     string
	Role     string
}

// SessionService issues, rotates and revokes token pairs.
type SessionService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	codec       *auth.Codec
	hasher      *auth.PasswordHasher
	tokens      *RefreshTokenStore
	metrics     *metrics.SessionMetrics
	logger      logging.Logger
}

// NewSessionService builds the service. A nil mx disables outcome counting.
func NewSessionService(db *sql.DB, m repomanager.RepositoryManager, codec *auth.Codec,
	hasher *auth.PasswordHasher, tokens *RefreshTokenStore, mx *metrics.SessionMetrics,
	logger logging.Logger) *SessionService {
	if mx == nil {
		mx = metrics.Nop()
	}
	return &SessionService{
		db:          db,
		repomanager: m,
		codec:       codec,
		hasher:      hasher,
		tokens:      tokens,
		metrics:     mx,
		logger:      logger.With("module", "session"),
	}
}

// NormalizeEmail parses addr and returns the bare address lower-cased.
func NormalizeEmail(addr string) (string, error) {
	parsed, err := mail.ParseAddress(strings.TrimSpace(addr))
	if err != nil {
		return "", fmt.Errorf("%w: invalid email", common.ErrValidation)
	}
	return strings.ToLower(parsed.Address), nil
}

func (s *SessionService) validateSignup(in SignupInput) (SignupInput, error) {
	email, err := NormalizeEmail(in.Email)
	if err != nil {
		return in, err
	}
	in.Email = email

	if len(in.Password) < MinPasswordLength {
		return in, fmt.Errorf("%w: password must be at least %d characters", common.ErrValidation, MinPasswordLength)
	}

	switch in.Role {
	case "":
		in.Role = common.RoleCustomer
	case common.RoleCustomer:
	default:
		return in, fmt.Errorf("%w: role %q cannot be chosen at signup", common.ErrValidation, in.Role)
	}

	in.Name = strings.TrimSpace(in.Name)
	return in, nil
}

// Signup creates a customer account and its first session. The user row and
// the refresh record are written in one transaction.
func (s *SessionService) Signup(ctx context.Context, in SignupInput) (*Session, error) {
	session, err := s.signup(ctx, in)
	s.metrics.Signup(ctx, err)
	return session, err
}

func (s *SessionService) signup(ctx context.Context, in SignupInput) (*Session, error) {
	in, err := s.validateSignup(in)
	if err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	var session *Session
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		user, err := s.repomanager.Users(tx).Create(ctx, &models.User{
			Email:        in.Email,
			Name:         in.Name,
			PasswordHash: hash,
			Role:         in.Role,
		})
		if err != nil {
			return err
		}

		pair, err := s.issuePair(user)
		if err != nil {
			return err
		}
		if err := s.tokens.Save(ctx, tx, user.ID, pair.RefreshToken); err != nil {
			return err
		}

		session = &Session{TokenPair: *pair, User: user.Summary()}
		return nil
	})

	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, fmt.Errorf("%w: email is already registered", common.ErrorAlreadyExists)
		}
		if !errors.Is(err, common.ErrStore) && !errors.Is(err, common.ErrConfig) {
			err = fmt.Errorf("%w: %w", common.ErrStore, err)
		}
		s.logger.Error(ctx, "signup failed", "error", err)
		return nil, err
	}

	s.logger.Info(ctx, "user signed up", "user_id", session.User.ID)
	return session, nil
}

// Login returns common.ErrInvalidCredentials for an unknown email and for a
// wrong password alike. A successful login replaces any previous session.
func (s *SessionService) Login(ctx context.Context, email, password string) (*Session, error) {
	session, err := s.login(ctx, email, password)
	s.metrics.Login(ctx, err)
	return session, err
}

func (s *SessionService) login(ctx context.Context, email, password string) (*Session, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		s.hasher.VerifyDummy(password)
		return nil, common.ErrInvalidCredentials
	}

	user, err := s.repomanager.Users(s.db).GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.hasher.VerifyDummy(password)
			return nil, common.ErrInvalidCredentials
		}
		s.logger.Error(ctx, "user lookup failed", "error", err)
		return nil, fmt.Errorf("%w: %w", common.ErrStore, err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, common.ErrInvalidCredentials
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Save(ctx, s.db, user.ID, pair.RefreshToken); err != nil {
		s.logger.Error(ctx, "saving refresh token failed", "user_id", user.ID, "error", err)
		return nil, err
	}

	return &Session{TokenPair: *pair, User: user.Summary()}, nil
}

// Refresh exchanges a live refresh token for a new pair. A token that is
// validly signed but no longer the stored one is treated as stolen: the
// user's record is deleted and every outstanding refresh token dies with it.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	pair, err := s.refresh(ctx, refreshToken)
	s.metrics.Refresh(ctx, err)
	return pair, err
}

func (s *SessionService) refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.codec.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorUnauthorized, err)
	}

	userID := claims.Subject
	if userID == "" {
		return nil, fmt.Errorf("%w: token has no subject", common.ErrorUnauthorized)
	}

	stored, err := s.tokens.GetHash(ctx, s.db, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, s.revoke(ctx, userID, "no live refresh token")
		}
		s.logger.Error(ctx, "refresh token lookup failed", "user_id", userID, "error", err)
		return nil, err
	}

	if !s.tokens.Matches(refreshToken, stored) {
		return nil, s.revoke(ctx, userID, "refresh token reuse detected")
	}

	user, err := s.repomanager.Users(s.db).GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, s.revoke(ctx, userID, "user no longer exists")
		}
		s.logger.Error(ctx, "user lookup failed", "user_id", userID, "error", err)
		return nil, fmt.Errorf("%w: %w", common.ErrStore, err)
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return nil, err
	}

	if err := s.tokens.Rotate(ctx, s.db, userID, refreshToken, pair.RefreshToken); err != nil {
		if errors.Is(err, common.ErrVersionConflict) {
			s.logger.Warn(ctx, "concurrent refresh lost the rotation", "user_id", userID)
			return nil, fmt.Errorf("%w: refresh token was rotated concurrently", common.ErrVersionConflict)
		}
		s.logger.Error(ctx, "rotating refresh token failed", "user_id", userID, "error", err)
		return nil, err
	}

	return pair, nil
}

func (s *SessionService) revoke(ctx context.Context, userID, reason string) error {
	s.logger.Warn(ctx, "revoking refresh token", "user_id", userID, "reason", reason)
	if err := s.tokens.Delete(ctx, s.db, userID); err != nil {
		s.logger.Error(ctx, "deleting refresh token failed", "user_id", userID, "error", err)
	}
	return fmt.Errorf("%w: %w", common.ErrorUnauthorized, common.ErrTokenRevoked)
}

// Logout ends the user's session. Logging out twice is not an error.
func (s *SessionService) Logout(ctx context.Context, userID string) error {
	if userID == "" {
		return common.ErrUnauthenticated
	}
	if err := s.tokens.Delete(ctx, s.db, userID); err != nil {
		s.logger.Error(ctx, "logout failed", "user_id", userID, "error", err)
		return err
	}
	return nil
}

// Me returns the current profile of the authenticated user.
func (s *SessionService) Me(ctx context.Context, userID string) (*models.UserSummary, error) {
	user, err := s.repomanager.Users(s.db).GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("%w: %w", common.ErrStore, err)
	}
	summary := user.Summary()
	return &summary, nil
}

func (s *SessionService) issuePair(user *models.User) (*TokenPair, error) {
	access, err := s.codec.IssueAccessToken(auth.Subject{UserID: user.ID, Email: user.Email, Role: user.Role})
	if err != nil {
		return nil, err
	}
	refresh, err := s.codec.IssueRefreshToken(user.ID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
