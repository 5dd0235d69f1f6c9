package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/logging"
	"github.com/dmitrijs2005/storefront/internal/server/models"
	"github.com/dmitrijs2005/storefront/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// AdminService manages accounts on behalf of an admin. Callers are expected
// to have passed the authorization gate already.
type AdminService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	tokens      *RefreshTokenStore
	logger      logging.Logger
}

func NewAdminService(db *sql.DB, m repomanager.RepositoryManager, tokens *RefreshTokenStore, logger logging.Logger) *AdminService {
	return &AdminService{
		db:          db,
		repomanager: m,
		tokens:      tokens,
		logger:      logger.With("module", "admin"),
	}
}

func (s *AdminService) ListUsers(ctx context.Context) ([]models.UserSummary, error) {
	list, err := s.repomanager.Users(s.db).List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrStore, err)
	}

	result := make([]models.UserSummary, 0, len(list))
	for _, u := range list {
		result = append(result, u.Summary())
	}
	return result, nil
}

// checkUserID rejects ids that cannot name a stored user before they reach
// the database.
func checkUserID(userID string) error {
	if _, err := uuid.Parse(userID); err != nil {
		return fmt.Errorf("%w: invalid user id %q", common.ErrValidation, userID)
	}
	return nil
}

// SetRole takes effect on the next authorization check; tokens already
// issued keep their old role claim until they expire.
func (s *AdminService) SetRole(ctx context.Context, userID, role string) error {
	if err := checkUserID(userID); err != nil {
		return err
	}
	if role != common.RoleCustomer && role != common.RoleAdmin {
		return fmt.Errorf("%w: unknown role %q", common.ErrValidation, role)
	}

	if err := s.repomanager.Users(s.db).UpdateRole(ctx, userID, role); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("%w: %w", common.ErrStore, err)
	}

	s.logger.Info(ctx, "role changed", "user_id", userID, "role", role)
	return nil
}

// DeleteUser removes the account and its refresh record.
func (s *AdminService) DeleteUser(ctx context.Context, userID string) error {
	if err := checkUserID(userID); err != nil {
		return err
	}
	if err := s.repomanager.Users(s.db).Delete(ctx, userID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("%w: %w", common.ErrStore, err)
	}

	// the SQL record cascades; a Redis record does not
	if err := s.tokens.Delete(ctx, s.db, userID); err != nil {
		s.logger.Error(ctx, "deleting refresh token of removed user failed", "user_id", userID, "error", err)
	}

	s.logger.Info(ctx, "user deleted", "user_id", userID)
	return nil
}
