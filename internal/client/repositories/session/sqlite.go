package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/storefront/internal/client/models"
	"github.com/dmitrijs2005/storefront/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Load(ctx context.Context) (*models.SavedSession, error) {
	var s models.SavedSession
	err := r.db.QueryRowContext(ctx,
		`SELECT email, refresh_token, updated_at FROM saved_session WHERE id = 1`,
	).Scan(&s.Email, &s.RefreshToken, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return &s, nil
}

func (r *SQLiteRepository) Save(ctx context.Context, s models.SavedSession) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO saved_session (id, email, refresh_token, updated_at) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			refresh_token = excluded.refresh_token,
			updated_at = excluded.updated_at
	`, s.Email, s.RefreshToken, s.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM saved_session`); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
