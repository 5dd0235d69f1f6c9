package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/dbx"
	"github.com/dmitrijs2005/storefront/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, rec *models.RefreshToken) error {

	query :=
		`INSERT INTO refresh_tokens (user_id, token_hash, expires_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE
		 SET token_hash = EXCLUDED.token_hash, expires_at = EXCLUDED.expires_at, updated_at = now()
		 `

	_, err := r.db.ExecContext(ctx, query, rec.UserID, rec.TokenHash, rec.ExpiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, userID string) (*models.RefreshToken, error) {

	query :=
		`SELECT user_id, token_hash, expires_at FROM refresh_tokens
		 WHERE user_id = $1
		 `

	rec := &models.RefreshToken{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&rec.UserID, &rec.TokenHash, &rec.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return rec, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, userID string) error {

	query :=
		`DELETE FROM refresh_tokens
		 WHERE user_id = $1
		 `

	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) CompareAndSwap(ctx context.Context, oldHash string, rec *models.RefreshToken) error {

	query :=
		`UPDATE refresh_tokens
		 SET token_hash = $3, expires_at = $4, updated_at = now()
		 WHERE user_id = $1 AND token_hash = $2
		 `

	res, err := r.db.ExecContext(ctx, query, rec.UserID, oldHash, rec.TokenHash, rec.ExpiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrVersionConflict
	}

	return nil
}
