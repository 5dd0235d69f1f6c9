package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/storefront/internal/dbx"
	"github.com/dmitrijs2005/storefront/internal/server/migrations"
	"github.com/dmitrijs2005/storefront/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/storefront/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"
)

// PostgresRepositoryManager keeps users and refresh token records in PostgreSQL.
type PostgresRepositoryManager struct{}

func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository {
	return refreshtokens.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}

func NewPostgresRepositoryManager() RepositoryManager {
	return &PostgresRepositoryManager{}
}

// RedisTokenRepositoryManager keeps users in PostgreSQL and refresh token
// records in Redis. Token writes do not join the caller's SQL transaction.
type RedisTokenRepositoryManager struct {
	PostgresRepositoryManager
	client redis.UniversalClient
}

func (m *RedisTokenRepositoryManager) RefreshTokens(_ dbx.DBTX) refreshtokens.Repository {
	return refreshtokens.NewRedisRepository(m.client)
}

func NewRedisTokenRepositoryManager(client redis.UniversalClient) RepositoryManager {
	return &RedisTokenRepositoryManager{client: client}
}
