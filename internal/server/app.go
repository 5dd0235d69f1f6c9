// Package server wires configuration, storage, services and transports into
// a runnable application and handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/storefront/internal/logging"
	"github.com/dmitrijs2005/storefront/internal/server/auth"
	"github.com/dmitrijs2005/storefront/internal/server/config"
	"github.com/dmitrijs2005/storefront/internal/server/httpapi"
	"github.com/dmitrijs2005/storefront/internal/server/metrics"
	"github.com/dmitrijs2005/storefront/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/storefront/internal/server/services"
	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/storefront/internal/server/grpc"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	redis       redis.UniversalClient
	repomanager repomanager.RepositoryManager
	sessions    *services.SessionService
	admin       *services.AdminService
	gate        *auth.Gate
	metrics     *metrics.Registry
}

// NewApp validates cfg, connects to storage, applies migrations and builds
// the services.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logging.NewJSONLogger(os.Stdout, cfg.LogLevel)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	app := &App{config: cfg, logger: logger, db: db}

	if cfg.TokenStore == config.TokenStoreRedis {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			app.Close()
			_ = client.Close()
			return nil, fmt.Errorf("redis init error: %w", err)
		}
		app.redis = client
		app.repomanager = repomanager.NewRedisTokenRepositoryManager(client)
	} else {
		app.repomanager = repomanager.NewPostgresRepositoryManager()
	}

	if err := app.repomanager.RunMigrations(ctx, db); err != nil {
		app.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	if err := app.wire(); err != nil {
		app.Close()
		return nil, err
	}

	return app, nil
}

func (app *App) wire() error {
	cfg := app.config

	codec, err := auth.NewCodec(cfg.AccessTokenSecret, cfg.RefreshTokenSecret,
		cfg.AccessTokenValidityDuration, cfg.RefreshTokenValidityDuration)
	if err != nil {
		return err
	}

	hasher, err := auth.NewPasswordHasher(cfg.BcryptCost)
	if err != nil {
		return err
	}

	tokens, err := services.NewRefreshTokenStore(app.repomanager, codec, cfg.RefreshTokenHashKey)
	if err != nil {
		return err
	}

	app.metrics = metrics.NewRegistry()
	mx, err := metrics.NewSessionMetrics(app.metrics.Meter())
	if err != nil {
		return err
	}

	app.sessions = services.NewSessionService(app.db, app.repomanager, codec, hasher, tokens, mx, app.logger)
	app.admin = services.NewAdminService(app.db, app.repomanager, tokens, app.logger)
	app.gate = auth.NewGate(codec, app.repomanager.Users(app.db))
	return nil
}

// Close releases storage connections and the meter provider.
func (app *App) Close() {
	if app.metrics != nil {
		_ = app.metrics.Shutdown(context.Background())
	}
	if app.redis != nil {
		_ = app.redis.Close()
	}
	if app.db != nil {
		_ = app.db.Close()
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.sessions, app.gate)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	router := httpapi.NewRouter(app.logger, app.sessions, app.admin, app.gate)
	router.GET("/metrics", httpapi.MetricsHandler(app.logger, app.metrics))
	s := httpapi.NewHTTPServer(app.config.EndpointAddrHTTP, app.logger, router)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves gRPC and HTTP until ctx is cancelled, a termination signal
// arrives, or either server fails.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	defer app.Close()

	gin.SetMode(gin.ReleaseMode)

	app.logger.Info(ctx, "Starting app...", "token_store", app.config.TokenStore)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.logger.Info(context.Background(), "App stopped")
}
