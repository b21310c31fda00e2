// Package app initializes and runs the storage service: it opens the
// database, bootstraps the schema, warms the signing keys, and keeps the
// expired-token sweeper running until shutdown.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/mkuznecovs/authkeeper/internal/config"
	"github.com/mkuznecovs/authkeeper/internal/logging"
	"github.com/mkuznecovs/authkeeper/internal/repositories/repomanager"
	"github.com/mkuznecovs/authkeeper/internal/services"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	signingKeys *services.SigningKeyService
	sweeper     *services.Sweeper
}

func NewApp(cfg *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	m := repomanager.NewPostgresRepositoryManager(cfg, logger)

	return &App{
		config:      cfg,
		logger:      logger,
		db:          db,
		repomanager: m,
		signingKeys: services.NewSigningKeyService(db, m),
		sweeper:     services.NewSweeper(db, m, cfg, logger),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting app", "schema", app.config.TableSchema, "prefix", app.config.TablePrefix)

	app.initSignalHandler(cancelFunc)

	if err := app.repomanager.EnsureSchema(ctx, app.db); err != nil {
		return fmt.Errorf("schema bootstrap error: %w", err)
	}

	// Minting keys at startup keeps the first sign/verify request from
	// paying the generation cost.
	if _, err := app.signingKeys.CurrentJWTKey(ctx); err != nil {
		return fmt.Errorf("jwt signing key init error: %w", err)
	}
	if _, err := app.signingKeys.CurrentSessionKey(ctx); err != nil {
		return fmt.Errorf("session signing key init error: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		app.sweeper.Run(ctx)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
	app.logger.Info(ctx, "app stopped")
	return nil
}
