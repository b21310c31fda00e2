package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/mkuznecovs/authkeeper/internal/config"
	"github.com/mkuznecovs/authkeeper/internal/logging"
	"github.com/mkuznecovs/authkeeper/internal/repositories/repomanager"
)

// passwordlessCodeLifetime is how long a passwordless code stays usable
// before the sweeper removes it.
const passwordlessCodeLifetime = 15 * time.Minute

// Sweeper periodically removes expired password reset tokens, expired email
// verification tokens, and stale passwordless codes.
type Sweeper struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	interval    time.Duration
	log         logging.Logger
}

// NewSweeper constructs a Sweeper with the configured interval.
func NewSweeper(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, log logging.Logger) *Sweeper {
	return &Sweeper{
		db:          db,
		repomanager: m,
		interval:    cfg.SweepInterval,
		log:         log.With("component", "sweeper"),
	}
}

// Run sweeps once immediately, then on every tick until the context is
// cancelled. A failed sweep is logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) {
	s.log.Info(ctx, "sweeper started", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info(ctx, "sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	if err := s.SweepOnce(ctx, time.Now()); err != nil {
		s.log.Error(ctx, "sweep failed", "error", err)
	}
}

// SweepOnce removes everything expired as of now. Each store is swept
// independently; the first failure aborts the pass.
func (s *Sweeper) SweepOnce(ctx context.Context, now time.Time) error {
	nowMillis := now.UnixMilli()

	if err := s.repomanager.PasswordResetTokens(s.db).DeleteExpired(ctx, nowMillis); err != nil {
		return err
	}
	if err := s.repomanager.EmailVerification(s.db).DeleteExpiredTokens(ctx, nowMillis); err != nil {
		return err
	}

	codeCutoff := now.Add(-passwordlessCodeLifetime).UnixMilli()
	if err := s.repomanager.PasswordlessCodes(s.db).DeleteCreatedBefore(ctx, codeCutoff); err != nil {
		return err
	}

	s.log.Debug(ctx, "sweep done")
	return nil
}
