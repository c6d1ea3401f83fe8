package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"avatarforge/internal/adapter/repo"
	"avatarforge/internal/infra"
	"avatarforge/internal/storage"
)

const sweepInterval = 5 * time.Minute

type expirer interface {
	Expire(ctx context.Context, now time.Time) (int, error)
}

type pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

type sweeper struct {
	handoff   expirer
	history   pruner
	retention time.Duration
	logger    infra.Logger
}

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.Component(infra.NewLogger(cfg.AppEnv), "worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	files, err := storage.NewFileStore(cfg.HandoffDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure storage")
	}

	s := &sweeper{
		handoff:   storage.NewHandoff(files, cfg.HandoffTTL),
		retention: cfg.HistoryRetention,
		logger:    logger,
	}

	pool, err := infra.NewDBPool(ctx, cfg)
	switch {
	case errors.Is(err, infra.ErrNoDatabase):
		logger.Info().Msg("worker: DATABASE_URL not set, history pruning disabled")
	case err != nil:
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	default:
		defer pool.Close()
		s.history = repo.NewGenerationRepository(infra.NewSQLRunner(pool, logger))
	}

	logger.Info().Dur("interval", sweepInterval).Msg("worker: started")
	s.run(ctx, sweepInterval)
	logger.Info().Msg("worker: stopped")
}

func (s *sweeper) run(ctx context.Context, interval time.Duration) {
	s.sweep(ctx, time.Now())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.sweep(ctx, now)
		}
	}
}

// sweep removes expired hand-off artifacts and generation history older than
// the retention window. Errors are logged; the next tick retries.
func (s *sweeper) sweep(ctx context.Context, now time.Time) {
	if s.handoff != nil {
		n, err := s.handoff.Expire(ctx, now)
		if err != nil {
			s.logger.Error().Err(err).Msg("worker: handoff sweep failed")
		} else if n > 0 {
			s.logger.Info().Int("removed", n).Msg("worker: expired handoff artifacts removed")
		}
	}
	if s.history != nil && s.retention > 0 {
		n, err := s.history.Prune(ctx, now.Add(-s.retention))
		if err != nil {
			s.logger.Error().Err(err).Msg("worker: history prune failed")
		} else if n > 0 {
			s.logger.Info().Int64("removed", n).Msg("worker: generation history pruned")
		}
	}
}
