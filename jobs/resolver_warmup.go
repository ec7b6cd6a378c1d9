package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/hamidscode/role-manager/internal/platform/httpx"
	"github.com/hamidscode/role-manager/internal/resolver"
)

// ResolverWarmupJob re-populates resolution cache entries for role
// combinations that were queried recently. It runs after a global
// invalidation, so every Resolve below is a cache miss that recomputes
// from the record store.
type ResolverWarmupJob struct {
	Resolver *resolver.Resolver
	Logger   *slog.Logger
}

// NewResolverWarmupJob wires dependencies for the warmup handler.
func NewResolverWarmupJob(res *resolver.Resolver, logger *slog.Logger) *ResolverWarmupJob {
	return &ResolverWarmupJob{Resolver: res, Logger: logger}
}

// Handle processes TaskResolverWarmup tasks.
func (j *ResolverWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Resolver == nil {
		return errors.New("resolver warmup: handler not configured")
	}
	logger := j.logger()
	start := time.Now()

	sets, err := j.Resolver.RecentSets(ctx)
	if err != nil {
		logger.Error("load recent role combinations", slog.Any("error", err))
		return err
	}
	if len(sets) == 0 {
		logger.Info("no recent combinations to warm")
		return nil
	}

	warmed := 0
	for _, names := range sets {
		warmCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		_, err := j.Resolver.Resolve(warmCtx, names)
		cancel()
		if err != nil {
			// Every role in the combination may have been deleted since
			// it was tracked; that is not a job failure.
			if errors.Is(err, httpx.ErrNotFound) {
				continue
			}
			logger.Error("warm combination", slog.Any("roles", names), slog.Any("error", err))
			return err
		}
		warmed++
	}

	logger.Info("completed resolver warmup", slog.Int("combinations", warmed), slog.Duration("duration", time.Since(start)))
	return nil
}

func (j *ResolverWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskResolverWarmup))
	}
	return slog.Default().With(slog.String("job", TaskResolverWarmup))
}
