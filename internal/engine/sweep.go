package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// StuckMessage is the error message applied to generations failed by the
// sweeper.
func StuckMessage(maxAge time.Duration) string {
	return fmt.Sprintf("Generation interrupted automatically after %d minutes", int(maxAge.Minutes()))
}

// Sweep fails stuck generations and prunes expired chunks once.
func (s *Service) Sweep(ctx context.Context) {
	swept, err := s.store.SweepStuck(ctx, s.cfg.StuckAge, StuckMessage(s.cfg.StuckAge))
	if err != nil {
		slog.Error("stuck sweep failed", "error", err)
	} else if swept > 0 {
		slog.Info("swept stuck generations", "count", swept, "max_age", s.cfg.StuckAge)
	}

	pruned, err := s.store.PruneChunks(ctx, s.cfg.ChunkRetention)
	if err != nil {
		slog.Error("chunk prune failed", "error", err)
	} else if pruned > 0 {
		slog.Info("pruned expired chunks", "count", pruned, "retention", s.cfg.ChunkRetention)
	}
}

// StartSweeper runs Sweep on a fixed interval until ctx is canceled.
func (s *Service) StartSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.cfg.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep(ctx)
			}
		}
	}()
}
