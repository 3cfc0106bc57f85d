package scheduler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// intervalLoop owns the only goroutine that runs cycles. Scrapes never fetch.
type intervalLoop struct {
	cycle    Cycle
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

func (s *intervalLoop) Mode() Mode {
	return Interval
}

// Run collects immediately, then once per interval until ctx is cancelled. A
// cycle that is in flight at shutdown observes the cancellation through ctx.
func (s *intervalLoop) Run(ctx context.Context) error {
	s.logger.LogAttrs(ctx, slog.LevelInfo, "starting collection loop",
		slog.Duration("interval", s.interval),
	)
	s.collect(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.LogAttrs(context.Background(), slog.LevelInfo, "stopping collection loop")
			return nil
		case <-ticker.C:
			s.collect(ctx)
		}
	}
}

func (s *intervalLoop) collect(ctx context.Context) {
	cycleCtx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.cycle.CollectMetrics(cycleCtx); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "collection failed, retrying next interval",
			slog.String("message", err.Error()),
		)
	}
}

func (s *intervalLoop) Handler(next http.Handler) http.Handler {
	return next
}
