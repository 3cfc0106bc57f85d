package scheduler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// onDemand runs a full cycle before every scrape is rendered. Concurrent scrapes
// each trigger their own upstream fetch.
type onDemand struct {
	cycle   Cycle
	timeout time.Duration
	logger  *slog.Logger
}

func (s *onDemand) Mode() Mode {
	return OnDemand
}

// Run has no background work and only waits for shutdown.
func (s *onDemand) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

// Handler collects synchronously, then serves. A failed cycle still serves the
// previously published values.
func (s *onDemand) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := withTimeout(r.Context(), s.timeout)
		err := s.cycle.CollectMetrics(ctx)
		cancel()
		if err != nil {
			s.logger.LogAttrs(r.Context(), slog.LevelDebug, "serving previous values after failed collection",
				slog.String("message", err.Error()),
			)
		}
		next.ServeHTTP(w, r)
	})
}
