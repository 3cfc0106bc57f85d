// Package scheduler decides when a collection cycle runs. Two strategies exist:
// on-demand runs a cycle inside every scrape, interval runs cycles from a single
// background loop and scrapes only read the registry.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/grafana/rgw-exporter/pkg/utils"
)

type Mode string

const (
	OnDemand Mode = "on-demand"
	Interval Mode = "interval"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case OnDemand:
		return OnDemand, nil
	case Interval:
		return Interval, nil
	default:
		return "", fmt.Errorf("unknown collection mode %q, expected %s or %s", s, OnDemand, Interval)
	}
}

// Cycle runs one fetch, transform and publish pass.
type Cycle interface {
	CollectMetrics(ctx context.Context) error
}

type Scheduler interface {
	Mode() Mode
	// Run blocks until ctx is cancelled.
	Run(ctx context.Context) error
	// Handler wraps the exposition handler.
	Handler(next http.Handler) http.Handler
}

type Config struct {
	Mode Mode
	// Interval is the period of the background loop. Only used in interval mode.
	Interval time.Duration
	// Timeout bounds a single cycle.
	Timeout time.Duration
	Cycle   Cycle
	Logger  *slog.Logger
}

func New(cfg *Config) (Scheduler, error) {
	if cfg.Cycle == nil {
		return nil, fmt.Errorf("a collection cycle is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("logger", "scheduler", "mode", string(cfg.Mode))

	switch cfg.Mode {
	case OnDemand:
		return &onDemand{cycle: cfg.Cycle, timeout: cfg.Timeout, logger: logger}, nil
	case Interval:
		interval := cfg.Interval
		if interval <= 0 {
			interval = utils.DefaultCollectionInterval
		}
		return &intervalLoop{cycle: cfg.Cycle, interval: interval, timeout: cfg.Timeout, logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown collection mode %q", cfg.Mode)
	}
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
