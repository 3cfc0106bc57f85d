package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/collectors/version"
	cversion "github.com/prometheus/common/version"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	rgw_exporter "github.com/grafana/rgw-exporter"
	"github.com/grafana/rgw-exporter/cmd/exporter/config"
	"github.com/grafana/rgw-exporter/cmd/exporter/web"
	"github.com/grafana/rgw-exporter/pkg/collector"
	"github.com/grafana/rgw-exporter/pkg/logger"
	"github.com/grafana/rgw-exporter/pkg/registry"
	"github.com/grafana/rgw-exporter/pkg/rgw/client"
	"github.com/grafana/rgw-exporter/pkg/rgw/signer"
	"github.com/grafana/rgw-exporter/pkg/scheduler"
	"github.com/grafana/rgw-exporter/pkg/usage"
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "rgw-exporter",
		Short:         "Export Ceph RGW per-bucket usage as Prometheus metrics",
		Version:       cversion.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := config.NewViper(cmd.Flags())
			if err != nil {
				return err
			}
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			log, err := logger.New(logger.Config{
				Level:  cfg.Logging.Level,
				Output: cfg.Logging.Output,
				Type:   cfg.Logging.Type,
			})
			if err != nil {
				return fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
			}
			log.LogAttrs(cmd.Context(), slog.LevelInfo, "Starting "+rgw_exporter.ExporterName,
				slog.String("version", cversion.Info()),
				slog.String("build_context", cversion.BuildContext()),
			)

			ln, err := net.Listen("tcp", cfg.Server.Address)
			if err != nil {
				return fmt.Errorf("listening on %s: %w", cfg.Server.Address, err)
			}
			return run(cmd.Context(), cfg, log, ln)
		},
	}
	config.Flags(cmd.Flags())
	return cmd
}

type exporter struct {
	scheduler scheduler.Scheduler
	handler   http.Handler
}

// newExporter wires signer, client, collector, registry and scheduler.
func newExporter(cfg *config.Config, log *slog.Logger) (*exporter, error) {
	s, err := signer.New(signer.Config{
		AccessKey: cfg.Credentials.AccessKey,
		SecretKey: cfg.Credentials.SecretKey,
		Region:    cfg.Credentials.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating signer: %w", err)
	}

	c, err := client.New(&client.Config{
		AdminURL:      cfg.Endpoint.AdminURL,
		VerifySSL:     cfg.Endpoint.VerifySSL,
		SetHostHeader: cfg.Endpoint.SetHostHeader,
		Timeout:       cfg.Endpoint.Timeout,
		Signer:        s,
		Logger:        log,
	})
	if err != nil {
		return nil, fmt.Errorf("creating admin API client: %w", err)
	}

	reg := registry.New(cfg.Metrics.Unit)
	reg.MustRegister(
		collectors.NewBuildInfoCollector(),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		version.NewCollector(rgw_exporter.ExporterName),
	)

	coll := collector.New(&collector.Config{
		Fetcher:     c,
		Transformer: usage.NewTransformer(cfg.Metrics.Unit, cfg.Metrics.RoundGBs),
		Registry:    reg,
		Logger:      log,
	})
	coll.Register(reg)

	sched, err := scheduler.New(&scheduler.Config{
		Mode:     cfg.Collector.Mode,
		Interval: cfg.Collector.Interval,
		Timeout:  cfg.Endpoint.Timeout,
		Cycle:    coll,
		Logger:   log,
	})
	if err != nil {
		return nil, fmt.Errorf("creating scheduler: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", web.HomePageHandler(cfg.Server.Path, string(cfg.Collector.Mode)))
	mux.Handle(cfg.Server.Path, sched.Handler(reg.Handler()))

	return &exporter{scheduler: sched, handler: mux}, nil
}

// run serves on ln until ctx is cancelled or either the scheduler or the
// server fails.
func run(ctx context.Context, cfg *config.Config, log *slog.Logger, ln net.Listener) error {
	e, err := newExporter(cfg, log)
	if err != nil {
		_ = ln.Close()
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return e.scheduler.Run(gctx)
	})
	g.Go(func() error {
		return runServer(gctx, cfg, log, ln, e.handler)
	})
	return g.Wait()
}

func runServer(ctx context.Context, cfg *config.Config, log *slog.Logger, ln net.Listener, handler http.Handler) error {
	server := &http.Server{Handler: handler}
	errChan := make(chan error, 1)

	go func() {
		log.LogAttrs(ctx, slog.LevelInfo, "Listening",
			slog.String("address", ln.Addr().String()),
			slog.String("path", cfg.Server.Path),
			slog.String("mode", string(cfg.Collector.Mode)),
		)
		errChan <- server.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.Timeout)
		defer cancel()

		err := server.Shutdown(ctx)
		if err != nil {
			return fmt.Errorf("error shutting down server: %w", err)
		}
	case err := <-errChan:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("error running server: %w", err)
		}
	}

	return nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		slog.Error("exporter failed", "error", err)
		cancel()
		os.Exit(1)
	}
}
