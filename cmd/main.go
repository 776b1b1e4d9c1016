package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/angeloszaimis/alb/config"
	"github.com/angeloszaimis/alb/internal/forwarder"
	"github.com/angeloszaimis/alb/internal/handler"
	"github.com/angeloszaimis/alb/internal/healthcheck"
	"github.com/angeloszaimis/alb/internal/httpserver"
	"github.com/angeloszaimis/alb/internal/loadbalancer"
	"github.com/angeloszaimis/alb/internal/metrics"
	"github.com/angeloszaimis/alb/internal/registry"
	"github.com/angeloszaimis/alb/internal/strategy"
	"github.com/angeloszaimis/alb/pkg/logger"
)

const algorithm = "round-robin"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		slog.Error("load balancer failed", slog.Any("err", err))
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "alb",
		Usage: "HTTP load balancer for self-registering applications",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to the config file (default: config.yaml in ./config or .)",
				Sources: cli.EnvVars("ALB_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error), overrides logging.level",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.Load(cmd.String("config"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			if level := cmd.String("log-level"); level != "" {
				cfg.Logging.Level = level
				if err := cfg.Validate(); err != nil {
					return fmt.Errorf("invalid log level: %w", err)
				}
			}

			log := logger.New(cfg.Logging.Level, cfg.Logging.Format, true, cfg.Server.Environment)

			return run(ctx, cfg, log)
		},
	}
}

// balancer holds the wired components of one load balancer process.
type balancer struct {
	registry  *registry.Registry
	lb        *loadbalancer.LoadBalancer
	collector *metrics.Collector
	prober    *healthcheck.Prober
	router    http.Handler
}

func newBalancer(cfg *config.Config, log *slog.Logger) *balancer {
	reg := registry.New()
	lb := loadbalancer.NewLoadBalancer(reg, strategy.NewRoundRobinStrategy())
	collector := metrics.NewCollector(cfg.Metrics.BufferSize, log)

	timeout := cfg.HealthCheck.DefaultTimeoutDuration()

	prober := healthcheck.NewProber(reg, lb, cfg.HealthCheck.IntervalDuration(), log,
		healthcheck.WithCollector(collector),
		healthcheck.WithFallbackTimeout(timeout))

	fwd := forwarder.New(nil, cfg.Forwarder.Headers(), timeout, log)

	return &balancer{
		registry:  reg,
		lb:        lb,
		collector: collector,
		prober:    prober,
		router: setupRouter(log,
			handler.NewLoadBalancerHandler(log, lb, fwd, collector),
			handler.NewRegistrationHandler(log, reg, lb, collector),
			collector,
			algorithm),
	}
}

// run serves until ctx is cancelled or the server fails.
func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	b := newBalancer(cfg, log)

	g, gCtx := errgroup.WithContext(ctx)

	srv, err := httpserver.New(gCtx, cfg.Server.Address, b.router, httpserver.Options{
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
		IdleTimeout:  cfg.Server.IdleTimeoutDuration(),
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	g.Go(func() error {
		b.collector.Run(gCtx)
		return nil
	})

	g.Go(func() error {
		b.prober.Run(gCtx)
		return nil
	})

	g.Go(func() error {
		log.Info("Load balancer listening",
			slog.String("address", cfg.Server.Address),
			slog.String("algorithm", algorithm))
		return srv.Start()
	})

	g.Go(func() error {
		<-gCtx.Done()
		log.Info("Shutting down gracefully...")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
			return err
		}
		return nil
	})

	return g.Wait()
}
