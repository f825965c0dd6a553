package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"pattern-trader/internal/config"
	"pattern-trader/internal/health"
	"pattern-trader/internal/pipeline"
	"pattern-trader/internal/resilience"
	"pattern-trader/internal/server"
	"pattern-trader/internal/stream"
	"pattern-trader/pkg/utils"
)

const healthSlowThreshold = 250 * time.Millisecond

func newServeCmd(app *App) *cobra.Command {
	var addr string
	var noPipeline bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the WebSocket broadcaster and the analysis pipeline",
		Long: `Serve WebSocket subscribers on /ws, Prometheus metrics on /metrics and
health on /healthz. Unless disabled, the pipeline analyzes every configured
watch on each interval and broadcasts prices, patterns and signals.

Stops gracefully on SIGINT or SIGTERM.`,
		Example: `  pattern-trader serve
  pattern-trader serve --addr :9090 --no-pipeline`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := *app.Config
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if noPipeline {
				cfg.Pipeline.Enabled = false
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, app, &cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().BoolVar(&noPipeline, "no-pipeline", false, "only broadcast, do not run the analysis pipeline")

	return cmd
}

// serve runs every component until ctx is cancelled or the listener fails,
// then shuts them down.
func serve(ctx context.Context, app *App, cfg *config.Config) error {
	logger := app.Logger

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	hubMetrics := stream.NewMetrics(reg)
	hub := stream.NewHubWithConfig(stream.HubConfig{
		SendBufferSize:   cfg.Broadcaster.SendBufferSize,
		PingInterval:     cfg.Broadcaster.PingInterval,
		WriteTimeout:     cfg.Broadcaster.WriteTimeout,
		MaxMessageSize:   cfg.Broadcaster.MaxMessageSize,
		MissedProbeLimit: cfg.Broadcaster.MissedProbeLimit,
	}, logger, hubMetrics)

	checker := health.NewChecker(5 * time.Second)
	checker.Register("broadcaster", health.BroadcasterCheck(hub.ClientCount, hub.Channels))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	goRun := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Str("component", name).Msg("Component stopped")
			}
		}()
	}

	goRun("hub", func(ctx context.Context) error {
		hub.Run(ctx)
		return nil
	})

	var publisher pipeline.Publisher = hub

	if cfg.Redis.Enabled {
		client, err := connectRedis(runCtx, cfg.Redis)
		if err != nil {
			hub.Close()
			cancel()
			wg.Wait()
			return err
		}
		defer client.Close()
		checker.Register("redis", health.PingCheck(func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}, healthSlowThreshold))

		// Fail fast while Redis is down.
		breaker := resilience.NewCircuitBreaker("redis-publisher", resilience.DefaultCircuitBreakerConfig())
		redisPublisher := resilience.NewGuardedPublisher(stream.NewRedisPublisher(client, cfg.Redis.Prefix), breaker)
		checker.Register("redis-publisher", breakerCheck(breaker))
		if cfg.Redis.Relay {
			relay := stream.NewRelay(client, hub, redisConfig(cfg.Redis), logger, hubMetrics)
			goRun("relay", relay.Run)
			publisher = redisPublisher
		} else {
			publisher = pipeline.MultiPublisher{hub, redisPublisher}
		}
		logger.Info().Str("addr", cfg.Redis.Addr).Bool("relay", cfg.Redis.Relay).Msg("Redis connected")
	}

	if cfg.Pipeline.Enabled {
		st, err := app.Store()
		if err != nil {
			hub.Close()
			cancel()
			wg.Wait()
			return err
		}
		checker.Register("store", health.PingCheck(st.Ping, healthSlowThreshold))

		analyzer, err := newAnalyzer(cfg.Analysis)
		if err != nil {
			hub.Close()
			cancel()
			wg.Wait()
			return err
		}

		runner := pipeline.NewRunner(pipeline.RunnerConfig{
			Interval:      cfg.Pipeline.Interval,
			MinConfidence: cfg.Pipeline.MinConfidence,
			HistoryLimit:  cfg.Pipeline.HistoryLimit,
			Watches:       watches(cfg.Pipeline.Watches),
		}, st, analyzer, publisher, logger, pipeline.NewMetrics(reg))
		goRun("pipeline", runner.Run)

		if len(cfg.Pipeline.Watches) == 0 {
			logger.Warn().Msg("Pipeline enabled but no watches configured")
		}
	}

	srv := server.New(hub, logger,
		server.WithAddr(cfg.Server.Addr),
		server.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		server.WithGatherer(reg),
		server.WithHealth(checker),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutdown signal received")
	case serveErr = <-errCh:
	}

	// Close the listener first so no new connections arrive, then drop
	// existing subscribers and stop background work.
	if err := srv.Stop(context.Background()); err != nil {
		logger.Error().Err(err).Msg("HTTP shutdown error")
	}
	hub.Close()
	cancel()
	wg.Wait()

	logger.Info().Msg("Shutdown complete")
	return serveErr
}

// breakerCheck reports a breaker that is not closed as degraded.
func breakerCheck(cb *resilience.CircuitBreaker) health.Check {
	return func(context.Context) health.ComponentHealth {
		stats := cb.Stats()
		h := health.ComponentHealth{
			Status: health.StatusHealthy,
			Details: map[string]interface{}{
				"state":    stats.State,
				"rejected": stats.TotalRejected,
			},
		}
		if stats.State != resilience.CircuitClosed {
			h.Status = health.StatusDegraded
			h.Message = fmt.Sprintf("circuit %s", strings.ToLower(string(stats.State)))
		}
		return h
	}
}

func redisConfig(c config.RedisConfig) stream.RedisConfig {
	return stream.RedisConfig{
		Addr:           c.Addr,
		Password:       c.Password,
		DB:             c.DB,
		Prefix:         c.Prefix,
		ReconnectDelay: c.ReconnectDelay,
	}
}

// connectRedis retries the initial connection with backoff.
func connectRedis(ctx context.Context, c config.RedisConfig) (*redis.Client, error) {
	retry := utils.DefaultRetryConfig()
	retry.MaxAttempts = 5
	retry.InitialDelay = 500 * time.Millisecond

	return utils.RetryWithResult(ctx, retry, func() (*redis.Client, error) {
		return stream.NewRedisClient(ctx, redisConfig(c))
	})
}
