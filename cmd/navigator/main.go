package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/Rajdeep-017/suraksha-net/internal/adapter/http"
	kafkaadapter "github.com/Rajdeep-017/suraksha-net/internal/adapter/kafka"
	"github.com/Rajdeep-017/suraksha-net/internal/adapter/postgres"
	redisadapter "github.com/Rajdeep-017/suraksha-net/internal/adapter/redis"
	"github.com/Rajdeep-017/suraksha-net/internal/adapter/routeapi"
	"github.com/Rajdeep-017/suraksha-net/internal/config"
	"github.com/Rajdeep-017/suraksha-net/internal/observability"
	"github.com/Rajdeep-017/suraksha-net/internal/pipeline"
	"github.com/Rajdeep-017/suraksha-net/internal/position"
	"github.com/Rajdeep-017/suraksha-net/internal/service"
	"github.com/Rajdeep-017/suraksha-net/internal/tracking"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

// readiness reports ready only when every check passes.
type readiness []sharedobs.ReadinessChecker

func (r readiness) CheckReadiness(ctx context.Context) error {
	for _, c := range r {
		if err := c.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}

type readinessFunc func(context.Context) error

func (f readinessFunc) CheckReadiness(ctx context.Context) error { return f(ctx) }

func main() {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, metrics); err != nil {
		logger.Error("navigator exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) error {
	provider, push, err := positionProvider(cfg, logger)
	if err != nil {
		return err
	}
	stream := position.NewStream(provider, logger, metrics, cfg.PositionQueueSize)
	session := tracking.New(stream, sessionSettings(cfg), logger, metrics)
	defer session.Close()
	logger.Info("session created", "session_id", session.ID(), "position_source", cfg.PositionSource)

	var checks readiness
	if cfg.AutoStartTracking {
		checks = append(checks, session)
	}

	var opts []httpadapter.Option
	if push != nil {
		opts = append(opts, httpadapter.WithPositions(push))
	}

	// Hazard catalogue (optional, feature-flagged via DATABASE_URL).
	var hazards service.HazardFinder
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("create postgres pool: %w", err)
		}
		defer pool.Close()
		hazards = postgres.NewHazardStore(pool)
		checks = append(checks, readinessFunc(pool.Ping))
		logger.Info("hazard catalogue enabled", "limit", cfg.HazardLimit)
	}

	// Route analysis (optional, feature-flagged via ROUTE_API_URL).
	if cfg.RouteAPIURL != "" {
		var analyzer routeapi.Analyzer = routeapi.NewClient(cfg.RouteAPIURL, cfg.RouteAPITimeout, logger, metrics)
		if cfg.RouteCacheSize > 0 {
			analyzer = routeapi.NewCachedAnalyzer(analyzer, cfg.RouteCacheSize, metrics)
		}
		opts = append(opts, httpadapter.WithNavigator(service.NewNavigator(analyzer, hazards, session, cfg.HazardLimit, logger)))
		logger.Info("route analysis enabled", "url", cfg.RouteAPIURL, "cache_size", cfg.RouteCacheSize, "timeout", cfg.RouteAPITimeout)
	} else {
		logger.Info("route analysis disabled")
	}

	sink, closeSink, err := alertSink(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeSink(); err != nil {
			logger.Error("alert sink close error", "error", err)
		}
	}()
	publisher := pipeline.New(session, sink, logger, metrics)
	if cfg.AlertSink != config.SinkNone {
		checks = append(checks, publisher)
		if r, ok := sink.(sharedobs.ReadinessChecker); ok {
			checks = append(checks, r)
		}
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, session, checks, logger, opts...)

	if cfg.AutoStartTracking {
		if err := session.Enable(); err != nil {
			return fmt.Errorf("start tracking: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return publisher.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
		session.Close()
		return nil
	})

	return g.Wait()
}

func sessionSettings(cfg *config.Config) tracking.Settings {
	return tracking.Settings{
		RadiusKm:  cfg.AlertRadiusKm,
		Dismissal: cfg.DismissalPolicy,
		Rank:      cfg.RankStrategy,
		Position: position.Options{
			MaximumAge:   cfg.PositionMaxAge,
			Timeout:      cfg.PositionTimeout,
			HighAccuracy: cfg.PositionHighAccuracy,
		},
	}
}

// positionProvider builds the configured provider. The push provider is
// also returned so the HTTP API can feed it.
func positionProvider(cfg *config.Config, logger *slog.Logger) (position.Provider, *position.Push, error) {
	switch cfg.PositionSource {
	case config.SourceReplay:
		samples, err := position.LoadTrack(cfg.ReplayFile)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("replaying recorded track", "file", cfg.ReplayFile, "samples", len(samples), "interval", cfg.ReplayInterval)
		return position.NewReplay(samples, cfg.ReplayInterval, true), nil, nil
	case config.SourceKafka:
		logger.Info("reading positions from kafka", "topic", cfg.KafkaPositionTopic, "driver", cfg.KafkaDriverKey)
		return kafkaadapter.NewReader(cfg, cfg.KafkaDriverKey, logger), nil, nil
	default:
		push := position.NewPush()
		return push, push, nil
	}
}

func alertSink(ctx context.Context, cfg *config.Config, logger *slog.Logger) (pipeline.AlertSink, func() error, error) {
	switch cfg.AlertSink {
	case config.SinkKafka:
		w := kafkaadapter.NewWriter(cfg, logger)
		logger.Info("publishing alerts to kafka", "topic", cfg.KafkaAlertTopic)
		return w, w.Close, nil
	case config.SinkRedis:
		p, err := redisadapter.NewPublisher(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("publishing alerts to redis", "addr", cfg.RedisAddr)
		return p, p.Close, nil
	default:
		return pipeline.NopSink{}, func() error { return nil }, nil
	}
}
