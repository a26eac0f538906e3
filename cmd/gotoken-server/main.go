// Command gotoken-server runs the goToken HTTP API.
//
//	gotoken-server -config /etc/gotoken.yaml
//
// Every setting can be overridden with a GOTOKEN_* environment variable,
// e.g. GOTOKEN_JWT_SIGNING_KEY or GOTOKEN_SESSION_BACKEND=postgres.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goToken "github.com/MrEthical07/goToken"
	"github.com/MrEthical07/goToken/audit/kafkasink"
	"github.com/MrEthical07/goToken/httpapi"
	"github.com/MrEthical07/goToken/internal/config"
	"github.com/MrEthical07/goToken/internal/obs"
	"github.com/MrEthical07/goToken/internal/userstore"
	promexport "github.com/MrEthical07/goToken/metrics/export/prometheus"
	"github.com/MrEthical07/goToken/postgres"
	"github.com/MrEthical07/goToken/session"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", os.Getenv("GOTOKEN_CONFIG"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	logger, err := obs.NewLogger(obs.LogConfig{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
		App:    cfg.App.Name,
		Env:    cfg.App.Env,
		Ver:    cfg.App.Version,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
	logger.Info("server stopped")
}

// deps holds the backends opened for one run.
type deps struct {
	redis    redis.UniversalClient
	db       *postgres.DB
	sessions *postgres.SessionStore
	closers  []func()
}

func (d *deps) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func (d *deps) health(ctx context.Context) error {
	if d.redis != nil {
		if err := d.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	if d.db != nil {
		if err := d.db.Ping(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	return nil
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	d := &deps{}
	defer d.close()

	builder := goToken.New().WithConfig(cfg.Engine()).WithLogger(logger)

	needRedis := cfg.Session.Backend == "redis" || cfg.Rate.LoginThrottle || cfg.Rate.RefreshThrottle
	if needRedis {
		rdb := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.Redis.Addr},
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		d.redis = rdb
		d.closers = append(d.closers, func() { _ = rdb.Close() })
		builder.WithRedis(rdb)
	}

	if cfg.Postgres.DSN != "" {
		db, err := postgres.New(ctx, postgres.Config{
			URL:               cfg.Postgres.DSN,
			MaxConns:          cfg.Postgres.MaxConns,
			MinConns:          cfg.Postgres.MinConns,
			MaxConnLifetime:   cfg.Postgres.MaxConnLifetime,
			MaxConnIdleTime:   cfg.Postgres.MaxConnIdleTime,
			HealthCheckPeriod: cfg.Postgres.HealthCheckPeriod,
			QueryTimeout:      cfg.Postgres.QueryTimeout,
		})
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		d.db = db
		d.closers = append(d.closers, db.Close)
		builder.WithUserProvider(postgres.NewUsers(db))
	} else {
		logger.Warn("postgres.dsn is empty; using an in-memory user store")
		builder.WithUserProvider(userstore.NewMemory())
	}

	switch cfg.Session.Backend {
	case "postgres":
		d.sessions = postgres.NewSessionStore(d.db)
		builder.WithSessionStore(d.sessions)
	case "memory":
		builder.WithSessionStore(session.NewMemoryStore())
	}

	switch cfg.Audit.Sink {
	case "kafka":
		sink := kafkasink.New(kafkasink.Config{Brokers: cfg.Audit.Brokers, Topic: cfg.Audit.Topic}, logger)
		d.closers = append(d.closers, func() { _ = sink.Close() })
		builder.WithAuditSink(sink)
	default:
		builder.WithAuditSink(goToken.NewZapSink(logger))
	}

	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	d.closers = append(d.closers, engine.Close)

	api := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: httpapi.NewRouter(engine, httpapi.Options{
			Logger:       logger,
			Timeout:      cfg.HTTP.RequestTimeout,
			BasePath:     cfg.HTTP.BasePath,
			Health:       d.health,
			MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
		}),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}
	servers := []*http.Server{api}

	if cfg.Metrics.Enabled {
		handler, err := promexport.Handler(promexport.NewCollector(engine))
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		servers = append(servers, obs.NewMetricsServer(cfg.Metrics.Addr, handler, d.health))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			logger.Info("listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("listen %s: %w", srv.Addr, err)
			}
			return nil
		})
	}

	if d.sessions != nil && cfg.Session.PurgeInterval > 0 {
		g.Go(func() error {
			purgeLoop(gctx, d.sessions, cfg.Session.PurgeInterval, cfg.Session.ExpiredRetention, logger)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.GracefulTimeout)
		defer cancel()
		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

// purgeLoop removes refresh records that expired more than retention ago.
func purgeLoop(ctx context.Context, store *postgres.SessionStore, every, retention time.Duration, logger *zap.Logger) {
	logger = logger.With(zap.String("component", "purge"))
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := store.PurgeExpired(ctx, now.Add(-retention))
			if err != nil {
				logger.Warn("purge failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("purged expired refresh records", zap.Int64("count", n))
			}
		}
	}
}
