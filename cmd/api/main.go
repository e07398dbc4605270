package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"guest_registry_backend/internal/events"
	"guest_registry_backend/internal/guests"
	"guest_registry_backend/internal/guests/repository"
	apphttp "guest_registry_backend/internal/http"
	"guest_registry_backend/internal/http/router"
	"guest_registry_backend/platform/config"
	"guest_registry_backend/platform/db"
	"guest_registry_backend/platform/httpkit"
	"guest_registry_backend/platform/kvdb"
	"guest_registry_backend/platform/logger"
	"guest_registry_backend/platform/metrics"
	"guest_registry_backend/platform/phone"
	"guest_registry_backend/platform/tracing"
	"guest_registry_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// store bundles the selected guest repository with its health probe and
// a release hook.
type store struct {
	repo   repository.Repository
	health apphttp.HealthChecker
	close  func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr, "store", cfg.GetStoreBackend())

	if cfg.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	shutdownTracing, err := tracing.Init(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize tracing", "error", err)
		panic("failed to initialize tracing: " + err.Error())
	}

	var st store
	if err := withRetry(ctx, log, "guest store", 5, 2*time.Second, func() error {
		s, err := openStore(ctx, cfg, log)
		if err != nil {
			return err
		}
		st = s
		return nil
	}); err != nil {
		log.Error("failed to open guest store", "error", err)
		panic("failed to open guest store: " + err.Error())
	}
	defer st.close()
	log.Info("guest store ready", "backend", cfg.GetStoreBackend())

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	val := validator.New()
	normalizer := phone.NewNormalizer()
	appMetrics := metrics.New()

	idempotency, closeRedis := initIdempotency(ctx, cfg, log)
	if closeRedis != nil {
		defer closeRedis()
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	guestsModule := guests.NewModule(st.repo, normalizer, val, eventBus, appMetrics, log)
	guestsModule.RegisterHandlers(eventBus)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:      cfg,
		Logger:      log,
		Health:      st.health,
		Metrics:     appMetrics,
		Idempotency: idempotency,
		Modules: []apphttp.Module{
			guestsModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GetShutdownTimeout())
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), cfg.GetShutdownTimeout())
	defer cancel()
	if err := shutdownTracing(flushCtx); err != nil {
		log.Warn("tracer shutdown failed", "error", err)
	}
	log.Info("server stopped")
}

// openStore connects the backend named by the DATABASE_URL scheme.
func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (store, error) {
	if cfg.GetStoreBackend() == config.StoreBackendKV {
		bolt, err := kvdb.Open(cfg.GetKVPath())
		if err != nil {
			return store{}, err
		}
		repo, err := repository.NewKVRepo(bolt)
		if err != nil {
			_ = bolt.Close()
			return store{}, err
		}
		return store{
			repo:   repo,
			health: kvdb.NewChecker(bolt),
			close:  func() { _ = bolt.Close() },
		}, nil
	}

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return store{}, err
	}
	if cfg.GetMigrationsEnabled() {
		if err := db.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return store{}, fmt.Errorf("run migrations: %w", err)
		}
		log.Info("database migrations complete")
	}
	return store{
		repo:   repository.New(pool),
		health: db.NewPoolChecker(pool),
		close:  pool.Close,
	}, nil
}

// initIdempotency connects Redis when REDIS_URL is set. Without it POST
// requests run without replay protection.
func initIdempotency(ctx context.Context, cfg config.IdempotencyConfig, log *logger.Logger) (*httpkit.Idempotency, func()) {
	if !cfg.IsIdempotencyEnabled() {
		log.Warn("REDIS_URL not configured; idempotency keys disabled")
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		log.Error("invalid REDIS_URL; idempotency keys disabled", "error", err)
		return nil, nil
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("redis unreachable at startup; idempotency will fail open", "error", err)
	}

	return httpkit.NewIdempotency(client, cfg.GetIdempotencyTTL(), log), func() {
		_ = client.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return fmt.Errorf("%s: %w", name, lastErr)
}
