package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	r "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/belimuno/marketplace/internal/api"
	"github.com/belimuno/marketplace/internal/cache"
	"github.com/belimuno/marketplace/internal/config"
	"github.com/belimuno/marketplace/internal/domain"
	"github.com/belimuno/marketplace/internal/notify"
	"github.com/belimuno/marketplace/internal/service"
	"github.com/belimuno/marketplace/internal/storage"
	"github.com/belimuno/marketplace/internal/storage/memory"
)

func main() {
	log, err := newLogger()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store domain.Store
	switch cfg.StorageDriver {
	case "memory":
		store = memory.New()
		log.Warn("using in-memory storage; data will not survive a restart")
	default:
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatal("postgres", zap.Error(err))
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			log.Fatal("postgres ping", zap.Error(err))
		}
		store = storage.New(pool)
	}

	var notifier domain.Notifier = notify.Noop{}
	var entityCache *cache.Cache
	if cfg.RedisAddr != "" {
		rdb := r.NewClient(&r.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		notifier = notify.NewRedis(rdb, log)
		entityCache = cache.New(rdb, log, time.Duration(cfg.CacheTTLSec)*time.Second)
	} else {
		entityCache = cache.New(nil, log, 0)
		log.Warn("redis not configured; caching and notifications disabled")
	}

	lifecycle := service.NewJobLifecycle(store, notifier, log)
	ledger := service.NewPaymentLedger(store, notifier, log)
	handlers := api.NewHandlers(lifecycle, ledger, entityCache, log)

	srv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           api.NewRouter(handlers, []byte(cfg.JWTSigningKey), log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("api listening", zap.String("addr", cfg.APIAddr), zap.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		log.Fatal("api", zap.Error(err))
	}
}

func newLogger() (*zap.Logger, error) {
	return zap.NewProduction()
}
