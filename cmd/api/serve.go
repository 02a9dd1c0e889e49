package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lifelock-backend/internal/auth"
	"lifelock-backend/internal/culture"
	"lifelock-backend/internal/db"
	"lifelock-backend/internal/httpx"
	"lifelock-backend/internal/timebox"
	"lifelock-backend/internal/usage"
)

const shutdownTimeout = 10 * time.Second

// backends holds the connections shared by the commands.
type backends struct {
	conn    *sql.DB
	dialect db.Dialect
	rdb     *redis.Client
}

func openBackends(ctx context.Context) (*backends, error) {
	b := &backends{dialect: db.Dialect(cfg.DB.Driver)}

	conn, err := db.Connect(ctx, cfg.DB.Driver, cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	b.conn = conn
	if err := db.Migrate(conn, b.dialect); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	logger.Info("database ready", zap.String("driver", cfg.DB.Driver))

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			conn.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		b.rdb = rdb
		logger.Info("redis ready", zap.String("addr", cfg.Redis.Addr))
	}
	return b, nil
}

func (b *backends) Close() {
	if b.rdb != nil {
		if err := b.rdb.Close(); err != nil {
			logger.Warn("close redis", zap.Error(err))
		}
	}
	if err := b.conn.Close(); err != nil {
		logger.Warn("close db", zap.Error(err))
	}
}

func (b *backends) timeboxRepository() timebox.Repository {
	switch cfg.Timebox.Repository {
	case "memory":
		return timebox.NewMemoryRepository()
	case "redis":
		return timebox.NewRedisRepository(b.rdb, cfg.Timebox.RedisTTL)
	default:
		return timebox.NewSQLRepository(b.conn, b.dialect)
	}
}

// usageStack builds the store-backed usage service and its recorder.
func (b *backends) usageStack() (*usage.Service, *usage.Recorder) {
	store := usage.NewSQLStore(b.conn, b.dialect)
	var cache *usage.StatsCache
	if b.rdb != nil {
		cache = usage.NewStatsCache(b.rdb, cfg.Redis.StatsTTL)
	}
	svc := usage.NewService(store, cache, cfg.RollupLocation(), logger)
	rec := usage.NewRecorder(store, usage.DefaultPrices(), cfg.RollupLocation(), cfg.Usage.RollupDebounce, svc, logger)
	return svc, rec
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBackends(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	mw := auth.New([]byte(cfg.Auth.JWTSecret), logger)
	if !mw.Enabled() {
		logger.Warn("JWT_SECRET is empty, authentication disabled")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": cfg.App.Version})
	})

	layout := timebox.NewLayout(cfg.Timebox.PixelsPerHour, cfg.Timebox.MinHeight, cfg.Timebox.MaxHeight, logger)
	autofit := timebox.AutoFitOptions{Step: cfg.Timebox.AutoFitStep, MaxAttempts: cfg.Timebox.AutoFitAttempts}
	sched := timebox.NewScheduler(b.timeboxRepository(), layout, autofit, logger)
	timebox.RegisterRoutes(mux, sched, mw.Wrap)

	var rec *usage.Recorder
	if cfg.Usage.Source == "mock" {
		usage.RegisterRoutes(mux, usage.Routes{API: usage.NewMockAPI(cfg.Usage.MockLatency)}, mw.Wrap)
	} else {
		var svc *usage.Service
		svc, rec = b.usageStack()
		usage.RegisterRoutes(mux, usage.Routes{API: svc, Daily: svc, Recorder: rec}, mw.Wrap)
	}

	culture.RegisterRoutes(mux, culture.DefaultScorer())

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.HTTP.CORSOrigins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Content-Type", "Authorization", "Idempotency-Key",
			"X-Source-Event-Key", "X-Platform", "X-Session-Id", "X-App-Version",
		},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      c.Handler(mux),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api listening",
			zap.String("addr", cfg.HTTP.Addr),
			zap.String("timebox_repository", cfg.Timebox.Repository),
			zap.String("usage_source", cfg.Usage.Source),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	if rec != nil {
		if err := rec.Close(shutdownCtx); err != nil {
			logger.Error("flush usage rollups", zap.Error(err))
		}
	}
	return nil
}
