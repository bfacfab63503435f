package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tinoosan/tuition/db"
	"github.com/tinoosan/tuition/internal/cache"
	"github.com/tinoosan/tuition/internal/config"
	"github.com/tinoosan/tuition/internal/events"
	"github.com/tinoosan/tuition/internal/events/kafka"
	httpapi "github.com/tinoosan/tuition/internal/httpapi/v1"
	"github.com/tinoosan/tuition/internal/service/history"
	"github.com/tinoosan/tuition/internal/service/notify"
	"github.com/tinoosan/tuition/internal/service/student"
	"github.com/tinoosan/tuition/internal/service/tuition"
	"github.com/tinoosan/tuition/internal/storage/memory"
	pgstore "github.com/tinoosan/tuition/internal/storage/postgres"
)

// store is everything the services need from a storage backend.
type store interface {
	student.Repo
	student.Writer
	tuition.Repo
	tuition.Writer
	notify.LedgerWriter
	notify.Store
	httpapi.ReadyChecker
}

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (default configs/config.yaml)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	logger := buildLogger(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	var st store
	if dsn := strings.TrimSpace(cfg.Database.URL); dsn != "" {
		if cfg.Database.Migrate {
			if err := db.Up(dsn); err != nil {
				logger.Error("migrations failed", "err", err)
				os.Exit(1)
			}
			logger.Info("migrations applied")
		}
		pg, err := pgstore.Open(ctx, dsn)
		if err != nil {
			logger.Error("failed to connect to postgres", "err", err)
			os.Exit(1)
		}
		closers = append(closers, pg.Close)
		st = pg
		logger.Info("storage backend: postgres")
	} else {
		st = memory.New()
		logger.Info("storage backend: memory")
	}
	ready := []httpapi.ReadyChecker{st}

	var claimer notify.Claimer
	var docs httpapi.DocumentCache
	if addr := strings.TrimSpace(cfg.Redis.Addr); addr != "" {
		rc, err := cache.Open(ctx, addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Warn("redis unavailable; running without claim guard and receipt cache", "addr", addr, "err", err)
		} else {
			closers = append(closers, func() { _ = rc.Close() })
			claimer, docs = rc, rc
			ready = append(ready, rc)
			logger.Info("redis enabled", "addr", addr)
		}
	}

	var publisher events.Publisher = events.LogPublisher{Log: logger}
	if len(cfg.Kafka.Brokers) > 0 {
		kp := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.TopicPrefix)
		closers = append(closers, func() { _ = kp.Close() })
		publisher = kp
		logger.Info("kafka publisher enabled", "brokers", cfg.Kafka.Brokers)
	}

	students := student.New(st, st)
	ledgers := tuition.New(st, st, st, tuition.WithPublisher(publisher), tuition.WithLogger(logger))
	hist, err := history.New(st, cfg.School.Currency, cfg.School.Name)
	if err != nil {
		logger.Error("invalid school currency", "currency", cfg.School.Currency, "err", err)
		os.Exit(1)
	}
	sweeper := &notify.Sweeper{
		Ledgers:       st,
		LedgerWriter:  st,
		Notifications: st,
		Claimer:       claimer,
		Publisher:     publisher,
		Log:           logger,
		Lookahead:     cfg.Sweep.Lookahead,
		DedupWindow:   cfg.Sweep.DedupWindow,
	}

	if cfg.Dev.Seed {
		if err := seedDev(ctx, logger, students, ledgers); err != nil {
			logger.Error("dev seed failed", "err", err)
		}
	}

	go sweeper.Start(ctx, cfg.Sweep.Interval)

	api := httpapi.New(httpapi.Deps{
		Students: students,
		Tuition:  ledgers,
		Feed:     notify.NewFeed(st),
		Sweeper:  sweeper,
		History:  hist,
		Cache:    docs,
		Ready:    ready,
	}, httpapi.Options{
		CORSAllowedOrigins: cfg.Server.CorsAllowedOrigins,
		JWTSecret:          cfg.JWT.Secret,
		JWTIssuer:          cfg.JWT.Issuer,
		SchoolName:         cfg.School.Name,
	}, logger)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("tuition service listening", "addr", srv.Addr, "auth", cfg.JWT.Secret != "")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			logger.Error("server shutdown error", "err", err)
		}
	case err := <-errCh:
		logger.Error("server error", "err", err)
	}
}

// parseLogLevel maps config values to slog.Leveler
func parseLogLevel(s string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "err":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildLogger(level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(level)}
	if strings.EqualFold(strings.TrimSpace(format), "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	// default to JSON
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
