// Command server runs the chartpulse backend: the two-tier market data cache,
// the nightly ETL, the game engine, and the HTTP/WebSocket API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/chartpulse/backend/cache"
	zaplog "github.com/chartpulse/backend/cache/log/zap"
	"github.com/chartpulse/backend/cache/provider/memory"
	"github.com/chartpulse/backend/cache/provider/redis"
	"github.com/chartpulse/backend/internal/config"
	"github.com/chartpulse/backend/internal/etl"
	"github.com/chartpulse/backend/internal/game"
	"github.com/chartpulse/backend/internal/httpapi"
	"github.com/chartpulse/backend/internal/marketdata"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		stderr := zap.Must(zap.NewProduction())
		stderr.Fatal("invalid configuration", zap.Error(err))
	}

	log, err := newLogger(cfg)
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	zcfg := zap.NewProductionConfig()
	if err := zcfg.Level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		zcfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return zcfg.Build()
}

func run(cfg *config.Config, log *zap.Logger) error {
	remote := redis.New(redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
	})
	if remote.Ping(context.Background()) {
		log.Info("connected to redis", zap.String("host", cfg.RedisHost), zap.Int("port", cfg.RedisPort))
	} else {
		log.Warn("redis unreachable at startup, serving from fallback until it recovers",
			zap.String("host", cfg.RedisHost), zap.Int("port", cfg.RedisPort))
	}

	c, err := cache.New(cache.Options{
		Remote:        remote,
		Fallback:      memory.New(cfg.FallbackCapacity),
		Logger:        zaplog.Logger{L: log.Named("cache")},
		DefaultTTL:    cfg.DefaultTTL,
		RetryInterval: cfg.RetryInterval,
	})
	if err != nil {
		return err
	}

	client := marketdata.NewClient(marketdata.Config{APIKey: cfg.AlphaVantageAPIKey}, log.Named("marketdata"))
	proc := etl.NewProcessor(c, client, cfg.DataDir, cfg.MarketDataTTL, log.Named("etl"))
	sched := etl.NewScheduler(proc, cfg.ETLScheduleHour, cfg.ETLScheduleMinute, log.Named("etl"))
	sched.Start()

	svc := game.NewService(c, time.Now().UnixNano())
	engine := game.NewEngine(svc, log.Named("game"))

	api := httpapi.NewServer(engine, sched, log.Named("http"))
	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      api.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.ServerAddress))
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("graceful shutdown incomplete", zap.Error(err))
	}

	if err := c.Close(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		log.Warn("cache close", zap.Error(err))
	}
	return nil
}
