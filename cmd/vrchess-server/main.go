package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/park285/cheese-vrchess/internal/config"
	"github.com/park285/cheese-vrchess/internal/lobby"
	"github.com/park285/cheese-vrchess/internal/obslog"
	"github.com/park285/cheese-vrchess/internal/roster"
	"github.com/park285/cheese-vrchess/internal/server"
	"github.com/park285/cheese-vrchess/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logging init error: %v", err)
	}
	defer obslog.Sync()

	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}()

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := config.ParseRedisURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis url error: %v", err)
		}
		rdb = redis.NewClient(opts)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = rdb.Ping(ctx).Err()
		cancel()
		if err != nil {
			log.Fatalf("redis ping: %v", err)
		}
		closers = append(closers, rdb)
	}

	sink, err := buildSinks(cfg, rdb, &closers)
	if err != nil {
		log.Fatalf("telemetry init error: %v", err)
	}
	recorder := telemetry.NewRecorder(sink)

	avatars, err := roster.New(cfg.AvatarRosterDir)
	if err != nil {
		log.Fatalf("roster init error: %v", err)
	}

	var dir *lobby.Directory
	if rdb != nil {
		dir = lobby.NewDirectory(rdb)
	}
	hub := lobby.NewHub(cfg.MaxLobbies, lobby.Options{
		RedirectURL: cfg.RedirectURL,
		Roster:      avatars,
		Recorder:    recorder,
	}, dir)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.NewRouter(hub, server.Options{OriginPatterns: cfg.AllowedOrigins}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		obslog.L().Info("server_listen", zap.String("addr", cfg.ListenAddr), zap.Strings("telemetry_sinks", cfg.TelemetrySinks))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			obslog.L().Fatal("server_listen_error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		obslog.L().Warn("server_shutdown_error", zap.Error(err))
	}
	obslog.L().Info("server_stopped")
}

func buildSinks(cfg *config.AppConfig, rdb *redis.Client, closers *[]io.Closer) (telemetry.Sink, error) {
	var sinks telemetry.Multi
	if cfg.HasSink(config.SinkFile) {
		fs, err := telemetry.NewFileSink(cfg.TelemetryDir)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, fs)
	}
	if cfg.HasSink(config.SinkRedis) {
		sinks = append(sinks, telemetry.NewRedisSink(rdb))
	}
	if cfg.HasSink(config.SinkPostgres) {
		pg, err := telemetry.NewPostgresSink(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, pg)
		sinks = append(sinks, pg)
	}
	return sinks, nil
}
