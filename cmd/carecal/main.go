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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"carecal/internal/api"
	"carecal/internal/careapi"
	"carecal/internal/config"
	"carecal/internal/engine"
	"carecal/internal/events"
	"carecal/internal/metrics"
	"carecal/internal/view"
)

func main() {
	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CARECAL_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Backend.BaseURL == "" {
		logger.Fatal().Msg("set backend.base_url in config")
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Str("timezone", cfg.Facility.Timezone).Msg("invalid facility timezone")
	}
	time.Local = loc

	client := careapi.NewClient(cfg.Backend.BaseURL, cfg.Backend.APIKey, cfg.BackendTimeout(), cfg.Backend.RequestsPerSecond)
	var rdb *redis.Client
	if cfg.Redis.Address != "" && cfg.Redis.CacheTTLSeconds > 0 {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		client.UseRedisCache(rdb, cfg.CacheTTL())
	}

	bus := events.NewBus()
	metrics.BindBus(bus)
	eng := engine.New(client, bus, &logger, engine.Rules{
		MinAdvance: cfg.BookingMinAdvance(),
		MaxAdvance: cfg.BookingMaxAdvance(),
	})
	eng.SetPagination(cfg.Backend.PageSize, cfg.Backend.PageCeiling)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Register()
	if cfg.Monitoring.PrometheusEnabled {
		port := cfg.Monitoring.PrometheusPort
		if port == 0 {
			port = 9090
		}
		go startMetricsServer(ctx, port, &logger)
	}

	// Initial aggregation: current week, unscoped.
	if err := eng.SetWindow(ctx, time.Now(), view.ModeWeek); err != nil {
		logger.Error().Err(err).Msg("initial aggregation failed")
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.ListenAddress,
		Handler:           api.NewServer(eng, client, &logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTP.ListenAddress).Msg("calendar API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
	if rdb != nil {
		_ = rdb.Close()
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info().Int("port", port).Msg("metrics server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
