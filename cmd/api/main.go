package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"example.com/officereport/internal/api"
	"example.com/officereport/internal/auth"
	"example.com/officereport/internal/config"
	"example.com/officereport/internal/domain"
	"example.com/officereport/internal/logging"
	"example.com/officereport/internal/persistence"
	httptransport "example.com/officereport/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logging.New("production")
		fallback.Fatal().Err(err).Msg("invalid configuration")
	}
	logger := logging.New(cfg.AppEnv).With().Str("service", "office-report-api").Logger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := persistence.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open record store")
	}
	defer closeStore()

	service := domain.NewService(store, cfg.PeriodPolicy,
		domain.WithClock(func() time.Time { return time.Now().In(cfg.Location) }),
		domain.WithLogger(logger),
	)
	handler := api.NewHandler(service, logger)
	router := httptransport.NewRouter(handler, auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, logger)

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTPAddress,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, router)

	go func() {
		logger.Info().Str("address", cfg.HTTPAddress).Str("store", string(cfg.StoreDriver)).Str("period_policy", cfg.PeriodPolicy.String()).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		os.Exit(1)
	}
	logger.Info().Msg("stopped")
}
