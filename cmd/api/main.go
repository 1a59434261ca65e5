package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/puchupala/hass-nature-remo/pkg/api"
	"github.com/puchupala/hass-nature-remo/pkg/app"
	"github.com/puchupala/hass-nature-remo/pkg/device/schema"
	"github.com/rs/zerolog/log"

	_ "github.com/puchupala/hass-nature-remo/docs"
)

// @title           Nature Remo Bridge API
// @version         1.0
// @description     REST API for IR lights and TVs driven through Nature Remo

// @host      localhost:8080
// @BasePath  /api/v1
// @schemes   http https

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (default: $NATURE_REMO_CONFIG)")
	listen := flag.String("listen", "", "API listen address, saved to the active profile (e.g. 0.0.0.0:8080)")
	flag.Parse()

	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("Failed to load .env file")
	}

	cfg, err := app.LoadConfig(*configPath)
	if err != nil {
		app.SetupLogging(os.Stderr, "info")
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	app.SetupLogging(os.Stderr, cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start")
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}()

	if *listen != "" {
		if err := a.SetListenAddress(ctx, *listen); err != nil {
			log.Fatal().Err(err).Msg("Invalid listen address")
		}
	}

	go a.Run(ctx)

	router := api.NewRouter(a.Controller, a.Events, schema.NewValidator())

	addr := a.ServerConfig.APIAddress()
	srv := &http.Server{
		Addr:              addr,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Info().Msg("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown failed")
		}
	}()

	log.Info().Str("address", addr).Msg("Starting API server")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("Server failed")
	}
}
