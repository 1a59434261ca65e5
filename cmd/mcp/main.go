package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/puchupala/hass-nature-remo/pkg/app"
	"github.com/puchupala/hass-nature-remo/pkg/device/schema"
	remomcp "github.com/puchupala/hass-nature-remo/pkg/mcp"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (default: $NATURE_REMO_CONFIG)")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("Failed to load .env file")
	}

	cfg, err := app.LoadConfig(*configPath)
	if err != nil {
		app.SetupLogging(os.Stderr, "info")
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	// Logging must go to stderr, stdout is the MCP transport
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

	go a.Run(ctx)

	mcpServer := remomcp.NewServer(a.Controller, schema.NewValidator())

	log.Info().Msg("Starting MCP server on stdio")

	if err := mcpServer.ServeStdio(); err != nil {
		log.Error().Err(err).Msg("MCP server failed")
	}
}
