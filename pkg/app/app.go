// Package app wires configuration, persistence and the Nature Remo bridge
// together for the API and MCP binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/puchupala/hass-nature-remo/pkg/bridge"
	"github.com/puchupala/hass-nature-remo/pkg/config"
	"github.com/puchupala/hass-nature-remo/pkg/db"
	"github.com/puchupala/hass-nature-remo/pkg/device"
	"github.com/puchupala/hass-nature-remo/pkg/remo"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// App holds the long-lived components shared by both binaries.
type App struct {
	Config       *config.Config
	DB           *db.DB
	ServerConfig *db.Config
	Controller   device.Controller
	Events       device.EventSubscriber

	client      *remo.Client
	coordinator *remo.Coordinator
}

// SetupLogging configures the global zerolog logger. Output must not be
// stdout when serving MCP over stdio.
func SetupLogging(out io.Writer, level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: out})

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		log.Warn().Str("level", level).Msg("Unknown log level, using info")
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// Open opens the database and builds the device controller. When the
// configuration cannot reach the cloud a NullController is used instead,
// so the surfaces still come up and report themselves unhealthy.
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	database, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, DB: database}

	a.ServerConfig, err = database.ActiveConfig(ctx)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log.Info().
		Str("profile", a.ServerConfig.Profile.Name).
		Str("timezone", a.ServerConfig.Timezone()).
		Str("api_address", a.ServerConfig.APIAddress()).
		Msg("Configuration loaded")

	if err := cfg.Validate(); err != nil {
		if errors.Is(err, config.ErrMissingToken) {
			log.Warn().Msg("No Nature Remo access token configured, using null controller")
		} else {
			log.Warn().Err(err).Msg("Invalid Nature Remo configuration, using null controller")
		}
		a.Controller = device.NewNullController()
		a.Events = device.NewNullEventSubscriber()
		return a, nil
	}

	a.client = remo.NewClient(cfg.Remo.AccessToken, remo.Options{
		BaseURL:   cfg.Remo.BaseURL,
		Timeout:   cfg.Remo.Timeout.Duration(),
		RateLimit: cfg.Remo.RateLimitRPS,
		Burst:     cfg.Remo.RateLimitBurst,
	})
	a.coordinator = remo.NewCoordinator(a.client, cfg.Remo.PollInterval.Duration())

	ctrl := bridge.NewController(a.coordinator, a.client, bridge.Options{
		LightName:   cfg.ToggleLight.Name,
		LightButton: cfg.ToggleLight.Button,
		LightDelay:  cfg.ToggleLight.Delay.Duration(),
		Store:       database.Devices(a.ServerConfig.ProfileID()),
	})

	// A failed first refresh is retried by the polling loop.
	if err := ctrl.Setup(ctx); err != nil {
		log.Warn().Err(err).Msg("Nature Remo cloud not reachable, will retry on next poll")
	} else {
		devices, _ := ctrl.ListDevices(ctx)
		log.Info().Int("devices", len(devices)).Msg("Nature Remo devices set up")
	}

	a.Controller = ctrl
	a.Events = ctrl
	return a, nil
}

func openDatabase(ctx context.Context, cfg *config.Config) (*db.DB, error) {
	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	log.Info().Str("path", database.Path()).Msg("Database opened")

	if err := database.Migrate(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	needsBootstrap, err := database.NeedsBootstrap(ctx)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to check bootstrap status: %w", err)
	}
	if needsBootstrap {
		log.Info().Msg("First run detected, bootstrapping database...")
		if err := database.Bootstrap(ctx); err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to bootstrap database: %w", err)
		}
		log.Info().Msg("Database bootstrapped successfully")
	}

	if cfg.Profile != "" {
		if _, err := database.UseProfile(ctx, cfg.Profile); err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to select profile %q: %w", cfg.Profile, err)
		}
	}

	return database, nil
}

// SetListenAddress stores addr as the active profile's API listen address.
func (a *App) SetListenAddress(ctx context.Context, addr string) error {
	host, port, err := db.ParseAddress(addr)
	if err != nil {
		return err
	}
	server := &db.APIServer{ProfileID: a.ServerConfig.ProfileID(), Host: host, Port: port}
	if err := a.DB.APIServers().Upsert(ctx, server); err != nil {
		return fmt.Errorf("failed to save listen address: %w", err)
	}
	a.ServerConfig.APIServer = server
	return nil
}

// Run polls the cloud until ctx is cancelled. It returns immediately when
// running with the null controller.
func (a *App) Run(ctx context.Context) {
	if a.coordinator == nil {
		return
	}
	a.coordinator.Run(ctx)
}

// Close releases the controller, the HTTP client and the database.
func (a *App) Close() error {
	a.Controller.Close()
	if a.client != nil {
		a.client.Close()
	}
	return a.DB.Close()
}

// LoadConfig reads the YAML config file at path; an empty path falls back
// to $NATURE_REMO_CONFIG and then to defaults.
func LoadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = os.Getenv("NATURE_REMO_CONFIG")
	}
	return config.Load(path)
}
