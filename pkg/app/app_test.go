package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/puchupala/hass-nature-remo/pkg/config"
	"github.com/puchupala/hass-nature-remo/pkg/device"
	"github.com/puchupala/hass-nature-remo/pkg/remo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("NATURE_REMO_TOKEN", "")
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "remo.db")
	return cfg
}

func fakeCloud(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/1/appliances" {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode([]remo.Appliance{
			{
				ID: "tv-1", Type: remo.ApplianceTypeTV, Nickname: "Living TV",
				TV: &remo.TV{Buttons: []remo.Button{{Name: "power"}, {Name: "input-bs"}}},
			},
			{
				ID: "ir-1", Type: remo.ApplianceTypeIR, Nickname: "Ceiling",
				Signals: []remo.Signal{{ID: "sig-1", Name: "Toggle"}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpen_WithoutTokenUsesNullController(t *testing.T) {
	cfg := testConfig(t)

	a, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &device.NullController{}, a.Controller)
	assert.False(t, a.Controller.IsConnected())
	assert.Equal(t, "default", a.ServerConfig.Profile.Name)

	// Returns at once without a coordinator
	a.Run(context.Background())
}

func TestOpen_SetsUpDevicesFromCloud(t *testing.T) {
	srv := fakeCloud(t)
	cfg := testConfig(t)
	cfg.Remo.AccessToken = "secret"
	cfg.Remo.BaseURL = srv.URL
	cfg.Remo.RateLimitRPS = 1000
	cfg.ToggleLight.Name = "ceiling"

	a, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.True(t, a.Controller.IsConnected())

	devices, err := a.Controller.ListDevices(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, "Ceiling", devices[0].Name)
	assert.Equal(t, device.DeviceTypeLight, devices[0].Type)
	assert.Equal(t, device.DeviceTypeTV, devices[1].Type)
}

func TestOpen_UnreachableCloudKeepsBridge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.Remo.AccessToken = "secret"
	cfg.Remo.BaseURL = srv.URL
	cfg.Remo.RateLimitRPS = 1000

	a, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.coordinator)
	assert.False(t, a.Controller.IsConnected())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	a.Run(ctx)
}

func TestOpen_SelectsProfile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Profile = "upstairs"

	a, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, "upstairs", a.ServerConfig.Profile.Name)
}

func TestSetListenAddress(t *testing.T) {
	cfg := testConfig(t)

	a, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.SetListenAddress(context.Background(), "127.0.0.1:9090"))
	assert.Equal(t, "127.0.0.1:9090", a.ServerConfig.APIAddress())

	reloaded, err := a.DB.ActiveConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9090", reloaded.APIAddress())

	assert.Error(t, a.SetListenAddress(context.Background(), "nonsense"))
}

func TestLoadConfig_EnvPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, writeFile(path, "togglelight:\n  name: Desk\n"))
	t.Setenv("NATURE_REMO_CONFIG", path)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "Desk", cfg.ToggleLight.Name)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}
