package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("NATURE_REMO_TOKEN", "from-env")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Remo.AccessToken)
	assert.Equal(t, 10*time.Second, cfg.Remo.Timeout.Duration())
	assert.Equal(t, time.Minute, cfg.Remo.PollInterval.Duration())
	assert.Equal(t, 0.1, cfg.Remo.RateLimitRPS)
	assert.Equal(t, 5, cfg.Remo.RateLimitBurst)
	assert.Equal(t, "toggle", cfg.ToggleLight.Button)
	assert.Equal(t, 500*time.Millisecond, cfg.ToggleLight.Delay.Duration())
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_File(t *testing.T) {
	t.Setenv("REMO_TEST_TOKEN", "abc123")

	path := filepath.Join(t.TempDir(), "remo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
remo:
  access_token: ${REMO_TEST_TOKEN}
  base_url: ${REMO_TEST_BASE:https://example.test}
  poll_interval: 2m
togglelight:
  name: " Bedroom Light "
  button: power
  delay: 750
log:
  level: debug
profile: cottage
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "abc123", cfg.Remo.AccessToken)
	assert.Equal(t, "https://example.test", cfg.Remo.BaseURL)
	assert.Equal(t, 2*time.Minute, cfg.Remo.PollInterval.Duration())
	assert.Equal(t, " Bedroom Light ", cfg.ToggleLight.Name)
	assert.Equal(t, "power", cfg.ToggleLight.Button)
	assert.Equal(t, 750*time.Millisecond, cfg.ToggleLight.Delay.Duration())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "cottage", cfg.Profile)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_BadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "remo.yaml")
	require.NoError(t, os.WriteFile(path, []byte("togglelight:\n  delay: soon\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Setenv("NATURE_REMO_TOKEN", "")

	cfg := Default()
	assert.ErrorIs(t, cfg.Validate(), ErrMissingToken)

	cfg.Remo.AccessToken = "token"
	cfg.Remo.PollInterval = Duration(time.Second)
	assert.Error(t, cfg.Validate())

	cfg.Remo.PollInterval = Duration(time.Minute)
	assert.NoError(t, cfg.Validate())
}
