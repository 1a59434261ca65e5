package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	ctx := context.Background()
	require.NoError(t, database.Migrate(ctx))
	require.NoError(t, database.Bootstrap(ctx))
	return database
}

func TestMigrate_Idempotent(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, database.Migrate(ctx))
	version, err := database.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, currentSchemaVersion, version)
}

func TestBootstrap_DefaultConfig(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	needs, err := database.NeedsBootstrap(ctx)
	require.NoError(t, err)
	assert.False(t, needs)

	// A second bootstrap is a no-op
	require.NoError(t, database.Bootstrap(ctx))
	assert.Equal(t, 1, countProfiles(t, database))

	cfg, err := database.ActiveConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultProfile, cfg.Profile.Name)
	assert.Equal(t, "0.0.0.0:8080", cfg.APIAddress())
	assert.NotEmpty(t, cfg.Timezone())
}

func TestUseProfile_CreatesAndActivates(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	p, err := database.UseProfile(ctx, "cottage")
	require.NoError(t, err)
	assert.True(t, p.IsActive)

	cfg, err := database.ActiveConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, "cottage", cfg.Profile.Name)
	assert.Equal(t, p.ID, cfg.ProfileID())

	host, port, err := ParseAddress("127.0.0.1:9000")
	require.NoError(t, err)
	require.NoError(t, database.APIServers().Upsert(ctx, &APIServer{ProfileID: p.ID, Host: host, Port: port}))

	cfg, err = database.ActiveConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.APIAddress())

	// Switching back keeps the existing default profile
	_, err = database.UseProfile(ctx, DefaultProfile)
	require.NoError(t, err)
	assert.Equal(t, 2, countProfiles(t, database))
}

func countProfiles(t *testing.T, database *DB) int {
	t.Helper()
	var n int
	require.NoError(t, database.QueryRow(`SELECT COUNT(*) FROM profiles`).Scan(&n))
	return n
}

func TestParseAddress(t *testing.T) {
	host, port, err := ParseAddress(":8081")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", host)
	assert.Equal(t, 8081, port)

	_, _, err = ParseAddress("localhost")
	assert.Error(t, err)
	_, _, err = ParseAddress("localhost:0")
	assert.Error(t, err)
}

func TestDevices_UpsertAndState(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	cfg, err := database.ActiveConfig(ctx)
	require.NoError(t, err)
	store := database.Devices(cfg.ProfileID())

	_, err = store.Get(ctx, "tv-1")
	assert.ErrorIs(t, err, ErrDeviceNotFound)
	assert.ErrorIs(t, store.SaveState(ctx, "tv-1", map[string]any{}), ErrDeviceNotFound)

	rec := &DeviceRecord{
		ID:           "tv-1",
		Name:         "Living TV",
		Type:         "tv",
		Protocol:     "nature_remo",
		AssumedState: true,
		StateSchema:  []byte(`{"type":"object"}`),
	}
	require.NoError(t, store.Upsert(ctx, rec))

	got, err := store.Get(ctx, "tv-1")
	require.NoError(t, err)
	assert.Equal(t, "Living TV", got.Name)
	assert.True(t, got.AssumedState)
	assert.Empty(t, got.State)
	assert.JSONEq(t, `{"type":"object"}`, string(got.StateSchema))

	require.NoError(t, store.SaveState(ctx, "tv-1", map[string]any{"state": "ON", "is_volume_muted": true}))

	// Re-upserting the description keeps the stored state
	rec.Name = "Bedroom TV"
	require.NoError(t, store.Upsert(ctx, rec))

	got, err = store.Get(ctx, "tv-1")
	require.NoError(t, err)
	assert.Equal(t, "Bedroom TV", got.Name)
	assert.Equal(t, "ON", got.State["state"])
	assert.Equal(t, true, got.State["is_volume_muted"])

	assert.ErrorIs(t, store.SaveState(ctx, "tv-2", map[string]any{"state": "ON"}), ErrDeviceNotFound)
}

func TestDevices_ScopedByProfile(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	home, err := database.Profiles().GetByName(ctx, DefaultProfile)
	require.NoError(t, err)
	other, err := database.UseProfile(ctx, "other")
	require.NoError(t, err)

	require.NoError(t, database.Devices(home.ID).Upsert(ctx, &DeviceRecord{ID: "light-1", Name: "Light"}))

	_, err = database.Devices(other.ID).Get(ctx, "light-1")
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestResolvePath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := resolvePath("~/remo/state.db")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "remo", "state.db"), got)

	got, err = resolvePath("/tmp/remo.db")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/remo.db", got)

	got, err = resolvePath("")
	require.NoError(t, err)
	assert.Equal(t, "remo-bridge.db", filepath.Base(got))
}
