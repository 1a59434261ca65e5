package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/puchupala/hass-nature-remo/pkg/device"
	"github.com/puchupala/hass-nature-remo/pkg/device/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tvSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"state": {"type": "string", "enum": ["ON", "OFF"]},
		"source": {"type": "string", "enum": ["Terrestrial", "BS"]},
		"mute": {"enum": [true, false, "toggle"]},
		"volume": {"type": "string", "enum": ["up", "down"]},
		"media": {"type": "string", "enum": ["play", "pause"]}
	},
	"additionalProperties": false,
	"minProperties": 1
}`)

type fakeController struct {
	device    device.Device
	state     device.DeviceState
	applied   []map[string]any
	setErr    error
	connected bool
	refreshes int
}

func newFakeController() *fakeController {
	return &fakeController{
		device: device.Device{
			ID:          "tv-1",
			Name:        "Living TV",
			Type:        device.DeviceTypeTV,
			Protocol:    device.ProtocolNatureRemo,
			StateSchema: tvSchema,
		},
		state:     device.DeviceState{"state": "OFF", "is_volume_muted": false},
		connected: true,
	}
}

func (f *fakeController) ListDevices(ctx context.Context) ([]device.Device, error) {
	return []device.Device{f.device}, nil
}

func (f *fakeController) GetDevice(ctx context.Context, id string) (*device.Device, error) {
	if id != f.device.ID && id != f.device.Name {
		return nil, device.ErrNotFound
	}
	d := f.device
	return &d, nil
}

func (f *fakeController) GetDeviceState(ctx context.Context, id string) (device.DeviceState, error) {
	if _, err := f.GetDevice(ctx, id); err != nil {
		return nil, err
	}
	return f.state, nil
}

func (f *fakeController) SetDeviceState(ctx context.Context, id string, state map[string]any) (device.DeviceState, error) {
	if f.setErr != nil {
		return nil, f.setErr
	}
	f.applied = append(f.applied, state)
	if v, ok := state["state"]; ok {
		f.state["state"] = v
	}
	switch v := state["mute"].(type) {
	case bool:
		f.state["is_volume_muted"] = v
	case string:
		muted, _ := f.state["is_volume_muted"].(bool)
		f.state["is_volume_muted"] = !muted
	}
	return f.state, nil
}

func (f *fakeController) Refresh(ctx context.Context) error {
	f.refreshes++
	return nil
}

func (f *fakeController) IsConnected() bool { return f.connected }

func (f *fakeController) Close() {}

func callTool(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func TestGetHealth(t *testing.T) {
	ctrl := newFakeController()
	s := NewServer(ctrl, schema.NewValidator())

	result, err := s.handleGetHealth(context.Background(), callTool(nil))
	require.NoError(t, err)

	var out GetHealthOutput
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &out))
	assert.Equal(t, "healthy", out.Status)
	assert.Equal(t, 1, out.Devices)

	assert.Empty(t, out.LastSync)

	ctrl.connected = false
	result, err = s.handleGetHealth(context.Background(), callTool(nil))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &out))
	assert.Equal(t, "unhealthy", out.Status)
}

func TestListAndGetDevice(t *testing.T) {
	s := NewServer(newFakeController(), schema.NewValidator())

	result, err := s.handleListDevices(context.Background(), callTool(nil))
	require.NoError(t, err)

	var list ListDevicesOutput
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &list))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "OFF", list.Devices[0].State["state"])

	result, err = s.handleGetDevice(context.Background(), callTool(map[string]any{"id": "Living TV"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	result, err = s.handleGetDevice(context.Background(), callTool(map[string]any{"id": "nope"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = s.handleGetDevice(context.Background(), callTool(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestSetDeviceState(t *testing.T) {
	ctrl := newFakeController()
	s := NewServer(ctrl, schema.NewValidator())

	result, err := s.handleSetDeviceState(context.Background(), callTool(map[string]any{
		"id":    "tv-1",
		"state": map[string]any{"state": "ON", "source": "BS"},
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))
	require.Len(t, ctrl.applied, 1)
	assert.Equal(t, "BS", ctrl.applied[0]["source"])

	// Flat arguments are accepted too
	result, err = s.handleSetDeviceState(context.Background(), callTool(map[string]any{
		"id":     "tv-1",
		"volume": "up",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Equal(t, "up", ctrl.applied[1]["volume"])

	result, err = s.handleSetDeviceState(context.Background(), callTool(map[string]any{
		"id":    "tv-1",
		"state": "OFF",
		"mute":  true,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Equal(t, map[string]any{"state": "OFF", "mute": true}, ctrl.applied[2])
}

func TestSetDeviceStateValidation(t *testing.T) {
	ctrl := newFakeController()
	s := NewServer(ctrl, schema.NewValidator())

	result, err := s.handleSetDeviceState(context.Background(), callTool(map[string]any{
		"id":    "tv-1",
		"state": map[string]any{"source": "Cable"},
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "validation error")
	assert.Empty(t, ctrl.applied)
}

func TestTurnOnOff(t *testing.T) {
	ctrl := newFakeController()
	s := NewServer(ctrl, schema.NewValidator())

	result, err := s.handleTurnOn(context.Background(), callTool(map[string]any{"id": "tv-1"}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Equal(t, "ON", ctrl.state["state"])

	result, err = s.handleTurnOff(context.Background(), callTool(map[string]any{"id": "tv-1"}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Equal(t, "OFF", ctrl.state["state"])
}

func TestTurnOnControllerError(t *testing.T) {
	ctrl := newFakeController()
	ctrl.setErr = device.ErrTimeout
	s := NewServer(ctrl, schema.NewValidator())

	result, err := s.handleTurnOn(context.Background(), callTool(map[string]any{"id": "tv-1"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "failed to turn on device")
}

func TestMuteVolume(t *testing.T) {
	ctrl := newFakeController()
	s := NewServer(ctrl, schema.NewValidator())

	// No argument asks the device to toggle
	result, err := s.handleMuteVolume(context.Background(), callTool(map[string]any{"id": "tv-1"}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Equal(t, "toggle", ctrl.applied[0]["mute"])
	assert.Equal(t, true, ctrl.state["is_volume_muted"])

	result, err = s.handleMuteVolume(context.Background(), callTool(map[string]any{"id": "tv-1"}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Equal(t, "toggle", ctrl.applied[1]["mute"])
	assert.Equal(t, false, ctrl.state["is_volume_muted"])

	result, err = s.handleMuteVolume(context.Background(), callTool(map[string]any{"id": "tv-1", "mute": false}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Equal(t, false, ctrl.applied[2]["mute"])
}

func TestVolumeStep(t *testing.T) {
	ctrl := newFakeController()
	s := NewServer(ctrl, schema.NewValidator())

	result, err := s.handleVolumeStep(context.Background(), callTool(map[string]any{
		"id": "tv-1", "direction": "down", "steps": float64(3),
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Len(t, ctrl.applied, 3)
	assert.Equal(t, "down", ctrl.applied[2]["volume"])

	result, err = s.handleVolumeStep(context.Background(), callTool(map[string]any{
		"id": "tv-1", "direction": "up", "steps": float64(50),
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Len(t, ctrl.applied, 3+maxVolumeSteps)

	result, err = s.handleVolumeStep(context.Background(), callTool(map[string]any{
		"id": "tv-1", "direction": "sideways",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestSelectSourceAndMediaControl(t *testing.T) {
	ctrl := newFakeController()
	s := NewServer(ctrl, schema.NewValidator())

	result, err := s.handleSelectSource(context.Background(), callTool(map[string]any{"id": "tv-1", "source": "Terrestrial"}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	result, err = s.handleMediaControl(context.Background(), callTool(map[string]any{"id": "tv-1", "command": "pause"}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	// Not in this TV's schema
	result, err = s.handleMediaControl(context.Background(), callTool(map[string]any{"id": "tv-1", "command": "stop"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	require.Len(t, ctrl.applied, 2)
	assert.Equal(t, "Terrestrial", ctrl.applied[0]["source"])
	assert.Equal(t, "pause", ctrl.applied[1]["media"])
}

func TestRefreshDevices(t *testing.T) {
	ctrl := newFakeController()
	s := NewServer(ctrl, schema.NewValidator())

	result, err := s.handleRefreshDevices(context.Background(), callTool(nil))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Equal(t, 1, ctrl.refreshes)

	s = NewServer(device.NewNullController(), schema.NewValidator())
	result, err = s.handleRefreshDevices(context.Background(), callTool(nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
