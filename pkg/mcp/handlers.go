package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/puchupala/hass-nature-remo/pkg/device"
)

const maxVolumeSteps = 10

func (s *Server) handleGetHealth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	controllerStatus := "disconnected"
	if s.controller.IsConnected() {
		controllerStatus = "connected"
	}

	status := "healthy"
	if controllerStatus != "connected" {
		status = "unhealthy"
	}

	out := GetHealthOutput{
		Status:     status,
		Controller: controllerStatus,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	if devices, err := s.controller.ListDevices(ctx); err == nil {
		out.Devices = len(devices)
	}
	if sr, ok := s.controller.(device.SyncReporter); ok {
		at, err := sr.LastSync()
		if !at.IsZero() {
			out.LastSync = at.UTC().Format(time.RFC3339)
		}
		if err != nil {
			out.LastError = err.Error()
		}
	}

	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleListDevices(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	devices, err := s.controller.ListDevices(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list devices: %s", err)), nil
	}

	infos := make([]DeviceInfo, 0, len(devices))
	for i := range devices {
		info := DeviceToInfo(&devices[i])
		if state, err := s.controller.GetDeviceState(ctx, devices[i].ID); err == nil {
			info.State = state
		}
		infos = append(infos, info)
	}

	out := ListDevicesOutput{
		Devices: infos,
		Count:   len(infos),
	}

	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleGetDevice(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requiredString(request, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	d, err := s.controller.GetDevice(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("device not found: %s", err)), nil
	}

	info := DeviceToInfo(d)
	if state, err := s.controller.GetDeviceState(ctx, d.ID); err == nil {
		info.State = state
	}

	out := GetDeviceOutput{Device: info}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleGetDeviceState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requiredString(request, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	state, err := s.controller.GetDeviceState(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get device state: %s", err)), nil
	}

	out := DeviceStateOutput{
		DeviceID: id,
		State:    state,
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleSetDeviceState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requiredString(request, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	args := request.GetArguments()

	// State can be passed as a nested "state" object or as flat args;
	// a string "state" is the flat power property.
	stateMap, ok := args["state"].(map[string]any)
	if !ok {
		stateMap = map[string]any{}
		for k, v := range args {
			if k != "id" {
				stateMap[k] = v
			}
		}
	}

	return s.applyState(ctx, id, stateMap, "set device state")
}

func (s *Server) handleTurnOn(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requiredString(request, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.applyState(ctx, id, map[string]any{"state": "ON"}, "turn on device")
}

func (s *Server) handleTurnOff(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requiredString(request, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.applyState(ctx, id, map[string]any{"state": "OFF"}, "turn off device")
}

func (s *Server) handleSelectSource(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requiredString(request, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	source, err := requiredString(request, "source")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.applyState(ctx, id, map[string]any{"source": source}, "select source")
}

func (s *Server) handleMuteVolume(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requiredString(request, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var mute any = "toggle"
	if v, ok := request.GetArguments()["mute"].(bool); ok {
		mute = v
	}

	return s.applyState(ctx, id, map[string]any{"mute": mute}, "mute volume")
}

func (s *Server) handleVolumeStep(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requiredString(request, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	direction, err := requiredString(request, "direction")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if direction != "up" && direction != "down" {
		return mcp.NewToolResultError(`parameter "direction" must be "up" or "down"`), nil
	}

	steps := 1
	if v, ok := request.GetArguments()["steps"].(float64); ok && v >= 1 {
		steps = min(int(v), maxVolumeSteps)
	}

	var result *mcp.CallToolResult
	for range steps {
		result, err = s.applyState(ctx, id, map[string]any{"volume": direction}, "step volume")
		if err != nil || result.IsError {
			return result, err
		}
	}
	return result, nil
}

func (s *Server) handleMediaControl(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requiredString(request, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	command, err := requiredString(request, "command")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.applyState(ctx, id, map[string]any{"media": command}, "send media command")
}

func (s *Server) handleRefreshDevices(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.controller.Refresh(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to refresh devices: %s", err)), nil
	}

	devices, err := s.controller.ListDevices(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list devices: %s", err)), nil
	}

	out := RefreshDevicesOutput{
		Success: true,
		Count:   len(devices),
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

// applyState validates a payload against the device schema and applies it.
func (s *Server) applyState(ctx context.Context, id string, payload map[string]any, action string) (*mcp.CallToolResult, error) {
	d, err := s.controller.GetDevice(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("device not found: %s", err)), nil
	}

	if s.validator != nil {
		if err := s.validator.Validate(d.StateSchema, payload); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("validation error: %s", err)), nil
		}
	}

	state, err := s.controller.SetDeviceState(ctx, d.ID, payload)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to %s: %s", action, err)), nil
	}

	out := DeviceStateOutput{
		DeviceID: d.ID,
		Name:     d.Name,
		State:    state,
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

// --- helpers ---

func requiredString(request mcp.CallToolRequest, key string) (string, error) {
	args := request.GetArguments()
	v, ok := args[key]
	if !ok || v == nil {
		return "", fmt.Errorf("required parameter %q is missing", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("parameter %q must be a non-empty string", key)
	}
	return s, nil
}

func formatJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to marshal response: %s"}`, err)
	}
	return string(b)
}
