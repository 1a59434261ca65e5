package mcp

import (
	"encoding/json"

	"github.com/puchupala/hass-nature-remo/pkg/device"
)

// GetHealthOutput is the output for the get_health tool
type GetHealthOutput struct {
	Status     string `json:"status" jsonschema:"description=Overall health status (healthy or unhealthy)"`
	Controller string `json:"controller" jsonschema:"description=Nature Remo cloud connection status"`
	Devices    int    `json:"devices" jsonschema:"description=Number of set-up devices"`
	LastSync   string `json:"last_sync,omitempty" jsonschema:"description=ISO8601 time of the last appliance refresh"`
	LastError  string `json:"last_error,omitempty" jsonschema:"description=Error of the last appliance refresh"`
	Timestamp  string `json:"timestamp" jsonschema:"description=ISO8601 timestamp"`
}

// ListDevicesOutput is the output for the list_devices tool
type ListDevicesOutput struct {
	Devices []DeviceInfo `json:"devices" jsonschema:"description=Lights and TVs"`
	Count   int          `json:"count" jsonschema:"description=Total number of devices"`
}

// DeviceInfo represents a device in tool outputs
type DeviceInfo struct {
	ID           string          `json:"id" jsonschema:"description=Nature Remo appliance ID"`
	Name         string          `json:"name" jsonschema:"description=Appliance nickname"`
	Type         string          `json:"type" jsonschema:"description=Device type (light or tv)"`
	Protocol     string          `json:"protocol" jsonschema:"description=Communication protocol"`
	Manufacturer string          `json:"manufacturer,omitempty" jsonschema:"description=Device manufacturer"`
	Model        string          `json:"model,omitempty" jsonschema:"description=Device model"`
	AssumedState bool            `json:"assumed_state" jsonschema:"description=True when state is inferred from sent commands"`
	StateSchema  json.RawMessage `json:"state_schema,omitempty" jsonschema:"description=JSON Schema for settable state"`
	State        map[string]any  `json:"state,omitempty" jsonschema:"description=Current assumed state"`
}

// GetDeviceOutput is the output for the get_device tool
type GetDeviceOutput struct {
	Device DeviceInfo `json:"device" jsonschema:"description=Device information"`
}

// DeviceStateOutput is the output for get_device_state and every state-changing tool
type DeviceStateOutput struct {
	DeviceID string         `json:"device_id" jsonschema:"description=Device identifier"`
	Name     string         `json:"name,omitempty" jsonschema:"description=Device name"`
	State    map[string]any `json:"state" jsonschema:"description=Device state"`
}

// RefreshDevicesOutput is the output for the refresh_devices tool
type RefreshDevicesOutput struct {
	Success bool `json:"success" jsonschema:"description=Whether the refresh succeeded"`
	Count   int  `json:"count" jsonschema:"description=Number of devices after the refresh"`
}

// DeviceToInfo converts a device.Device to DeviceInfo
func DeviceToInfo(d *device.Device) DeviceInfo {
	return DeviceInfo{
		ID:           d.ID,
		Name:         d.Name,
		Type:         d.Type,
		Protocol:     d.Protocol,
		Manufacturer: d.Manufacturer,
		Model:        d.Model,
		AssumedState: d.AssumedState,
		StateSchema:  d.StateSchema,
	}
}
