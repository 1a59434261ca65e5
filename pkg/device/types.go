package device

import (
	"encoding/json"
	"time"
)

// Device represents a protocol-agnostic smart home device
type Device struct {
	ID           string          `json:"id"`           // Unique identifier (appliance ID for Nature Remo)
	Name         string          `json:"name"`         // User-friendly name
	Type         string          `json:"type"`         // Device type (light, tv, ...)
	Protocol     string          `json:"protocol"`     // Protocol (nature_remo)
	Manufacturer string          `json:"manufacturer"` // Device manufacturer/vendor
	Model        string          `json:"model"`        // Device model
	AssumedState bool            `json:"assumed_state"`
	StateSchema  json.RawMessage `json:"state_schema"` // JSON Schema for settable state
}

// DeviceState represents the current state of a device as a dynamic map.
type DeviceState map[string]any

// StateEvent is published whenever a device writes a new state.
type StateEvent struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Device    *Device     `json:"device,omitempty"`
	State     DeviceState `json:"state,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Event type constants
const (
	EventStateChanged = "state_changed"
	EventDeviceAdded  = "device_added"
)

// ProtocolNatureRemo marks devices driven through the Nature Remo cloud
const ProtocolNatureRemo = "nature_remo"

// Device type constants
const (
	DeviceTypeLight = "light"
	DeviceTypeTV    = "tv"
)
