package types

import (
	"encoding/json"
	"time"
)

// --- Response DTOs ---

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error      string   `json:"error"`
	Message    string   `json:"message,omitempty"`
	Properties []string `json:"properties,omitempty"`
}

// HealthResponse is returned from GET /health
type HealthResponse struct {
	Status     string `json:"status"`
	Controller string `json:"controller"`
	Devices    int    `json:"devices"`
	// LastSync is when the appliance list was last fetched from the cloud
	LastSync  *time.Time `json:"last_sync,omitempty"`
	LastError string     `json:"last_error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// ListDevicesResponse is returned from GET /devices
type ListDevicesResponse struct {
	Devices []DeviceWithState `json:"devices"`
	Count   int               `json:"count"`
}

// DeviceWithState combines device info with current state
type DeviceWithState struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Type         string          `json:"type"`
	Protocol     string          `json:"protocol"`
	Manufacturer string          `json:"manufacturer,omitempty"`
	Model        string          `json:"model,omitempty"`
	AssumedState bool            `json:"assumed_state"`
	StateSchema  json.RawMessage `json:"state_schema,omitempty"`
	State        map[string]any  `json:"state,omitempty"`
}

// DeviceResponse is returned from GET /devices/:id
type DeviceResponse struct {
	Device DeviceWithState `json:"device"`
}

// StateResponse is returned from GET/POST /devices/:id/state
type StateResponse struct {
	Device    string         `json:"device"`
	State     map[string]any `json:"state"`
	Timestamp time.Time      `json:"timestamp"`
}

// RefreshResponse is returned from POST /devices/refresh
type RefreshResponse struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// EventMessage is the payload of SSE and WebSocket state events
type EventMessage struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Device    DeviceWithState `json:"device"`
	Timestamp time.Time       `json:"timestamp"`
}
