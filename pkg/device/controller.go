package device

import (
	"context"
	"time"
)

// Controller defines the interface for controlling smart home devices.
// This abstraction allows the API and MCP surfaces to work with any
// backend (IR relays, Zigbee, Matter) through a unified interface.
type Controller interface {
	// ListDevices returns all set-up devices
	ListDevices(ctx context.Context) ([]Device, error)

	// GetDevice returns a single device by ID or name
	GetDevice(ctx context.Context, id string) (*Device, error)

	// GetDeviceState retrieves the current (possibly assumed) state of a device
	GetDeviceState(ctx context.Context, id string) (DeviceState, error)

	// SetDeviceState applies a state payload to a device and returns the new state
	SetDeviceState(ctx context.Context, id string, state map[string]any) (DeviceState, error)

	// Refresh re-reads the backend inventory and sets up newly seen devices
	Refresh(ctx context.Context) error

	// IsConnected returns true if the controller's last backend sync succeeded
	IsConnected() bool

	// Close releases controller resources
	Close()
}

// SyncReporter is implemented by controllers that poll their backend. It
// returns when the last sync finished and the error it ended with, if any.
type SyncReporter interface {
	LastSync() (time.Time, error)
}

// EventSubscriber defines the interface for subscribing to device state events
type EventSubscriber interface {
	// Subscribe returns a channel that receives state events
	Subscribe() chan StateEvent

	// Unsubscribe removes a subscription
	Unsubscribe(ch chan StateEvent)
}
