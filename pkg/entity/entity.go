// Package entity implements the Nature Remo backed devices: a toggle light
// driven by a single learned IR signal and a TV driven by preset buttons.
//
// Every entity serializes its commands with a per-entity transition lock and
// tracks an assumed state, since the relay cannot read the real one back.
package entity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/puchupala/hass-nature-remo/pkg/device"
	"github.com/puchupala/hass-nature-remo/pkg/remo"
)

var (
	// ErrButtonNotFound indicates the configured button has no learned signal
	ErrButtonNotFound = errors.New("button not found")

	// ErrUnknownSource indicates a source name outside the TV's source list
	ErrUnknownSource = errors.New("unknown source")
)

// Manufacturer is reported for every entity.
const Manufacturer = "Nature"

// SignalSender replays learned IR signals.
type SignalSender interface {
	SendSignal(ctx context.Context, signalID string) error
}

// TVButtonSender presses preset TV buttons.
type TVButtonSender interface {
	SendTVButton(ctx context.Context, applianceID, button string) (*remo.TVState, error)
}

// StateWriter receives the new state every time an entity changes it.
type StateWriter interface {
	WriteState(e Entity)
}

// StateWriterFunc adapts a function to StateWriter.
type StateWriterFunc func(e Entity)

// WriteState calls f(e).
func (f StateWriterFunc) WriteState(e Entity) { f(e) }

// Entity is a controllable device backed by a Remo appliance.
type Entity interface {
	ID() string
	Name() string
	Info() device.Device
	State() device.DeviceState
	Apply(ctx context.Context, payload map[string]any) error
	Restore(state device.DeviceState)
}

type base struct {
	appliance remo.Appliance
	writer    StateWriter

	// transition serializes commands; stateMu guards the assumed state.
	transition sync.Mutex
	stateMu    sync.RWMutex
}

func (b *base) ID() string   { return b.appliance.ID }
func (b *base) Name() string { return b.appliance.Nickname }

func (b *base) info(kind string, schema json.RawMessage) device.Device {
	model := ""
	if b.appliance.Model != nil {
		model = b.appliance.Model.Name
	}
	return device.Device{
		ID:           b.appliance.ID,
		Name:         b.appliance.Nickname,
		Type:         kind,
		Protocol:     device.ProtocolNatureRemo,
		Manufacturer: Manufacturer,
		Model:        model,
		AssumedState: true,
		StateSchema:  schema,
	}
}

func (b *base) writeState(e Entity) {
	if b.writer != nil {
		b.writer.WriteState(e)
	}
}

func stateString(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

// parseOnOff accepts "ON"/"OFF" in any case, or a boolean.
func parseOnOff(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		switch x {
		case "ON", "on", "On":
			return true, nil
		case "OFF", "off", "Off":
			return false, nil
		}
	}
	return false, fmt.Errorf("%w: state must be ON or OFF, got %v", device.ErrValidation, v)
}

func mustSchema(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
