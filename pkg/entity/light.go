package entity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/puchupala/hass-nature-remo/pkg/device"
	"github.com/puchupala/hass-nature-remo/pkg/remo"
	"github.com/rs/zerolog/log"
)

// ColorModeOnOff is the only color mode a toggle light supports.
const ColorModeOnOff = "onoff"

// settleTimeout bounds the second press of an OFF sequence, which runs
// detached from the caller's context once the first press went out.
const settleTimeout = 30 * time.Second

var lightSchema = mustSchema(map[string]any{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type":    "object",
	"properties": map[string]any{
		"state": map[string]any{"type": "string", "enum": []string{"ON", "OFF"}},
	},
	"required":             []string{"state"},
	"additionalProperties": false,
})

// ToggleLight is a light whose remote has a single button that cycles
// through its modes. One press turns it on; two presses, separated by a
// short delay, turn it off.
type ToggleLight struct {
	base
	sender   SignalSender
	signalID string
	delay    time.Duration

	isOn bool
}

// LightOptions configures a ToggleLight.
type LightOptions struct {
	Button string
	Delay  time.Duration
	Writer StateWriter
}

// NewToggleLight creates a toggle light for an IR appliance. It fails with
// ErrButtonNotFound if the appliance has no signal named opts.Button.
func NewToggleLight(appliance remo.Appliance, sender SignalSender, opts LightOptions) (*ToggleLight, error) {
	button := normalizeName(opts.Button)

	signalID := ""
	for _, s := range appliance.Signals {
		if normalizeName(s.Name) == button {
			signalID = s.ID
		}
	}
	if signalID == "" {
		return nil, fmt.Errorf("light %s does not have button %s: %w", appliance.Nickname, button, ErrButtonNotFound)
	}

	return &ToggleLight{
		base:     base{appliance: appliance, writer: opts.Writer},
		sender:   sender,
		signalID: signalID,
		delay:    opts.Delay,
		// The light is more likely to be on than off.
		isOn: true,
	}, nil
}

// Info returns the device description of the light.
func (l *ToggleLight) Info() device.Device {
	return l.info(device.DeviceTypeLight, lightSchema)
}

// IsOn returns the assumed power state.
func (l *ToggleLight) IsOn() bool {
	l.stateMu.RLock()
	defer l.stateMu.RUnlock()
	return l.isOn
}

// State returns the assumed state of the light.
func (l *ToggleLight) State() device.DeviceState {
	return device.DeviceState{
		"state":         stateString(l.IsOn()),
		"color_mode":    ColorModeOnOff,
		"assumed_state": true,
	}
}

// TurnOn presses the button once if the light is off.
func (l *ToggleLight) TurnOn(ctx context.Context) error {
	l.transition.Lock()
	defer l.transition.Unlock()

	if l.IsOn() {
		return nil
	}
	if err := l.sender.SendSignal(ctx, l.signalID); err != nil {
		return err
	}
	l.setOn(true)
	return nil
}

// TurnOff presses the button twice if the light is on. Once the first
// press is sent the sequence is finished even if ctx is cancelled, since
// stopping halfway leaves the light in its next mode rather than off.
func (l *ToggleLight) TurnOff(ctx context.Context) error {
	l.transition.Lock()
	defer l.transition.Unlock()

	if !l.IsOn() {
		return nil
	}
	if err := l.sender.SendSignal(ctx, l.signalID); err != nil {
		return err
	}

	seqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.delay+settleTimeout)
	defer cancel()

	timer := time.NewTimer(l.delay)
	select {
	case <-seqCtx.Done():
		timer.Stop()
		return fmt.Errorf("light %s left mid-sequence: %w", l.ID(), device.ErrTimeout)
	case <-timer.C:
	}

	if err := l.sender.SendSignal(seqCtx, l.signalID); err != nil {
		log.Warn().Err(err).Str("device", l.ID()).Msg("Second press of OFF sequence failed")
		return err
	}
	l.setOn(false)
	return nil
}

// Apply handles {"state": "ON"|"OFF"}.
func (l *ToggleLight) Apply(ctx context.Context, payload map[string]any) error {
	for key := range payload {
		if key != "state" {
			return fmt.Errorf("%w: light does not support %q", device.ErrUnsupported, key)
		}
	}
	raw, ok := payload["state"]
	if !ok {
		return fmt.Errorf("%w: state is required", device.ErrValidation)
	}
	on, err := parseOnOff(raw)
	if err != nil {
		return err
	}
	if on {
		return l.TurnOn(ctx)
	}
	return l.TurnOff(ctx)
}

// Restore sets the assumed state from a previously persisted one.
func (l *ToggleLight) Restore(state device.DeviceState) {
	raw, ok := state["state"]
	if !ok {
		return
	}
	on, err := parseOnOff(raw)
	if err != nil {
		log.Debug().Err(err).Str("device", l.ID()).Msg("Ignoring stored light state")
		return
	}
	l.stateMu.Lock()
	l.isOn = on
	l.stateMu.Unlock()
}

func (l *ToggleLight) setOn(on bool) {
	l.stateMu.Lock()
	l.isOn = on
	l.stateMu.Unlock()
	l.writeState(l)
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
