package entity

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/puchupala/hass-nature-remo/pkg/device"
	"github.com/puchupala/hass-nature-remo/pkg/remo"
)

// DeviceClassTV is the media player device class of a TV.
const DeviceClassTV = "tv"

// Preset TV button names.
const (
	ButtonPower    = "power"
	ButtonMute     = "mute"
	ButtonPlay     = "play"
	ButtonPause    = "pause"
	ButtonStop     = "stop"
	ButtonPrev     = "prev"
	ButtonNext     = "next"
	ButtonVolUp    = "vol-up"
	ButtonVolDown  = "vol-down"
	ButtonInputSrc = "select-input-src"
)

// Source is a selectable input and the button that selects it.
type Source struct {
	Name   string `json:"name"`
	Button string `json:"button"`
}

// sourceButtons maps input buttons to source names.
var sourceButtons = map[string]string{
	"input-terrestrial": "Terrestrial",
	"input-bs":          "BS",
	"input-cs":          "CS",
	ButtonInputSrc:      "Input",
}

// reportedInputs maps the cloud's TV input state to source names.
var reportedInputs = map[string]string{
	"t":  "Terrestrial",
	"bs": "BS",
	"cs": "CS",
}

// MuteToggle is the "mute" value that presses mute regardless of the
// assumed state.
const MuteToggle = "toggle"

// Media commands accepted by Apply under the "media" key.
const (
	MediaPlay     = "play"
	MediaPause    = "pause"
	MediaStop     = "stop"
	MediaNext     = "next"
	MediaPrevious = "previous"
)

// TV is a media player driven by a TV appliance's preset buttons.
type TV struct {
	base
	sender   TVButtonSender
	sources  []Source
	features Feature
	schema   json.RawMessage

	on     bool
	muted  bool
	source string
}

// NewTV creates a TV entity for a TV appliance.
func NewTV(appliance remo.Appliance, sender TVButtonSender, writer StateWriter) *TV {
	sources := DetectSources(appliance.TV)
	features := DetectFeatures(appliance.TV, sources)

	t := &TV{
		base:     base{appliance: appliance, writer: writer},
		sender:   sender,
		sources:  sources,
		features: features,
		schema:   tvSchema(features, sources),
	}
	if appliance.TV != nil {
		t.source = reportedInputs[appliance.TV.State.Input]
	}
	return t
}

// DetectSources returns the sources the TV's buttons can select, in
// button order.
func DetectSources(tv *remo.TV) []Source {
	if tv == nil {
		return nil
	}
	var sources []Source
	seen := make(map[string]bool)
	for _, b := range tv.Buttons {
		name, ok := sourceButtons[b.Name]
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		sources = append(sources, Source{Name: name, Button: b.Name})
	}
	return sources
}

// DetectFeatures derives the supported features from the TV's buttons.
func DetectFeatures(tv *remo.TV, sources []Source) Feature {
	var f Feature
	if len(sources) > 0 {
		f |= FeatureSelectSource
	}
	if tv.HasButton(ButtonPower) {
		f |= FeatureTurnOn | FeatureTurnOff
	}
	if tv.HasButton(ButtonNext) {
		f |= FeatureNextTrack
	}
	if tv.HasButton(ButtonPrev) {
		f |= FeaturePreviousTrack
	}
	if tv.HasButton(ButtonPause) {
		f |= FeaturePause
	}
	if tv.HasButton(ButtonPlay) {
		f |= FeaturePlay
	}
	if tv.HasButton(ButtonStop) {
		f |= FeatureStop
	}
	if tv.HasButton(ButtonMute) {
		f |= FeatureVolumeMute
	}
	if tv.HasButton(ButtonVolUp) && tv.HasButton(ButtonVolDown) {
		f |= FeatureVolumeStep
	}
	return f
}

// Info returns the device description of the TV.
func (t *TV) Info() device.Device {
	return t.info(device.DeviceTypeTV, t.schema)
}

// SupportedFeatures returns the TV's capability flags.
func (t *TV) SupportedFeatures() Feature { return t.features }

// SourceList returns the names of the selectable sources.
func (t *TV) SourceList() []string {
	names := make([]string, 0, len(t.sources))
	for _, s := range t.sources {
		names = append(names, s.Name)
	}
	return names
}

// IsOn returns the assumed power state.
func (t *TV) IsOn() bool {
	t.stateMu.RLock()
	defer t.stateMu.RUnlock()
	return t.on
}

// IsVolumeMuted returns the assumed mute state.
func (t *TV) IsVolumeMuted() bool {
	t.stateMu.RLock()
	defer t.stateMu.RUnlock()
	return t.muted
}

// Source returns the current input source, or "" if unknown.
func (t *TV) Source() string {
	t.stateMu.RLock()
	defer t.stateMu.RUnlock()
	return t.source
}

// State returns the assumed state of the TV.
func (t *TV) State() device.DeviceState {
	t.stateMu.RLock()
	defer t.stateMu.RUnlock()

	var source any
	if t.source != "" {
		source = t.source
	}
	return device.DeviceState{
		"state":              stateString(t.on),
		"is_volume_muted":    t.muted,
		"source":             source,
		"source_list":        t.SourceList(),
		"supported_features": uint32(t.features),
		"features":           t.features.Names(),
		"device_class":       DeviceClassTV,
		"media_content_type": nil,
		"assumed_state":      true,
	}
}

// TurnOn presses power if the TV is off.
func (t *TV) TurnOn(ctx context.Context) error {
	return t.setPower(ctx, true, FeatureTurnOn)
}

// TurnOff presses power if the TV is on.
func (t *TV) TurnOff(ctx context.Context) error {
	return t.setPower(ctx, false, FeatureTurnOff)
}

func (t *TV) setPower(ctx context.Context, on bool, feature Feature) error {
	if err := t.require(feature); err != nil {
		return err
	}

	t.transition.Lock()
	defer t.transition.Unlock()

	if t.IsOn() == on {
		return nil
	}
	if _, err := t.press(ctx, ButtonPower); err != nil {
		return err
	}
	t.update(func() { t.on = on })
	return nil
}

// MuteVolume brings the assumed mute state to mute, pressing the mute
// button only when it differs.
func (t *TV) MuteVolume(ctx context.Context, mute bool) error {
	if err := t.require(FeatureVolumeMute); err != nil {
		return err
	}

	t.transition.Lock()
	defer t.transition.Unlock()

	if t.IsVolumeMuted() == mute {
		return nil
	}
	if _, err := t.press(ctx, ButtonMute); err != nil {
		return err
	}
	t.update(func() { t.muted = mute })
	return nil
}

// ToggleMute presses the mute button and flips the assumed mute state.
func (t *TV) ToggleMute(ctx context.Context) error {
	if err := t.require(FeatureVolumeMute); err != nil {
		return err
	}

	t.transition.Lock()
	defer t.transition.Unlock()

	if _, err := t.press(ctx, ButtonMute); err != nil {
		return err
	}
	t.update(func() { t.muted = !t.muted })
	return nil
}

// SelectSource presses the button of the named source.
func (t *TV) SelectSource(ctx context.Context, name string) error {
	if err := t.require(FeatureSelectSource); err != nil {
		return err
	}

	button := ""
	for _, s := range t.sources {
		if s.Name == name {
			button = s.Button
		}
	}
	if button == "" {
		return fmt.Errorf("%w: %q", ErrUnknownSource, name)
	}

	t.transition.Lock()
	defer t.transition.Unlock()

	if _, err := t.press(ctx, button); err != nil {
		return err
	}
	t.update(func() { t.source = name })
	return nil
}

// MediaPlay sends the play command.
func (t *TV) MediaPlay(ctx context.Context) error {
	return t.command(ctx, FeaturePlay, ButtonPlay)
}

// MediaPause sends the pause command.
func (t *TV) MediaPause(ctx context.Context) error {
	return t.command(ctx, FeaturePause, ButtonPause)
}

// MediaStop sends the stop command.
func (t *TV) MediaStop(ctx context.Context) error {
	return t.command(ctx, FeatureStop, ButtonStop)
}

// MediaPreviousTrack sends the previous track command.
func (t *TV) MediaPreviousTrack(ctx context.Context) error {
	return t.command(ctx, FeaturePreviousTrack, ButtonPrev)
}

// MediaNextTrack sends the next track command.
func (t *TV) MediaNextTrack(ctx context.Context) error {
	return t.command(ctx, FeatureNextTrack, ButtonNext)
}

// VolumeUp steps the volume up.
func (t *TV) VolumeUp(ctx context.Context) error {
	return t.command(ctx, FeatureVolumeStep, ButtonVolUp)
}

// VolumeDown steps the volume down.
func (t *TV) VolumeDown(ctx context.Context) error {
	return t.command(ctx, FeatureVolumeStep, ButtonVolDown)
}

// Media dispatches one of the Media* command names.
func (t *TV) Media(ctx context.Context, cmd string) error {
	switch cmd {
	case MediaPlay:
		return t.MediaPlay(ctx)
	case MediaPause:
		return t.MediaPause(ctx)
	case MediaStop:
		return t.MediaStop(ctx)
	case MediaNext:
		return t.MediaNextTrack(ctx)
	case MediaPrevious:
		return t.MediaPreviousTrack(ctx)
	}
	return fmt.Errorf("%w: unknown media command %q", device.ErrValidation, cmd)
}

// Apply handles a state payload. Keys are applied in a fixed order so that
// power on happens before and power off after any other command.
func (t *TV) Apply(ctx context.Context, payload map[string]any) error {
	for key := range payload {
		switch key {
		case "state", "source", "mute", "volume", "media":
		default:
			return fmt.Errorf("%w: tv does not support %q", device.ErrUnsupported, key)
		}
	}

	var powerOn, hasPower bool
	if raw, ok := payload["state"]; ok {
		on, err := parseOnOff(raw)
		if err != nil {
			return err
		}
		powerOn, hasPower = on, true
	}

	if hasPower && powerOn {
		if err := t.TurnOn(ctx); err != nil {
			return err
		}
	}

	if raw, ok := payload["source"]; ok {
		name, ok := raw.(string)
		if !ok {
			return fmt.Errorf("%w: source must be a string", device.ErrValidation)
		}
		if err := t.SelectSource(ctx, name); err != nil {
			return err
		}
	}

	if raw, ok := payload["mute"]; ok {
		var err error
		switch v := raw.(type) {
		case bool:
			err = t.MuteVolume(ctx, v)
		case string:
			if v != MuteToggle {
				return fmt.Errorf("%w: mute must be a boolean or %q", device.ErrValidation, MuteToggle)
			}
			err = t.ToggleMute(ctx)
		default:
			return fmt.Errorf("%w: mute must be a boolean or %q", device.ErrValidation, MuteToggle)
		}
		if err != nil {
			return err
		}
	}

	if raw, ok := payload["volume"]; ok {
		var err error
		switch raw {
		case "up":
			err = t.VolumeUp(ctx)
		case "down":
			err = t.VolumeDown(ctx)
		default:
			err = fmt.Errorf("%w: volume must be up or down", device.ErrValidation)
		}
		if err != nil {
			return err
		}
	}

	if raw, ok := payload["media"]; ok {
		cmd, _ := raw.(string)
		if err := t.Media(ctx, cmd); err != nil {
			return err
		}
	}

	if hasPower && !powerOn {
		return t.TurnOff(ctx)
	}
	return nil
}

// Restore sets the assumed state from a previously persisted one. A source
// already reported by the cloud takes precedence over the stored one.
func (t *TV) Restore(state device.DeviceState) {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()

	if raw, ok := state["state"]; ok {
		if on, err := parseOnOff(raw); err == nil {
			t.on = on
		}
	}
	if muted, ok := state["is_volume_muted"].(bool); ok {
		t.muted = muted
	}
	if src, ok := state["source"].(string); ok && t.source == "" && t.hasSource(src) {
		t.source = src
	}
}

func (t *TV) command(ctx context.Context, feature Feature, button string) error {
	if err := t.require(feature); err != nil {
		return err
	}

	t.transition.Lock()
	defer t.transition.Unlock()

	changed, err := t.press(ctx, button)
	if err != nil {
		return err
	}
	if changed {
		t.writeState(t)
	}
	return nil
}

func (t *TV) require(feature Feature) error {
	if !t.features.Has(feature) {
		return fmt.Errorf("%w: %s has no %v", device.ErrUnsupported, t.Name(), feature.Names())
	}
	return nil
}

// press sends a button and adopts the input the cloud reports back. It
// returns whether that changed the assumed source.
func (t *TV) press(ctx context.Context, button string) (bool, error) {
	reported, err := t.sender.SendTVButton(ctx, t.ID(), button)
	if err != nil {
		return false, err
	}
	if reported == nil {
		return false, nil
	}
	name := reportedInputs[reported.Input]
	if name == "" || !t.hasSource(name) {
		return false, nil
	}

	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	changed := t.source != name
	t.source = name
	return changed, nil
}

func (t *TV) hasSource(name string) bool {
	for _, s := range t.sources {
		if s.Name == name {
			return true
		}
	}
	return false
}

func (t *TV) update(fn func()) {
	t.stateMu.Lock()
	fn()
	t.stateMu.Unlock()
	t.writeState(t)
}

func tvSchema(features Feature, sources []Source) json.RawMessage {
	props := map[string]any{}
	if features.Has(FeatureTurnOn) {
		props["state"] = map[string]any{"type": "string", "enum": []string{"ON", "OFF"}}
	}
	if features.Has(FeatureSelectSource) {
		names := make([]string, 0, len(sources))
		for _, s := range sources {
			names = append(names, s.Name)
		}
		props["source"] = map[string]any{"type": "string", "enum": names}
	}
	if features.Has(FeatureVolumeMute) {
		props["mute"] = map[string]any{"enum": []any{true, false, MuteToggle}}
	}
	if features.Has(FeatureVolumeStep) {
		props["volume"] = map[string]any{"type": "string", "enum": []string{"up", "down"}}
	}

	var media []string
	for _, m := range []struct {
		flag Feature
		name string
	}{
		{FeaturePlay, MediaPlay},
		{FeaturePause, MediaPause},
		{FeatureStop, MediaStop},
		{FeatureNextTrack, MediaNext},
		{FeaturePreviousTrack, MediaPrevious},
	} {
		if features.Has(m.flag) {
			media = append(media, m.name)
		}
	}
	if len(media) > 0 {
		props["media"] = map[string]any{"type": "string", "enum": media}
	}

	return mustSchema(map[string]any{
		"$schema":              "https://json-schema.org/draft/2020-12/schema",
		"type":                 "object",
		"properties":           props,
		"minProperties":        1,
		"additionalProperties": false,
	})
}
