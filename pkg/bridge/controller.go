// Package bridge sets up entities from Nature Remo appliances and exposes
// them through device.Controller.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/puchupala/hass-nature-remo/pkg/db"
	"github.com/puchupala/hass-nature-remo/pkg/device"
	"github.com/puchupala/hass-nature-remo/pkg/entity"
	"github.com/puchupala/hass-nature-remo/pkg/remo"
	"github.com/rs/zerolog/log"
)

// Relay is the part of the Remo cloud API entities send commands through.
type Relay interface {
	entity.SignalSender
	entity.TVButtonSender
}

// StateStore persists device descriptions and assumed states.
type StateStore interface {
	Get(ctx context.Context, id string) (*db.DeviceRecord, error)
	Upsert(ctx context.Context, d *db.DeviceRecord) error
	SaveState(ctx context.Context, id string, state map[string]any) error
}

// Options configures a Controller.
type Options struct {
	LightName   string        // Nickname of the IR appliance driven as a toggle light
	LightButton string        // Signal name that toggles the light
	LightDelay  time.Duration // Pause between the two presses that turn the light off
	Store       StateStore    // Optional
}

// Controller implements device.Controller and device.EventSubscriber on top
// of a Remo coordinator.
type Controller struct {
	coordinator *remo.Coordinator
	relay       Relay
	opts        Options

	entities   map[string]entity.Entity
	entitiesMu sync.RWMutex
	syncMu     sync.Mutex

	subscribers   []chan device.StateEvent
	subscribersMu sync.Mutex

	closed bool
}

// NewController creates a controller. Call Setup before use.
func NewController(coordinator *remo.Coordinator, relay Relay, opts Options) *Controller {
	c := &Controller{
		coordinator: coordinator,
		relay:       relay,
		opts:        opts,
		entities:    make(map[string]entity.Entity),
	}
	coordinator.OnUpdate(c.sync)
	return c
}

// Setup fetches the appliance list and sets up entities for it.
func (c *Controller) Setup(ctx context.Context) error {
	log.Debug().Msg("Setting up Nature Remo entities")
	if err := c.coordinator.Refresh(ctx); err != nil {
		return fmt.Errorf("initial appliance refresh: %w", err)
	}
	return nil
}

// Refresh re-reads appliances; newly seen ones are set up.
func (c *Controller) Refresh(ctx context.Context) error {
	if err := c.coordinator.Refresh(ctx); err != nil {
		return mapError(err)
	}
	return nil
}

// sync sets up entities for appliances that do not have one yet.
func (c *Controller) sync(appliances map[string]remo.Appliance) {
	c.syncMu.Lock()
	defer c.syncMu.Unlock()

	ids := make([]string, 0, len(appliances))
	for id := range appliances {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		c.entitiesMu.RLock()
		_, known := c.entities[id]
		c.entitiesMu.RUnlock()
		if known {
			continue
		}

		e, err := c.newEntity(appliances[id])
		if err != nil {
			log.Warn().Err(err).Str("appliance", id).Msg("Skipping appliance")
			continue
		}
		if e == nil {
			continue
		}

		c.restore(e)

		c.entitiesMu.Lock()
		c.entities[id] = e
		c.entitiesMu.Unlock()

		info := e.Info()
		log.Info().
			Str("id", info.ID).
			Str("name", info.Name).
			Str("type", info.Type).
			Msg("Entity set up")

		c.publishEvent(device.StateEvent{
			Type:   device.EventDeviceAdded,
			Device: &info,
			State:  e.State(),
		})
	}
}

// newEntity returns nil, nil for appliances that are not set up.
func (c *Controller) newEntity(a remo.Appliance) (entity.Entity, error) {
	writer := entity.StateWriterFunc(c.writeState)

	switch a.Type {
	case remo.ApplianceTypeIR:
		if !c.isToggleLight(a) {
			return nil, nil
		}
		return entity.NewToggleLight(a, c.relay, entity.LightOptions{
			Button: c.opts.LightButton,
			Delay:  c.opts.LightDelay,
			Writer: writer,
		})
	case remo.ApplianceTypeTV:
		return entity.NewTV(a, c.relay, writer), nil
	}
	return nil, nil
}

func (c *Controller) isToggleLight(a remo.Appliance) bool {
	name := strings.ToLower(strings.TrimSpace(c.opts.LightName))
	return name != "" && strings.ToLower(strings.TrimSpace(a.Nickname)) == name
}

func (c *Controller) restore(e entity.Entity) {
	if c.opts.Store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	info := e.Info()
	if rec, err := c.opts.Store.Get(ctx, info.ID); err == nil {
		e.Restore(device.DeviceState(rec.State))
	} else if !errors.Is(err, db.ErrDeviceNotFound) {
		log.Warn().Err(err).Str("device", info.ID).Msg("Failed to load stored state")
	}

	err := c.opts.Store.Upsert(ctx, &db.DeviceRecord{
		ID:           info.ID,
		Name:         info.Name,
		Type:         info.Type,
		Protocol:     info.Protocol,
		Manufacturer: info.Manufacturer,
		Model:        info.Model,
		AssumedState: info.AssumedState,
		StateSchema:  info.StateSchema,
		State:        e.State(),
	})
	if err != nil {
		log.Warn().Err(err).Str("device", info.ID).Msg("Failed to store device")
	}
}

// writeState persists and publishes the state an entity just wrote.
func (c *Controller) writeState(e entity.Entity) {
	info := e.Info()
	state := e.State()

	log.Info().
		Str("device", info.ID).
		Interface("state", state["state"]).
		Msg("State changed")

	if c.opts.Store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := c.opts.Store.SaveState(ctx, info.ID, state); err != nil {
			log.Warn().Err(err).Str("device", info.ID).Msg("Failed to persist state")
		}
		cancel()
	}

	c.publishEvent(device.StateEvent{
		Type:   device.EventStateChanged,
		Device: &info,
		State:  state,
	})
}

func (c *Controller) entity(id string) (entity.Entity, error) {
	c.entitiesMu.RLock()
	defer c.entitiesMu.RUnlock()

	if e, ok := c.entities[id]; ok {
		return e, nil
	}
	name := strings.TrimSpace(id)
	for _, e := range c.entities {
		if strings.EqualFold(strings.TrimSpace(e.Name()), name) {
			return e, nil
		}
	}
	return nil, device.ErrNotFound
}

// ListDevices returns all set-up devices ordered by name.
func (c *Controller) ListDevices(ctx context.Context) ([]device.Device, error) {
	c.entitiesMu.RLock()
	devices := make([]device.Device, 0, len(c.entities))
	for _, e := range c.entities {
		devices = append(devices, e.Info())
	}
	c.entitiesMu.RUnlock()

	sort.Slice(devices, func(i, j int) bool {
		if devices[i].Name == devices[j].Name {
			return devices[i].ID < devices[j].ID
		}
		return devices[i].Name < devices[j].Name
	})
	return devices, nil
}

// GetDevice returns a device by ID or name.
func (c *Controller) GetDevice(ctx context.Context, id string) (*device.Device, error) {
	e, err := c.entity(id)
	if err != nil {
		return nil, err
	}
	info := e.Info()
	return &info, nil
}

// GetDeviceState returns the assumed state of a device.
func (c *Controller) GetDeviceState(ctx context.Context, id string) (device.DeviceState, error) {
	e, err := c.entity(id)
	if err != nil {
		return nil, err
	}
	return e.State(), nil
}

// SetDeviceState applies a state payload to a device.
func (c *Controller) SetDeviceState(ctx context.Context, id string, state map[string]any) (device.DeviceState, error) {
	e, err := c.entity(id)
	if err != nil {
		return nil, err
	}
	if err := e.Apply(ctx, state); err != nil {
		return nil, mapError(err)
	}
	return e.State(), nil
}

// IsConnected reports whether the last appliance refresh succeeded.
func (c *Controller) IsConnected() bool {
	return c.coordinator.LastUpdateSuccess()
}

// LastSync returns when the coordinator last refreshed and how it ended.
func (c *Controller) LastSync() (time.Time, error) {
	return c.coordinator.LastUpdate(), c.coordinator.LastError()
}

// Close closes all subscriber channels.
func (c *Controller) Close() {
	c.subscribersMu.Lock()
	defer c.subscribersMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for _, ch := range c.subscribers {
		close(ch)
	}
	c.subscribers = nil
}

// Subscribe returns a channel that receives state events.
func (c *Controller) Subscribe() chan device.StateEvent {
	ch := make(chan device.StateEvent, 16)

	c.subscribersMu.Lock()
	defer c.subscribersMu.Unlock()
	if c.closed {
		close(ch)
		return ch
	}
	c.subscribers = append(c.subscribers, ch)
	return ch
}

// Unsubscribe removes and closes a subscription.
func (c *Controller) Unsubscribe(ch chan device.StateEvent) {
	c.subscribersMu.Lock()
	defer c.subscribersMu.Unlock()

	for i, sub := range c.subscribers {
		if sub == ch {
			c.subscribers = append(c.subscribers[:i], c.subscribers[i+1:]...)
			close(ch)
			return
		}
	}
}

func (c *Controller) publishEvent(event device.StateEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	c.subscribersMu.Lock()
	defer c.subscribersMu.Unlock()

	for _, ch := range c.subscribers {
		select {
		case ch <- event:
		default:
			log.Warn().Str("event", event.Type).Msg("Dropping event for slow subscriber")
		}
	}
}

// mapError translates relay errors to device errors.
func mapError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, remo.ErrThrottled):
		return fmt.Errorf("%w: %w", device.ErrTimeout, err)
	case errors.Is(err, remo.ErrRateLimited):
		return fmt.Errorf("%w: %w", device.ErrRateLimited, err)
	case errors.Is(err, remo.ErrUnauthorized):
		return fmt.Errorf("%w: %w", device.ErrNotConnected, err)
	case errors.Is(err, entity.ErrUnknownSource):
		return fmt.Errorf("%w: %w", device.ErrValidation, err)
	}
	return err
}
