package remo

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ApplianceFetcher lists the appliances registered to an account.
type ApplianceFetcher interface {
	Appliances(ctx context.Context) ([]Appliance, error)
}

// Coordinator polls the cloud for appliances and keeps the last successful
// snapshot keyed by appliance ID.
type Coordinator struct {
	fetcher  ApplianceFetcher
	interval time.Duration

	mu          sync.RWMutex
	appliances  map[string]Appliance
	lastErr     error
	lastUpdate  time.Time
	lastSuccess bool

	listenersMu sync.Mutex
	listeners   []func(map[string]Appliance)
}

// NewCoordinator creates a coordinator that refreshes every interval.
func NewCoordinator(fetcher ApplianceFetcher, interval time.Duration) *Coordinator {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Coordinator{
		fetcher:    fetcher,
		interval:   interval,
		appliances: make(map[string]Appliance),
	}
}

// OnUpdate registers fn to be called after each successful refresh.
func (c *Coordinator) OnUpdate(fn func(map[string]Appliance)) {
	c.listenersMu.Lock()
	c.listeners = append(c.listeners, fn)
	c.listenersMu.Unlock()
}

// Refresh fetches the appliance list once. On failure the previous
// snapshot is kept.
func (c *Coordinator) Refresh(ctx context.Context) error {
	list, err := c.fetcher.Appliances(ctx)

	c.mu.Lock()
	c.lastUpdate = time.Now()
	c.lastErr = err
	c.lastSuccess = err == nil
	if err == nil {
		c.appliances = make(map[string]Appliance, len(list))
		for _, a := range list {
			c.appliances[a.ID] = a
		}
	}
	c.mu.Unlock()

	if err != nil {
		log.Warn().Err(err).Msg("Failed to refresh appliances")
		return err
	}

	log.Debug().Int("appliances", len(list)).Msg("Appliances refreshed")

	data := c.Data()
	c.listenersMu.Lock()
	listeners := append([]func(map[string]Appliance){}, c.listeners...)
	c.listenersMu.Unlock()
	for _, fn := range listeners {
		fn(data)
	}

	return nil
}

// Run refreshes on every tick until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = c.Refresh(ctx)
		}
	}
}

// Data returns a copy of the last successful snapshot.
func (c *Coordinator) Data() map[string]Appliance {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]Appliance, len(c.appliances))
	for id, a := range c.appliances {
		out[id] = a
	}
	return out
}

// LastUpdateSuccess reports whether the most recent refresh succeeded.
func (c *Coordinator) LastUpdateSuccess() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSuccess
}

// LastError returns the error of the most recent refresh, if any.
func (c *Coordinator) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// LastUpdate returns when the most recent refresh finished.
func (c *Coordinator) LastUpdate() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUpdate
}
