// Package collector drives the live ingestion loop: fetch a snapshot,
// classify it, hand it to the reconciliation engine. One cycle runs to
// completion before the next begins; a failed cycle changes no state.
package collector

import (
	"context"
	"sync"
	"time"

	"github.com/AliSDisrupt/Pakistan-vACC/logging"
	"github.com/AliSDisrupt/Pakistan-vACC/models"
	"github.com/AliSDisrupt/Pakistan-vACC/tracker"
	"github.com/AliSDisrupt/Pakistan-vACC/types"
)

// Fetcher delivers one full snapshot per call.
type Fetcher interface {
	Fetch(ctx context.Context) (*types.VatsimData, error)
}

type Collector struct {
	fetcher Fetcher
	engine  *tracker.Engine

	lastUpdate string

	mu    sync.RWMutex
	stats types.CollectionStats
}

func New(fetcher Fetcher, engine *tracker.Engine) *Collector {
	return &Collector{
		fetcher: fetcher,
		engine:  engine,
		stats:   types.CollectionStats{StartTime: time.Now()},
	}
}

// Stats returns a copy of the collector counters for the status endpoint.
func (c *Collector) Stats() types.CollectionStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// Run polls until the context is cancelled. Errors are logged; the loop
// never dies on a failed cycle.
func (c *Collector) Run(ctx context.Context, interval time.Duration) {
	logging.Info().Dur("interval", interval).Msg("collector started")

	if err := c.Cycle(ctx); err != nil {
		logging.Error().Err(err).Msg("collection cycle failed")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("collector stopped")
			return
		case <-ticker.C:
			if err := c.Cycle(ctx); err != nil {
				logging.Error().Err(err).Msg("collection cycle failed")
			}
		}
	}
}

// Cycle runs one fetch/classify/reconcile pass. A fetch failure aborts
// the whole cycle: no information means no closures.
func (c *Collector) Cycle(ctx context.Context) error {
	data, err := c.fetcher.Fetch(ctx)
	if err != nil {
		c.mu.Lock()
		c.stats.FailedCycles++
		c.mu.Unlock()
		return err
	}

	// The feed regenerates roughly every 15 seconds; an unchanged update
	// marker means we re-fetched the snapshot we already reconciled.
	if data.General.Update != "" && data.General.Update == c.lastUpdate {
		return nil
	}

	now := data.General.UpdateTimestamp
	if now.IsZero() {
		now = time.Now()
	}

	entries := tracker.Classify(data)
	res := c.engine.Reconcile(entries, now)
	c.lastUpdate = data.General.Update

	controllers, pilots := countOnline(entries)
	c.mu.Lock()
	c.stats.LastUpdate = time.Now()
	c.stats.TotalCycles++
	c.stats.OnlineControllers = controllers
	c.stats.OnlinePilots = pilots
	c.stats.SessionsClosed += int64(len(res.Closed))
	c.mu.Unlock()

	logging.Info().
		Int("controllers", controllers).
		Int("pilots", pilots).
		Int("started", len(res.Started)).
		Int("closed", len(res.Closed)).
		Msg("cycle complete")
	return nil
}

func countOnline(entries []tracker.Entry) (controllers, pilots int) {
	for _, e := range entries {
		switch e.Identity.Category {
		case models.CategoryController:
			controllers++
		case models.CategoryPilot:
			pilots++
		}
	}
	return controllers, pilots
}
