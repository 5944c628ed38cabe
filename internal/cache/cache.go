package cache

import (
	"sync/atomic"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/tracksecure/telemetry-bridge/internal/models"
)

// SnapshotCache holds the most recent reading per device plus the most
// recent reading overall. Writes are whole-value replacements performed by
// the ingestion path; REST handlers and new-session priming only read.
// The cache starts empty and is never cleared while the process lives.
type SnapshotCache struct {
	byDevice cmap.ConcurrentMap[string, models.Reading]
	latest   atomic.Pointer[models.Reading]
}

// NewSnapshotCache creates an empty cache.
func NewSnapshotCache() *SnapshotCache {
	return &SnapshotCache{
		byDevice: cmap.New[models.Reading](),
	}
}

// Put replaces the latest reading, and the per-device entry when the
// reading carries a package identifier. Last writer wins regardless of the
// payload timestamps.
func (c *SnapshotCache) Put(reading models.Reading) {
	r := reading
	c.latest.Store(&r)
	if reading.PackageID != "" {
		c.byDevice.Set(reading.PackageID, reading)
	}
}

// Latest returns the most recently ingested reading, if any.
func (c *SnapshotCache) Latest() (models.Reading, bool) {
	p := c.latest.Load()
	if p == nil {
		return models.Reading{}, false
	}
	return *p, true
}

// LatestFor returns the most recent reading for one package identifier.
func (c *SnapshotCache) LatestFor(packageID string) (models.Reading, bool) {
	return c.byDevice.Get(packageID)
}

// Devices lists the package identifiers seen so far.
func (c *SnapshotCache) Devices() []string {
	return c.byDevice.Keys()
}
