package measurecache

import (
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/ridgelinehq/roofmetrics/pkg/datamodel"
)

const (
	// DefaultExpiration keeps read-side snapshot lookups warm between
	// pointer events without letting a stale summary outlive a save for
	// long.
	DefaultExpiration = 10 * time.Second

	defaultCleanup = 20 * time.Second
)

// SnapshotCache is an explicit read cache for active measurement
// snapshots, keyed by property id. It is injected into whoever needs it
// rather than accessed as ambient global state. Invalidation triggers:
// a successful save for the property, and tenant switch/logout via Flush.
type SnapshotCache struct {
	c *cache.Cache
}

func New(expiration time.Duration) *SnapshotCache {
	if expiration <= 0 {
		expiration = DefaultExpiration
	}
	return &SnapshotCache{c: cache.New(expiration, defaultCleanup)}
}

// Get returns the cached active snapshot for a property, if any.
func (sc *SnapshotCache) Get(propertyID string) (*datamodel.MeasurementSnapshot, bool) {
	v, ok := sc.c.Get(propertyID)
	if !ok {
		return nil, false
	}
	snap, ok := v.(*datamodel.MeasurementSnapshot)
	if !ok {
		// wrong type under the key means the cache was misused
		zap.S().Warnf("Snapshot cache entry for %s has unexpected type %T", propertyID, v)
		sc.c.Delete(propertyID)
		return nil, false
	}
	return snap, true
}

// Set stores the active snapshot for its property.
func (sc *SnapshotCache) Set(snap *datamodel.MeasurementSnapshot) {
	if snap == nil {
		return
	}
	sc.c.SetDefault(snap.PropertyID, snap)
}

// Invalidate drops the cached snapshot for one property. Called after
// every successful save so readers observe the new version.
func (sc *SnapshotCache) Invalidate(propertyID string) {
	sc.c.Delete(propertyID)
}

// Flush drops everything. Tenant switch and logout both land here.
func (sc *SnapshotCache) Flush() {
	sc.c.Flush()
}

// Len reports the number of cached entries, for diagnostics.
func (sc *SnapshotCache) Len() int {
	return sc.c.ItemCount()
}
