package groundscale

import (
	"math"
	"sync"

	"go.uber.org/zap"
)

const (
	// Web-Mercator ground resolution at the equator for zoom 0, in
	// meters per pixel.
	equatorMetersPerPixel = 156543.03392

	metersToFeet = 3.28084
)

// PixelsPerFoot derives the pixels-per-foot ratio for a map viewport from
// its zoom level and the latitude of its center, using the Web-Mercator
// ground resolution relation.
func PixelsPerFoot(zoom, latitudeDeg float64) float64 {
	metersPerPixel := equatorMetersPerPixel * math.Cos(latitudeDeg*math.Pi/180) / math.Pow(2, zoom)
	feetPerPixel := metersPerPixel * metersToFeet
	if feetPerPixel <= 0 {
		return 0
	}
	return 1 / feetPerPixel
}

// Tracker holds the live ground-scale ratio for one canvas and hands out a
// frozen copy for the duration of a trace. All length and area conversions
// of a single shape must use one consistent ratio, never a blend of pre-
// and post-zoom values, so the viewport may keep reporting new zoom levels
// while a trace holds the lock without affecting it.
type Tracker struct {
	mu     sync.Mutex
	live   float64
	locked float64
	isLock bool
}

// NewTracker returns a tracker seeded from the given viewport state.
func NewTracker(zoom, latitudeDeg float64) *Tracker {
	return &Tracker{live: PixelsPerFoot(zoom, latitudeDeg)}
}

// Update recomputes the live ratio. Called on every viewport zoom or pan
// change. A locked ratio is unaffected.
func (t *Tracker) Update(zoom, latitudeDeg float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.live = PixelsPerFoot(zoom, latitudeDeg)
}

// Lock freezes the current live ratio for an in-progress trace and returns
// it. Locking while already locked keeps the existing frozen value, since
// only one trace can be in progress.
func (t *Tracker) Lock() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.isLock {
		t.locked = t.live
		t.isLock = true
	} else {
		zap.S().Warnf("Ground scale already locked at %f, keeping it", t.locked)
	}
	return t.locked
}

// Unlock releases the frozen ratio so subsequent traces observe the live
// one. Called on trace completion or cancellation.
func (t *Tracker) Unlock() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.isLock = false
	t.locked = 0
}

// Current returns the frozen ratio while locked, otherwise the live one.
func (t *Tracker) Current() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.isLock {
		return t.locked
	}
	return t.live
}

// Locked reports whether a trace currently holds the ratio.
func (t *Tracker) Locked() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isLock
}
