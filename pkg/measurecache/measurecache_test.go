package measurecache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ridgelinehq/roofmetrics/pkg/datamodel"
)

func TestSnapshotCache(t *testing.T) {
	sc := New(time.Minute)

	_, ok := sc.Get("prop-1")
	assert.False(t, ok)

	snap := &datamodel.MeasurementSnapshot{ID: "m1", PropertyID: "prop-1", Version: 1}
	sc.Set(snap)

	got, ok := sc.Get("prop-1")
	assert.True(t, ok)
	assert.Equal(t, "m1", got.ID)
	assert.Equal(t, 1, sc.Len())

	sc.Invalidate("prop-1")
	_, ok = sc.Get("prop-1")
	assert.False(t, ok)
}

func TestSnapshotCacheFlush(t *testing.T) {
	sc := New(time.Minute)
	sc.Set(&datamodel.MeasurementSnapshot{ID: "a", PropertyID: "p1"})
	sc.Set(&datamodel.MeasurementSnapshot{ID: "b", PropertyID: "p2"})
	assert.Equal(t, 2, sc.Len())

	sc.Flush()
	assert.Zero(t, sc.Len())
}

func TestSnapshotCacheExpiry(t *testing.T) {
	sc := New(10 * time.Millisecond)
	sc.Set(&datamodel.MeasurementSnapshot{ID: "a", PropertyID: "p1"})
	time.Sleep(30 * time.Millisecond)
	_, ok := sc.Get("p1")
	assert.False(t, ok)
}
