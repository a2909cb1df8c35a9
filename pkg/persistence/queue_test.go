package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridgelinehq/roofmetrics/pkg/datamodel"
)

func testSave(propertyID string) datamodel.QueuedSave {
	return datamodel.QueuedSave{
		ID: "q-" + propertyID,
		Payload: datamodel.SaveRequest{
			PropertyID: propertyID,
			Summary:    datamodel.MeasurementSummary{TotalAreaSqFt: 1234},
		},
		Status:     datamodel.QueueStatusPending,
		EnqueuedAt: time.Now().UTC(),
	}
}

func TestOfflineQueueRoundTrip(t *testing.T) {
	q, err := OpenOfflineQueue(t.TempDir())
	require.NoError(t, err)
	defer func() { assert.NoError(t, q.Close()) }()

	assert.Zero(t, q.PendingLength())
	_, err = q.TakePending()
	assert.ErrorIs(t, err, ErrQueueEmpty)

	require.NoError(t, q.Add(testSave("p1")))
	require.NoError(t, q.Add(testSave("p2")))
	assert.EqualValues(t, 2, q.PendingLength())

	// strict enqueue order
	first, err := q.TakePending()
	require.NoError(t, err)
	assert.Equal(t, "p1", first.Payload.PropertyID)
	assert.Equal(t, datamodel.QueueStatusPending, first.Status)
	assert.InDelta(t, 1234.0, first.Payload.Summary.TotalAreaSqFt, 1e-9)

	second, err := q.TakePending()
	require.NoError(t, err)
	assert.Equal(t, "p2", second.Payload.PropertyID)
	assert.Zero(t, q.PendingLength())
}

func TestOfflineQueueSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	q, err := OpenOfflineQueue(dir)
	require.NoError(t, err)
	require.NoError(t, q.Add(testSave("p1")))
	require.NoError(t, q.Close())

	// the offline guarantee: entries persist across restarts
	q, err = OpenOfflineQueue(dir)
	require.NoError(t, err)
	defer func() { assert.NoError(t, q.Close()) }()

	assert.EqualValues(t, 1, q.PendingLength())
	item, err := q.TakePending()
	require.NoError(t, err)
	assert.Equal(t, "p1", item.Payload.PropertyID)
}

func TestOfflineQueueCorruptEntryPreserved(t *testing.T) {
	q, err := OpenOfflineQueue(t.TempDir())
	require.NoError(t, err)
	defer func() { assert.NoError(t, q.Close()) }()

	// a torn write leaves bytes that are not a QueuedSave
	_, err = q.pending.Enqueue([]byte("not json"))
	require.NoError(t, err)
	require.NoError(t, q.Add(testSave("p1")))

	_, err = q.TakePending()
	assert.ErrorIs(t, err, ErrCorruptEntry)

	// the raw bytes survive in the failed queue instead of vanishing
	assert.EqualValues(t, 1, q.FailedLength())
	failed, err := q.FailedItems()
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, datamodel.QueueStatusFailed, failed[0].Status)
	assert.Contains(t, failed[0].LastError, "not json")

	// the entry behind it is still readable
	item, err := q.TakePending()
	require.NoError(t, err)
	assert.Equal(t, "p1", item.Payload.PropertyID)
}

func TestOfflineQueueFailed(t *testing.T) {
	q, err := OpenOfflineQueue(t.TempDir())
	require.NoError(t, err)
	defer func() { assert.NoError(t, q.Close()) }()

	item := testSave("p1")
	item.RetryCount = 4
	item.LastError = "backend exploded"
	require.NoError(t, q.MarkFailed(item))

	assert.Zero(t, q.PendingLength())
	assert.EqualValues(t, 1, q.FailedLength())

	failed, err := q.FailedItems()
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, datamodel.QueueStatusFailed, failed[0].Status)
	assert.Equal(t, "backend exploded", failed[0].LastError)
	assert.Equal(t, 4, failed[0].RetryCount)

	// peeking does not consume
	assert.EqualValues(t, 1, q.FailedLength())
}
