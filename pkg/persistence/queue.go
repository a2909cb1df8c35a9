package persistence

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/beeker1121/goque"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ridgelinehq/roofmetrics/pkg/datamodel"
	"github.com/ridgelinehq/roofmetrics/pkg/metrics"
)

// ErrQueueEmpty is returned when a dequeue finds no pending entries.
var ErrQueueEmpty = errors.New("offline queue is empty")

// ErrCorruptEntry is returned when a pending entry cannot be decoded. The
// entry has been moved to the failed queue with its raw bytes preserved.
var ErrCorruptEntry = errors.New("queued save is not decodable")

// OfflineQueue is the durable local queue for save operations that could
// not be delivered. It survives process restarts, which is the offline
// guarantee: a save accepted while unreachable is replayed later even if
// the app was closed in between. Pending and permanently failed entries
// live in separate disk queues so failed ones are never replayed again.
type OfflineQueue struct {
	pending *goque.Queue
	failed  *goque.Queue
}

// OpenOfflineQueue opens (or creates) the disk queues under dataDir.
func OpenOfflineQueue(dataDir string) (*OfflineQueue, error) {
	pending, err := goque.OpenQueue(filepath.Join(dataDir, "pending"))
	if err != nil {
		return nil, fmt.Errorf("failed to open pending queue: %w", err)
	}
	failed, err := goque.OpenQueue(filepath.Join(dataDir, "failed"))
	if err != nil {
		_ = pending.Close()
		return nil, fmt.Errorf("failed to open failed queue: %w", err)
	}
	q := &OfflineQueue{pending: pending, failed: failed}
	q.updateGauges()
	return q, nil
}

// Close flushes and closes both disk queues.
func (q *OfflineQueue) Close() error {
	errPending := q.pending.Close()
	errFailed := q.failed.Close()
	if errPending != nil {
		return errPending
	}
	return errFailed
}

// Add appends a pending save to the back of the queue.
func (q *OfflineQueue) Add(item datamodel.QueuedSave) error {
	item.Status = datamodel.QueueStatusPending
	if _, err := q.pending.EnqueueObjectAsJSON(item); err != nil {
		return fmt.Errorf("failed to enqueue save %s: %w", item.ID, err)
	}
	zap.S().Infof("Queued save %s for property %s (retry %d)", item.ID, item.Payload.PropertyID, item.RetryCount)
	q.updateGauges()
	return nil
}

// TakePending removes and returns the oldest pending save.
func (q *OfflineQueue) TakePending() (datamodel.QueuedSave, error) {
	var item datamodel.QueuedSave
	raw, err := q.pending.Dequeue()
	if err != nil {
		if errors.Is(err, goque.ErrEmpty) {
			return item, ErrQueueEmpty
		}
		return item, fmt.Errorf("failed to dequeue: %w", err)
	}
	if derr := raw.ToObjectFromJSON(&item); derr != nil {
		// the dequeue already removed the entry from disk; park it in
		// the failed queue so the payload is never lost
		corrupt := datamodel.QueuedSave{
			ID:         uuid.NewString(),
			Status:     datamodel.QueueStatusFailed,
			LastError:  fmt.Sprintf("undecodable queue entry: %s; raw: %s", derr, string(raw.Value)),
			EnqueuedAt: time.Now().UTC(),
		}
		if ferr := q.MarkFailed(corrupt); ferr != nil {
			zap.S().Errorf("Could not preserve undecodable queue entry: %s", ferr)
		}
		q.updateGauges()
		return datamodel.QueuedSave{}, ErrCorruptEntry
	}
	q.updateGauges()
	return item, nil
}

// MarkFailed moves a save into the failed queue after it exhausted its
// retries. Failed saves are surfaced for manual attention, never silently
// dropped and never auto-retried.
func (q *OfflineQueue) MarkFailed(item datamodel.QueuedSave) error {
	item.Status = datamodel.QueueStatusFailed
	if _, err := q.failed.EnqueueObjectAsJSON(item); err != nil {
		return fmt.Errorf("failed to record failed save %s: %w", item.ID, err)
	}
	zap.S().Errorf("Save %s for property %s failed permanently after %d retries: %s",
		item.ID, item.Payload.PropertyID, item.RetryCount, item.LastError)
	q.updateGauges()
	return nil
}

// PendingLength returns the number of saves awaiting replay.
func (q *OfflineQueue) PendingLength() uint64 {
	return q.pending.Length()
}

// FailedLength returns the number of permanently failed saves.
func (q *OfflineQueue) FailedLength() uint64 {
	return q.failed.Length()
}

// FailedItems lists the permanently failed saves without removing them.
func (q *OfflineQueue) FailedItems() ([]datamodel.QueuedSave, error) {
	items := make([]datamodel.QueuedSave, 0, q.failed.Length())
	for i := uint64(0); i < q.failed.Length(); i++ {
		raw, err := q.failed.PeekByOffset(i)
		if err != nil {
			if errors.Is(err, goque.ErrOutOfBounds) {
				break
			}
			return nil, fmt.Errorf("failed to peek failed queue at %d: %w", i, err)
		}
		var item datamodel.QueuedSave
		if err = raw.ToObjectFromJSON(&item); err != nil {
			return nil, fmt.Errorf("failed to decode failed save: %w", err)
		}
		items = append(items, item)
	}
	return items, nil
}

func (q *OfflineQueue) updateGauges() {
	metrics.QueueDepth.Set(float64(q.pending.Length()))
	metrics.QueueFailed.Set(float64(q.failed.Length()))
}
