package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ridgelinehq/roofmetrics/pkg/datamodel"
	"github.com/ridgelinehq/roofmetrics/pkg/measurecache"
	"github.com/ridgelinehq/roofmetrics/pkg/metrics"
)

// DefaultMaxRetries is the replay ceiling. A queue entry whose retry count
// is already at the ceiling is marked failed on its next failure and never
// retried again.
const DefaultMaxRetries = 3

// SaveResult is the only thing Save ever resolves to. The gateway never
// panics or errors past its boundary: an offline or failed-then-queued
// save is reported as accepted, because it will be delivered on replay.
type SaveResult struct {
	// Accepted is true when the payload was either written directly or
	// durably queued for later delivery.
	Accepted bool

	// Queued is true when the payload went to the offline queue instead
	// of the backend.
	Queued bool

	// Snapshot is the stored version on a direct write, nil when queued.
	Snapshot *datamodel.MeasurementSnapshot

	Err error
}

// Gateway performs versioned measurement saves with an offline-queue
// fallback. Online saves compose the backend primitives: read the active
// version, deactivate it, insert the successor, refresh the property
// summary. Any failure along the way queues the payload for replay; the
// user-visible outcome is identical whether the cause was "offline" or
// "request failed".
type Gateway struct {
	store      SnapshotStore
	queue      *OfflineQueue
	reach      Reachability
	cache      *measurecache.SnapshotCache
	maxRetries int

	// replayMu serializes replay passes so two reconnect events cannot
	// race to deactivate/insert versions for the same property.
	replayMu sync.Mutex
}

// NewGateway wires a gateway. cache may be nil.
func NewGateway(store SnapshotStore, queue *OfflineQueue, reach Reachability, cache *measurecache.SnapshotCache) *Gateway {
	return &Gateway{
		store:      store,
		queue:      queue,
		reach:      reach,
		cache:      cache,
		maxRetries: DefaultMaxRetries,
	}
}

// Save persists a measurement snapshot, directly when the backend is
// reachable, through the offline queue otherwise.
func (g *Gateway) Save(ctx context.Context, req datamodel.SaveRequest) SaveResult {
	if g.reach.Online() {
		snap, err := g.writeVersioned(ctx, req)
		if err == nil {
			metrics.SavesTotal.WithLabelValues("direct").Inc()
			return SaveResult{Accepted: true, Snapshot: snap}
		}
		zap.S().Warnf("Online save for property %s failed, queueing: %s", req.PropertyID, err)
	}
	return g.enqueue(req)
}

func (g *Gateway) enqueue(req datamodel.SaveRequest) SaveResult {
	item := datamodel.QueuedSave{
		ID:         uuid.NewString(),
		Payload:    req,
		Status:     datamodel.QueueStatusPending,
		EnqueuedAt: time.Now().UTC(),
	}
	if err := g.queue.Add(item); err != nil {
		metrics.SavesTotal.WithLabelValues("failed").Inc()
		return SaveResult{Err: fmt.Errorf("failed to queue save: %w", err)}
	}
	metrics.SavesTotal.WithLabelValues("queued").Inc()
	return SaveResult{Accepted: true, Queued: true}
}

// writeVersioned performs the supersede write: the new snapshot gets
// version previous+1 and references its predecessor, which is deactivated
// first. There is no compensation if a later step fails after the
// deactivate; the payload is re-queued and the retry closes the gap.
func (g *Gateway) writeVersioned(ctx context.Context, req datamodel.SaveRequest) (*datamodel.MeasurementSnapshot, error) {
	prev, err := g.store.GetActive(ctx, req.PropertyID)
	if err != nil && !errors.Is(err, ErrNoActiveSnapshot) {
		return nil, fmt.Errorf("failed to read active version: %w", err)
	}

	version := 1
	supersedes := ""
	if prev != nil {
		version = prev.Version + 1
		supersedes = prev.ID
		if err = g.store.Deactivate(ctx, prev.ID); err != nil {
			return nil, fmt.Errorf("failed to deactivate version %d: %w", prev.Version, err)
		}
	} else {
		// a replay after a partially failed save finds no active
		// version; continue the lineage instead of restarting at 1
		history, herr := g.store.History(ctx, req.PropertyID)
		if herr == nil && len(history) > 0 {
			version = history[0].Version + 1
		}
	}

	id := req.MeasurementID
	if id == "" {
		id = uuid.NewString()
	}
	snap := &datamodel.MeasurementSnapshot{
		ID:             id,
		PropertyID:     req.PropertyID,
		Version:        version,
		SupersedesID:   supersedes,
		Active:         true,
		Faces:          req.Faces,
		LinearFeatures: req.LinearFeatures,
		Summary:        req.Summary,
		Materials:      req.Materials,
		Metadata:       req.Metadata,
		CreatedAt:      time.Now().UTC(),
	}

	if err = g.store.Insert(ctx, snap); err != nil {
		return nil, fmt.Errorf("failed to insert version %d: %w", version, err)
	}
	if err = g.store.UpdatePropertySummary(ctx, req.PropertyID, req.Summary); err != nil {
		return nil, fmt.Errorf("failed to update property summary: %w", err)
	}

	if g.cache != nil {
		g.cache.Invalidate(req.PropertyID)
	}
	zap.S().Infof("Stored measurement %s v%d for property %s", snap.ID, snap.Version, snap.PropertyID)
	return snap, nil
}

// ReplayStats summarizes one replay pass.
type ReplayStats struct {
	Synced   int
	Requeued int
	Failed   int
}

// Replay drains the pending queue in enqueue order. Each entry is written
// fully before the next is attempted. Entries failing below the retry
// ceiling return to pending for the next reconnect cycle; entries failing
// at the ceiling are moved to the failed queue permanently. The pass is
// bounded by the queue length at its start so requeued entries are not
// retried within the same pass.
func (g *Gateway) Replay(ctx context.Context) ReplayStats {
	g.replayMu.Lock()
	defer g.replayMu.Unlock()

	var stats ReplayStats
	n := g.queue.PendingLength()
	if n == 0 {
		return stats
	}
	zap.S().Infof("Replaying %d queued saves", n)

	for i := uint64(0); i < n; i++ {
		item, err := g.queue.TakePending()
		if err != nil {
			if errors.Is(err, ErrCorruptEntry) {
				metrics.ReplayTotal.WithLabelValues("failed").Inc()
				stats.Failed++
				continue
			}
			if !errors.Is(err, ErrQueueEmpty) {
				zap.S().Errorf("Replay aborted, cannot read queue: %s", err)
			}
			break
		}

		item.Status = datamodel.QueueStatusSyncing
		item.RetryCount++

		_, werr := g.writeVersioned(ctx, item.Payload)
		if werr == nil {
			metrics.ReplayTotal.WithLabelValues("synced").Inc()
			stats.Synced++
			continue
		}
		item.LastError = werr.Error()

		if item.RetryCount > g.maxRetries {
			if ferr := g.queue.MarkFailed(item); ferr != nil {
				zap.S().Errorf("Could not record failed save %s: %s", item.ID, ferr)
			}
			metrics.ReplayTotal.WithLabelValues("failed").Inc()
			stats.Failed++
			continue
		}

		if rerr := g.queue.Add(item); rerr != nil {
			zap.S().Errorf("Could not requeue save %s: %s", item.ID, rerr)
			stats.Failed++
			continue
		}
		metrics.ReplayTotal.WithLabelValues("retried").Inc()
		stats.Requeued++
	}

	zap.S().Infof("Replay pass done: %d synced, %d requeued, %d failed",
		stats.Synced, stats.Requeued, stats.Failed)
	return stats
}

// QueueOverview reports pending/failed depths and the failed entries for
// the queue status surface.
func (g *Gateway) QueueOverview() (pending, failed uint64, failedItems []datamodel.QueuedSave, err error) {
	failedItems, err = g.queue.FailedItems()
	return g.queue.PendingLength(), g.queue.FailedLength(), failedItems, err
}
