package persistence

import (
	"context"
	"sync"

	"github.com/ridgelinehq/roofmetrics/pkg/datamodel"
)

// MemoryStore is an in-memory SnapshotStore. It backs DRY_RUN mode where
// no database is available and the gateway tests.
type MemoryStore struct {
	mu        sync.Mutex
	snapshots []datamodel.MeasurementSnapshot
	summaries map[string]datamodel.MeasurementSummary
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{summaries: make(map[string]datamodel.MeasurementSummary)}
}

func (m *MemoryStore) GetActive(_ context.Context, propertyID string) (*datamodel.MeasurementSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.snapshots) - 1; i >= 0; i-- {
		if m.snapshots[i].PropertyID == propertyID && m.snapshots[i].Active {
			snap := m.snapshots[i]
			return &snap, nil
		}
	}
	return nil, ErrNoActiveSnapshot
}

func (m *MemoryStore) Deactivate(_ context.Context, snapshotID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.snapshots {
		if m.snapshots[i].ID == snapshotID {
			m.snapshots[i].Active = false
		}
	}
	return nil
}

func (m *MemoryStore) Insert(_ context.Context, snap *datamodel.MeasurementSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, *snap)
	return nil
}

func (m *MemoryStore) UpdatePropertySummary(_ context.Context, propertyID string, summary datamodel.MeasurementSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries[propertyID] = summary
	return nil
}

func (m *MemoryStore) History(_ context.Context, propertyID string) ([]datamodel.MeasurementSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var history []datamodel.MeasurementSnapshot
	for i := len(m.snapshots) - 1; i >= 0; i-- {
		if m.snapshots[i].PropertyID == propertyID {
			history = append(history, m.snapshots[i])
		}
	}
	return history, nil
}

// PropertySummary returns the denormalized summary written for a property.
func (m *MemoryStore) PropertySummary(propertyID string) (datamodel.MeasurementSummary, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.summaries[propertyID]
	return s, ok
}
