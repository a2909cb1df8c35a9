package persistence

import (
	"context"
	"errors"

	"github.com/ridgelinehq/roofmetrics/pkg/datamodel"
)

// ErrNoActiveSnapshot is returned by GetActive when the property has never
// been measured or all of its snapshots are inactive.
var ErrNoActiveSnapshot = errors.New("no active snapshot for property")

// SnapshotStore is the backend boundary of the persistence gateway. The
// backend is expected to support exactly these primitives; the gateway
// composes them into the versioned supersede write. Implementations must
// be safe for concurrent use.
type SnapshotStore interface {
	// GetActive returns the currently active snapshot of a property.
	GetActive(ctx context.Context, propertyID string) (*datamodel.MeasurementSnapshot, error)

	// Deactivate clears the active flag of one snapshot by id.
	Deactivate(ctx context.Context, snapshotID string) error

	// Insert writes a new snapshot version.
	Insert(ctx context.Context, snap *datamodel.MeasurementSnapshot) error

	// UpdatePropertySummary refreshes the denormalized measurement
	// fields on the owning property record.
	UpdatePropertySummary(ctx context.Context, propertyID string, summary datamodel.MeasurementSummary) error

	// History returns all snapshot versions of a property, newest first.
	History(ctx context.Context, propertyID string) ([]datamodel.MeasurementSnapshot, error)
}
