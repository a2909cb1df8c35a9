package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	lru "github.com/hashicorp/golang-lru"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ridgelinehq/roofmetrics/pkg/datamodel"
)

const activeSnapshotCacheSize = 128

// PostgresStore implements SnapshotStore against the hosted Postgres
// backend. Shape payloads are stored as JSONB next to the indexed
// versioning columns; the active snapshot per property is kept in an ARC
// cache to spare the hot read path a round trip.
type PostgresStore struct {
	db          *pgxpool.Pool
	activeCache *lru.ARCCache
}

// NewPostgresStore connects the pool and ensures the measurement tables
// exist.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	cache, err := lru.NewARC(activeSnapshotCacheSize)
	if err != nil {
		pool.Close()
		return nil, err
	}

	s := &PostgresStore{db: pool, activeCache: cache}
	if err = s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS roofMeasurement
		(
			id           UUID PRIMARY KEY,
			propertyId   TEXT        NOT NULL,
			version      INT         NOT NULL,
			supersedesId UUID        NULL,
			active       BOOLEAN     NOT NULL DEFAULT FALSE,
			payload      JSONB       NOT NULL,
			summary      JSONB       NOT NULL,
			createdAt    TIMESTAMPTZ NOT NULL,
			UNIQUE (propertyId, version)
		);
		CREATE INDEX IF NOT EXISTS idx_roofMeasurement_property_active
			ON roofMeasurement (propertyId) WHERE active;
		CREATE TABLE IF NOT EXISTS propertyMeasurementSummary
		(
			propertyId    TEXT PRIMARY KEY,
			totalAreaSqFt DOUBLE PRECISION NOT NULL,
			totalSquares  DOUBLE PRECISION NOT NULL,
			confidence    DOUBLE PRECISION NOT NULL,
			updatedAt     TIMESTAMPTZ      NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to migrate measurement tables: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *PostgresStore) Close() {
	s.db.Close()
}

// Ping is used by the readiness check.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

type snapshotPayload struct {
	Faces          []datamodel.Shape           `json:"faces"`
	LinearFeatures []datamodel.Shape           `json:"linearFeatures"`
	Materials      *datamodel.MaterialEstimate `json:"materials,omitempty"`
	Metadata       datamodel.SnapshotMetadata  `json:"metadata"`
}

func (s *PostgresStore) GetActive(ctx context.Context, propertyID string) (*datamodel.MeasurementSnapshot, error) {
	if v, ok := s.activeCache.Get(propertyID); ok {
		if snap, ok2 := v.(*datamodel.MeasurementSnapshot); ok2 {
			return snap, nil
		}
	}

	row := s.db.QueryRow(ctx, `
		SELECT id::text, propertyId, version, COALESCE(supersedesId::text, ''), active, payload, summary, createdAt
		FROM roofMeasurement
		WHERE propertyId = $1 AND active
		ORDER BY version DESC
		LIMIT 1`, propertyID)

	snap, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveSnapshot
		}
		return nil, fmt.Errorf("failed to read active snapshot for %s: %w", propertyID, err)
	}

	s.activeCache.Add(propertyID, snap)
	return snap, nil
}

func (s *PostgresStore) Deactivate(ctx context.Context, snapshotID string) error {
	tag, err := s.db.Exec(ctx, `UPDATE roofMeasurement SET active = FALSE WHERE id = $1`, snapshotID)
	if err != nil {
		return fmt.Errorf("failed to deactivate snapshot %s: %w", snapshotID, err)
	}
	if tag.RowsAffected() == 0 {
		zap.S().Warnf("Deactivate touched no rows for snapshot %s", snapshotID)
	}
	// drop every cached entry pointing at this snapshot
	for _, key := range s.activeCache.Keys() {
		if v, ok := s.activeCache.Get(key); ok {
			if snap, ok2 := v.(*datamodel.MeasurementSnapshot); ok2 && snap.ID == snapshotID {
				s.activeCache.Remove(key)
			}
		}
	}
	return nil
}

func (s *PostgresStore) Insert(ctx context.Context, snap *datamodel.MeasurementSnapshot) error {
	payload, err := json.Marshal(snapshotPayload{
		Faces:          snap.Faces,
		LinearFeatures: snap.LinearFeatures,
		Materials:      snap.Materials,
		Metadata:       snap.Metadata,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot payload: %w", err)
	}
	summary, err := json.Marshal(snap.Summary)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot summary: %w", err)
	}

	var supersedes any
	if snap.SupersedesID != "" {
		supersedes = snap.SupersedesID
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO roofMeasurement (id, propertyId, version, supersedesId, active, payload, summary, createdAt)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		snap.ID, snap.PropertyID, snap.Version, supersedes, snap.Active, payload, summary, snap.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot %s v%d: %w", snap.ID, snap.Version, err)
	}

	if snap.Active {
		s.activeCache.Add(snap.PropertyID, snap)
	}
	return nil
}

func (s *PostgresStore) UpdatePropertySummary(ctx context.Context, propertyID string, summary datamodel.MeasurementSummary) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO propertyMeasurementSummary (propertyId, totalAreaSqFt, totalSquares, confidence, updatedAt)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (propertyId) DO UPDATE
			SET totalAreaSqFt = EXCLUDED.totalAreaSqFt,
			    totalSquares  = EXCLUDED.totalSquares,
			    confidence    = EXCLUDED.confidence,
			    updatedAt     = EXCLUDED.updatedAt`,
		propertyID, summary.TotalAreaSqFt, summary.TotalSquares, summary.Confidence, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update property summary for %s: %w", propertyID, err)
	}
	return nil
}

func (s *PostgresStore) History(ctx context.Context, propertyID string) ([]datamodel.MeasurementSnapshot, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id::text, propertyId, version, COALESCE(supersedesId::text, ''), active, payload, summary, createdAt
		FROM roofMeasurement
		WHERE propertyId = $1
		ORDER BY version DESC`, propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to read history for %s: %w", propertyID, err)
	}
	defer rows.Close()

	var history []datamodel.MeasurementSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		history = append(history, *snap)
	}
	return history, rows.Err()
}

func scanSnapshot(row pgx.Row) (*datamodel.MeasurementSnapshot, error) {
	var (
		snap         datamodel.MeasurementSnapshot
		payloadBytes []byte
		summaryBytes []byte
	)
	err := row.Scan(&snap.ID, &snap.PropertyID, &snap.Version, &snap.SupersedesID,
		&snap.Active, &payloadBytes, &summaryBytes, &snap.CreatedAt)
	if err != nil {
		return nil, err
	}

	var payload snapshotPayload
	if err = json.Unmarshal(payloadBytes, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot payload: %w", err)
	}
	if err = json.Unmarshal(summaryBytes, &snap.Summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot summary: %w", err)
	}
	snap.Faces = payload.Faces
	snap.LinearFeatures = payload.LinearFeatures
	snap.Materials = payload.Materials
	snap.Metadata = payload.Metadata
	return &snap, nil
}
