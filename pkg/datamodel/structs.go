package datamodel

import (
	"errors"
	"time"
)

// ShapeKind discriminates the two shape variants a trace can produce.
type ShapeKind string

const (
	ShapeKindPolygon  ShapeKind = "polygon"
	ShapeKindPolyline ShapeKind = "polyline"
)

// PolygonType distinguishes roof facets from the building footprint.
// The footprint is a perimeter reference and is excluded from area totals.
type PolygonType string

const (
	PolygonTypeFacet     PolygonType = "facet"
	PolygonTypeFootprint PolygonType = "footprint"
)

// FeatureType tags a polyline with its roof linear feature.
type FeatureType string

const (
	FeatureTypeRidge  FeatureType = "ridge"
	FeatureTypeHip    FeatureType = "hip"
	FeatureTypeValley FeatureType = "valley"
)

// Point is a canvas pixel coordinate. Points have no lifecycle of their
// own; they are always owned by a shape or an in-progress trace.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Shape is the tagged union over polygons and polylines. Kind selects the
// variant; PolygonType is only meaningful for polygons and FeatureType only
// for polylines. Derived measurements are computed once at completion time
// with the scale that was locked for the trace.
type Shape struct {
	ID          string      `json:"id"`
	Kind        ShapeKind   `json:"kind"`
	PolygonType PolygonType `json:"polygonType,omitempty"`
	FeatureType FeatureType `json:"featureType,omitempty"`
	Label       string      `json:"label"`
	Color       string      `json:"color,omitempty"`
	Points      []Point     `json:"points"`

	// Derived at completion. AreaSqFt and PerimeterFt are zero for
	// polylines, LengthFt is zero for polygons.
	AreaSqFt    float64 `json:"areaSqFt,omitempty"`
	PerimeterFt float64 `json:"perimeterFt,omitempty"`
	LengthFt    float64 `json:"lengthFt,omitempty"`

	// PixelsPerFoot is the locked ground scale the derived values were
	// computed with, kept so the pixel geometry can be re-derived.
	PixelsPerFoot float64 `json:"pixelsPerFoot,omitempty"`

	// WKT is the geographic serialization of the shape, independent of
	// canvas pixel dimensions.
	WKT string `json:"wkt,omitempty"`
}

// IsFootprint reports whether the shape is the building footprint polygon.
func (s *Shape) IsFootprint() bool {
	return s.Kind == ShapeKindPolygon && s.PolygonType == PolygonTypeFootprint
}

// MeasurementSummary is the aggregate over all completed shapes of one
// drawing session.
type MeasurementSummary struct {
	TotalAreaSqFt        float64 `json:"totalAreaSqFt"`
	TotalSquares         float64 `json:"totalSquares"`
	FacetCount           int     `json:"facetCount"`
	FootprintAreaSqFt    float64 `json:"footprintAreaSqFt"`
	FootprintPerimeterFt float64 `json:"footprintPerimeterFt"`
	RidgeLengthFt        float64 `json:"ridgeLengthFt"`
	HipLengthFt          float64 `json:"hipLengthFt"`
	ValleyLengthFt       float64 `json:"valleyLengthFt"`
	Confidence           float64 `json:"confidence"`
}

// Complexity classifies the roof cut-up level and scales material
// quantities accordingly.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
	ComplexityExtreme  Complexity = "extreme"
)

// Multiplier returns the per-unit material factor for the complexity class.
func (c Complexity) Multiplier() (float64, error) {
	switch c {
	case ComplexitySimple:
		return 1.0, nil
	case ComplexityModerate:
		return 1.2, nil
	case ComplexityComplex:
		return 1.5, nil
	case ComplexityExtreme:
		return 2.0, nil
	}
	return 0, errors.New("unknown complexity class: " + string(c))
}

// MaterialEstimate holds purchasable material quantities. All quantities
// are rounded up since partial units cannot be bought.
type MaterialEstimate struct {
	Pitch              string     `json:"pitch"`
	Complexity         Complexity `json:"complexity"`
	WastePercent       float64    `json:"wastePercent"`
	SlopeMultiplier    float64    `json:"slopeMultiplier"`
	AdjustedAreaSqFt   float64    `json:"adjustedAreaSqFt"`
	WasteAdjustedSqFt  float64    `json:"wasteAdjustedSqFt"`
	ShingleBundles     int        `json:"shingleBundles"`
	UnderlaymentRolls  int        `json:"underlaymentRolls"`
	RidgeCapFeet       int        `json:"ridgeCapFeet"`
	ValleyFlashingFeet int        `json:"valleyFlashingFeet"`
	StarterStripFeet   int        `json:"starterStripFeet"`
	DripEdgeFeet       int        `json:"dripEdgeFeet"`
	NailsPounds        int        `json:"nailsPounds"`
}

// SnapshotMetadata carries context needed to reproduce the measurement.
type SnapshotMetadata struct {
	CenterLat    float64 `json:"centerLat"`
	CenterLng    float64 `json:"centerLng"`
	Zoom         float64 `json:"zoom"`
	StaticMapURL string  `json:"staticMapUrl,omitempty"`
}

// MeasurementSnapshot is one durable, versioned measurement record.
// Snapshots are append-only: every save inserts a new version referencing
// its predecessor and deactivates the previous one. Exactly one snapshot
// per property is active at a time.
type MeasurementSnapshot struct {
	ID             string             `json:"id"`
	PropertyID     string             `json:"propertyId"`
	Version        int                `json:"version"`
	SupersedesID   string             `json:"supersedesId,omitempty"`
	Active         bool               `json:"active"`
	Faces          []Shape            `json:"faces"`
	LinearFeatures []Shape            `json:"linearFeatures"`
	Summary        MeasurementSummary `json:"summary"`
	Materials      *MaterialEstimate  `json:"materials,omitempty"`
	Metadata       SnapshotMetadata   `json:"metadata"`
	CreatedAt      time.Time          `json:"createdAt"`
}

// SaveRequest is the payload the persistence gateway accepts. It is also
// the payload stored in the offline queue, so it must round-trip JSON.
type SaveRequest struct {
	MeasurementID  string             `json:"measurementId"`
	PropertyID     string             `json:"propertyId"`
	Faces          []Shape            `json:"faces"`
	LinearFeatures []Shape            `json:"linearFeatures"`
	Summary        MeasurementSummary `json:"summary"`
	Materials      *MaterialEstimate  `json:"materials,omitempty"`
	Metadata       SnapshotMetadata   `json:"metadata"`
}

// QueueStatus is the lifecycle state of one queued save operation.
type QueueStatus string

const (
	QueueStatusPending QueueStatus = "pending"
	QueueStatusSyncing QueueStatus = "syncing"
	QueueStatusFailed  QueueStatus = "failed"
)

// QueuedSave wraps a save request that could not be delivered directly.
type QueuedSave struct {
	ID         string      `json:"id"`
	Payload    SaveRequest `json:"payload"`
	Status     QueueStatus `json:"status"`
	RetryCount int         `json:"retryCount"`
	LastError  string      `json:"lastError,omitempty"`
	EnqueuedAt time.Time   `json:"enqueuedAt"`
}
