package drawing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridgelinehq/roofmetrics/pkg/datamodel"
	"github.com/ridgelinehq/roofmetrics/pkg/groundscale"
)

func trackerAt(t *testing.T, zoom, lat float64) *groundscale.Tracker {
	t.Helper()
	return groundscale.NewTracker(zoom, lat)
}

func tracePolygon(t *testing.T, s *Session, pt datamodel.PolygonType, pts ...datamodel.Point) datamodel.Shape {
	t.Helper()
	require.NoError(t, s.StartPolygon(pt))
	for _, p := range pts {
		require.NoError(t, s.AddPoint(p))
	}
	shape, err := s.Complete()
	require.NoError(t, err)
	return shape
}

func squarePts() []datamodel.Point {
	return []datamodel.Point{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 100}, {X: 0, Y: 100}}
}

func TestSessionLifecycle(t *testing.T) {
	s := NewSession(trackerAt(t, 20, 35))
	assert.Equal(t, StateSelect, s.State())
	assert.True(t, s.PanEnabled())

	require.NoError(t, s.StartPolygon(datamodel.PolygonTypeFacet))
	assert.Equal(t, StateDrawingPolygon, s.State())
	assert.False(t, s.PanEnabled(), "panning must be off while drawing")

	for _, p := range squarePts() {
		require.NoError(t, s.AddPoint(p))
	}
	shape, err := s.Complete()
	require.NoError(t, err)
	assert.Equal(t, StateSelect, s.State())
	assert.True(t, s.PanEnabled())
	assert.Equal(t, datamodel.ShapeKindPolygon, shape.Kind)
	assert.Equal(t, "Facet 1", shape.Label)
	assert.NotEmpty(t, shape.ID)
	assert.NotEmpty(t, shape.Color)
	assert.Greater(t, shape.AreaSqFt, 0.0)
	assert.Len(t, s.Shapes(), 1)
}

func TestSessionSingleTrace(t *testing.T) {
	s := NewSession(trackerAt(t, 20, 35))
	require.NoError(t, s.StartPolygon(datamodel.PolygonTypeFacet))
	assert.ErrorIs(t, s.StartPolygon(datamodel.PolygonTypeFacet), ErrTraceInProgress)
	assert.ErrorIs(t, s.StartPolyline(datamodel.FeatureTypeRidge), ErrTraceInProgress)
}

func TestSessionMinimumPoints(t *testing.T) {
	t.Run("polygon-needs-three", func(t *testing.T) {
		s := NewSession(trackerAt(t, 20, 35))
		require.NoError(t, s.StartPolygon(datamodel.PolygonTypeFacet))
		require.NoError(t, s.AddPoint(datamodel.Point{X: 0, Y: 0}))
		require.NoError(t, s.AddPoint(datamodel.Point{X: 10, Y: 0}))
		_, err := s.Complete()
		assert.ErrorIs(t, err, ErrTooFewPoints)
		// trace stays open
		assert.Equal(t, StateDrawingPolygon, s.State())
		require.NoError(t, s.AddPoint(datamodel.Point{X: 10, Y: 10}))
		_, err = s.Complete()
		assert.NoError(t, err)
	})
	t.Run("polyline-needs-two", func(t *testing.T) {
		s := NewSession(trackerAt(t, 20, 35))
		require.NoError(t, s.StartPolyline(datamodel.FeatureTypeValley))
		require.NoError(t, s.AddPoint(datamodel.Point{X: 0, Y: 0}))
		_, err := s.Complete()
		assert.ErrorIs(t, err, ErrTooFewPoints)
		require.NoError(t, s.AddPoint(datamodel.Point{X: 50, Y: 0}))
		shape, err := s.Complete()
		require.NoError(t, err)
		assert.Equal(t, datamodel.FeatureTypeValley, shape.FeatureType)
		assert.Equal(t, "Valley 1", shape.Label)
	})
}

func TestSessionUndo(t *testing.T) {
	s := NewSession(trackerAt(t, 20, 35))
	require.NoError(t, s.StartPolygon(datamodel.PolygonTypeFacet))
	require.NoError(t, s.AddPoint(datamodel.Point{X: 0, Y: 0}))
	require.NoError(t, s.AddPoint(datamodel.Point{X: 10, Y: 0}))
	require.NoError(t, s.UndoPoint())
	assert.Equal(t, 1, s.InProgressCount())
	assert.Equal(t, StateDrawingPolygon, s.State())

	// undoing the last point cancels the trace
	require.NoError(t, s.UndoPoint())
	assert.Equal(t, StateSelect, s.State())
	assert.True(t, s.PanEnabled())
}

func TestSessionCancel(t *testing.T) {
	s := NewSession(trackerAt(t, 20, 35))
	require.NoError(t, s.StartPolyline(datamodel.FeatureTypeRidge))
	require.NoError(t, s.AddPoint(datamodel.Point{X: 0, Y: 0}))
	require.NoError(t, s.Cancel())
	assert.Equal(t, StateSelect, s.State())
	assert.Empty(t, s.Shapes())
	assert.ErrorIs(t, s.Cancel(), ErrNotDrawing)
	assert.ErrorIs(t, s.AddPoint(datamodel.Point{X: 1, Y: 1}), ErrNotDrawing)
}

func TestSessionLockedScaleSurvivesZoom(t *testing.T) {
	tr := trackerAt(t, 20, 35)
	s := NewSession(tr)

	require.NoError(t, s.StartPolygon(datamodel.PolygonTypeFacet))
	require.NoError(t, s.AddPoint(datamodel.Point{X: 0, Y: 0}))
	require.NoError(t, s.AddPoint(datamodel.Point{X: 100, Y: 0}))

	// user zooms out mid-trace; the viewport feed keeps updating
	tr.Update(15, 35)

	require.NoError(t, s.AddPoint(datamodel.Point{X: 100, Y: 100}))
	require.NoError(t, s.AddPoint(datamodel.Point{X: 0, Y: 100}))
	zoomed, err := s.Complete()
	require.NoError(t, err)

	// reference trace with no zoom change, same pixel square
	tr2 := trackerAt(t, 20, 35)
	s2 := NewSession(tr2)
	ref := tracePolygon(t, s2, datamodel.PolygonTypeFacet, squarePts()...)

	assert.InDelta(t, ref.AreaSqFt, zoomed.AreaSqFt, 1e-9,
		"zoom changes mid-trace must not alter the measured area")

	// the next trace observes the live (zoomed-out) scale
	require.NoError(t, s.StartPolygon(datamodel.PolygonTypeFacet))
	next := mustComplete(t, s, squarePts()...)
	assert.Greater(t, next.AreaSqFt, zoomed.AreaSqFt,
		"zoomed-out pixels cover more ground")
}

func mustComplete(t *testing.T, s *Session, pts ...datamodel.Point) datamodel.Shape {
	t.Helper()
	for _, p := range pts {
		require.NoError(t, s.AddPoint(p))
	}
	shape, err := s.Complete()
	require.NoError(t, err)
	return shape
}

func TestSessionLabelsAndColors(t *testing.T) {
	s := NewSession(trackerAt(t, 20, 35))
	a := tracePolygon(t, s, datamodel.PolygonTypeFacet, squarePts()...)
	b := tracePolygon(t, s, datamodel.PolygonTypeFacet, squarePts()...)
	fp := tracePolygon(t, s, datamodel.PolygonTypeFootprint, squarePts()...)

	assert.Equal(t, "Facet 1", a.Label)
	assert.Equal(t, "Facet 2", b.Label)
	assert.Equal(t, "Footprint", fp.Label)
	assert.NotEqual(t, a.Color, b.Color)
}

func TestSessionDeleteAndClear(t *testing.T) {
	s := NewSession(trackerAt(t, 20, 35))
	a := tracePolygon(t, s, datamodel.PolygonTypeFacet, squarePts()...)
	tracePolygon(t, s, datamodel.PolygonTypeFacet, squarePts()...)

	sum := s.Summary()
	assert.Equal(t, 2, sum.FacetCount)

	require.NoError(t, s.DeleteShape(a.ID))
	sum = s.Summary()
	assert.Equal(t, 1, sum.FacetCount)
	assert.ErrorIs(t, s.DeleteShape(a.ID), ErrShapeNotFound)

	s.Clear()
	assert.Empty(t, s.Shapes())
	assert.Zero(t, s.Summary().TotalAreaSqFt)
}

func TestSessionDuplicateDoubleClickPoint(t *testing.T) {
	s := NewSession(trackerAt(t, 20, 35))
	pts := append(squarePts(), datamodel.Point{X: 0, Y: 100})
	dup := tracePolygon(t, s, datamodel.PolygonTypeFacet, pts...)

	s2 := NewSession(trackerAt(t, 20, 35))
	clean := tracePolygon(t, s2, datamodel.PolygonTypeFacet, squarePts()...)

	assert.InDelta(t, clean.AreaSqFt, dup.AreaSqFt, 1e-9)
	assert.InDelta(t, clean.PerimeterFt, dup.PerimeterFt, 1e-9)
}

func TestSessionSnapToFirstPoint(t *testing.T) {
	s := NewSession(trackerAt(t, 20, 35))
	pts := append(squarePts(), datamodel.Point{X: 3, Y: 4})
	snapped := tracePolygon(t, s, datamodel.PolygonTypeFacet, pts...)

	s2 := NewSession(trackerAt(t, 20, 35))
	clean := tracePolygon(t, s2, datamodel.PolygonTypeFacet, squarePts()...)

	// the closing click near the first vertex snaps onto it
	assert.Len(t, snapped.Points, 4)
	assert.InDelta(t, clean.AreaSqFt, snapped.AreaSqFt, 1e-9)
	assert.InDelta(t, clean.PerimeterFt, snapped.PerimeterFt, 1e-9)

	// a distant final point is a real vertex, never snapped
	s3 := NewSession(trackerAt(t, 20, 35))
	pts = append(squarePts(), datamodel.Point{X: -50, Y: 50})
	open := tracePolygon(t, s3, datamodel.PolygonTypeFacet, pts...)
	assert.Len(t, open.Points, 5)
}

func TestSessionRejectsUnknownTypes(t *testing.T) {
	s := NewSession(trackerAt(t, 20, 35))
	assert.Error(t, s.StartPolygon(datamodel.PolygonType("gazebo")))
	assert.Error(t, s.StartPolyline(datamodel.FeatureType("gable")))
	assert.Equal(t, StateSelect, s.State())
}
