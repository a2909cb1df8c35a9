package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ridgelinehq/roofmetrics/pkg/datamodel"
)

func square100() []datamodel.Point {
	return []datamodel.Point{
		{X: 0, Y: 0},
		{X: 100, Y: 0},
		{X: 100, Y: 100},
		{X: 0, Y: 100},
	}
}

func TestPolygonArea(t *testing.T) {
	t.Run("known-square", func(t *testing.T) {
		// 100x100 px at 1 px/ft is a 100x100 ft roof plane
		assert.InDelta(t, 10000.0, PolygonArea(square100(), 1), 1e-9)
	})
	t.Run("deterministic", func(t *testing.T) {
		pts := square100()
		first := PolygonArea(pts, 2.5)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, PolygonArea(pts, 2.5))
		}
	})
	t.Run("degenerate", func(t *testing.T) {
		assert.Zero(t, PolygonArea(nil, 1))
		assert.Zero(t, PolygonArea([]datamodel.Point{{X: 1, Y: 1}}, 1))
		assert.Zero(t, PolygonArea([]datamodel.Point{{X: 1, Y: 1}, {X: 2, Y: 2}}, 1))
	})
	t.Run("winding-order-irrelevant", func(t *testing.T) {
		pts := square100()
		reversed := make([]datamodel.Point, len(pts))
		for i, p := range pts {
			reversed[len(pts)-1-i] = p
		}
		assert.InDelta(t, PolygonArea(pts, 1), PolygonArea(reversed, 1), 1e-9)
	})
	t.Run("duplicate-closing-point-tolerated", func(t *testing.T) {
		pts := append(square100(), datamodel.Point{X: 0, Y: 100})
		assert.InDelta(t, 10000.0, PolygonArea(pts, 1), 1e-9)
	})
}

func TestPolygonPerimeter(t *testing.T) {
	t.Run("known-square", func(t *testing.T) {
		assert.InDelta(t, 400.0, PolygonPerimeter(square100(), 1), 1e-9)
	})
	t.Run("degenerate", func(t *testing.T) {
		assert.Zero(t, PolygonPerimeter(nil, 1))
		assert.Zero(t, PolygonPerimeter([]datamodel.Point{{X: 3, Y: 4}}, 1))
	})
}

func TestLineLength(t *testing.T) {
	t.Run("pythagoras", func(t *testing.T) {
		pts := []datamodel.Point{{X: 0, Y: 0}, {X: 3, Y: 4}}
		assert.InDelta(t, 5.0, LineLength(pts, 1), 1e-9)
	})
	t.Run("multi-segment", func(t *testing.T) {
		pts := []datamodel.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}}
		assert.InDelta(t, 10.0, LineLength(pts, 2), 1e-9)
	})
	t.Run("degenerate", func(t *testing.T) {
		assert.Zero(t, LineLength(nil, 1))
		assert.Zero(t, LineLength([]datamodel.Point{{X: 1, Y: 1}}, 1))
	})
	t.Run("zero-length-segment", func(t *testing.T) {
		pts := []datamodel.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 0}}
		assert.InDelta(t, 10.0, LineLength(pts, 1), 1e-9)
	})
}

func TestScaleInvariance(t *testing.T) {
	// Doubling all coordinates while halving nothing: doubling pixel
	// coordinates and doubling the scale must leave real-world values
	// unchanged.
	pts := square100()
	scaled := make([]datamodel.Point, len(pts))
	for i, p := range pts {
		scaled[i] = datamodel.Point{X: p.X * 2, Y: p.Y * 2}
	}
	assert.InDelta(t, PolygonArea(pts, 1), PolygonArea(scaled, 2), 1e-9)
	assert.InDelta(t, PolygonPerimeter(pts, 1), PolygonPerimeter(scaled, 2), 1e-9)
	assert.InDelta(t, LineLength(pts, 1), LineLength(scaled, 2), 1e-9)
}
