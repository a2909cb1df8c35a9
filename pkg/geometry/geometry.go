package geometry

import (
	"math"

	"github.com/ridgelinehq/roofmetrics/pkg/datamodel"
)

// PolygonArea computes the enclosed area of a pixel-space polygon via the
// shoelace formula and converts it to square feet using the given scale
// (pixels per foot). The polygon is closed implicitly. Fewer than 3 points
// is degenerate and yields 0.
func PolygonArea(points []datamodel.Point, pixelsPerFoot float64) float64 {
	if len(points) < 3 || pixelsPerFoot <= 0 {
		return 0
	}
	var sum float64
	n := len(points)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += points[i].X*points[j].Y - points[j].X*points[i].Y
	}
	areaPx := math.Abs(sum) / 2
	return areaPx / (pixelsPerFoot * pixelsPerFoot)
}

// PolygonPerimeter sums the consecutive pixel distances of a polygon,
// including the closing segment, converted to feet. Fewer than 2 points
// yields 0.
func PolygonPerimeter(points []datamodel.Point, pixelsPerFoot float64) float64 {
	if len(points) < 2 || pixelsPerFoot <= 0 {
		return 0
	}
	var sumPx float64
	n := len(points)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sumPx += dist(points[i], points[j])
	}
	return sumPx / pixelsPerFoot
}

// LineLength sums the consecutive pixel distances of an open polyline,
// converted to feet. Fewer than 2 points yields 0. Zero-length segments
// (duplicate points from a double-click) contribute nothing.
func LineLength(points []datamodel.Point, pixelsPerFoot float64) float64 {
	if len(points) < 2 || pixelsPerFoot <= 0 {
		return 0
	}
	var sumPx float64
	for i := 0; i < len(points)-1; i++ {
		sumPx += dist(points[i], points[i+1])
	}
	return sumPx / pixelsPerFoot
}

func dist(a, b datamodel.Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}
