package projection

import (
	"fmt"
	"math"
	"net/url"
	"strings"

	"github.com/ridgelinehq/roofmetrics/pkg/datamodel"
)

const (
	equatorMetersPerPixel = 156543.03392

	// Small-angle approximation: meters per degree of latitude.
	metersPerDegreeLat = 111320.0
)

// Viewport describes the map canvas the shapes were traced over.
type Viewport struct {
	CenterLat float64 `json:"centerLat"`
	CenterLng float64 `json:"centerLng"`
	Zoom      float64 `json:"zoom"`
	WidthPx   float64 `json:"widthPx"`
	HeightPx  float64 `json:"heightPx"`
}

func (vp Viewport) metersPerPixel() float64 {
	return equatorMetersPerPixel * math.Cos(vp.CenterLat*math.Pi/180) / math.Pow(2, vp.Zoom)
}

// PixelToGeo converts a canvas pixel coordinate to latitude/longitude.
// Offsets are relative to the canvas center; canvas y grows downward, so a
// larger y means further south.
func PixelToGeo(x, y float64, vp Viewport) (lat, lng float64) {
	mpp := vp.metersPerPixel()
	dxMeters := (x - vp.WidthPx/2) * mpp
	dyMeters := (y - vp.HeightPx/2) * mpp

	lat = vp.CenterLat - dyMeters/metersPerDegreeLat
	lng = vp.CenterLng + dxMeters/(metersPerDegreeLat*math.Cos(vp.CenterLat*math.Pi/180))
	return lat, lng
}

// GeoToPixel is the inverse of PixelToGeo for the same viewport.
func GeoToPixel(lat, lng float64, vp Viewport) (x, y float64) {
	mpp := vp.metersPerPixel()
	dyMeters := (vp.CenterLat - lat) * metersPerDegreeLat
	dxMeters := (lng - vp.CenterLng) * metersPerDegreeLat * math.Cos(vp.CenterLat*math.Pi/180)

	x = vp.WidthPx/2 + dxMeters/mpp
	y = vp.HeightPx/2 + dyMeters/mpp
	return x, y
}

// ShapeWKT serializes a completed shape to well-known text, projecting
// every pixel coordinate to geographic space. Polygons become a closed
// POLYGON ring, polylines a LINESTRING. The WKT is persisted alongside the
// pixel geometry so the measurement survives independent of canvas
// dimensions.
func ShapeWKT(shape datamodel.Shape, vp Viewport) (string, error) {
	switch shape.Kind {
	case datamodel.ShapeKindPolygon:
		if len(shape.Points) < 3 {
			return "", fmt.Errorf("polygon %s has %d points, need at least 3", shape.ID, len(shape.Points))
		}
		coords := make([]string, 0, len(shape.Points)+1)
		for _, p := range shape.Points {
			coords = append(coords, wktCoord(p, vp))
		}
		// close the ring
		coords = append(coords, wktCoord(shape.Points[0], vp))
		return "POLYGON((" + strings.Join(coords, ", ") + "))", nil
	case datamodel.ShapeKindPolyline:
		if len(shape.Points) < 2 {
			return "", fmt.Errorf("polyline %s has %d points, need at least 2", shape.ID, len(shape.Points))
		}
		coords := make([]string, 0, len(shape.Points))
		for _, p := range shape.Points {
			coords = append(coords, wktCoord(p, vp))
		}
		return "LINESTRING(" + strings.Join(coords, ", ") + ")", nil
	}
	return "", fmt.Errorf("unknown shape kind %q", shape.Kind)
}

func wktCoord(p datamodel.Point, vp Viewport) string {
	lat, lng := PixelToGeo(p.X, p.Y, vp)
	return fmt.Sprintf("%.6f %.6f", lng, lat)
}

// StaticMapURL derives the satellite still-image URL recorded in snapshot
// metadata. The core never fetches imagery itself.
func StaticMapURL(vp Viewport, apiKey string) string {
	q := url.Values{}
	q.Set("center", fmt.Sprintf("%.6f,%.6f", vp.CenterLat, vp.CenterLng))
	q.Set("zoom", fmt.Sprintf("%.0f", vp.Zoom))
	q.Set("size", fmt.Sprintf("%.0fx%.0f", vp.WidthPx, vp.HeightPx))
	q.Set("maptype", "satellite")
	if apiKey != "" {
		q.Set("key", apiKey)
	}
	return "https://maps.googleapis.com/maps/api/staticmap?" + q.Encode()
}
