package aggregate

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ridgelinehq/roofmetrics/pkg/datamodel"
)

// Summarize folds all completed shapes into the aggregate summary.
// Footprint polygons feed the perimeter reference only; their area is not
// part of the facet total. Recomputed in full on every shape completion or
// deletion, so it must stay cheap and allocation-light.
func Summarize(shapes []datamodel.Shape) datamodel.MeasurementSummary {
	var s datamodel.MeasurementSummary
	for i := range shapes {
		shape := &shapes[i]
		switch shape.Kind {
		case datamodel.ShapeKindPolygon:
			if shape.IsFootprint() {
				s.FootprintAreaSqFt = shape.AreaSqFt
				s.FootprintPerimeterFt = shape.PerimeterFt
				continue
			}
			s.TotalAreaSqFt += shape.AreaSqFt
			s.FacetCount++
		case datamodel.ShapeKindPolyline:
			switch shape.FeatureType {
			case datamodel.FeatureTypeRidge:
				s.RidgeLengthFt += shape.LengthFt
			case datamodel.FeatureTypeHip:
				s.HipLengthFt += shape.LengthFt
			case datamodel.FeatureTypeValley:
				s.ValleyLengthFt += shape.LengthFt
			}
		}
	}
	s.TotalSquares = s.TotalAreaSqFt / 100
	s.Confidence = ConfidenceScore(s)
	return s
}

// ConfidenceScore is a completeness heuristic over the traced features.
// The footprint carries the largest weight; linear features and facets add
// smaller fixed increments. Capped below 1.0 because satellite-derived
// measurement is never presented as certain.
func ConfidenceScore(s datamodel.MeasurementSummary) float64 {
	score := 0.0
	if s.FootprintPerimeterFt > 0 {
		score += 0.40
	}
	if s.FacetCount > 0 {
		score += 0.15
	}
	if s.FacetCount >= 4 {
		score += 0.05
	}
	if s.RidgeLengthFt > 0 {
		score += 0.10
	}
	if s.HipLengthFt > 0 {
		score += 0.10
	}
	if s.ValleyLengthFt > 0 {
		score += 0.10
	}
	if score > 0.95 {
		score = 0.95
	}
	return score
}

// ParsePitch parses a rise/run pitch string such as "8/12" and returns the
// slope multiplier sqrt(rise^2+run^2)/run.
func ParsePitch(pitch string) (float64, error) {
	parts := strings.Split(strings.TrimSpace(pitch), "/")
	if len(parts) != 2 {
		return 0, fmt.Errorf("pitch %q is not in rise/run form", pitch)
	}
	rise, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, fmt.Errorf("pitch %q has invalid rise: %w", pitch, err)
	}
	run, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, fmt.Errorf("pitch %q has invalid run: %w", pitch, err)
	}
	if rise < 0 || run <= 0 {
		return 0, fmt.Errorf("pitch %q out of range", pitch)
	}
	return math.Sqrt(rise*rise+run*run) / run, nil
}

// EstimateMaterials derives purchasable material quantities from the
// summary, the roof pitch, the complexity class and a waste percentage.
// Every quantity rounds up since partial units cannot be bought.
func EstimateMaterials(
	s datamodel.MeasurementSummary,
	pitch string,
	complexity datamodel.Complexity,
	wastePercent float64) (datamodel.MaterialEstimate, error) {

	slope, err := ParsePitch(pitch)
	if err != nil {
		return datamodel.MaterialEstimate{}, err
	}
	mult, err := complexity.Multiplier()
	if err != nil {
		return datamodel.MaterialEstimate{}, err
	}
	if wastePercent < 0 {
		return datamodel.MaterialEstimate{}, fmt.Errorf("waste percent %f out of range", wastePercent)
	}

	adjusted := s.TotalAreaSqFt * slope
	wasteAdjusted := adjusted * (1 + wastePercent/100)

	est := datamodel.MaterialEstimate{
		Pitch:             pitch,
		Complexity:        complexity,
		WastePercent:      wastePercent,
		SlopeMultiplier:   slope,
		AdjustedAreaSqFt:  adjusted,
		WasteAdjustedSqFt: wasteAdjusted,

		// 3 bundles per square, 400 sq ft per underlayment roll,
		// 2 lbs of nails per square
		ShingleBundles:     ceilInt(wasteAdjusted / 100 * 3 * mult),
		UnderlaymentRolls:  ceilInt(wasteAdjusted / 400 * mult),
		NailsPounds:        ceilInt(wasteAdjusted / 100 * 2 * mult),
		RidgeCapFeet:       ceilInt((s.RidgeLengthFt + s.HipLengthFt) * mult),
		ValleyFlashingFeet: ceilInt(s.ValleyLengthFt * 1.1 * mult), // 10% overlap
		StarterStripFeet:   ceilInt(s.FootprintPerimeterFt * mult),
		DripEdgeFeet:       ceilInt(s.FootprintPerimeterFt * mult),
	}
	return est, nil
}

// ceilInt rounds up to whole purchasable units. The small epsilon keeps
// binary float noise (50*1.1 = 55.000000000000007) from bumping an exact
// product to the next unit.
func ceilInt(v float64) int {
	if v <= 0 {
		return 0
	}
	return int(math.Ceil(v - 1e-9))
}
