package drawing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/ridgelinehq/roofmetrics/pkg/aggregate"
	"github.com/ridgelinehq/roofmetrics/pkg/datamodel"
	"github.com/ridgelinehq/roofmetrics/pkg/geometry"
	"github.com/ridgelinehq/roofmetrics/pkg/groundscale"
)

// Session states.
const (
	StateSelect          = "select"
	StateDrawingPolygon  = "drawing_polygon"
	StateDrawingPolyline = "drawing_polyline"
)

// Session events.
const (
	eventStartPolygon  = "start_polygon"
	eventStartPolyline = "start_polyline"
	eventComplete      = "complete"
	eventCancel        = "cancel"
)

const (
	minPolygonPoints  = 3
	minPolylinePoints = 2

	// snapTolerancePx closes a polygon when the final click lands near
	// the first vertex instead of recording a sliver edge.
	snapTolerancePx = 10.0
)

var (
	ErrNotDrawing      = errors.New("no trace in progress")
	ErrTooFewPoints    = errors.New("not enough points to complete the trace")
	ErrShapeNotFound   = errors.New("shape not found")
	ErrTraceInProgress = errors.New("a trace is already in progress")
)

// palette assigned to completed shapes, cycling by insertion order.
var palette = []string{
	"#e6194b", "#3cb44b", "#ffe119", "#4363d8", "#f58231",
	"#911eb4", "#46f0f0", "#f032e6", "#bcf60c", "#fabebe",
}

// Session owns the interactive trace lifecycle of one measurement canvas.
// It is created when the canvas mounts and mutated exclusively by pointer
// events and explicit control actions. Exactly one trace may be in
// progress at a time; the transitions enforce that.
type Session struct {
	mu      sync.Mutex
	machine *fsm.FSM
	scale   *groundscale.Tracker

	buffer      []datamodel.Point
	polygonType datamodel.PolygonType
	featureType datamodel.FeatureType
	lockedScale float64

	completed     []datamodel.Shape
	paletteCursor int
	labelSeq      map[string]int
	panEnabled    bool
}

// NewSession creates a session in the select state bound to the canvas's
// ground-scale tracker.
func NewSession(scale *groundscale.Tracker) *Session {
	s := &Session{
		scale:      scale,
		labelSeq:   make(map[string]int),
		panEnabled: true,
	}
	s.machine = fsm.NewFSM(
		StateSelect,
		fsm.Events{
			{Name: eventStartPolygon, Src: []string{StateSelect}, Dst: StateDrawingPolygon},
			{Name: eventStartPolyline, Src: []string{StateSelect}, Dst: StateDrawingPolyline},
			{Name: eventComplete, Src: []string{StateDrawingPolygon, StateDrawingPolyline}, Dst: StateSelect},
			{Name: eventCancel, Src: []string{StateDrawingPolygon, StateDrawingPolyline}, Dst: StateSelect},
		},
		fsm.Callbacks{
			"enter_" + StateDrawingPolygon:  func(_ context.Context, e *fsm.Event) { s.beginTrace() },
			"enter_" + StateDrawingPolyline: func(_ context.Context, e *fsm.Event) { s.beginTrace() },
			"enter_" + StateSelect:          func(_ context.Context, e *fsm.Event) { s.endTrace() },
		},
	)
	return s
}

// beginTrace and endTrace run inside FSM transitions with s.mu held by the
// calling method.
func (s *Session) beginTrace() {
	s.buffer = s.buffer[:0]
	s.lockedScale = s.scale.Lock()
	s.panEnabled = false
}

func (s *Session) endTrace() {
	s.buffer = nil
	s.lockedScale = 0
	s.scale.Unlock()
	s.panEnabled = true
}

// State returns the current machine state.
func (s *Session) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.Current()
}

// PanEnabled reports whether the background map may pan. Panning is
// disabled while a trace is in progress so pointer events are unambiguous.
func (s *Session) PanEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.panEnabled
}

// StartPolygon enters polygon tracing for a facet or the footprint.
func (s *Session) StartPolygon(polygonType datamodel.PolygonType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if polygonType != datamodel.PolygonTypeFacet && polygonType != datamodel.PolygonTypeFootprint {
		return fmt.Errorf("unknown polygon type %q", polygonType)
	}
	if err := s.machine.Event(context.Background(), eventStartPolygon); err != nil {
		return fmt.Errorf("%w: %s", ErrTraceInProgress, err)
	}
	s.polygonType = polygonType
	return nil
}

// StartPolyline enters polyline tracing for a ridge, hip or valley.
func (s *Session) StartPolyline(featureType datamodel.FeatureType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch featureType {
	case datamodel.FeatureTypeRidge, datamodel.FeatureTypeHip, datamodel.FeatureTypeValley:
	default:
		return fmt.Errorf("unknown feature type %q", featureType)
	}
	if err := s.machine.Event(context.Background(), eventStartPolyline); err != nil {
		return fmt.Errorf("%w: %s", ErrTraceInProgress, err)
	}
	s.featureType = featureType
	return nil
}

// AddPoint appends a click position to the in-progress trace. Points are
// processed strictly in arrival order.
func (s *Session) AddPoint(p datamodel.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.machine.Current() == StateSelect {
		return ErrNotDrawing
	}
	s.buffer = append(s.buffer, p)
	return nil
}

// UndoPoint removes the last point without leaving the drawing state.
// Undoing the final point cancels the trace.
func (s *Session) UndoPoint() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.machine.Current() == StateSelect {
		return ErrNotDrawing
	}
	if len(s.buffer) > 0 {
		s.buffer = s.buffer[:len(s.buffer)-1]
	}
	if len(s.buffer) == 0 {
		return s.machine.Event(context.Background(), eventCancel)
	}
	return nil
}

// Cancel discards the in-progress trace and returns to select.
func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.machine.Event(context.Background(), eventCancel); err != nil {
		return ErrNotDrawing
	}
	return nil
}

// Complete finalizes the in-progress trace. The derived measurement is
// computed with the scale locked at trace start, so zoom changes made
// while drawing never distort the result. If the buffer is below the
// minimum point count the trace stays open and ErrTooFewPoints is
// returned.
func (s *Session) Complete() (datamodel.Shape, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var shape datamodel.Shape
	switch s.machine.Current() {
	case StateDrawingPolygon:
		points := append([]datamodel.Point(nil), s.buffer...)
		if len(points) > minPolygonPoints {
			first, last := points[0], points[len(points)-1]
			if math.Hypot(last.X-first.X, last.Y-first.Y) <= snapTolerancePx {
				points = points[:len(points)-1]
			}
		}
		if len(points) < minPolygonPoints {
			return shape, ErrTooFewPoints
		}
		shape = datamodel.Shape{
			ID:            uuid.NewString(),
			Kind:          datamodel.ShapeKindPolygon,
			PolygonType:   s.polygonType,
			Points:        points,
			AreaSqFt:      geometry.PolygonArea(points, s.lockedScale),
			PerimeterFt:   geometry.PolygonPerimeter(points, s.lockedScale),
			PixelsPerFoot: s.lockedScale,
		}
		shape.Label = s.nextLabel(string(s.polygonType))
	case StateDrawingPolyline:
		if len(s.buffer) < minPolylinePoints {
			return shape, ErrTooFewPoints
		}
		points := append([]datamodel.Point(nil), s.buffer...)
		shape = datamodel.Shape{
			ID:            uuid.NewString(),
			Kind:          datamodel.ShapeKindPolyline,
			FeatureType:   s.featureType,
			Points:        points,
			LengthFt:      geometry.LineLength(points, s.lockedScale),
			PixelsPerFoot: s.lockedScale,
		}
		shape.Label = s.nextLabel(string(s.featureType))
	default:
		return shape, ErrNotDrawing
	}

	shape.Color = palette[s.paletteCursor%len(palette)]
	s.paletteCursor++
	s.completed = append(s.completed, shape)

	if err := s.machine.Event(context.Background(), eventComplete); err != nil {
		// cannot happen from a drawing state, but never leave the
		// session half-finalized
		zap.S().Errorf("Completing trace failed to transition: %s", err)
		s.completed = s.completed[:len(s.completed)-1]
		return datamodel.Shape{}, err
	}
	return shape, nil
}

func (s *Session) nextLabel(kind string) string {
	s.labelSeq[kind]++
	switch kind {
	case string(datamodel.PolygonTypeFacet):
		return fmt.Sprintf("Facet %d", s.labelSeq[kind])
	case string(datamodel.PolygonTypeFootprint):
		return "Footprint"
	case string(datamodel.FeatureTypeRidge):
		return fmt.Sprintf("Ridge %d", s.labelSeq[kind])
	case string(datamodel.FeatureTypeHip):
		return fmt.Sprintf("Hip %d", s.labelSeq[kind])
	case string(datamodel.FeatureTypeValley):
		return fmt.Sprintf("Valley %d", s.labelSeq[kind])
	}
	return fmt.Sprintf("Shape %d", s.paletteCursor+1)
}

// DeleteShape removes one completed shape.
func (s *Session) DeleteShape(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.completed {
		if s.completed[i].ID == id {
			s.completed = append(s.completed[:i], s.completed[i+1:]...)
			return nil
		}
	}
	return ErrShapeNotFound
}

// Clear removes all completed shapes. There is no redo.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = nil
	s.paletteCursor = 0
	s.labelSeq = make(map[string]int)
}

// InProgressCount returns the number of points in the active trace buffer.
func (s *Session) InProgressCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buffer)
}

// Shapes returns a copy of the completed shapes in insertion order.
func (s *Session) Shapes() []datamodel.Shape {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]datamodel.Shape(nil), s.completed...)
}

// Summary folds the completed shapes into the aggregate summary.
func (s *Session) Summary() datamodel.MeasurementSummary {
	return aggregate.Summarize(s.Shapes())
}
