package geometry

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"cad-converter/internal/drawing"
)

// TestBuildPathsEmptyDrawing is a hard failure.
func TestBuildPathsEmptyDrawing(t *testing.T) {
	if _, _, err := BuildPaths(&drawing.Drawing{}); err == nil {
		t.Fatal("expected error for empty drawing")
	}
}

// TestBuildPathsCircle checks the circle approximation closes on itself.
func TestBuildPathsCircle(t *testing.T) {
	d := &drawing.Drawing{}
	d.Add(drawing.Circle{Center: mgl64.Vec2{0, 0}, Radius: 10})

	paths, warnings, err := BuildPaths(d)
	if err != nil {
		t.Fatalf("BuildPaths error = %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(paths) != 1 {
		t.Fatalf("path count = %d, want 1", len(paths))
	}

	path := paths[0]
	if path[0] != path[len(path)-1] {
		t.Fatal("circle path should be closed")
	}
	for i, p := range path {
		if r := p.Len(); math.Abs(r-10) > 1e-9 {
			t.Fatalf("point %d radius = %g, want 10", i, r)
		}
	}
}

// TestBuildPathsArcSweep checks start point, end point, and monotonic
// angles for a quarter arc.
func TestBuildPathsArcSweep(t *testing.T) {
	d := &drawing.Drawing{}
	d.Add(drawing.Arc{Center: mgl64.Vec2{0, 0}, Radius: 5, StartAngle: 0, EndAngle: 90})

	paths, _, err := BuildPaths(d)
	if err != nil {
		t.Fatalf("BuildPaths error = %v", err)
	}
	path := paths[0]

	first := path[0]
	last := path[len(path)-1]
	if math.Abs(first.X()-5) > 1e-9 || math.Abs(first.Y()) > 1e-9 {
		t.Fatalf("arc start = %v, want (5,0)", first)
	}
	if math.Abs(last.X()) > 1e-9 || math.Abs(last.Y()-5) > 1e-9 {
		t.Fatalf("arc end = %v, want (0,5)", last)
	}

	prev := math.Atan2(first.Y(), first.X())
	for _, p := range path[1:] {
		angle := math.Atan2(p.Y(), p.X())
		if angle < prev {
			t.Fatalf("arc angles not monotonic at %v", p)
		}
		prev = angle
	}
}

// TestBuildPathsArcWrapAround checks the sweep normalization when the end
// angle is numerically below the start.
func TestBuildPathsArcWrapAround(t *testing.T) {
	d := &drawing.Drawing{}
	d.Add(drawing.Arc{Center: mgl64.Vec2{0, 0}, Radius: 1, StartAngle: 270, EndAngle: 90})

	paths, _, err := BuildPaths(d)
	if err != nil {
		t.Fatalf("BuildPaths error = %v", err)
	}
	path := paths[0]
	last := path[len(path)-1]
	if math.Abs(last.X()) > 1e-9 || math.Abs(last.Y()-1) > 1e-9 {
		t.Fatalf("arc end = %v, want (0,1)", last)
	}
}

// TestBuildPathsDegenerateSplineWarns checks spline failures do not fail
// the drawing when other geometry exists.
func TestBuildPathsDegenerateSplineWarns(t *testing.T) {
	d := &drawing.Drawing{}
	d.Add(drawing.Spline{ControlPoints: []mgl64.Vec2{{0, 0}}})
	d.Add(drawing.Line{Start: mgl64.Vec3{0, 0, 0}, End: mgl64.Vec3{1, 0, 0}})

	paths, warnings, err := BuildPaths(d)
	if err != nil {
		t.Fatalf("BuildPaths error = %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v, want one spline warning", warnings)
	}
	if len(paths) != 1 {
		t.Fatalf("path count = %d, want 1", len(paths))
	}
}

// TestAssemblePolygonChainsOpenPaths joins segments into a ring.
func TestAssemblePolygonChainsOpenPaths(t *testing.T) {
	paths := []Path{
		{{0, 0}, {10, 0}},
		{{10, 0}, {10, 10}},
		{{0, 10}, {10, 10}}, // reversed orientation on purpose
		{{0, 10}, {0, 0}},
	}

	polygon, err := AssemblePolygon(paths)
	if err != nil {
		t.Fatalf("AssemblePolygon error = %v", err)
	}
	if got := polygon.Area(); math.Abs(got-100) > 1e-9 {
		t.Fatalf("area = %g, want 100", got)
	}
}

// TestAssemblePolygonPicksLargest selects the biggest of several rings.
func TestAssemblePolygonPicksLargest(t *testing.T) {
	small := Path{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}
	big := Path{{20, 20}, {30, 20}, {30, 30}, {20, 30}, {20, 20}}

	polygon, err := AssemblePolygon([]Path{small, big})
	if err != nil {
		t.Fatalf("AssemblePolygon error = %v", err)
	}
	if got := math.Abs(polygon.Area()); math.Abs(got-100) > 1e-9 {
		t.Fatalf("area = %g, want 100", got)
	}
}

// TestAssemblePolygonBoundingBoxFallback is used when nothing closes.
func TestAssemblePolygonBoundingBoxFallback(t *testing.T) {
	paths := []Path{
		{{0, 0}, {10, 0}},
		{{3, 7}},
		{{2, 2}, {5, 9}},
	}

	polygon, err := AssemblePolygon(paths)
	if err != nil {
		t.Fatalf("AssemblePolygon error = %v", err)
	}
	if len(polygon) != 4 {
		t.Fatalf("fallback polygon size = %d, want 4", len(polygon))
	}
	if got := polygon.Area(); math.Abs(got-90) > 1e-9 {
		t.Fatalf("area = %g, want 10x9 bbox = 90", got)
	}
}

// TestAssemblePolygonNoGeometry fails when even the bbox is degenerate.
func TestAssemblePolygonNoGeometry(t *testing.T) {
	if _, err := AssemblePolygon([]Path{{{5, 5}}}); err == nil {
		t.Fatal("expected error for a single point")
	}
}

// TestExtrudeSquare checks counts, bounds, and volume of a cube.
func TestExtrudeSquare(t *testing.T) {
	square := Polygon{{0, 0}, {10, 0}, {10, 10}, {0, 10}}

	m, err := Extrude(square, 10)
	if err != nil {
		t.Fatalf("Extrude error = %v", err)
	}
	if len(m.Vertices) != 8 {
		t.Fatalf("vertex count = %d, want 8", len(m.Vertices))
	}
	// 2 cap triangles per face times 2 caps, plus 2 per side wall.
	if len(m.Faces) != 12 {
		t.Fatalf("face count = %d, want 12", len(m.Faces))
	}

	min, max := m.Bounds()
	if min != (mgl64.Vec3{0, 0, 0}) || max != (mgl64.Vec3{10, 10, 10}) {
		t.Fatalf("bounds = %v..%v", min, max)
	}
	if got := m.SignedVolume(); math.Abs(got-1000) > 1e-6 {
		t.Fatalf("volume = %g, want 1000", got)
	}
}

// TestExtrudeClockwiseInputNormalized checks winding is corrected.
func TestExtrudeClockwiseInputNormalized(t *testing.T) {
	clockwise := Polygon{{0, 10}, {10, 10}, {10, 0}, {0, 0}}

	m, err := Extrude(clockwise, 5)
	if err != nil {
		t.Fatalf("Extrude error = %v", err)
	}
	if got := m.SignedVolume(); got <= 0 {
		t.Fatalf("volume = %g, want positive", got)
	}
}

// TestExtrudeRejectsDegenerateInput covers the guard clauses.
func TestExtrudeRejectsDegenerateInput(t *testing.T) {
	if _, err := Extrude(Polygon{{0, 0}, {1, 1}}, 5); err == nil {
		t.Fatal("expected error for 2-vertex polygon")
	}
	if _, err := Extrude(Polygon{{0, 0}, {1, 0}, {0, 1}}, 0); err == nil {
		t.Fatal("expected error for zero height")
	}
}

// TestExtrudeConcavePolygon checks ear clipping on an L shape.
func TestExtrudeConcavePolygon(t *testing.T) {
	l := Polygon{{0, 0}, {10, 0}, {10, 4}, {4, 4}, {4, 10}, {0, 10}}

	m, err := Extrude(l, 2)
	if err != nil {
		t.Fatalf("Extrude error = %v", err)
	}
	// L-shape area is 100 - 36 = 64.
	if got := m.SignedVolume(); math.Abs(got-128) > 1e-6 {
		t.Fatalf("volume = %g, want 128", got)
	}
}
