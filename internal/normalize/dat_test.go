package normalize

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"cad-converter/internal/drawing"
	"cad-converter/internal/errdefs"
)

func writeDAT(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "points.dat")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write dat: %v", err)
	}
	return path
}

// TestParseDATPolyline checks the common multi-point case with comments.
func TestParseDATPolyline(t *testing.T) {
	path := writeDAT(t, `# airfoil outline
0 0
10, 0
10 10 2.5

0 10
`)

	d, err := ParseDAT(path)
	if err != nil {
		t.Fatalf("ParseDAT error = %v", err)
	}
	if len(d.Entities) != 1 {
		t.Fatalf("entity count = %d, want 1", len(d.Entities))
	}
	poly, ok := d.Entities[0].(drawing.Polyline)
	if !ok {
		t.Fatalf("entity type = %T, want Polyline", d.Entities[0])
	}
	if poly.Closed {
		t.Fatal("open point run should not be closed")
	}
	if len(poly.Points) != 4 {
		t.Fatalf("point count = %d, want 4", len(poly.Points))
	}
	if poly.Points[2].Z() != 2.5 {
		t.Fatalf("z = %g, want 2.5", poly.Points[2].Z())
	}
}

// TestParseDATClosedRun checks coincident endpoints add a closed polyline.
func TestParseDATClosedRun(t *testing.T) {
	path := writeDAT(t, "0 0\n10 0\n10 10\n0 0\n")

	d, err := ParseDAT(path)
	if err != nil {
		t.Fatalf("ParseDAT error = %v", err)
	}
	if len(d.Entities) != 2 {
		t.Fatalf("entity count = %d, want 2", len(d.Entities))
	}
	closed, ok := d.Entities[1].(drawing.Polyline)
	if !ok || !closed.Closed {
		t.Fatalf("entity 1 = %+v, want closed polyline", d.Entities[1])
	}
}

// TestParseDATNearMissEndpointsStayOpen checks endpoints apart by more
// than the close tolerance do not produce a closed polyline.
func TestParseDATNearMissEndpointsStayOpen(t *testing.T) {
	path := writeDAT(t, "0 0\n10 0\n10 10\n0 0.0000001\n")

	d, err := ParseDAT(path)
	if err != nil {
		t.Fatalf("ParseDAT error = %v", err)
	}
	if len(d.Entities) != 1 {
		t.Fatalf("entity count = %d, want 1", len(d.Entities))
	}
}

// TestParseDATSinglePoint maps one coordinate to a Point entity.
func TestParseDATSinglePoint(t *testing.T) {
	path := writeDAT(t, "1.5 2.5\n")

	d, err := ParseDAT(path)
	if err != nil {
		t.Fatalf("ParseDAT error = %v", err)
	}
	if _, ok := d.Entities[0].(drawing.Point); !ok {
		t.Fatalf("entity type = %T, want Point", d.Entities[0])
	}
}

// TestParseDATTwoPoints maps two coordinates to a Line entity.
func TestParseDATTwoPoints(t *testing.T) {
	path := writeDAT(t, "0 0\n5 5\n")

	d, err := ParseDAT(path)
	if err != nil {
		t.Fatalf("ParseDAT error = %v", err)
	}
	if _, ok := d.Entities[0].(drawing.Line); !ok {
		t.Fatalf("entity type = %T, want Line", d.Entities[0])
	}
}

// TestParseDATNoCoordinates fails with a geometry error.
func TestParseDATNoCoordinates(t *testing.T) {
	path := writeDAT(t, "# only comments\nnot numbers at all\n1 2 3 4\n")

	_, err := ParseDAT(path)
	if err == nil {
		t.Fatal("expected error")
	}
	var geoErr *errdefs.GeometryError
	if !errors.As(err, &geoErr) {
		t.Fatalf("error type = %T, want *GeometryError", err)
	}
}
