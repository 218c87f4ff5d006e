package dxf

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/go-cmp/cmp"

	"cad-converter/internal/drawing"
)

// TestEncodeLine checks the emitted group codes for a LINE entity.
func TestEncodeLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "line.dxf")
	d := &drawing.Drawing{}
	d.Add(drawing.Line{
		Start: mgl64.Vec3{0, 0, 0},
		End:   mgl64.Vec3{10, 5, 0},
	})

	if err := Encode(d, path); err != nil {
		t.Fatalf("Encode error = %v", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	text := string(content)
	for _, want := range []string{
		"0\nSECTION\n2\nHEADER\n",
		"9\n$ACADVER\n1\nAC1009\n",
		"2\nENTITIES\n",
		"0\nLINE\n",
		"10\n0.000000\n",
		"11\n10.000000\n",
		"21\n5.000000\n",
		"0\nEOF\n",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

// TestEncodeClosedPolylineSetsFlag checks the closed bit on group 70.
func TestEncodeClosedPolylineSetsFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "poly.dxf")
	d := &drawing.Drawing{}
	d.Add(drawing.Polyline{
		Points: []mgl64.Vec3{{0, 0, 0}, {10, 0, 0}, {10, 10, 0}},
		Closed: true,
	})

	if err := Encode(d, path); err != nil {
		t.Fatalf("Encode error = %v", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	text := string(content)
	if !strings.Contains(text, "0\nPOLYLINE\n") {
		t.Fatal("missing POLYLINE entity")
	}
	if !strings.Contains(text, "70\n1\n") {
		t.Fatal("closed polyline should set flag bit 1")
	}
	if got := strings.Count(text, "0\nVERTEX\n"); got != 3 {
		t.Fatalf("vertex count = %d, want 3", got)
	}
	if !strings.Contains(text, "0\nSEQEND\n") {
		t.Fatal("missing SEQEND")
	}
}

// TestEncodeDecodeRoundTrip checks that what the encoder writes the decoder
// reads back with the same meaning.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "round.dxf")
	in := &drawing.Drawing{}
	in.Add(drawing.Line{Start: mgl64.Vec3{1, 2, 0}, End: mgl64.Vec3{3, 4, 0}})
	in.Add(drawing.Circle{Center: mgl64.Vec2{5, 5}, Radius: 2.5})
	in.Add(drawing.Polyline{
		Points: []mgl64.Vec3{{0, 0, 0}, {4, 0, 0}, {4, 4, 0}, {0, 4, 0}},
		Closed: true,
	})

	if err := Encode(in, path); err != nil {
		t.Fatalf("Encode error = %v", err)
	}

	out, warnings, err := Decode(path)
	if err != nil {
		t.Fatalf("Decode error = %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if diff := cmp.Diff(in.Entities, out.Entities); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

// TestDecodeMissingFile checks the open error path.
func TestDecodeMissingFile(t *testing.T) {
	if _, _, err := Decode(filepath.Join(t.TempDir(), "absent.dxf")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
