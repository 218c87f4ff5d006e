// Package dxf reads and writes the on-disk intermediate vector files the
// pipeline exchanges with external CAD tools. Reading goes through dxf-go;
// writing is a minimal ASCII encoder for the entity subset the pipeline
// itself produces (no third-party DXF writer exists).
package dxf

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"cad-converter/internal/drawing"
)

// Encode writes d as a minimal ASCII DXF file. Only the entity kinds the
// normalizer emits are supported; splines are written as the polyline of
// their control points since no native producer emits them.
func Encode(d *drawing.Drawing, path string) error {
	var b strings.Builder

	pair(&b, 0, "SECTION")
	pair(&b, 2, "HEADER")
	pair(&b, 9, "$ACADVER")
	pair(&b, 1, "AC1009")
	pair(&b, 0, "ENDSEC")
	pair(&b, 0, "SECTION")
	pair(&b, 2, "ENTITIES")

	for _, e := range d.Entities {
		switch ent := e.(type) {
		case drawing.Point:
			pair(&b, 0, "POINT")
			pair(&b, 8, "0")
			coord(&b, 10, 20, 30, ent.Location)
		case drawing.Line:
			pair(&b, 0, "LINE")
			pair(&b, 8, "0")
			coord(&b, 10, 20, 30, ent.Start)
			coord(&b, 11, 21, 31, ent.End)
		case drawing.Polyline:
			encodePolyline(&b, ent.Points, ent.Closed)
		case drawing.Circle:
			pair(&b, 0, "CIRCLE")
			pair(&b, 8, "0")
			pair(&b, 10, num(ent.Center.X()))
			pair(&b, 20, num(ent.Center.Y()))
			pair(&b, 40, num(ent.Radius))
		case drawing.Arc:
			pair(&b, 0, "ARC")
			pair(&b, 8, "0")
			pair(&b, 10, num(ent.Center.X()))
			pair(&b, 20, num(ent.Center.Y()))
			pair(&b, 40, num(ent.Radius))
			pair(&b, 50, num(ent.StartAngle))
			pair(&b, 51, num(ent.EndAngle))
		case drawing.Spline:
			points := make([]mgl64.Vec3, len(ent.ControlPoints))
			for i, p := range ent.ControlPoints {
				points[i] = mgl64.Vec3{p.X(), p.Y(), 0}
			}
			encodePolyline(&b, points, false)
		default:
			return fmt.Errorf("cannot encode entity type %T", e)
		}
	}

	pair(&b, 0, "ENDSEC")
	pair(&b, 0, "EOF")

	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// encodePolyline writes a classic POLYLINE/VERTEX/SEQEND group so older
// parsers and the ODA toolchain both accept it.
func encodePolyline(b *strings.Builder, points []mgl64.Vec3, closed bool) {
	pair(b, 0, "POLYLINE")
	pair(b, 8, "0")
	pair(b, 66, "1")
	flags := 0
	if closed {
		flags = 1
	}
	pair(b, 70, strconv.Itoa(flags))
	for _, p := range points {
		pair(b, 0, "VERTEX")
		pair(b, 8, "0")
		coord(b, 10, 20, 30, p)
	}
	pair(b, 0, "SEQEND")
}

func pair(b *strings.Builder, code int, value string) {
	fmt.Fprintf(b, "%d\n%s\n", code, value)
}

func coord(b *strings.Builder, xCode, yCode, zCode int, v mgl64.Vec3) {
	pair(b, xCode, num(v.X()))
	pair(b, yCode, num(v.Y()))
	pair(b, zCode, num(v.Z()))
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
