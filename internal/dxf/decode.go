package dxf

import (
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rpaloschi/dxf-go/core"
	"github.com/rpaloschi/dxf-go/document"
	"github.com/rpaloschi/dxf-go/entities"

	"cad-converter/internal/drawing"
)

// Decode parses a DXF file into the typed entity set. Entity kinds outside
// the supported set are skipped and reported as warnings rather than
// failing the whole drawing.
func Decode(path string) (*drawing.Drawing, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open dxf: %w", err)
	}
	defer f.Close()

	doc, err := document.DxfDocumentFromStream(f)
	if err != nil {
		return nil, nil, fmt.Errorf("parse dxf: %w", err)
	}

	d := &drawing.Drawing{}
	var warnings []string

	for _, e := range doc.Entities.Entities {
		switch ent := e.(type) {
		case *entities.Line:
			d.Add(drawing.Line{Start: vec3(ent.Start), End: vec3(ent.End)})
		case *entities.Polyline:
			points := make([]mgl64.Vec3, 0, len(ent.Vertices))
			for _, v := range ent.Vertices {
				points = append(points, vec3(v.Location))
			}
			d.Add(drawing.Polyline{Points: points, Closed: ent.Closed})
		case *entities.LWPolyline:
			points := make([]mgl64.Vec3, 0, len(ent.Points))
			for _, p := range ent.Points {
				points = append(points, vec3(p.Point))
			}
			d.Add(drawing.Polyline{Points: points, Closed: ent.Closed})
		case *entities.Circle:
			d.Add(drawing.Circle{Center: vec2(ent.Center), Radius: ent.Radius})
		case *entities.Arc:
			d.Add(drawing.Arc{
				Center:     vec2(ent.Center),
				Radius:     ent.Radius,
				StartAngle: ent.StartAngle,
				EndAngle:   ent.EndAngle,
			})
		case *entities.Point:
			d.Add(drawing.Point{Location: vec3(ent.Location)})
		case *entities.Spline:
			control := make([]mgl64.Vec2, 0, len(ent.ControlPoints))
			for _, p := range ent.ControlPoints {
				control = append(control, vec2(p))
			}
			d.Add(drawing.Spline{ControlPoints: control})
		default:
			warnings = append(warnings, fmt.Sprintf("skipped unsupported dxf entity %T", e))
		}
	}

	return d, warnings, nil
}

func vec3(p core.Point) mgl64.Vec3 {
	return mgl64.Vec3{p.X, p.Y, p.Z}
}

func vec2(p core.Point) mgl64.Vec2 {
	return mgl64.Vec2{p.X, p.Y}
}
