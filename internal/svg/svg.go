// Package svg parses SVG documents directly into drawing entities, without
// shelling out to an external vector tool. Curved geometry is flattened to
// straight segments at a fixed resolution; the normalizer falls back to
// Inkscape when a document defeats this parser.
package svg

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"cad-converter/internal/drawing"
)

// ParseFile extracts the drawable elements of an SVG document as typed
// entities. Elements are collected from any nesting depth; transforms are
// not applied.
func ParseFile(path string) ([]drawing.Entity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads SVG content from r.
func Parse(r io.Reader) ([]drawing.Entity, error) {
	dec := xml.NewDecoder(r)
	var out []drawing.Entity
	sawSVG := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse svg: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch start.Name.Local {
		case "svg":
			sawSVG = true
		case "path":
			entities, err := pathEntities(attr(start, "d"))
			if err != nil {
				return nil, err
			}
			out = append(out, entities...)
		case "line":
			x1 := floatAttr(start, "x1")
			y1 := floatAttr(start, "y1")
			x2 := floatAttr(start, "x2")
			y2 := floatAttr(start, "y2")
			out = append(out, drawing.Line{
				Start: mgl64.Vec3{x1, y1, 0},
				End:   mgl64.Vec3{x2, y2, 0},
			})
		case "polyline", "polygon":
			points, err := parsePointList(attr(start, "points"))
			if err != nil {
				return nil, err
			}
			if len(points) >= 2 {
				out = append(out, drawing.Polyline{
					Points: lift(points),
					Closed: start.Name.Local == "polygon",
				})
			}
		case "rect":
			x := floatAttr(start, "x")
			y := floatAttr(start, "y")
			w := floatAttr(start, "width")
			h := floatAttr(start, "height")
			if w > 0 && h > 0 {
				out = append(out, drawing.Polyline{
					Points: lift([]mgl64.Vec2{
						{x, y}, {x + w, y}, {x + w, y + h}, {x, y + h},
					}),
					Closed: true,
				})
			}
		case "circle":
			r := floatAttr(start, "r")
			if r > 0 {
				out = append(out, drawing.Circle{
					Center: mgl64.Vec2{floatAttr(start, "cx"), floatAttr(start, "cy")},
					Radius: r,
				})
			}
		}
	}

	if !sawSVG {
		return nil, fmt.Errorf("not an svg document")
	}
	return out, nil
}

// pathEntities converts one path element's subpaths into entities.
func pathEntities(d string) ([]drawing.Entity, error) {
	d = strings.TrimSpace(d)
	if d == "" {
		return nil, nil
	}
	subs, err := parsePathData(d)
	if err != nil {
		return nil, err
	}

	var out []drawing.Entity
	for _, sub := range subs {
		switch {
		case len(sub.points) < 2:
			// A lone moveto draws nothing.
		case len(sub.points) == 2 && !sub.closed:
			out = append(out, drawing.Line{
				Start: mgl64.Vec3{sub.points[0].X(), sub.points[0].Y(), 0},
				End:   mgl64.Vec3{sub.points[1].X(), sub.points[1].Y(), 0},
			})
		default:
			out = append(out, drawing.Polyline{
				Points: lift(sub.points),
				Closed: sub.closed,
			})
		}
	}
	return out, nil
}

// parsePointList reads a polyline/polygon "points" attribute.
func parsePointList(raw string) ([]mgl64.Vec2, error) {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t' || r == '\n' || r == '\r'
	})
	if len(fields)%2 != 0 {
		return nil, fmt.Errorf("odd coordinate count in points attribute")
	}
	points := make([]mgl64.Vec2, 0, len(fields)/2)
	for i := 0; i < len(fields); i += 2 {
		x, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return nil, fmt.Errorf("bad coordinate %q: %w", fields[i], err)
		}
		y, err := strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			return nil, fmt.Errorf("bad coordinate %q: %w", fields[i+1], err)
		}
		points = append(points, mgl64.Vec2{x, y})
	}
	return points, nil
}

func attr(e xml.StartElement, name string) string {
	for _, a := range e.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func floatAttr(e xml.StartElement, name string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(attr(e, name)), 64)
	if err != nil {
		return 0
	}
	return v
}

func lift(points []mgl64.Vec2) []mgl64.Vec3 {
	out := make([]mgl64.Vec3, len(points))
	for i, p := range points {
		out[i] = mgl64.Vec3{p.X(), p.Y(), 0}
	}
	return out
}
