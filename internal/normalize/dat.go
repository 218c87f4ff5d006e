package normalize

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"cad-converter/internal/drawing"
	"cad-converter/internal/errdefs"
)

// closeTolerance decides whether the first and last DAT coordinates
// coincide in the XY plane, marking the polyline as an implicit polygon.
const closeTolerance = 1e-8

// ParseDAT reads a whitespace- or comma-delimited coordinate list. Blank
// lines and '#' comments are skipped; a line must parse as 2 or 3 floats
// (z defaults to 0) or it is ignored.
func ParseDAT(path string) (*drawing.Drawing, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var points []mgl64.Vec3
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if p, ok := parseCoordinateLine(line); ok {
			points = append(points, p)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read dat file: %w", err)
	}

	if len(points) == 0 {
		return nil, &errdefs.GeometryError{Reason: "no valid coordinates found in DAT file"}
	}

	d := &drawing.Drawing{}
	switch len(points) {
	case 1:
		d.Add(drawing.Point{Location: points[0]})
	case 2:
		d.Add(drawing.Line{Start: points[0], End: points[1]})
	default:
		d.Add(drawing.Polyline{Points: points})
		first, last := points[0], points[len(points)-1]
		if math.Abs(first.X()-last.X()) <= closeTolerance &&
			math.Abs(first.Y()-last.Y()) <= closeTolerance {
			d.Add(drawing.Polyline{Points: points, Closed: true})
		}
	}
	return d, nil
}

// parseCoordinateLine accepts exactly 2 or 3 float fields.
func parseCoordinateLine(line string) (mgl64.Vec3, bool) {
	fields := strings.Fields(strings.ReplaceAll(line, ",", " "))
	if len(fields) != 2 && len(fields) != 3 {
		return mgl64.Vec3{}, false
	}
	values := make([]float64, len(fields))
	for i, field := range fields {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return mgl64.Vec3{}, false
		}
		values[i] = v
	}
	p := mgl64.Vec3{values[0], values[1], 0}
	if len(values) == 3 {
		p[2] = values[2]
	}
	return p, true
}
