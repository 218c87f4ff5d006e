// Package geometry turns the normalized drawing into a closed 2D region
// and extrudes it into a solid mesh.
package geometry

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"cad-converter/internal/drawing"
	"cad-converter/internal/errdefs"
)

const (
	// circleSegments is the polygon resolution for full circles.
	circleSegments = 64
	// arcSegments is the number of sample points along an arc sweep.
	arcSegments = 32
	// splineTolerance is the max chord deviation for spline flattening.
	splineTolerance = 0.1
)

// Path is a polyline in the XY plane. A closed path repeats its first
// point at the end.
type Path []mgl64.Vec2

// BuildPaths flattens every entity in the drawing into 2D paths. Splines
// that fail to flatten are reported as warnings and skipped; everything
// else is converted exhaustively. An empty drawing is a hard failure.
func BuildPaths(d *drawing.Drawing) ([]Path, []string, error) {
	if d.Empty() {
		return nil, nil, &errdefs.GeometryError{Reason: "no valid geometry found in drawing"}
	}

	var paths []Path
	var warnings []string

	for i, e := range d.Entities {
		switch ent := e.(type) {
		case drawing.Point:
			// Points carry no outline; bounds-only contribution.
			paths = append(paths, Path{flatten(ent.Location)})
		case drawing.Line:
			paths = append(paths, Path{flatten(ent.Start), flatten(ent.End)})
		case drawing.Polyline:
			if len(ent.Points) < 2 {
				continue
			}
			path := make(Path, 0, len(ent.Points)+1)
			for _, p := range ent.Points {
				path = append(path, flatten(p))
			}
			if ent.Closed {
				path = append(path, path[0])
			}
			paths = append(paths, path)
		case drawing.Circle:
			paths = append(paths, circlePath(ent))
		case drawing.Arc:
			paths = append(paths, arcPath(ent))
		case drawing.Spline:
			path, err := flattenSpline(ent)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("spline %d skipped: %v", i, err))
				continue
			}
			paths = append(paths, path)
		}
	}

	if len(paths) == 0 {
		return nil, warnings, &errdefs.GeometryError{Reason: "no valid geometry found in drawing"}
	}
	return paths, warnings, nil
}

// circlePath approximates a circle as a closed regular polygon.
func circlePath(c drawing.Circle) Path {
	path := make(Path, 0, circleSegments+1)
	for i := 0; i < circleSegments; i++ {
		// Endpoint-inclusive sweep, matching linspace(0, 2pi, n).
		angle := 2 * math.Pi * float64(i) / float64(circleSegments-1)
		path = append(path, mgl64.Vec2{
			c.Center.X() + c.Radius*math.Cos(angle),
			c.Center.Y() + c.Radius*math.Sin(angle),
		})
	}
	path = append(path, path[0])
	return path
}

// arcPath samples an arc from start to end angle. The sweep is normalized
// to be positive: an end angle numerically below the start gains a full
// turn, so sample angles increase monotonically.
func arcPath(a drawing.Arc) Path {
	start := a.StartAngle * math.Pi / 180
	end := a.EndAngle * math.Pi / 180
	if end < start {
		end += 2 * math.Pi
	}

	path := make(Path, 0, arcSegments)
	for i := 0; i < arcSegments; i++ {
		angle := start + (end-start)*float64(i)/float64(arcSegments-1)
		path = append(path, mgl64.Vec2{
			a.Center.X() + a.Radius*math.Cos(angle),
			a.Center.Y() + a.Radius*math.Sin(angle),
		})
	}
	return path
}

// flattenSpline adaptively subdivides the spline's control polygon as a
// single bezier until every chord is within splineTolerance.
func flattenSpline(s drawing.Spline) (Path, error) {
	if len(s.ControlPoints) < 2 {
		return nil, fmt.Errorf("fewer than 2 control points")
	}
	if len(s.ControlPoints) == 2 {
		return Path{s.ControlPoints[0], s.ControlPoints[1]}, nil
	}

	path := Path{s.ControlPoints[0]}
	subdivide(s.ControlPoints, 0, &path)
	return path, nil
}

// subdivide performs de Casteljau splitting; depth caps the recursion for
// pathological control polygons.
func subdivide(control []mgl64.Vec2, depth int, out *Path) {
	const maxDepth = 16
	if depth >= maxDepth || flatEnough(control) {
		*out = append(*out, control[len(control)-1])
		return
	}
	left, right := split(control)
	subdivide(left, depth+1, out)
	subdivide(right, depth+1, out)
}

// flatEnough reports whether every interior control point is within
// tolerance of the start-end chord.
func flatEnough(control []mgl64.Vec2) bool {
	a := control[0]
	b := control[len(control)-1]
	ab := b.Sub(a)
	abLen := ab.Len()
	if abLen < 1e-12 {
		return true
	}
	for _, p := range control[1 : len(control)-1] {
		ap := p.Sub(a)
		dist := math.Abs(ab.X()*ap.Y()-ab.Y()*ap.X()) / abLen
		if dist > splineTolerance {
			return false
		}
	}
	return true
}

// split halves a bezier at t=0.5 via de Casteljau.
func split(control []mgl64.Vec2) ([]mgl64.Vec2, []mgl64.Vec2) {
	n := len(control)
	left := make([]mgl64.Vec2, 0, n)
	right := make([]mgl64.Vec2, n)
	work := append([]mgl64.Vec2(nil), control...)

	left = append(left, work[0])
	right[n-1] = work[n-1]
	for level := 1; level < n; level++ {
		for i := 0; i < n-level; i++ {
			work[i] = work[i].Add(work[i+1]).Mul(0.5)
		}
		left = append(left, work[0])
		right[n-1-level] = work[n-1-level]
	}
	return left, right
}

func flatten(v mgl64.Vec3) mgl64.Vec2 {
	return mgl64.Vec2{v.X(), v.Y()}
}
