// Package drawing is the normalized 2D vector representation every input
// format is funneled through before 3D processing. The entity set is closed:
// adding a kind means touching every switch that consumes it.
package drawing

import "github.com/go-gl/mathgl/mgl64"

// Entity is one vector drawing primitive. The interface is sealed so the
// set of kinds stays finite and switches over it stay exhaustive.
type Entity interface {
	entity()
}

// Point is a single coordinate marker.
type Point struct {
	Location mgl64.Vec3
}

// Line is a straight segment between two points.
type Line struct {
	Start mgl64.Vec3
	End   mgl64.Vec3
}

// Polyline is a connected sequence of vertices, optionally closed back to
// the first vertex.
type Polyline struct {
	Points []mgl64.Vec3
	Closed bool
}

// Circle is a full circle in the XY plane.
type Circle struct {
	Center mgl64.Vec2
	Radius float64
}

// Arc is a circular arc in the XY plane. Angles are degrees,
// counterclockwise from the positive X axis.
type Arc struct {
	Center     mgl64.Vec2
	Radius     float64
	StartAngle float64
	EndAngle   float64
}

// Spline carries the control polygon of a freeform curve. The geometry
// builder flattens it; splines that fail to flatten contribute nothing.
type Spline struct {
	ControlPoints []mgl64.Vec2
}

func (Point) entity()    {}
func (Line) entity()     {}
func (Polyline) entity() {}
func (Circle) entity()   {}
func (Arc) entity()      {}
func (Spline) entity()   {}

// Drawing is a flat modelspace of entities.
type Drawing struct {
	Entities []Entity
}

// Add appends one entity.
func (d *Drawing) Add(e Entity) {
	d.Entities = append(d.Entities, e)
}

// Empty reports whether the drawing holds no entities at all.
func (d *Drawing) Empty() bool {
	return len(d.Entities) == 0
}
