package geometry

import (
	"github.com/go-gl/mathgl/mgl64"

	"cad-converter/internal/errdefs"
	"cad-converter/internal/mesh"
)

// Extrude lifts a closed polygon into a solid by sweeping it from z=0 to
// z=height: triangulated bottom and top caps plus quad side walls. The
// result has outward normals for a counterclockwise polygon.
func Extrude(p Polygon, height float64) (*mesh.Mesh, error) {
	if len(p) < 3 {
		return nil, &errdefs.GeometryError{Reason: "region has fewer than 3 vertices"}
	}
	if height <= 0 {
		return nil, &errdefs.GeometryError{Reason: "extrusion height must be positive"}
	}

	p = counterclockwise(p)
	tris := triangulate(p)
	if len(tris) == 0 {
		return nil, &errdefs.GeometryError{Reason: "region could not be triangulated"}
	}

	n := len(p)
	m := &mesh.Mesh{
		Vertices: make([]mgl64.Vec3, 0, 2*n),
		Faces:    make([][3]int, 0, 2*len(tris)+2*n),
	}
	for _, v := range p {
		m.Vertices = append(m.Vertices, mgl64.Vec3{v.X(), v.Y(), 0})
	}
	for _, v := range p {
		m.Vertices = append(m.Vertices, mgl64.Vec3{v.X(), v.Y(), height})
	}

	// Bottom cap faces down, so the cap triangles are reversed.
	for _, t := range tris {
		m.Faces = append(m.Faces, [3]int{t[0], t[2], t[1]})
	}
	// Top cap faces up.
	for _, t := range tris {
		m.Faces = append(m.Faces, [3]int{t[0] + n, t[1] + n, t[2] + n})
	}
	// Side walls, two triangles per perimeter edge.
	for i := 0; i < n; i++ {
		next := (i + 1) % n
		m.Faces = append(m.Faces,
			[3]int{i, next, next + n},
			[3]int{i, next + n, i + n},
		)
	}

	return m, nil
}
