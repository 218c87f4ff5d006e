// Package mesh holds the triangle mesh produced by extrusion and the
// processing passes applied before export. The hschendel/stl Solid is the
// interchange type at the STL boundary; everything else works on the
// float64 representation here.
package mesh

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/hschendel/stl"
)

// Mesh is an indexed triangle mesh.
type Mesh struct {
	Vertices []mgl64.Vec3
	Faces    [][3]int
}

// Bounds returns the axis-aligned bounding box corners.
func (m *Mesh) Bounds() (mgl64.Vec3, mgl64.Vec3) {
	min := mgl64.Vec3{math.Inf(1), math.Inf(1), math.Inf(1)}
	max := mgl64.Vec3{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for _, v := range m.Vertices {
		for i := 0; i < 3; i++ {
			if v[i] < min[i] {
				min[i] = v[i]
			}
			if v[i] > max[i] {
				max[i] = v[i]
			}
		}
	}
	return min, max
}

// Centroid is the area-weighted center of the mesh surface.
func (m *Mesh) Centroid() mgl64.Vec3 {
	var weighted mgl64.Vec3
	total := 0.0
	for _, f := range m.Faces {
		a, b, c := m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]
		area := b.Sub(a).Cross(c.Sub(a)).Len() / 2
		center := a.Add(b).Add(c).Mul(1.0 / 3.0)
		weighted = weighted.Add(center.Mul(area))
		total += area
	}
	if total == 0 {
		// Degenerate surface; fall back to the vertex mean.
		for _, v := range m.Vertices {
			weighted = weighted.Add(v)
		}
		return weighted.Mul(1 / float64(len(m.Vertices)))
	}
	return weighted.Mul(1 / total)
}

// Scale multiplies every vertex by factor.
func (m *Mesh) Scale(factor float64) {
	for i := range m.Vertices {
		m.Vertices[i] = m.Vertices[i].Mul(factor)
	}
}

// Translate shifts every vertex by delta.
func (m *Mesh) Translate(delta mgl64.Vec3) {
	for i := range m.Vertices {
		m.Vertices[i] = m.Vertices[i].Add(delta)
	}
}

// FaceNormal returns the (unnormalized) normal of face i following its
// winding order.
func (m *Mesh) FaceNormal(i int) mgl64.Vec3 {
	f := m.Faces[i]
	a, b, c := m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]
	return b.Sub(a).Cross(c.Sub(a))
}

// SignedVolume computes the enclosed volume via the divergence theorem.
// Negative volume means the mesh is inside out.
func (m *Mesh) SignedVolume() float64 {
	total := 0.0
	for _, f := range m.Faces {
		a, b, c := m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]
		total += a.Dot(b.Cross(c)) / 6
	}
	return total
}

// ToSolid converts the mesh to an STL solid with recomputed face normals.
func (m *Mesh) ToSolid() *stl.Solid {
	solid := &stl.Solid{
		Name:      "cad-converter",
		Triangles: make([]stl.Triangle, 0, len(m.Faces)),
	}
	for i, f := range m.Faces {
		n := m.FaceNormal(i)
		if l := n.Len(); l > 0 {
			n = n.Mul(1 / l)
		}
		solid.Triangles = append(solid.Triangles, stl.Triangle{
			Normal: vec32(n),
			Vertices: [3]stl.Vec3{
				vec32(m.Vertices[f[0]]),
				vec32(m.Vertices[f[1]]),
				vec32(m.Vertices[f[2]]),
			},
		})
	}
	return solid
}

// FromSolid builds an indexed mesh from an STL solid, merging vertices that
// are bitwise identical.
func FromSolid(solid *stl.Solid) *Mesh {
	m := &Mesh{}
	index := make(map[[3]float32]int)
	for _, t := range solid.Triangles {
		var face [3]int
		for i, v := range t.Vertices {
			key := [3]float32{v[0], v[1], v[2]}
			id, ok := index[key]
			if !ok {
				id = len(m.Vertices)
				index[key] = id
				m.Vertices = append(m.Vertices, mgl64.Vec3{
					float64(v[0]), float64(v[1]), float64(v[2]),
				})
			}
			face[i] = id
		}
		m.Faces = append(m.Faces, face)
	}
	return m
}

// Validate rejects meshes with out-of-range face indices.
func (m *Mesh) Validate() error {
	for i, f := range m.Faces {
		for _, idx := range f {
			if idx < 0 || idx >= len(m.Vertices) {
				return fmt.Errorf("face %d references missing vertex %d", i, idx)
			}
		}
	}
	return nil
}

func vec32(v mgl64.Vec3) stl.Vec3 {
	return stl.Vec3{float32(v.X()), float32(v.Y()), float32(v.Z())}
}
