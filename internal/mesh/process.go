package mesh

import (
	"fmt"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"cad-converter/internal/domain"
)

func toArrays(vs []mgl64.Vec3) [][3]float64 {
	out := make([][3]float64, len(vs))
	for i, v := range vs {
		out[i] = [3]float64{v.X(), v.Y(), v.Z()}
	}
	return out
}

func fromArray(a [3]float64) mgl64.Vec3 {
	return mgl64.Vec3{a[0], a[1], a[2]}
}

// Process applies the post-extrusion passes in a fixed order: scale, then
// center, then repair, then simplify. Repair must see the final placement,
// and simplification must run on a repaired mesh.
func Process(m *Mesh, settings domain.Settings) (*Mesh, []string) {
	var warnings []string

	if settings.ScaleFactor != 1.0 {
		m.Scale(settings.ScaleFactor)
	}

	if settings.CenterModel {
		m.Translate(m.Centroid().Mul(-1))
	}

	if settings.RepairMesh {
		repair(m)
	}

	if settings.SimplifyMesh {
		target := int(math.Round(float64(len(m.Faces)) * settings.SimplifyRatio))
		simplified, err := simplify(m, target)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("mesh simplification skipped: %v", err))
		} else {
			m = simplified
		}
	}

	return m, warnings
}

// repair makes face windings consistent across shared edges and flips the
// whole mesh when it encloses negative volume.
func repair(m *Mesh) {
	orientConsistently(m)
	if m.SignedVolume() < 0 {
		for i := range m.Faces {
			m.Faces[i][0], m.Faces[i][2] = m.Faces[i][2], m.Faces[i][0]
		}
	}
}

// orientConsistently walks the face adjacency graph and flips faces so that
// every shared edge is traversed in opposite directions by its two faces.
func orientConsistently(m *Mesh) {
	type edgeKey [2]int
	adjacency := make(map[edgeKey][]int)
	for i, f := range m.Faces {
		for e := 0; e < 3; e++ {
			a, b := f[e], f[(e+1)%3]
			if a > b {
				a, b = b, a
			}
			adjacency[edgeKey{a, b}] = append(adjacency[edgeKey{a, b}], i)
		}
	}

	visited := make([]bool, len(m.Faces))
	for seed := range m.Faces {
		if visited[seed] {
			continue
		}
		queue := []int{seed}
		visited[seed] = true
		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]
			f := m.Faces[current]
			for e := 0; e < 3; e++ {
				a, b := f[e], f[(e+1)%3]
				ka, kb := a, b
				if ka > kb {
					ka, kb = kb, ka
				}
				for _, neighbor := range adjacency[edgeKey{ka, kb}] {
					if neighbor == current || visited[neighbor] {
						continue
					}
					if traversesEdgeSameDirection(m.Faces[neighbor], a, b) {
						m.Faces[neighbor][0], m.Faces[neighbor][2] =
							m.Faces[neighbor][2], m.Faces[neighbor][0]
					}
					visited[neighbor] = true
					queue = append(queue, neighbor)
				}
			}
		}
	}
}

// traversesEdgeSameDirection reports whether face contains directed edge
// a->b, which would conflict with a neighbor that also walks a->b.
func traversesEdgeSameDirection(face [3]int, a, b int) bool {
	for e := 0; e < 3; e++ {
		if face[e] == a && face[(e+1)%3] == b {
			return true
		}
	}
	return false
}

// simplify reduces the face count to roughly target by collapsing the
// shortest edges first. Deliberately simple; the goal is smaller output
// files, not optimal decimation.
func simplify(m *Mesh, target int) (*Mesh, error) {
	if target < 4 {
		return nil, fmt.Errorf("target face count %d is too small", target)
	}
	if target >= len(m.Faces) {
		return m, nil
	}

	vertices := append([]([3]float64){}, toArrays(m.Vertices)...)
	faces := append([][3]int{}, m.Faces...)

	// remap tracks collapsed vertices to their survivors.
	remap := make([]int, len(vertices))
	for i := range remap {
		remap[i] = i
	}
	resolve := func(i int) int {
		for remap[i] != i {
			i = remap[i]
		}
		return i
	}

	liveFaces := func() [][3]int {
		out := faces[:0]
		for _, f := range faces {
			a, b, c := resolve(f[0]), resolve(f[1]), resolve(f[2])
			if a == b || b == c || a == c {
				continue
			}
			out = append(out, [3]int{a, b, c})
		}
		return out
	}

	for len(faces) > target {
		type edge struct {
			a, b int
			len2 float64
		}
		var edges []edge
		seen := make(map[[2]int]bool)
		for _, f := range faces {
			for e := 0; e < 3; e++ {
				a, b := resolve(f[e]), resolve(f[(e+1)%3])
				if a == b {
					continue
				}
				if a > b {
					a, b = b, a
				}
				if seen[[2]int{a, b}] {
					continue
				}
				seen[[2]int{a, b}] = true
				d0 := vertices[a][0] - vertices[b][0]
				d1 := vertices[a][1] - vertices[b][1]
				d2 := vertices[a][2] - vertices[b][2]
				edges = append(edges, edge{a, b, d0*d0 + d1*d1 + d2*d2})
			}
		}
		if len(edges) == 0 {
			break
		}
		sort.Slice(edges, func(i, j int) bool { return edges[i].len2 < edges[j].len2 })

		// Collapse a batch of short edges per sweep so large meshes
		// converge in a reasonable number of passes.
		batch := len(faces) - target
		if batch > len(edges)/4+1 {
			batch = len(edges)/4 + 1
		}
		collapsed := 0
		touched := make(map[int]bool)
		for _, e := range edges {
			if collapsed >= batch {
				break
			}
			a, b := resolve(e.a), resolve(e.b)
			if a == b || touched[a] || touched[b] {
				continue
			}
			vertices[a] = [3]float64{
				(vertices[a][0] + vertices[b][0]) / 2,
				(vertices[a][1] + vertices[b][1]) / 2,
				(vertices[a][2] + vertices[b][2]) / 2,
			}
			remap[b] = a
			touched[a], touched[b] = true, true
			collapsed++
		}
		if collapsed == 0 {
			break
		}
		faces = liveFaces()
	}

	out := &Mesh{}
	index := make(map[int]int)
	for _, f := range faces {
		var face [3]int
		for i, old := range f {
			id, ok := index[old]
			if !ok {
				id = len(out.Vertices)
				index[old] = id
				out.Vertices = append(out.Vertices, fromArray(vertices[old]))
			}
			face[i] = id
		}
		out.Faces = append(out.Faces, face)
	}
	return out, nil
}
