package geometry

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"cad-converter/internal/errdefs"
)

// joinTolerance decides whether two path endpoints coincide when chaining
// open paths into rings.
const joinTolerance = 1e-6

// Polygon is a closed 2D region, stored counterclockwise without the
// closing point repeated.
type Polygon []mgl64.Vec2

// Area returns the signed shoelace area; positive for counterclockwise.
func (p Polygon) Area() float64 {
	total := 0.0
	for i := range p {
		j := (i + 1) % len(p)
		total += p[i].X()*p[j].Y() - p[j].X()*p[i].Y()
	}
	return total / 2
}

// AssemblePolygon merges the flattened paths into one closed region: chain
// endpoint-matching paths into rings, keep the ring with the largest area,
// and fall back to the bounding box of every point when nothing closes.
func AssemblePolygon(paths []Path) (Polygon, error) {
	var rings []Path
	var open []Path

	for _, path := range paths {
		switch {
		case len(path) < 2:
			// Single points only contribute to the bbox fallback.
		case isClosed(path):
			rings = append(rings, path)
		default:
			open = append(open, path)
		}
	}

	rings = append(rings, chainIntoRings(open)...)

	if len(rings) > 0 {
		best := rings[0]
		bestArea := math.Abs(ringPolygon(best).Area())
		for _, ring := range rings[1:] {
			if a := math.Abs(ringPolygon(ring).Area()); a > bestArea {
				best = ring
				bestArea = a
			}
		}
		if bestArea > 0 {
			return counterclockwise(ringPolygon(best)), nil
		}
	}

	return boundingBoxPolygon(paths)
}

// chainIntoRings greedily joins open paths end to end, reversing where
// needed, and returns the chains that close on themselves.
func chainIntoRings(open []Path) []Path {
	used := make([]bool, len(open))
	var rings []Path

	for i := range open {
		if used[i] {
			continue
		}
		used[i] = true
		chain := append(Path{}, open[i]...)

		for {
			if isClosed(chain) {
				rings = append(rings, chain)
				break
			}
			extended := false
			for j := range open {
				if used[j] {
					continue
				}
				candidate := open[j]
				switch {
				case samePoint(last(chain), candidate[0]):
					chain = append(chain, candidate[1:]...)
				case samePoint(last(chain), last(candidate)):
					chain = append(chain, reversed(candidate)[1:]...)
				case samePoint(chain[0], last(candidate)):
					chain = append(candidate, chain[1:]...)
				case samePoint(chain[0], candidate[0]):
					chain = append(reversed(candidate), chain[1:]...)
				default:
					continue
				}
				used[j] = true
				extended = true
				break
			}
			if !extended {
				break
			}
		}
	}
	return rings
}

// boundingBoxPolygon is the fallback region when no path closes.
func boundingBoxPolygon(paths []Path) (Polygon, error) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	any := false
	for _, path := range paths {
		for _, p := range path {
			any = true
			minX = math.Min(minX, p.X())
			minY = math.Min(minY, p.Y())
			maxX = math.Max(maxX, p.X())
			maxY = math.Max(maxY, p.Y())
		}
	}
	if !any || maxX-minX <= 0 || maxY-minY <= 0 {
		return nil, &errdefs.GeometryError{Reason: "could not build a closed region from drawing"}
	}
	return Polygon{
		{minX, minY},
		{maxX, minY},
		{maxX, maxY},
		{minX, maxY},
	}, nil
}

// triangulate ear-clips a simple polygon into triangles, returning vertex
// index triples. Falls back to fan triangulation when clipping stalls on a
// degenerate outline.
func triangulate(p Polygon) [][3]int {
	n := len(p)
	if n < 3 {
		return nil
	}

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}

	var tris [][3]int
	for len(indices) > 3 {
		clipped := false
		for i := 0; i < len(indices); i++ {
			prev := indices[(i-1+len(indices))%len(indices)]
			cur := indices[i]
			next := indices[(i+1)%len(indices)]
			if !isEar(p, indices, prev, cur, next) {
				continue
			}
			tris = append(tris, [3]int{prev, cur, next})
			indices = append(indices[:i], indices[i+1:]...)
			clipped = true
			break
		}
		if !clipped {
			for i := 1; i+1 < len(indices); i++ {
				tris = append(tris, [3]int{indices[0], indices[i], indices[i+1]})
			}
			return tris
		}
	}
	tris = append(tris, [3]int{indices[0], indices[1], indices[2]})
	return tris
}

// isEar checks convexity at cur and that no remaining vertex lies inside
// the candidate triangle.
func isEar(p Polygon, indices []int, prev, cur, next int) bool {
	a, b, c := p[prev], p[cur], p[next]
	if cross2(b.Sub(a), c.Sub(b)) <= 0 {
		return false
	}
	for _, idx := range indices {
		if idx == prev || idx == cur || idx == next {
			continue
		}
		if pointInTriangle(p[idx], a, b, c) {
			return false
		}
	}
	return true
}

func pointInTriangle(pt, a, b, c mgl64.Vec2) bool {
	d1 := cross2(b.Sub(a), pt.Sub(a))
	d2 := cross2(c.Sub(b), pt.Sub(b))
	d3 := cross2(a.Sub(c), pt.Sub(c))
	hasNeg := d1 < 0 || d2 < 0 || d3 < 0
	hasPos := d1 > 0 || d2 > 0 || d3 > 0
	return !(hasNeg && hasPos)
}

// counterclockwise flips the polygon when its winding is clockwise.
func counterclockwise(p Polygon) Polygon {
	if p.Area() >= 0 {
		return p
	}
	out := make(Polygon, len(p))
	for i, v := range p {
		out[len(p)-1-i] = v
	}
	return out
}

// ringPolygon strips repeated closing points from a closed path.
func ringPolygon(ring Path) Polygon {
	for len(ring) > 1 && samePoint(ring[0], last(ring)) {
		ring = ring[:len(ring)-1]
	}
	return Polygon(ring)
}

func isClosed(path Path) bool {
	return len(path) >= 4 && samePoint(path[0], last(path))
}

func samePoint(a, b mgl64.Vec2) bool {
	return math.Abs(a.X()-b.X()) <= joinTolerance && math.Abs(a.Y()-b.Y()) <= joinTolerance
}

func last(path Path) mgl64.Vec2 {
	return path[len(path)-1]
}

func reversed(path Path) Path {
	out := make(Path, len(path))
	for i, p := range path {
		out[len(path)-1-i] = p
	}
	return out
}

func cross2(a, b mgl64.Vec2) float64 {
	return a.X()*b.Y() - a.Y()*b.X()
}
