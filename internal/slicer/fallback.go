package slicer

import (
	"bufio"
	"fmt"
	"math"
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/hschendel/stl"

	"cad-converter/internal/domain"
	"cad-converter/internal/errdefs"
	"cad-converter/internal/mesh"
)

// extrusionPerMM is the filament feed per millimeter of XY travel used by
// the fallback toolpaths.
const extrusionPerMM = 0.05

// segmentTolerance joins cross-section segment endpoints into loops.
const segmentTolerance = 1e-6

var startupGCode = []string{
	"G28 ; home all axes",
	"G90 ; absolute positioning",
	"M82 ; absolute extrusion",
	"M104 S200 ; set hotend temperature",
	"M140 S60 ; set bed temperature",
	"M109 S200 ; wait for hotend",
	"M190 S60 ; wait for bed",
	"G92 E0 ; reset extruder",
}

var shutdownGCode = []string{
	"M104 S0 ; hotend off",
	"M140 S0 ; bed off",
	"G28 X Y ; park",
	"M84 ; disable steppers",
}

// sliceFallback cuts the model into horizontal layers and writes
// perimeter-only G-code. Each layer is sampled at its mid-height; layers
// with no cross-section are skipped with a warning.
func sliceFallback(stlPath, gcodePath string, settings domain.Settings) ([]string, error) {
	solid, err := stl.ReadFile(stlPath)
	if err != nil {
		return nil, fmt.Errorf("read stl for slicing: %w", err)
	}
	m := mesh.FromSolid(solid)

	min, max := m.Bounds()
	height := max.Z() - min.Z()
	if height <= 0 {
		return nil, &errdefs.GeometryError{Reason: "model has no height to slice"}
	}
	// A model shorter than one layer slices to zero layers; the output is
	// just the startup and shutdown blocks.
	layers := int(math.Floor(height / settings.LayerHeight))

	f, err := os.Create(gcodePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	for _, line := range startupGCode {
		fmt.Fprintln(w, line)
	}

	var warnings []string
	feedRate := settings.PrintSpeed * 60
	extruded := 0.0

	for i := 0; i < layers; i++ {
		// The nozzle moves to the layer top; the section is taken at the
		// layer's mid-height.
		zTop := min.Z() + float64(i+1)*settings.LayerHeight
		z := zTop - settings.LayerHeight/2
		segments := crossSection(m, z)
		if len(segments) == 0 {
			warnings = append(warnings, fmt.Sprintf("layer %d at z=%.3f has no cross-section, skipped", i, z))
			continue
		}

		fmt.Fprintf(w, ";LAYER:%d\n", i)
		fmt.Fprintf(w, "G1 Z%.3f F3000\n", zTop)
		for _, loop := range chainSegments(segments) {
			if len(loop) < 2 {
				continue
			}
			fmt.Fprintf(w, "G0 X%.3f Y%.3f\n", loop[0].X(), loop[0].Y())
			for j := 1; j < len(loop); j++ {
				extruded += loop[j].Sub(loop[j-1]).Len() * extrusionPerMM
				fmt.Fprintf(w, "G1 X%.3f Y%.3f E%.5f F%.0f\n",
					loop[j].X(), loop[j].Y(), extruded, feedRate)
			}
		}
	}

	for _, line := range shutdownGCode {
		fmt.Fprintln(w, line)
	}
	if err := w.Flush(); err != nil {
		return warnings, err
	}
	return warnings, nil
}

// crossSection intersects every triangle with the horizontal plane at z and
// returns the resulting line segments.
func crossSection(m *mesh.Mesh, z float64) [][2]mgl64.Vec2 {
	var segments [][2]mgl64.Vec2
	for _, face := range m.Faces {
		var points []mgl64.Vec2
		for e := 0; e < 3; e++ {
			a := m.Vertices[face[e]]
			b := m.Vertices[face[(e+1)%3]]
			da, db := a.Z()-z, b.Z()-z
			if (da > 0 && db > 0) || (da < 0 && db < 0) {
				continue
			}
			if da == db {
				continue
			}
			t := da / (da - db)
			points = append(points, mgl64.Vec2{
				a.X() + t*(b.X()-a.X()),
				a.Y() + t*(b.Y()-a.Y()),
			})
		}
		if len(points) == 2 && points[0].Sub(points[1]).Len() > segmentTolerance {
			segments = append(segments, [2]mgl64.Vec2{points[0], points[1]})
		}
	}
	return segments
}

// chainSegments greedily joins segments end to end into polylines. Closed
// loops repeat their first point so emission draws the full perimeter.
func chainSegments(segments [][2]mgl64.Vec2) [][]mgl64.Vec2 {
	used := make([]bool, len(segments))
	var loops [][]mgl64.Vec2

	for i := range segments {
		if used[i] {
			continue
		}
		used[i] = true
		loop := []mgl64.Vec2{segments[i][0], segments[i][1]}

		for {
			tail := loop[len(loop)-1]
			found := false
			for j := range segments {
				if used[j] {
					continue
				}
				switch {
				case near(tail, segments[j][0]):
					loop = append(loop, segments[j][1])
				case near(tail, segments[j][1]):
					loop = append(loop, segments[j][0])
				default:
					continue
				}
				used[j] = true
				found = true
				break
			}
			if !found {
				break
			}
			if near(loop[0], loop[len(loop)-1]) {
				loop[len(loop)-1] = loop[0]
				break
			}
		}
		loops = append(loops, loop)
	}
	return loops
}

func near(a, b mgl64.Vec2) bool {
	return a.Sub(b).Len() <= segmentTolerance
}
