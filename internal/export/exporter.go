// Package export writes the processed mesh to the requested model format.
// STL, OBJ, and 3MF are written natively; STEP goes through FreeCAD.
package export

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"

	"cad-converter/internal/domain"
	"cad-converter/internal/errdefs"
	"cad-converter/internal/mesh"
	"cad-converter/internal/run"
)

// Exporter writes meshes to disk. The FreeCAD path may be empty, in which
// case STEP export reports a tool-not-found error.
type Exporter struct {
	freecad string
	runner  run.Runner
}

// New returns an exporter that shells out to the given FreeCAD binary for
// STEP output.
func New(freecadPath string) *Exporter {
	return &Exporter{freecad: freecadPath, runner: run.NewExecRunner()}
}

// NewForTests wires an exporter with an injectable runner.
func NewForTests(freecadPath string, runner run.Runner) *Exporter {
	return &Exporter{freecad: freecadPath, runner: runner}
}

// Export writes m to outputPath in the given format. G-code is produced by
// the slicer, not here.
func (e *Exporter) Export(ctx context.Context, m *mesh.Mesh, format domain.OutputFormat, outputPath string) error {
	if err := m.Validate(); err != nil {
		return err
	}
	switch format {
	case domain.OutputSTL:
		return m.ToSolid().WriteFile(outputPath)
	case domain.OutputOBJ:
		return writeOBJ(m, outputPath)
	case domain.OutputThreeMF:
		return write3MF(m, outputPath)
	case domain.OutputSTEP:
		return e.exportSTEP(ctx, m, outputPath)
	default:
		return &errdefs.UnsupportedFormatError{Value: string(format)}
	}
}

// writeOBJ emits a plain Wavefront OBJ with 1-based face indices.
func writeOBJ(m *mesh.Mesh, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, v := range m.Vertices {
		fmt.Fprintf(w, "v %s %s %s\n", objNum(v.X()), objNum(v.Y()), objNum(v.Z()))
	}
	for _, face := range m.Faces {
		fmt.Fprintf(w, "f %d %d %d\n", face[0]+1, face[1]+1, face[2]+1)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return nil
}

func objNum(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
