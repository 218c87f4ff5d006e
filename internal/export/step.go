package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cad-converter/internal/errdefs"
	"cad-converter/internal/mesh"
)

// stepScript is the FreeCAD batch program that lifts a tessellated STL
// into a BREP solid and writes it out as STEP. makeShapeFromMesh sews the
// triangles with a 0.1 tolerance.
const stepScript = `import Mesh
import Part

m = Mesh.Mesh(%q)
shape = Part.Shape()
shape.makeShapeFromMesh(m.Topology, 0.1)
solid = Part.makeSolid(shape)
Part.export([solid], %q)
`

// exportSTEP writes the mesh to a temporary STL and drives FreeCAD in
// console mode to convert it. The intermediates are removed whether or
// not the conversion succeeds.
func (e *Exporter) exportSTEP(ctx context.Context, m *mesh.Mesh, outputPath string) error {
	if e.freecad == "" {
		return &errdefs.ToolNotFoundError{
			Tool: "freecad",
			Hint: "install FreeCAD to enable STEP export",
		}
	}

	dir := filepath.Dir(outputPath)
	base := strings.TrimSuffix(filepath.Base(outputPath), filepath.Ext(outputPath))
	stlPath := filepath.Join(dir, base+"_step_src.stl")
	scriptPath := filepath.Join(dir, base+"_step_export.py")
	defer os.Remove(stlPath)
	defer os.Remove(scriptPath)

	if err := m.ToSolid().WriteFile(stlPath); err != nil {
		return fmt.Errorf("write intermediate stl: %w", err)
	}
	script := fmt.Sprintf(stepScript, stlPath, outputPath)
	if err := os.WriteFile(scriptPath, []byte(script), 0o644); err != nil {
		return fmt.Errorf("write freecad script: %w", err)
	}

	res, err := e.runner.Run(ctx, e.freecad, scriptPath)
	if err != nil {
		return fmt.Errorf("run freecad: %w", err)
	}
	if res.ExitCode != 0 {
		return &errdefs.ProcessError{
			Tool:     "freecad",
			ExitCode: res.ExitCode,
			Stderr:   res.Stderr,
			Message:  "step conversion failed",
		}
	}
	if info, statErr := os.Stat(outputPath); statErr != nil || info.Size() == 0 {
		return &errdefs.ProcessError{
			Tool:    "freecad",
			Stderr:  res.Stderr,
			Message: "freecad exited cleanly but produced no step file",
		}
	}
	return nil
}
