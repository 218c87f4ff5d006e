// Package convert orchestrates the full pipeline: normalize the input
// drawing to DXF, build and extrude the 2D region, post-process the mesh,
// and export it to the requested model or G-code format.
package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cad-converter/internal/domain"
	"cad-converter/internal/dxf"
	"cad-converter/internal/export"
	"cad-converter/internal/geometry"
	"cad-converter/internal/mesh"
	"cad-converter/internal/normalize"
	"cad-converter/internal/slicer"
	"cad-converter/internal/tools"
)

// Converter runs conversions with a fixed settings snapshot. Intermediates
// land in its work directory; Cleanup removes them.
type Converter struct {
	settings   domain.Settings
	tools      tools.Paths
	workDir    string
	normalizer *normalize.Normalizer
	exporter   *export.Exporter
	slicer     *slicer.Generator
}

// New discovers the external tools on this machine and creates a private
// work directory for intermediates.
func New(settings domain.Settings) (*Converter, error) {
	workDir, err := os.MkdirTemp("", "cad-converter-*")
	if err != nil {
		return nil, fmt.Errorf("create work directory: %w", err)
	}
	paths := tools.NewLocator().Discover()
	return NewWithTools(settings, paths, workDir), nil
}

// NewWithTools wires a converter with explicit tool paths and work
// directory. Used by the server, the CLI, and tests.
func NewWithTools(settings domain.Settings, paths tools.Paths, workDir string) *Converter {
	return &Converter{
		settings:   settings,
		tools:      paths,
		workDir:    workDir,
		normalizer: normalize.New(paths, workDir),
		exporter:   export.New(paths.FreeCAD),
		slicer:     slicer.New(paths.PrusaSlicer),
	}
}

// Tools returns the discovered tool paths.
func (c *Converter) Tools() tools.Paths {
	return c.tools
}

// Settings returns the settings snapshot this converter runs with.
func (c *Converter) Settings() domain.Settings {
	return c.settings
}

// Cleanup removes the work directory and everything in it.
func (c *Converter) Cleanup() error {
	if c.workDir == "" {
		return nil
	}
	return os.RemoveAll(c.workDir)
}

// Convert runs the whole pipeline for one input file. Failures are reported
// in the result rather than as an error; the error return is reserved for
// context cancellation.
func (c *Converter) Convert(ctx context.Context, inputPath string, format domain.OutputFormat, outputPath string) domain.Result {
	result := domain.Result{
		InputFile:    inputPath,
		OutputFormat: format,
	}

	if _, err := os.Stat(inputPath); err != nil {
		return fail(result, fmt.Sprintf("input file not found: %s", inputPath))
	}

	// Reject unknown extensions before any file is produced or any tool
	// is spawned.
	fileType := domain.FileTypeFromPath(inputPath)
	if fileType == domain.FileTypeUnknown {
		return fail(result, fmt.Sprintf("unsupported input format: %s", filepath.Ext(inputPath)))
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fail(result, fmt.Sprintf("create output directory: %v", err))
	}

	dxfPath, warnings, err := c.normalizer.Normalize(ctx, inputPath, fileType)
	result.Warnings = append(result.Warnings, warnings...)
	if err != nil {
		return fail(result, fmt.Sprintf("normalize input: %v", err))
	}

	d, decodeWarnings, err := dxf.Decode(dxfPath)
	result.Warnings = append(result.Warnings, decodeWarnings...)
	if err != nil {
		return fail(result, fmt.Sprintf("read dxf: %v", err))
	}

	paths, geoWarnings, err := geometry.BuildPaths(d)
	result.Warnings = append(result.Warnings, geoWarnings...)
	if err != nil {
		return fail(result, err.Error())
	}

	polygon, err := geometry.AssemblePolygon(paths)
	if err != nil {
		return fail(result, err.Error())
	}

	m, err := geometry.Extrude(polygon, c.settings.ExtrusionHeight)
	if err != nil {
		return fail(result, err.Error())
	}

	m, processWarnings := mesh.Process(m, c.settings)
	result.Warnings = append(result.Warnings, processWarnings...)

	if format == domain.OutputGCode {
		sliceWarnings, err := c.exportGCode(ctx, m, inputPath, outputPath)
		result.Warnings = append(result.Warnings, sliceWarnings...)
		if err != nil {
			return fail(result, fmt.Sprintf("generate g-code: %v", err))
		}
	} else {
		if err := c.exporter.Export(ctx, m, format, outputPath); err != nil {
			return fail(result, fmt.Sprintf("export %s: %v", format, err))
		}
	}

	if info, err := os.Stat(outputPath); err != nil || info.Size() == 0 {
		return fail(result, "conversion produced no output file")
	}

	min, max := m.Bounds()
	result.Success = true
	result.OutputFile = outputPath
	result.Metadata = map[string]any{
		"vertices":   len(m.Vertices),
		"faces":      len(m.Faces),
		"bounds_min": []float64{min.X(), min.Y(), min.Z()},
		"bounds_max": []float64{max.X(), max.Y(), max.Z()},
	}
	return result
}

// exportGCode writes the mesh to a temporary STL in the work directory and
// slices it. The intermediate is removed whether or not slicing succeeds.
func (c *Converter) exportGCode(ctx context.Context, m *mesh.Mesh, inputPath, outputPath string) ([]string, error) {
	stem := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	stlPath := filepath.Join(c.workDir, stem+"_slice.stl")
	defer os.Remove(stlPath)

	if err := c.exporter.Export(ctx, m, domain.OutputSTL, stlPath); err != nil {
		return nil, fmt.Errorf("write intermediate stl: %w", err)
	}
	return c.slicer.Generate(ctx, stlPath, outputPath, c.settings)
}

func fail(result domain.Result, message string) domain.Result {
	result.Success = false
	result.ErrorMessage = message
	return result
}
