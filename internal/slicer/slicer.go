// Package slicer turns an STL model into printer G-code. PrusaSlicer does
// the real work when it is installed; otherwise a minimal planar slicer
// produces perimeter-only toolpaths so the pipeline still yields output.
package slicer

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"cad-converter/internal/domain"
	"cad-converter/internal/run"
)

// Generator produces G-code from an STL file.
type Generator struct {
	prusaSlicer string
	runner      run.Runner
}

// New returns a generator backed by the given PrusaSlicer binary. An empty
// path means every job uses the fallback slicer.
func New(prusaSlicerPath string) *Generator {
	return &Generator{prusaSlicer: prusaSlicerPath, runner: run.NewExecRunner()}
}

// NewForTests wires a generator with an injectable runner.
func NewForTests(prusaSlicerPath string, runner run.Runner) *Generator {
	return &Generator{prusaSlicer: prusaSlicerPath, runner: runner}
}

// Generate slices stlPath into gcodePath. PrusaSlicer failures are demoted
// to warnings and the fallback slicer takes over; only a fallback failure
// is fatal.
func (g *Generator) Generate(ctx context.Context, stlPath, gcodePath string, settings domain.Settings) ([]string, error) {
	var warnings []string

	if g.prusaSlicer != "" {
		warning := g.runPrusaSlicer(ctx, stlPath, gcodePath, settings)
		if warning == "" {
			return warnings, nil
		}
		warnings = append(warnings, warning)
	} else {
		warnings = append(warnings, "prusa-slicer not installed, using built-in slicer")
	}

	fallbackWarnings, err := sliceFallback(stlPath, gcodePath, settings)
	warnings = append(warnings, fallbackWarnings...)
	if err != nil {
		return warnings, err
	}
	return warnings, nil
}

// runPrusaSlicer invokes the external slicer and verifies it actually
// produced a file. Returns an empty string on success, otherwise a warning
// describing why the fallback is needed.
func (g *Generator) runPrusaSlicer(ctx context.Context, stlPath, gcodePath string, settings domain.Settings) string {
	args := []string{
		"--export-gcode",
		"--output", gcodePath,
		"--layer-height=" + num(settings.LayerHeight),
		"--nozzle-diameter=" + num(settings.NozzleDiameter),
		fmt.Sprintf("--fill-density=%d%%", settings.InfillPercentage),
		"--perimeter-speed=" + num(settings.PrintSpeed),
		"--infill-speed=" + num(settings.PrintSpeed),
		fmt.Sprintf("--bed-shape=0x0,%sx0,%sx%s,0x%s",
			num(settings.BedSizeX), num(settings.BedSizeX),
			num(settings.BedSizeY), num(settings.BedSizeY)),
	}
	if settings.SupportEnabled {
		args = append(args, "--support-material")
	}
	args = append(args, stlPath)

	res, err := g.runner.Run(ctx, g.prusaSlicer, args...)
	if err != nil {
		return fmt.Sprintf("prusa-slicer could not be started: %v", err)
	}
	if res.ExitCode != 0 {
		return fmt.Sprintf("prusa-slicer exited with code %d: %s", res.ExitCode, res.Stderr)
	}
	if info, statErr := os.Stat(gcodePath); statErr != nil || info.Size() == 0 {
		return "prusa-slicer exited cleanly but produced no g-code"
	}
	return ""
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
