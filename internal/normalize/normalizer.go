// Package normalize funnels every supported input format into the
// intermediate DXF representation. DWG/DGN and PDF go through external
// tools; SVG and DAT are parsed natively with an external fallback where
// one exists.
package normalize

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cad-converter/internal/domain"
	"cad-converter/internal/drawing"
	"cad-converter/internal/dxf"
	"cad-converter/internal/errdefs"
	"cad-converter/internal/run"
	"cad-converter/internal/svg"
	"cad-converter/internal/tools"
)

// odaOutputVersion is the CAD version string passed to the ODA File
// Converter. Part of the tool's command-line contract.
const odaOutputVersion = "ACAD2018"

// Normalizer converts one input file into an on-disk DXF under its work
// directory.
type Normalizer struct {
	tools   tools.Paths
	runner  run.Runner
	workDir string
}

// New builds a normalizer writing intermediates under workDir.
func New(paths tools.Paths, workDir string) *Normalizer {
	return &Normalizer{
		tools:   paths,
		runner:  run.NewExecRunner(),
		workDir: workDir,
	}
}

// NewForTests builds a normalizer with an injectable process runner.
func NewForTests(paths tools.Paths, runner run.Runner, workDir string) *Normalizer {
	return &Normalizer{
		tools:   paths,
		runner:  runner,
		workDir: workDir,
	}
}

// Normalize converts inputPath into a DXF file and returns its path plus
// any warnings collected along the way. DXF input passes through untouched.
func (n *Normalizer) Normalize(ctx context.Context, inputPath string, fileType domain.FileType) (string, []string, error) {
	if fileType == domain.FileTypeDXF {
		return inputPath, nil, nil
	}

	stem := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	target := filepath.Join(n.workDir, stem+".dxf")

	switch fileType {
	case domain.FileTypeDWG, domain.FileTypeDGN:
		if err := n.convertWithODA(ctx, inputPath, target); err != nil {
			return "", nil, err
		}
		return target, nil, nil
	case domain.FileTypePDF:
		warnings, err := n.convertPDF(ctx, inputPath, target)
		return target, warnings, err
	case domain.FileTypeSVG:
		warnings, err := n.convertSVG(ctx, inputPath, target)
		return target, warnings, err
	case domain.FileTypeDAT:
		d, err := ParseDAT(inputPath)
		if err != nil {
			return "", nil, err
		}
		if err := dxf.Encode(d, target); err != nil {
			return "", nil, fmt.Errorf("write intermediate dxf: %w", err)
		}
		return target, nil, nil
	default:
		return "", nil, &errdefs.UnsupportedFormatError{Value: string(fileType)}
	}
}

// convertWithODA invokes the ODA File Converter. The argument order is part
// of the tool's contract: input folder, output folder, target version,
// target format, recurse flag, audit flag, input filename filter.
func (n *Normalizer) convertWithODA(ctx context.Context, inputPath, target string) error {
	if n.tools.ODAConverter == "" {
		return &errdefs.ToolNotFoundError{
			Tool: "ODA File Converter",
			Hint: "Install from: https://www.opendesign.com/guestfiles/oda_file_converter",
		}
	}

	inputDir := filepath.Dir(inputPath)
	outputDir := filepath.Dir(target)
	inputName := filepath.Base(inputPath)

	args := []string{
		inputDir,
		outputDir,
		odaOutputVersion,
		"DXF",
		"0", // do not recurse folders
		"1", // audit
		inputName,
	}

	result, err := n.runner.Run(ctx, n.tools.ODAConverter, args...)
	if err != nil {
		return &errdefs.ProcessError{
			Tool:     "ODA File Converter",
			ExitCode: result.ExitCode,
			Stderr:   result.Stderr,
			Message:  "conversion to DXF failed",
		}
	}

	// The converter names its output after the input stem; relocate when
	// that differs from the requested target.
	stem := strings.TrimSuffix(inputName, filepath.Ext(inputName))
	produced := filepath.Join(outputDir, stem+".dxf")
	if produced != target {
		if _, err := os.Stat(produced); err == nil {
			if err := os.Rename(produced, target); err != nil {
				return fmt.Errorf("relocate converter output: %w", err)
			}
		}
	}
	return nil
}

// convertPDF goes PDF -> SVG with Inkscape, then through the SVG path.
func (n *Normalizer) convertPDF(ctx context.Context, inputPath, target string) ([]string, error) {
	if n.tools.Inkscape == "" {
		return nil, &errdefs.ToolNotFoundError{
			Tool: "Inkscape",
			Hint: "Install from: https://inkscape.org/",
		}
	}

	svgPath := strings.TrimSuffix(target, ".dxf") + ".svg"
	args := []string{
		inputPath,
		"--export-type=svg",
		"--export-filename=" + svgPath,
	}
	result, err := n.runner.Run(ctx, n.tools.Inkscape, args...)
	if err != nil {
		return nil, &errdefs.ProcessError{
			Tool:     "Inkscape",
			ExitCode: result.ExitCode,
			Stderr:   result.Stderr,
			Message:  "PDF to SVG conversion failed",
		}
	}

	return n.convertSVG(ctx, svgPath, target)
}

// convertSVG parses the SVG natively and encodes the entities as DXF. When
// the native parser fails, Inkscape's own DXF export is the fallback; both
// paths land on the same target file.
func (n *Normalizer) convertSVG(ctx context.Context, inputPath, target string) ([]string, error) {
	entities, parseErr := svg.ParseFile(inputPath)
	if parseErr == nil {
		d := &drawing.Drawing{Entities: entities}
		if err := dxf.Encode(d, target); err != nil {
			return nil, fmt.Errorf("write intermediate dxf: %w", err)
		}
		return nil, nil
	}

	warnings := []string{fmt.Sprintf("native svg parse failed, falling back to Inkscape: %v", parseErr)}

	if n.tools.Inkscape == "" {
		return nil, fmt.Errorf("svg parse failed and Inkscape is not installed: %w", parseErr)
	}

	args := []string{
		inputPath,
		"--export-type=dxf",
		"--export-filename=" + target,
	}
	result, err := n.runner.Run(ctx, n.tools.Inkscape, args...)
	if err != nil {
		return warnings, &errdefs.ProcessError{
			Tool:     "Inkscape",
			ExitCode: result.ExitCode,
			Stderr:   result.Stderr,
			Message:  "SVG to DXF conversion failed",
		}
	}
	return warnings, nil
}
