package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// FileType identifies a supported input drawing format. It is derived from
// the file extension only; no content sniffing is performed.
type FileType string

const (
	FileTypeDWG     FileType = "dwg"
	FileTypeDGN     FileType = "dgn"
	FileTypeDXF     FileType = "dxf"
	FileTypePDF     FileType = "pdf"
	FileTypeDAT     FileType = "dat"
	FileTypeSVG     FileType = "svg"
	FileTypeUnknown FileType = "unknown"
)

// FileTypeFromPath maps a file extension to its FileType.
func FileTypeFromPath(path string) FileType {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch ext {
	case "dwg":
		return FileTypeDWG
	case "dgn":
		return FileTypeDGN
	case "dxf":
		return FileTypeDXF
	case "pdf":
		return FileTypePDF
	case "dat":
		return FileTypeDAT
	case "svg":
		return FileTypeSVG
	default:
		return FileTypeUnknown
	}
}

// InputFormats lists every accepted input extension.
func InputFormats() []string {
	return []string{"dwg", "dgn", "dxf", "pdf", "dat", "svg"}
}

// OutputFormat identifies a supported output container.
type OutputFormat string

const (
	OutputSTL     OutputFormat = "stl"
	OutputOBJ     OutputFormat = "obj"
	OutputSTEP    OutputFormat = "step"
	OutputGCode   OutputFormat = "gcode"
	OutputThreeMF OutputFormat = "3mf"
)

// ParseOutputFormat converts a user-supplied format string, rejecting
// anything outside the closed set.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case OutputSTL:
		return OutputSTL, nil
	case OutputOBJ:
		return OutputOBJ, nil
	case OutputSTEP:
		return OutputSTEP, nil
	case OutputGCode:
		return OutputGCode, nil
	case OutputThreeMF:
		return OutputThreeMF, nil
	default:
		return "", fmt.Errorf("unsupported output format: %q", s)
	}
}

// OutputFormats lists every supported output format value.
func OutputFormats() []string {
	return []string{"stl", "obj", "gcode", "3mf", "step"}
}

// Settings bundles all tunables for one conversion run. A Settings value is
// treated as immutable once handed to a converter.
type Settings struct {
	ExtrusionHeight float64 `json:"extrusionHeight"`
	ScaleFactor     float64 `json:"scaleFactor"`
	CenterModel     bool    `json:"centerModel"`
	RepairMesh      bool    `json:"repairMesh"`
	SimplifyMesh    bool    `json:"simplifyMesh"`
	SimplifyRatio   float64 `json:"simplifyRatio"`

	LayerHeight      float64 `json:"layerHeight"`
	NozzleDiameter   float64 `json:"nozzleDiameter"`
	PrintSpeed       float64 `json:"printSpeed"`
	InfillPercentage int     `json:"infillPercentage"`
	SupportEnabled   bool    `json:"supportEnabled"`

	BedSizeX float64 `json:"bedSizeX"`
	BedSizeY float64 `json:"bedSizeY"`
	BedSizeZ float64 `json:"bedSizeZ"`
}

// DefaultSettings returns the baseline conversion configuration. Distances
// are millimeters, speeds millimeters per second.
func DefaultSettings() Settings {
	return Settings{
		ExtrusionHeight:  10.0,
		ScaleFactor:      1.0,
		CenterModel:      true,
		RepairMesh:       true,
		SimplifyMesh:     false,
		SimplifyRatio:    0.5,
		LayerHeight:      0.2,
		NozzleDiameter:   0.4,
		PrintSpeed:       50.0,
		InfillPercentage: 20,
		SupportEnabled:   false,
		BedSizeX:         220.0,
		BedSizeY:         220.0,
		BedSizeZ:         250.0,
	}
}

// Validate rejects settings that cannot produce a sane toolpath. Validation
// happens at the API and CLI boundaries; the engine trusts its input.
func (s Settings) Validate() error {
	if s.ExtrusionHeight <= 0 {
		return fmt.Errorf("extrusion height must be positive, got %g", s.ExtrusionHeight)
	}
	if s.ScaleFactor <= 0 {
		return fmt.Errorf("scale factor must be positive, got %g", s.ScaleFactor)
	}
	if s.SimplifyMesh && (s.SimplifyRatio <= 0 || s.SimplifyRatio > 1) {
		return fmt.Errorf("simplify ratio must be in (0,1], got %g", s.SimplifyRatio)
	}
	if s.LayerHeight <= 0 {
		return fmt.Errorf("layer height must be positive, got %g", s.LayerHeight)
	}
	if s.NozzleDiameter <= 0 {
		return fmt.Errorf("nozzle diameter must be positive, got %g", s.NozzleDiameter)
	}
	if s.PrintSpeed <= 0 {
		return fmt.Errorf("print speed must be positive, got %g", s.PrintSpeed)
	}
	if s.InfillPercentage < 0 || s.InfillPercentage > 100 {
		return fmt.Errorf("infill percentage must be in 0..100, got %d", s.InfillPercentage)
	}
	if s.BedSizeX <= 0 || s.BedSizeY <= 0 || s.BedSizeZ <= 0 {
		return fmt.Errorf("bed dimensions must be positive")
	}
	return nil
}

// Result describes the outcome of one conversion run. It is created once
// per Convert call and never mutated after being returned.
type Result struct {
	Success      bool           `json:"success"`
	InputFile    string         `json:"inputFile"`
	OutputFile   string         `json:"outputFile,omitempty"`
	OutputFormat OutputFormat   `json:"outputFormat,omitempty"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
	Warnings     []string       `json:"warnings,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// JobStatus tracks the lifecycle of a server-side conversion job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job is one server-visible unit of conversion work. Progress is coarse:
// 0 until the pipeline settles, 100 on completion.
type Job struct {
	ID          string     `json:"job_id"`
	Status      JobStatus  `json:"status"`
	InputFile   string     `json:"input_file"`
	OutputFile  string     `json:"output_file,omitempty"`
	Progress    int        `json:"progress"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// SystemStatus is the payload of the /status endpoint.
type SystemStatus struct {
	Version        string          `json:"version"`
	UptimeSeconds  float64         `json:"uptime"`
	JobsCompleted  int             `json:"jobs_completed"`
	JobsPending    int             `json:"jobs_pending"`
	ToolsAvailable map[string]bool `json:"tools_available"`
}
