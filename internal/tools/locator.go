// Package tools discovers the external converters and slicers the pipeline
// can delegate to. Discovery runs once per converter instance; the resulting
// Paths value is read-only afterward. A tool that is absent at discovery
// time is treated as absent for the process lifetime.
package tools

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// Paths holds the resolved absolute path of each external tool, or an empty
// string when the tool is not installed.
type Paths struct {
	ODAConverter string
	Inkscape     string
	FreeCAD      string
	OpenSCAD     string
	PrusaSlicer  string
}

// Availability reports which tools were found, keyed by tool id. Used by
// the /api/formats and /status endpoints.
func (p Paths) Availability() map[string]bool {
	return map[string]bool{
		"oda_converter": p.ODAConverter != "",
		"inkscape":      p.Inkscape != "",
		"freecad":       p.FreeCAD != "",
		"openscad":      p.OpenSCAD != "",
		"prusaslicer":   p.PrusaSlicer != "",
	}
}

// Locator resolves executable names against PATH and the conventional
// installation directories of the host platform.
type Locator struct {
	lookPath func(string) (string, error)
	stat     func(string) (os.FileInfo, error)
	goos     string
	homeDir  string
}

// NewLocator builds a locator using real OS dependencies.
func NewLocator() *Locator {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Locator{
		lookPath: exec.LookPath,
		stat:     os.Stat,
		goos:     runtime.GOOS,
		homeDir:  home,
	}
}

// Discover resolves all known external tools once.
func (l *Locator) Discover() Paths {
	return Paths{
		ODAConverter: l.Resolve("ODAFileConverter", "TeighaFileConverter", "odafileconverter"),
		Inkscape:     l.Resolve("inkscape"),
		FreeCAD:      l.Resolve("freecad", "FreeCAD", "freecadcmd", "FreeCADCmd"),
		OpenSCAD:     l.Resolve("openscad", "OpenSCAD"),
		PrusaSlicer:  l.Resolve("prusa-slicer", "prusaslicer", "PrusaSlicer", "slic3r"),
	}
}

// Resolve returns the first absolute path where one of the candidate names
// is installed, or an empty string when none is found. PATH wins over the
// conventional directories.
func (l *Locator) Resolve(names ...string) string {
	dirs := l.searchDirs()
	for _, name := range names {
		if path, err := l.lookPath(name); err == nil {
			return path
		}

		for _, dir := range dirs {
			full := filepath.Join(dir, name)
			if l.isExecutable(full) {
				return full
			}
			if l.goos == "windows" {
				if info, err := l.stat(full + ".exe"); err == nil && !info.IsDir() {
					return full + ".exe"
				}
			}
		}
	}
	return ""
}

// searchDirs lists conventional installation directories per platform.
func (l *Locator) searchDirs() []string {
	if l.goos == "windows" {
		return []string{
			`C:\Program Files\ODA`,
			`C:\Program Files\ODA\ODAFileConverter`,
			`C:\Program Files\ODA\ODAFileConverter 26.10.0`,
			`C:\Program Files\FreeCAD`,
			`C:\Program Files\FreeCAD\bin`,
			filepath.Join(l.homeDir, `AppData\Local\Programs\FreeCAD 1.0\bin`),
			`C:\Program Files\Inkscape`,
			`C:\Program Files\Inkscape\bin`,
			`C:\Program Files\OpenSCAD`,
			`C:\Program Files\Prusa3D\PrusaSlicer`,
		}
	}
	return []string{
		"/usr/bin",
		"/usr/local/bin",
		"/opt/freecad/bin",
		"/Applications/FreeCAD.app/Contents/MacOS",
	}
}

// isExecutable reports whether path is an existing executable file. Windows
// has no executable bit, so existence is enough there.
func (l *Locator) isExecutable(path string) bool {
	info, err := l.stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if l.goos == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}

// NewLocatorForTests creates a locator with injectable dependencies.
func NewLocatorForTests(
	lookPath func(string) (string, error),
	stat func(string) (os.FileInfo, error),
	goos string,
	homeDir string,
) *Locator {
	return &Locator{
		lookPath: lookPath,
		stat:     stat,
		goos:     goos,
		homeDir:  homeDir,
	}
}
