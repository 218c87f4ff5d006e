// Package errdefs defines the error taxonomy shared by every pipeline
// stage. Stage code returns these types; the top-level converter folds them
// into a Result so no error ever escapes a job boundary.
package errdefs

import (
	"errors"
	"fmt"
	"strings"
)

// ToolNotFoundError reports a required external binary that is absent from
// the host. Absence is permanent for the process lifetime; it is never
// retried.
type ToolNotFoundError struct {
	Tool string
	Hint string
}

func (e *ToolNotFoundError) Error() string {
	if e.Hint == "" {
		return fmt.Sprintf("%s not found", e.Tool)
	}
	return fmt.Sprintf("%s not found. %s", e.Tool, e.Hint)
}

// ProcessError reports an external tool that ran but failed: a nonzero exit
// code, or an expected output file missing despite exit code zero.
type ProcessError struct {
	Tool     string
	ExitCode int
	Stderr   string
	Message  string
}

func (e *ProcessError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "external process failed"
	}
	out := fmt.Sprintf("%s: %s (exit=%d)", e.Tool, msg, e.ExitCode)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		out += ": " + stderr
	}
	return out
}

// UnsupportedFormatError reports an input extension or output format outside
// the closed supported set. It is raised before any file I/O or subprocess.
type UnsupportedFormatError struct {
	Value string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported format: %q", e.Value)
}

// GeometryError reports a drawing that yields no usable geometry.
type GeometryError struct {
	Reason string
}

func (e *GeometryError) Error() string {
	return e.Reason
}

// IsToolNotFound reports whether err is (or wraps) a ToolNotFoundError.
func IsToolNotFound(err error) bool {
	var t *ToolNotFoundError
	return errors.As(err, &t)
}

// IsUnsupportedFormat reports whether err is (or wraps) an
// UnsupportedFormatError.
func IsUnsupportedFormat(err error) bool {
	var t *UnsupportedFormatError
	return errors.As(err, &t)
}
