// Package server exposes the conversion pipeline over HTTP: a synchronous
// convert endpoint that streams the result back, and an asynchronous job
// API with status polling and downloads.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"cad-converter/internal/convert"
	"cad-converter/internal/domain"
	"cad-converter/internal/jobs"
	"cad-converter/internal/tools"
)

// Version is reported by the / and /status endpoints.
const Version = "1.0.0"

// maxUploadBytes caps the multipart request body.
const maxUploadBytes = 50 * 1024 * 1024

// converterRunner is the slice of the converter the handlers need. Tests
// substitute a fake so no external tools run.
type converterRunner interface {
	Convert(ctx context.Context, inputPath string, format domain.OutputFormat, outputPath string) domain.Result
	Cleanup() error
}

// Server holds the HTTP state: the job registry, upload/output storage,
// and the converter factory.
type Server struct {
	settings  domain.Settings
	toolPaths tools.Paths
	workDir   string
	manager   *jobs.Manager
	startedAt time.Time

	// newConverter builds a converter per job; swapped out in tests.
	newConverter func(settings domain.Settings) (converterRunner, error)
}

// New creates a server storing uploads and outputs under workDir.
func New(settings domain.Settings, toolPaths tools.Paths, workDir string) (*Server, error) {
	for _, sub := range []string{"uploads", "outputs"} {
		if err := os.MkdirAll(filepath.Join(workDir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create %s directory: %w", sub, err)
		}
	}
	s := &Server{
		settings:  settings,
		toolPaths: toolPaths,
		workDir:   workDir,
		manager:   jobs.NewManager(),
		startedAt: time.Now(),
	}
	s.newConverter = func(settings domain.Settings) (converterRunner, error) {
		workDir, err := os.MkdirTemp(s.workDir, "convert-*")
		if err != nil {
			return nil, err
		}
		return convert.NewWithTools(settings, s.toolPaths, workDir), nil
	}
	return s, nil
}

// Handler returns the routed handler with CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /api/formats", s.handleFormats)
	mux.HandleFunc("POST /api/convert", s.handleConvert)
	mux.HandleFunc("POST /api/convert/async", s.handleConvertAsync)
	mux.HandleFunc("GET /api/jobs", s.handleListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", s.handleGetJob)
	mux.HandleFunc("DELETE /api/jobs/{id}", s.handleDeleteJob)
	mux.HandleFunc("GET /api/jobs/{id}/download", s.handleDownload)
	return corsMiddleware(mux)
}

// Close removes the server's upload and output storage.
func (s *Server) Close() error {
	return os.RemoveAll(s.workDir)
}

// corsMiddleware allows browser clients from any origin.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, map[string]string{"detail": fmt.Sprintf(format, args...)})
}
