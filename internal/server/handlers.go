package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cad-converter/internal/domain"
	"cad-converter/internal/jobs"
)

// downloadChunkSize is the buffer used when streaming files to clients.
const downloadChunkSize = 8 * 1024

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "CAD to 3D print conversion service",
		"version": Version,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	completed, active := s.manager.Counts()
	writeJSON(w, http.StatusOK, domain.SystemStatus{
		Version:        Version,
		UptimeSeconds:  time.Since(s.startedAt).Seconds(),
		JobsCompleted:  completed,
		JobsPending:    active,
		ToolsAvailable: s.toolPaths.Availability(),
	})
}

func (s *Server) handleFormats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"input_formats":  domain.InputFormats(),
		"output_formats": domain.OutputFormats(),
		"tools":          s.toolPaths.Availability(),
	})
}

// handleConvert runs a conversion synchronously and streams the produced
// file back in the response.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	upload, ok := s.acceptUpload(w, r)
	if !ok {
		return
	}

	result, outputPath := s.runJob(r.Context(), upload)
	if !result.Success {
		writeError(w, http.StatusInternalServerError, "conversion failed: %s", result.ErrorMessage)
		return
	}

	w.Header().Set("X-Job-Id", upload.job.ID)
	streamFile(w, outputPath)
}

// handleConvertAsync queues the conversion and returns the job id
// immediately.
func (s *Server) handleConvertAsync(w http.ResponseWriter, r *http.Request) {
	upload, ok := s.acceptUpload(w, r)
	if !ok {
		return
	}

	go func() {
		result, _ := s.runJob(context.Background(), upload)
		if !result.Success {
			log.Printf("[%s] conversion failed: %s", upload.job.ID, result.ErrorMessage)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id": upload.job.ID,
		"status": string(domain.JobStatusPending),
	})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = v
	}
	list := s.manager.List()
	if len(list) > limit {
		list = list[:limit]
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": list})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.manager.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	job, err := s.manager.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if job.OutputFile != "" {
		if err := os.Remove(job.OutputFile); err != nil && !os.IsNotExist(err) {
			log.Printf("[%s] remove output: %v", id, err)
		}
	}
	if err := s.manager.Delete(id); err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"detail": "job deleted"})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	job, err := s.manager.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if job.Status != domain.JobStatusCompleted {
		writeError(w, http.StatusBadRequest, "job is not completed (status: %s)", job.Status)
		return
	}
	if _, err := os.Stat(job.OutputFile); err != nil {
		writeError(w, http.StatusNotFound, "output file no longer exists")
		return
	}
	streamFile(w, job.OutputFile)
}

// upload carries everything acceptUpload extracted from the request.
type upload struct {
	job       domain.Job
	inputPath string
	format    domain.OutputFormat
	settings  domain.Settings
}

// acceptUpload parses the multipart form, stores the uploaded file, and
// registers a pending job. On failure it writes the error response and
// returns ok=false.
func (s *Server) acceptUpload(w http.ResponseWriter, r *http.Request) (upload, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "file too large or invalid form")
		return upload{}, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return upload{}, false
	}
	defer file.Close()

	// Anything unrecognized falls back to g-code, the primary output.
	format, err := domain.ParseOutputFormat(r.FormValue("output_format"))
	if err != nil {
		format = domain.OutputGCode
	}

	settings, err := s.settingsFromForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid settings: %v", err)
		return upload{}, false
	}

	job := s.manager.Create(header.Filename)
	inputPath := filepath.Join(s.workDir, "uploads", job.ID+"_"+filepath.Base(header.Filename))
	out, err := os.Create(inputPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store upload: %v", err)
		return upload{}, false
	}
	defer out.Close()
	if _, err := io.Copy(out, file); err != nil {
		writeError(w, http.StatusInternalServerError, "store upload: %v", err)
		return upload{}, false
	}

	return upload{job: job, inputPath: inputPath, format: format, settings: settings}, true
}

// settingsFromForm overlays optional form fields on the server defaults.
func (s *Server) settingsFromForm(r *http.Request) (domain.Settings, error) {
	settings := s.settings

	floats := map[string]*float64{
		"extrusion_height": &settings.ExtrusionHeight,
		"scale_factor":     &settings.ScaleFactor,
		"layer_height":     &settings.LayerHeight,
		"print_speed":      &settings.PrintSpeed,
	}
	for field, dst := range floats {
		raw := r.FormValue(field)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return settings, fmt.Errorf("%s: %w", field, err)
		}
		*dst = v
	}
	if raw := r.FormValue("infill_percentage"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return settings, fmt.Errorf("infill_percentage: %w", err)
		}
		settings.InfillPercentage = v
	}
	if raw := r.FormValue("support_enabled"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return settings, fmt.Errorf("support_enabled: %w", err)
		}
		settings.SupportEnabled = v
	}

	if err := settings.Validate(); err != nil {
		return settings, err
	}
	return settings, nil
}

// runJob executes the pipeline for an accepted upload. The uploaded input
// is removed whether or not the conversion succeeds.
func (s *Server) runJob(ctx context.Context, u upload) (domain.Result, string) {
	defer os.Remove(u.inputPath)

	outputPath := s.outputPathFor(u.job, u.format)

	conv, err := s.newConverter(u.settings)
	if err != nil {
		s.failJob(u.job.ID, fmt.Sprintf("initialize converter: %v", err))
		return domain.Result{InputFile: u.inputPath, ErrorMessage: err.Error()}, outputPath
	}
	defer func() {
		if err := conv.Cleanup(); err != nil {
			log.Printf("[%s] cleanup: %v", u.job.ID, err)
		}
	}()

	if err := s.manager.MarkProcessing(u.job.ID); err != nil {
		log.Printf("[%s] mark processing: %v", u.job.ID, err)
	}

	result := conv.Convert(ctx, u.inputPath, u.format, outputPath)
	if result.Success {
		if err := s.manager.Complete(u.job.ID, outputPath); err != nil {
			log.Printf("[%s] mark completed: %v", u.job.ID, err)
		}
	} else {
		s.failJob(u.job.ID, result.ErrorMessage)
	}
	return result, outputPath
}

func (s *Server) failJob(id, reason string) {
	if err := s.manager.Fail(id, reason); err != nil && !errors.Is(err, jobs.ErrJobNotFound) {
		log.Printf("[%s] mark failed: %v", id, err)
	}
}

func (s *Server) outputPathFor(job domain.Job, format domain.OutputFormat) string {
	stem := strings.TrimSuffix(job.InputFile, filepath.Ext(job.InputFile))
	name := fmt.Sprintf("%s_%s.%s", job.ID, filepath.Base(stem), format)
	return filepath.Join(s.workDir, "outputs", name)
}

// streamFile sends the file as an attachment in fixed-size chunks.
func streamFile(w http.ResponseWriter, path string) {
	f, err := os.Open(path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "open result: %v", err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filepath.Base(path)))
	w.Header().Set("Content-Type", "application/octet-stream")

	buf := make([]byte, downloadChunkSize)
	if _, err := io.CopyBuffer(w, f, buf); err != nil {
		log.Printf("stream %s: %v", path, err)
	}
}
