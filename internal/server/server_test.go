package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cad-converter/internal/domain"
	"cad-converter/internal/tools"
)

// fakeConverter produces a canned result and records what it was asked to
// convert.
type fakeConverter struct {
	result    domain.Result
	gotInput  string
	gotFormat domain.OutputFormat
	gotOutput string
}

func (f *fakeConverter) Convert(ctx context.Context, inputPath string, format domain.OutputFormat, outputPath string) domain.Result {
	f.gotInput = inputPath
	f.gotFormat = format
	f.gotOutput = outputPath
	if f.result.Success {
		if err := os.WriteFile(outputPath, []byte("G28\nG1 X1 Y1\n"), 0o644); err != nil {
			panic(err)
		}
		f.result.OutputFile = outputPath
	}
	return f.result
}

func (f *fakeConverter) Cleanup() error { return nil }

func newTestServer(t *testing.T, fake *fakeConverter) *Server {
	t.Helper()
	s, err := New(domain.DefaultSettings(), tools.Paths{}, t.TempDir())
	if err != nil {
		t.Fatalf("New error = %v", err)
	}
	if fake != nil {
		s.newConverter = func(domain.Settings) (converterRunner, error) {
			return fake, nil
		}
	}
	return s
}

// multipartBody builds a form upload with the given extra fields.
func multipartBody(t *testing.T, filename string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	fmt.Fprint(part, "0 0\n10 0\n10 10\n0 0\n")
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

// TestHandleRootAndStatus checks the info endpoints.
func TestHandleRootAndStatus(t *testing.T) {
	s := newTestServer(t, nil)
	defer s.Close()
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET / status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /status status = %d", rec.Code)
	}
	var status domain.SystemStatus
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Version != Version {
		t.Fatalf("version = %q", status.Version)
	}
	if len(status.ToolsAvailable) != 5 {
		t.Fatalf("tools = %v, want 5 entries", status.ToolsAvailable)
	}
}

// TestHandleFormats checks the advertised format lists.
func TestHandleFormats(t *testing.T) {
	s := newTestServer(t, nil)
	defer s.Close()

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/formats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var payload struct {
		InputFormats  []string `json:"input_formats"`
		OutputFormats []string `json:"output_formats"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.InputFormats) != 6 {
		t.Fatalf("input formats = %v", payload.InputFormats)
	}
	if len(payload.OutputFormats) != 5 {
		t.Fatalf("output formats = %v", payload.OutputFormats)
	}
}

// TestHandleConvertSyncSuccess streams the result with the job id header.
func TestHandleConvertSyncSuccess(t *testing.T) {
	fake := &fakeConverter{result: domain.Result{Success: true}}
	s := newTestServer(t, fake)
	defer s.Close()

	body, contentType := multipartBody(t, "square.dat", map[string]string{"output_format": "stl"})
	req := httptest.NewRequest(http.MethodPost, "/api/convert", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if fake.gotFormat != domain.OutputSTL {
		t.Fatalf("format = %q, want stl", fake.gotFormat)
	}

	jobID := rec.Header().Get("X-Job-Id")
	if jobID == "" {
		t.Fatal("missing X-Job-Id header")
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "attachment") {
		t.Fatalf("content disposition = %q", got)
	}
	payload, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(payload), "G28") {
		t.Fatal("response body is not the converted file")
	}

	// Input must be removed after the attempt.
	if _, err := os.Stat(fake.gotInput); !os.IsNotExist(err) {
		t.Fatalf("input still exists: %v", err)
	}

	job, err := s.manager.Get(jobID)
	if err != nil {
		t.Fatalf("job lookup: %v", err)
	}
	if job.Status != domain.JobStatusCompleted {
		t.Fatalf("job status = %s", job.Status)
	}
}

// TestHandleConvertUnknownFormatCoercesToGCode keeps the request alive.
func TestHandleConvertUnknownFormatCoercesToGCode(t *testing.T) {
	fake := &fakeConverter{result: domain.Result{Success: true}}
	s := newTestServer(t, fake)
	defer s.Close()

	body, contentType := multipartBody(t, "square.dat", map[string]string{"output_format": "exe"})
	req := httptest.NewRequest(http.MethodPost, "/api/convert", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if fake.gotFormat != domain.OutputGCode {
		t.Fatalf("format = %q, want gcode", fake.gotFormat)
	}
}

// TestHandleConvertFailureMarksJobFailed reports the pipeline error and
// removes the uploaded input.
func TestHandleConvertFailureMarksJobFailed(t *testing.T) {
	fake := &fakeConverter{result: domain.Result{ErrorMessage: "no valid geometry found in drawing"}}
	s := newTestServer(t, fake)
	defer s.Close()

	body, contentType := multipartBody(t, "empty.dxf", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/convert", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "no valid geometry") {
		t.Fatalf("body = %s", rec.Body.String())
	}
	if _, err := os.Stat(fake.gotInput); !os.IsNotExist(err) {
		t.Fatal("input should be removed after a failed attempt")
	}

	jobs := s.manager.List()
	if len(jobs) != 1 || jobs[0].Status != domain.JobStatusFailed {
		t.Fatalf("jobs = %+v, want one failed", jobs)
	}
}

// TestHandleConvertMissingFile is a bad request.
func TestHandleConvertMissingFile(t *testing.T) {
	s := newTestServer(t, nil)
	defer s.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	w.WriteField("output_format", "stl")
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/convert", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

// TestHandleConvertInvalidSettings rejects bad form overrides.
func TestHandleConvertInvalidSettings(t *testing.T) {
	s := newTestServer(t, nil)
	defer s.Close()

	body, contentType := multipartBody(t, "square.dat", map[string]string{"extrusion_height": "-5"})
	req := httptest.NewRequest(http.MethodPost, "/api/convert", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

// TestHandleConvertAsyncAndDownload drives the async job flow end to end.
func TestHandleConvertAsyncAndDownload(t *testing.T) {
	fake := &fakeConverter{result: domain.Result{Success: true}}
	s := newTestServer(t, fake)
	defer s.Close()
	h := s.Handler()

	body, contentType := multipartBody(t, "square.dat", map[string]string{"output_format": "obj"})
	req := httptest.NewRequest(http.MethodPost, "/api/convert/async", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
	var accepted struct {
		JobID  string `json:"job_id"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&accepted); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if accepted.Status != string(domain.JobStatusPending) {
		t.Fatalf("status = %q, want pending", accepted.Status)
	}

	// The background goroutine should settle quickly.
	deadline := time.Now().Add(2 * time.Second)
	for {
		job, err := s.manager.Get(accepted.JobID)
		if err != nil {
			t.Fatalf("job lookup: %v", err)
		}
		if job.Status == domain.JobStatusCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job stuck in %s", job.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/"+accepted.JobID+"/download", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("download status = %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Fatal("empty download")
	}
}

// TestHandleDownloadPendingJob is a bad request.
func TestHandleDownloadPendingJob(t *testing.T) {
	s := newTestServer(t, nil)
	defer s.Close()
	job := s.manager.Create("x.dxf")

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/"+job.ID+"/download", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

// TestHandleJobEndpoints covers get, list, delete, and 404s.
func TestHandleJobEndpoints(t *testing.T) {
	s := newTestServer(t, nil)
	defer s.Close()
	h := s.Handler()
	job := s.manager.Create("plan.dwg")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/"+job.ID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var got domain.Job
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != job.ID || got.InputFile != "plan.dwg" {
		t.Fatalf("job = %+v", got)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/jobs/"+job.ID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/"+job.ID, nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d", rec.Code)
	}
}

// TestHandleListJobsLimit trims the list to the requested size.
func TestHandleListJobsLimit(t *testing.T) {
	s := newTestServer(t, nil)
	defer s.Close()
	h := s.Handler()
	for i := 0; i < 3; i++ {
		s.manager.Create("plan.dwg")
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs?limit=2", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got struct {
		Jobs []domain.Job `json:"jobs"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Jobs) != 2 {
		t.Fatalf("jobs = %d, want 2", len(got.Jobs))
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs?limit=bogus", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit status = %d", rec.Code)
	}
}

// TestCORSPreflight answers OPTIONS without touching handlers.
func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, nil)
	defer s.Close()

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/convert", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing CORS header")
	}
}

// TestOutputPathUsesJobIDAndFormat keeps outputs collision-free.
func TestOutputPathUsesJobIDAndFormat(t *testing.T) {
	s := newTestServer(t, nil)
	defer s.Close()

	job := domain.Job{ID: "abcd1234", InputFile: "floor plan.dwg"}
	got := s.outputPathFor(job, domain.OutputThreeMF)
	if filepath.Base(got) != "abcd1234_floor plan.3mf" {
		t.Fatalf("output path = %q", got)
	}
	if filepath.Dir(got) != filepath.Join(s.workDir, "outputs") {
		t.Fatalf("output dir = %q", filepath.Dir(got))
	}
}
