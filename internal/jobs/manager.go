// Package jobs tracks server-side conversion jobs across their lifecycle.
package jobs

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"cad-converter/internal/domain"
)

// ErrJobNotFound is returned when a job id is unknown.
var ErrJobNotFound = errors.New("job not found")

// Manager is an in-memory job registry safe for concurrent use.
type Manager struct {
	mu        sync.RWMutex
	jobs      map[string]*domain.Job
	completed int
}

// NewManager creates an empty job registry.
func NewManager() *Manager {
	return &Manager{jobs: make(map[string]*domain.Job)}
}

// Create registers a new pending job for inputFile and returns a snapshot.
func (m *Manager) Create(inputFile string) domain.Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	job := &domain.Job{
		ID:        uuid.NewString()[:8],
		Status:    domain.JobStatusPending,
		InputFile: inputFile,
		CreatedAt: time.Now().UTC(),
	}
	m.jobs[job.ID] = job
	return *job
}

// Get returns a snapshot of the job with the given id.
func (m *Manager) Get(id string) (domain.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return domain.Job{}, ErrJobNotFound
	}
	return *job, nil
}

// MarkProcessing moves a job from pending to processing.
func (m *Manager) MarkProcessing(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	job.Status = domain.JobStatusProcessing
	return nil
}

// Complete marks a job done and records its output file.
func (m *Manager) Complete(id, outputFile string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	now := time.Now().UTC()
	job.Status = domain.JobStatusCompleted
	job.OutputFile = outputFile
	job.Progress = 100
	job.CompletedAt = &now
	m.completed++
	return nil
}

// Fail marks a job failed with the given reason.
func (m *Manager) Fail(id, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	now := time.Now().UTC()
	job.Status = domain.JobStatusFailed
	job.Error = reason
	job.CompletedAt = &now
	return nil
}

// List returns snapshots of all jobs, most recent first.
func (m *Manager) List() []domain.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		out = append(out, *job)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Delete removes a job from the registry.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[id]; !ok {
		return ErrJobNotFound
	}
	delete(m.jobs, id)
	return nil
}

// Counts returns the number of completed jobs and the number of jobs that
// are still pending or processing.
func (m *Manager) Counts() (completed, active int) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, job := range m.jobs {
		switch job.Status {
		case domain.JobStatusPending, domain.JobStatusProcessing:
			active++
		}
	}
	return m.completed, active
}
