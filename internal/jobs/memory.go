package jobs

import (
	"context"
	"sync"
)

// MemoryTracker keeps job snapshots in process memory.
type MemoryTracker struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewMemoryTracker returns an empty in-memory tracker.
func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{jobs: make(map[string]*Job)}
}

// Save stores a copy of job.
func (m *MemoryTracker) Save(_ context.Context, job *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job.clone()
	return nil
}

// Get returns a copy of the stored job.
func (m *MemoryTracker) Get(_ context.Context, id string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return job.clone(), nil
}

// Delete removes a job.
func (m *MemoryTracker) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[id]; !ok {
		return ErrJobNotFound
	}
	delete(m.jobs, id)
	return nil
}

// Close is a no-op.
func (m *MemoryTracker) Close() error { return nil }
