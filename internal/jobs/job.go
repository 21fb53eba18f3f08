// Package jobs tracks the progress of document batches.
package jobs

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a job.
type State string

const (
	StatePending State = "pending"
	StateRunning State = "running"
	StateDone    State = "done"
	StateFailed  State = "failed"
)

// Job is the progress handle of one batch. It is mutated only by the goroutine
// running the batch; readers get copies through a Tracker.
type Job struct {
	ID         string     `json:"id"`
	Status     string     `json:"status"`
	State      State      `json:"state"`
	Total      int        `json:"total"`
	Processed  int        `json:"processed"`
	Failed     int        `json:"failed"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// NewJob returns a pending job for total documents.
func NewJob(total int) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:        uuid.New().String(),
		Status:    "Queued",
		State:     StatePending,
		Total:     total,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Start marks the job running.
func (j *Job) Start() {
	j.State = StateRunning
	j.Status = fmt.Sprintf("Processed 0/%d documents", j.Total)
	j.UpdatedAt = time.Now().UTC()
}

// Advance records one more processed document. skipped counts it as not treated.
func (j *Job) Advance(skipped bool) {
	j.Processed++
	if skipped {
		j.Failed++
	}
	j.Status = fmt.Sprintf("Processed %d/%d documents", j.Processed, j.Total)
	j.UpdatedAt = time.Now().UTC()
}

// Finish marks the job done, or failed when err is non-nil.
func (j *Job) Finish(err error) {
	now := time.Now().UTC()
	j.UpdatedAt = now
	j.FinishedAt = &now
	if err != nil {
		j.State = StateFailed
		j.Error = err.Error()
		return
	}
	j.State = StateDone
}

// Done reports whether the job reached a final state.
func (j *Job) Done() bool {
	return j.State == StateDone || j.State == StateFailed
}

func (j *Job) clone() *Job {
	c := *j
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}
