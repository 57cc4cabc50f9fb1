package core

// jobs.go tracks background imports for pollers.
//
// Jobs live in memory only and are lost on restart. The pipeline goroutine
// is the single writer for its job; pollers read copies.

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrJobNotFound is returned for unknown or already cleared job ids.
	ErrJobNotFound = errors.New("import job not found")

	// ErrJobInProgress is returned when clearing a job that is still running.
	ErrJobInProgress = errors.New("import job is still processing")

	// ErrJobTerminal is returned when updating or cancelling a finished job.
	ErrJobTerminal = errors.New("import job already finished")
)

// JobStatus is the lifecycle state of an import job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether no further updates are accepted.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// ImportJob is a poller's view of one import.
type ImportJob struct {
	ID       string        `json:"id"`
	Status   JobStatus     `json:"status"`
	Progress int           `json:"progress"`
	Message  string        `json:"message,omitempty"`
	Result   *ImportReport `json:"result,omitempty"`
	Error    string        `json:"error,omitempty"`
	// ErrorMessage is the support-code rendering of Error, see MapError.
	ErrorMessage string    `json:"errorMessage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// JobUpdate is one progress report. An empty Status keeps the current
// status and an empty Message keeps the current message.
type JobUpdate struct {
	Status   JobStatus
	Progress int
	Message  string
	Result   *ImportReport
	Error    string
	// ErrorMessage defaults to FormatUserError of Error.
	ErrorMessage string
}

// JobTracker is a concurrency-safe in-memory job store.
type JobTracker struct {
	mu   sync.RWMutex
	jobs map[string]*ImportJob
	now  func() time.Time
}

func NewJobTracker() *JobTracker {
	return &JobTracker{
		jobs: make(map[string]*ImportJob),
		now:  time.Now,
	}
}

// Start registers a new job in processing state and returns its id.
func (t *JobTracker) Start() string {
	id := uuid.New().String()
	now := t.now()

	t.mu.Lock()
	t.jobs[id] = &ImportJob{
		ID:        id,
		Status:    JobProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}
	t.mu.Unlock()
	return id
}

// Update applies u to the job. Progress never decreases and is clamped
// to [0,100]; a completed job is always at 100. Finished jobs reject
// updates with ErrJobTerminal.
func (t *JobTracker) Update(id string, u JobUpdate) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if job.Status.Terminal() {
		return ErrJobTerminal
	}

	if u.Status != "" {
		job.Status = u.Status
	}
	if p := clampProgress(u.Progress); p > job.Progress {
		job.Progress = p
	}
	if u.Message != "" {
		job.Message = u.Message
	}

	switch job.Status {
	case JobCompleted:
		job.Progress = 100
		job.Result = u.Result
	case JobFailed:
		job.Error = u.Error
		if job.Error == "" {
			job.Error = "import failed"
		}
		job.ErrorMessage = u.ErrorMessage
		if job.ErrorMessage == "" {
			job.ErrorMessage = FormatUserError(errors.New(job.Error))
		}
	}
	job.UpdatedAt = t.now()
	return nil
}

// Get returns a copy of the job.
func (t *JobTracker) Get(id string) (ImportJob, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	job, ok := t.jobs[id]
	if !ok {
		return ImportJob{}, false
	}
	return *job, true
}

// Clear removes a finished job. A running job is kept and
// ErrJobInProgress returned.
func (t *JobTracker) Clear(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if !job.Status.Terminal() {
		return ErrJobInProgress
	}
	delete(t.jobs, id)
	return nil
}

// Sweep clears finished jobs last updated more than olderThan ago and
// returns how many were removed.
func (t *JobTracker) Sweep(olderThan time.Duration) int {
	cutoff := t.now().Add(-olderThan)

	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for id, job := range t.jobs {
		if job.Status.Terminal() && job.UpdatedAt.Before(cutoff) {
			delete(t.jobs, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked jobs.
func (t *JobTracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.jobs)
}

func clampProgress(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
