// Package jobs tracks grid cells from creation to a terminal status.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

func (s Status) terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Job is one tracked cell. All methods are safe for concurrent use.
type Job struct {
	ID          string
	Description string

	mu      sync.RWMutex
	status  Status
	started time.Time
	ended   time.Time
	err     error
	logs    []string
	cancel  context.CancelFunc
}

// Start marks the job running. cancel, if not nil, is called when the job
// is cancelled through the manager.
func (j *Job) Start(cancel context.CancelFunc) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = StatusRunning
	j.started = time.Now()
	j.cancel = cancel
}

// Finish moves a job to its terminal status: completed for a nil err,
// cancelled for a context error, failed otherwise. A job that was already
// cancelled stays cancelled unless it completed anyway.
func (j *Job) Finish(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.err = err
	switch {
	case err == nil:
		j.status = StatusCompleted
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		j.status = StatusCancelled
	case j.status != StatusCancelled:
		j.status = StatusFailed
	}
	if j.ended.IsZero() {
		j.ended = time.Now()
	}
}

// Cancel stops a running job. It reports whether the job was running.
func (j *Job) Cancel() bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.status != StatusRunning {
		return false
	}
	if j.cancel != nil {
		j.cancel()
	}
	j.status = StatusCancelled
	j.ended = time.Now()
	return true
}

// Logf appends a timestamped line to the job log.
func (j *Job) Logf(format string, args ...any) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.logs = append(j.logs, fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), fmt.Sprintf(format, args...)))
}

func (j *Job) Status() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

func (j *Job) Err() error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.err
}

func (j *Job) Logs() []string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return append([]string(nil), j.logs...)
}

// Duration is the running time of a finished job, or the time since it
// started. A job that never started has no duration.
func (j *Job) Duration() time.Duration {
	j.mu.RLock()
	defer j.mu.RUnlock()
	switch {
	case j.started.IsZero():
		return 0
	case j.status.terminal():
		return j.ended.Sub(j.started)
	default:
		return time.Since(j.started)
	}
}

type Manager struct {
	mu   sync.RWMutex
	jobs []*Job
}

func NewManager() *Manager {
	return &Manager{}
}

// Create registers a pending job. IDs are numbered in creation order.
func (m *Manager) Create(description string) *Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	job := &Job{
		ID:          fmt.Sprintf("cell_%d", len(m.jobs)+1),
		Description: description,
		status:      StatusPending,
	}
	m.jobs = append(m.jobs, job)
	return job
}

// List returns the jobs in creation order.
func (m *Manager) List() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*Job(nil), m.jobs...)
}

// CancelRunning cancels every running job and returns how many it stopped.
func (m *Manager) CancelRunning() int {
	n := 0
	for _, job := range m.List() {
		if job.Cancel() {
			n++
		}
	}
	return n
}

// Counts tallies jobs by status.
type Counts struct {
	Pending   int
	Running   int
	Completed int
	Failed    int
	Cancelled int
}

func (c Counts) String() string {
	return fmt.Sprintf("%d completed, %d failed, %d cancelled", c.Completed, c.Failed, c.Cancelled)
}

func (m *Manager) Counts() Counts {
	var c Counts
	for _, job := range m.List() {
		switch job.Status() {
		case StatusPending:
			c.Pending++
		case StatusRunning:
			c.Running++
		case StatusCompleted:
			c.Completed++
		case StatusFailed:
			c.Failed++
		case StatusCancelled:
			c.Cancelled++
		}
	}
	return c
}
