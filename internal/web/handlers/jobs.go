package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/kozaktomas/facevote/internal/constants"
	"github.com/kozaktomas/facevote/internal/protocol"
)

// JobStatus represents the status of an async job.
type JobStatus string

// JobStatus constants define the lifecycle states of an async job.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// CaptureJob is an enrollment capture running on the server camera.
type CaptureJob struct {
	EventBroadcaster

	ID          string
	Status      JobStatus
	Count       int
	Target      int
	TimeLeft    int
	Error       string
	ErrorKind   string
	StartedAt   time.Time
	CompletedAt *time.Time

	enroller *protocol.Enroller
	finished chan struct{}
}

// CaptureJobView is the JSON representation of a capture job.
type CaptureJobView struct {
	ID          string     `json:"id"`
	Status      JobStatus  `json:"status"`
	Count       int        `json:"count"`
	Target      int        `json:"target"`
	TimeLeft    int        `json:"time_left"`
	Error       string     `json:"error,omitempty"`
	ErrorKind   string     `json:"error_kind,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// GetStatus returns the current job status (implements SSEJob).
func (j *CaptureJob) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// Cancel cancels the capture job.
func (j *CaptureJob) Cancel() {
	j.mu.Lock()
	if j.Status == JobStatusPending || j.Status == JobStatusRunning {
		j.Status = JobStatusCancelled
	}
	j.mu.Unlock()
	j.EventBroadcaster.Cancel()
}

// Snapshot returns a copy of the job's public fields.
func (j *CaptureJob) Snapshot() CaptureJobView {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return CaptureJobView{
		ID:          j.ID,
		Status:      j.Status,
		Count:       j.Count,
		Target:      j.Target,
		TimeLeft:    j.TimeLeft,
		Error:       j.Error,
		ErrorKind:   j.ErrorKind,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}

// Finished is closed once the capture run returns.
func (j *CaptureJob) Finished() <-chan struct{} {
	return j.finished
}

// JobEvent represents an event from a job.
type JobEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// EventBroadcaster provides listener management and event broadcasting for async jobs.
// Embed this in job structs to get AddListener, RemoveListener, and SendEvent methods.
type EventBroadcaster struct {
	cancel    context.CancelFunc
	listeners []chan JobEvent
	mu        sync.RWMutex
}

// AddListener adds an event listener.
func (b *EventBroadcaster) AddListener() chan JobEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan JobEvent, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan JobEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners.
func (b *EventBroadcaster) SendEvent(event JobEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// Cancel cancels the job via context and sends a cancelled event.
func (b *EventBroadcaster) Cancel() {
	b.mu.RLock()
	cancel := b.cancel
	b.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
	b.SendEvent(JobEvent{Type: "cancelled", Message: "capture cancelled"})
}

// SSEJob is the interface required by streamSSEEvents to stream job events via SSE.
type SSEJob interface {
	AddListener() chan JobEvent
	RemoveListener(ch chan JobEvent)
	GetStatus() JobStatus
}

// JobManager manages capture jobs. The server has a single camera, so at
// most one job captures at a time.
type JobManager struct {
	jobs map[string]*CaptureJob
	mu   sync.RWMutex
}

// NewJobManager creates a new job manager.
func NewJobManager() *JobManager {
	return &JobManager{
		jobs: make(map[string]*CaptureJob),
	}
}

// CreateJob registers a pending capture job. It returns nil while another
// job is still capturing.
func (m *JobManager) CreateJob(id string, target int, enroller *protocol.Enroller) *CaptureJob {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, job := range m.jobs {
		if s := job.GetStatus(); s == JobStatusPending || s == JobStatusRunning {
			return nil
		}
	}
	m.pruneLocked(time.Now().Add(-constants.CaptureJobRetentionMinutes * time.Minute))

	job := &CaptureJob{
		ID:        id,
		Status:    JobStatusPending,
		Target:    target,
		StartedAt: time.Now(),
		enroller:  enroller,
		finished:  make(chan struct{}),
	}
	m.jobs[id] = job
	return job
}

// pruneLocked drops finished jobs completed before cutoff.
func (m *JobManager) pruneLocked(cutoff time.Time) {
	for id, job := range m.jobs {
		snap := job.Snapshot()
		if snap.CompletedAt != nil && snap.CompletedAt.Before(cutoff) {
			delete(m.jobs, id)
		}
	}
}

// GetJob retrieves a job by ID.
func (m *JobManager) GetJob(id string) *CaptureJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// DeleteJob removes a job.
func (m *JobManager) DeleteJob(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
}

// ListJobs returns all jobs.
func (m *JobManager) ListJobs() []*CaptureJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	jobs := make([]*CaptureJob, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job)
	}
	return jobs
}

// CancelAll cancels every job that is still capturing.
func (m *JobManager) CancelAll() {
	for _, job := range m.ListJobs() {
		if s := job.GetStatus(); s == JobStatusPending || s == JobStatusRunning {
			job.Cancel()
		}
	}
}
