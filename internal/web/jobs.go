package web

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of an async scan job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

const eventChannelBuffer = 100

// JobEvent is one event pushed to SSE listeners.
type JobEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// EventBroadcaster provides listener management and event fan-out for async
// jobs. Embed it in job structs.
type EventBroadcaster struct {
	cancel    context.CancelFunc
	listeners []chan JobEvent
	mu        sync.RWMutex
}

// AddListener registers a new event listener.
func (b *EventBroadcaster) AddListener() chan JobEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan JobEvent, eventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener unregisters and closes a listener.
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

// SendEvent delivers an event to every listener. A listener with a full
// buffer misses the event rather than blocking the job.
func (b *EventBroadcaster) SendEvent(event JobEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
		}
	}
}

// ScanJob is one asynchronous scan run for the web UI.
type ScanJob struct {
	EventBroadcaster

	ID          string     `json:"id"`
	Source      string     `json:"source"`
	Tolerance   float64    `json:"tolerance"`
	Status      JobStatus  `json:"status"`
	Scanned     int        `json:"scanned"`
	Total       int        `json:"total"`
	FacesFound  int        `json:"faces_found"`
	Clusters    int        `json:"clusters"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// GetStatus returns the current job status.
func (j *ScanJob) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// Cancel stops the job's context and marks it cancelled.
func (j *ScanJob) Cancel() {
	j.mu.Lock()
	if j.cancel != nil {
		j.cancel()
	}
	j.Status = JobStatusCancelled
	j.mu.Unlock()
	j.SendEvent(JobEvent{Type: "cancelled", Message: "job cancelled by user"})
}

func (j *ScanJob) setStatus(status JobStatus) {
	j.mu.Lock()
	j.Status = status
	j.mu.Unlock()
}

func (j *ScanJob) setProgress(scanned, total int) {
	j.mu.Lock()
	j.Scanned = scanned
	j.Total = total
	j.mu.Unlock()
}

func (j *ScanJob) finish(status JobStatus, facesFound, clusters int, errMessage string) {
	now := time.Now()
	j.mu.Lock()
	if j.Status != JobStatusCancelled {
		j.Status = status
	}
	j.FacesFound = facesFound
	j.Clusters = clusters
	j.Error = errMessage
	j.CompletedAt = &now
	j.mu.Unlock()
}

// snapshot copies the job fields under the lock for safe JSON encoding.
func (j *ScanJob) snapshot() ScanJob {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return ScanJob{
		ID:          j.ID,
		Source:      j.Source,
		Tolerance:   j.Tolerance,
		Status:      j.Status,
		Scanned:     j.Scanned,
		Total:       j.Total,
		FacesFound:  j.FacesFound,
		Clusters:    j.Clusters,
		Error:       j.Error,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}

// JobManager tracks scan jobs by ID.
type JobManager struct {
	jobs map[string]*ScanJob
	mu   sync.RWMutex
}

func NewJobManager() *JobManager {
	return &JobManager{jobs: make(map[string]*ScanJob)}
}

// CreateJob registers a new pending job with a fresh ID.
func (m *JobManager) CreateJob(source string, tolerance float64) *ScanJob {
	job := &ScanJob{
		ID:        uuid.NewString(),
		Source:    source,
		Tolerance: tolerance,
		Status:    JobStatusPending,
		StartedAt: time.Now(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	return job
}

// GetJob returns the job or nil.
func (m *JobManager) GetJob(id string) *ScanJob {
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
