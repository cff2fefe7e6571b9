package utils

import (
	"sync"
	"time"

	"reelclub-backend/dtos"

	"github.com/google/uuid"
)

// JobStore manages async stats jobs in memory
type JobStore struct {
	jobs map[uuid.UUID]*dtos.StatsJob
	mu   sync.RWMutex
}

// Global job store instance
var Store = &JobStore{
	jobs: make(map[uuid.UUID]*dtos.StatsJob),
}

// CleanupOldJobs removes completed/failed jobs older than 1 hour.
func (js *JobStore) CleanupOldJobs() {
	js.mu.Lock()
	defer js.mu.Unlock()

	cutoff := time.Now().Add(-1 * time.Hour)
	for id, job := range js.jobs {
		if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(js.jobs, id)
		} else if job.StartedAt.Before(cutoff) && (job.Status == dtos.JobStatusCompleted || job.Status == dtos.JobStatusFailed) {
			delete(js.jobs, id)
		}
	}
}

// CreateJob creates a new stats job
func (js *JobStore) CreateJob(totalMembers int) *dtos.StatsJob {
	// Clean up old jobs on each new creation
	js.CleanupOldJobs()

	js.mu.Lock()
	defer js.mu.Unlock()

	job := &dtos.StatsJob{
		ID:        uuid.New(),
		Status:    dtos.JobStatusPending,
		Total:     totalMembers,
		StartedAt: time.Now(),
	}

	js.jobs[job.ID] = job
	return job
}

// GetJob retrieves a job by ID
func (js *JobStore) GetJob(id uuid.UUID) (*dtos.StatsJob, bool) {
	js.mu.RLock()
	defer js.mu.RUnlock()

	job, exists := js.jobs[id]
	return job, exists
}

// UpdateJob updates job status and results
func (js *JobStore) UpdateJob(id uuid.UUID, updates func(*dtos.StatsJob)) {
	js.mu.Lock()
	defer js.mu.Unlock()

	if job, exists := js.jobs[id]; exists {
		updates(job)
	}
}

// CompleteJob marks a job as completed
func (js *JobStore) CompleteJob(id uuid.UUID, status string) {
	js.mu.Lock()
	defer js.mu.Unlock()

	if job, exists := js.jobs[id]; exists {
		job.Status = status
		now := time.Now()
		job.CompletedAt = &now
	}
}
