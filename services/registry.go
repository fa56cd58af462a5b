package services

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/imprevi/clipgen/logging"
	"github.com/imprevi/clipgen/types"
	"github.com/imprevi/clipgen/websocket"
)

// Registry is the shared job store. All mutation goes through update so
// monotonic progress, timestamps, persistence, and progress broadcasts are
// enforced in one place. Reads return deep-copied snapshots.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*types.Job

	// file enables JSON snapshot persistence when non-empty.
	file   string
	hub    websocket.Hub
	logger zerolog.Logger
}

// NewRegistry creates a registry, restoring persisted jobs when file is
// non-empty. Jobs that were mid-flight when the process last stopped are
// marked failed; a retry restarts them from scratch.
func NewRegistry(file string, hub websocket.Hub) *Registry {
	r := &Registry{
		jobs:   make(map[string]*types.Job),
		file:   file,
		hub:    hub,
		logger: logging.WithComponent("registry"),
	}
	r.load()
	return r
}

// Create adds a new queued job and returns its snapshot.
func (r *Registry) Create(source types.JobSource, params types.Parameters) *types.Job {
	now := time.Now()
	job := &types.Job{
		ID:         uuid.New().String(),
		Source:     source,
		Status:     types.JobStatusQueued,
		Progress:   0,
		Phase:      "queued",
		Parameters: params,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	r.mu.Lock()
	r.jobs[job.ID] = job
	r.persistLocked()
	r.mu.Unlock()

	r.logger.Info().Str("job_id", job.ID).Str("source", string(source.Type)).Msg("job created")
	return job.Clone()
}

// Get returns a snapshot of the job.
func (r *Registry) Get(id string) (*types.Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, false
	}
	return job.Clone(), true
}

// List returns job snapshots, newest first, optionally filtered by status.
// limit <= 0 means no limit.
func (r *Registry) List(status types.JobStatus, limit int) []*types.Job {
	r.mu.RLock()
	jobs := make([]*types.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		if status != "" && job.Status != status {
			continue
		}
		jobs = append(jobs, job.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs
}

// Delete removes the job record, returning its final snapshot so the
// caller can remove associated files.
func (r *Registry) Delete(id string) (*types.Job, bool) {
	r.mu.Lock()
	job, ok := r.jobs[id]
	if ok {
		delete(r.jobs, id)
		r.persistLocked()
	}
	r.mu.Unlock()

	if !ok {
		return nil, false
	}
	r.logger.Info().Str("job_id", id).Msg("job deleted")
	return job.Clone(), true
}

// SetPhase moves the job to a new status with a progress floor and phase
// label.
func (r *Registry) SetPhase(id string, status types.JobStatus, progress int, phase string) bool {
	return r.update(id, "status", func(job *types.Job) {
		job.Status = status
		job.Progress = progress
		job.Phase = phase
	})
}

// SetProgress advances progress within the current status.
func (r *Registry) SetProgress(id string, progress int, phase string) bool {
	return r.update(id, "progress", func(job *types.Job) {
		job.Progress = progress
		job.Phase = phase
	})
}

// AppendClip records a rendered clip on a live job as soon as it is
// published, so deleting the job mid-render reclaims files already on disk.
// Returns false when the job no longer exists.
func (r *Registry) AppendClip(id, name string, timestamp float64) bool {
	return r.update(id, "progress", func(job *types.Job) {
		job.Results.ClipFiles = append(job.Results.ClipFiles, name)
		job.Results.ClipTimestamps = append(job.Results.ClipTimestamps, timestamp)
	})
}

// Complete marks the job successful with its results.
func (r *Registry) Complete(id string, results types.Results) bool {
	ok := r.update(id, "complete", func(job *types.Job) {
		now := time.Now()
		job.Status = types.JobStatusCompleted
		job.Progress = 100
		job.Phase = "completed"
		job.Results = results
		job.Error = nil
		job.CompletedAt = &now
	})
	if ok {
		r.logger.Info().Str("job_id", id).Int("clips", len(results.ClipFiles)).Msg("job completed")
	}
	return ok
}

// Fail records a terminal failure.
func (r *Registry) Fail(id string, jobErr *types.JobError) bool {
	ok := r.update(id, "error", func(job *types.Job) {
		now := time.Now()
		job.Status = types.JobStatusFailed
		job.Phase = "failed"
		job.Error = jobErr
		job.CompletedAt = &now
	})
	if ok {
		r.logger.Warn().Str("job_id", id).Str("kind", string(jobErr.Kind)).Str("message", jobErr.Message).Msg("job failed")
	}
	return ok
}

// ResetForRetry transitions a failed job back to queued, clearing error,
// progress, and stale results while preserving source and parameters.
func (r *Registry) ResetForRetry(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return types.NewJobError(types.ErrNotFound, "job %s not found", id)
	}
	if job.Status != types.JobStatusFailed {
		return types.NewJobError(types.ErrInvalidState, "only failed jobs can be retried, job is %s", job.Status)
	}

	job.Status = types.JobStatusQueued
	job.Progress = 0
	job.Phase = "queued"
	job.Error = nil
	job.Results = types.Results{}
	job.CompletedAt = nil
	job.UpdatedAt = time.Now()
	r.persistLocked()

	r.broadcast(job, "status")
	r.logger.Info().Str("job_id", id).Msg("job queued for retry")
	return nil
}

// ClipReferenced reports whether any job's results name the clip file.
func (r *Registry) ClipReferenced(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, job := range r.jobs {
		for _, clip := range job.Results.ClipFiles {
			if clip == name {
				return true
			}
		}
	}
	return false
}

// Counts aggregates per-status job counts and the total clips produced.
func (r *Registry) Counts() (map[types.JobStatus]int, int, int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byStatus := make(map[types.JobStatus]int)
	totalClips := 0
	for _, job := range r.jobs {
		byStatus[job.Status]++
		totalClips += len(job.Results.ClipFiles)
	}
	return byStatus, len(r.jobs), totalClips
}

// update is the single mutation funnel. Progress never decreases while the
// job is live, and a terminal status is never overwritten (retry goes
// through ResetForRetry instead).
func (r *Registry) update(id, msgType string, fn func(*types.Job)) bool {
	r.mu.Lock()
	job, ok := r.jobs[id]
	if !ok {
		// The job was deleted while its pipeline was still running; drop
		// the late write.
		r.mu.Unlock()
		return false
	}
	if job.Status.Terminal() {
		r.mu.Unlock()
		return false
	}

	prevProgress := job.Progress
	fn(job)
	if job.Progress < prevProgress {
		job.Progress = prevProgress
	}
	if job.Progress > 100 {
		job.Progress = 100
	}
	job.UpdatedAt = time.Now()
	r.persistLocked()
	snapshot := job.Clone()
	r.mu.Unlock()

	r.broadcast(snapshot, msgType)
	return true
}

func (r *Registry) broadcast(job *types.Job, msgType string) {
	if r.hub == nil {
		return
	}
	message := job.Phase
	if job.Error != nil {
		message = job.Error.Message
	}
	r.hub.BroadcastProgress(job.ID, msgType, string(job.Status), job.Phase, message, job.Progress)
}

// persistLocked writes the snapshot file. Callers hold the write lock.
func (r *Registry) persistLocked() {
	if r.file == "" {
		return
	}

	data, err := json.MarshalIndent(r.jobs, "", "  ")
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to serialize jobs")
		return
	}

	tmp := r.file + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		r.logger.Error().Err(err).Msg("failed to write jobs file")
		return
	}
	if err := os.Rename(tmp, r.file); err != nil {
		r.logger.Error().Err(err).Msg("failed to replace jobs file")
	}
}

func (r *Registry) load() {
	if r.file == "" {
		return
	}

	data, err := os.ReadFile(r.file)
	if err != nil {
		if !os.IsNotExist(err) {
			r.logger.Error().Err(err).Msg("failed to read jobs file")
		}
		return
	}

	var jobs map[string]*types.Job
	if err := json.Unmarshal(data, &jobs); err != nil {
		r.logger.Error().Err(err).Msg("failed to parse jobs file, starting fresh")
		return
	}

	for id, job := range jobs {
		if !job.Status.Terminal() {
			now := time.Now()
			job.Status = types.JobStatusFailed
			job.Phase = "failed"
			job.Error = types.NewJobError(types.ErrInternal, "processing interrupted by restart")
			job.CompletedAt = &now
		}
		r.jobs[id] = job
	}
	r.logger.Info().Int("count", len(r.jobs)).Msg(fmt.Sprintf("loaded jobs from %s", r.file))
}
