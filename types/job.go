package types

import "time"

// SourceType distinguishes how a job's input video arrives.
type SourceType string

const (
	SourceUpload SourceType = "upload"
	SourceRemote SourceType = "remote"
)

// JobSource is the tagged source variant, resolved once at job creation.
// Path is set for uploaded files, URL for remote references.
type JobSource struct {
	Type SourceType `json:"type"`
	Path string     `json:"path,omitempty"`
	URL  string     `json:"url,omitempty"`
}

// JobStatus represents the current lifecycle state of a processing job.
type JobStatus string

const (
	JobStatusQueued      JobStatus = "queued"
	JobStatusDownloading JobStatus = "downloading"
	JobStatusAnalyzing   JobStatus = "analyzing"
	JobStatusRendering   JobStatus = "rendering"
	JobStatusCompleted   JobStatus = "completed"
	JobStatusFailed      JobStatus = "failed"
)

// Terminal reports whether the status is a final state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// ValidStatuses lists every status a list filter may name.
var ValidStatuses = []JobStatus{
	JobStatusQueued, JobStatusDownloading, JobStatusAnalyzing,
	JobStatusRendering, JobStatusCompleted, JobStatusFailed,
}

// Parameters controls peak detection and clip extraction for one job.
//
// Sensitivity is in (0, 1] and is direct: a HIGHER value lowers the
// detection threshold and yields more (or equally many) peaks. 0.1 is a
// conservative default; 1.0 accepts anything above the running baseline.
type Parameters struct {
	Sensitivity        float64 `json:"sensitivity" validate:"gt=0,lte=1"`
	TargetClipDuration float64 `json:"targetClipDuration" validate:"gt=0"`
	MaxClips           int     `json:"maxClips" validate:"gte=1"`
}

// DefaultParameters returns the parameter set used when the caller omits one.
func DefaultParameters() Parameters {
	return Parameters{
		Sensitivity:        0.1,
		TargetClipDuration: 30,
		MaxClips:           5,
	}
}

// AnalysisSummary describes what the pipeline learned about the source.
type AnalysisSummary struct {
	Duration       float64 `json:"duration"`
	Resolution     string  `json:"resolution,omitempty"`
	Title          string  `json:"title,omitempty"`
	HasAudio       bool    `json:"hasAudio"`
	PeaksFound     int     `json:"peaksFound"`
	RenderFailures int     `json:"renderFailures,omitempty"`
}

// Results holds the output of a completed job. ClipFiles and ClipTimestamps
// are always the same length; timestamps are the peak positions in seconds,
// ordered to match the clips.
type Results struct {
	ClipFiles      []string         `json:"clipFiles"`
	ClipTimestamps []float64        `json:"clipTimestamps"`
	Summary        *AnalysisSummary `json:"analysisSummary,omitempty"`
}

// Job is one end-to-end request to turn a source video into highlight clips.
type Job struct {
	ID          string     `json:"id"`
	Source      JobSource  `json:"source"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`
	Phase       string     `json:"phase"`
	Parameters  Parameters `json:"parameters"`
	Results     Results    `json:"results"`
	Error       *JobError  `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Clone returns a deep copy so callers can hold a snapshot without
// observing later mutations by the pipeline.
func (j *Job) Clone() *Job {
	c := *j
	if j.Error != nil {
		e := *j.Error
		c.Error = &e
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	if j.Results.ClipFiles != nil {
		c.Results.ClipFiles = append([]string(nil), j.Results.ClipFiles...)
	}
	if j.Results.ClipTimestamps != nil {
		c.Results.ClipTimestamps = append([]float64(nil), j.Results.ClipTimestamps...)
	}
	if j.Results.Summary != nil {
		s := *j.Results.Summary
		c.Results.Summary = &s
	}
	return &c
}
