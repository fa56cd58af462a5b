package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/imprevi/clipgen/analysis"
	"github.com/imprevi/clipgen/config"
	"github.com/imprevi/clipgen/logging"
	"github.com/imprevi/clipgen/types"
)

// Progress bands per phase. Download (remote sources only) fills 0-40,
// analysis 40-70, rendering 70-100. Upload jobs start analysis at 40 so
// both source types report comparable percentages.
const (
	progressDownloadEnd = 40
	progressAnalyzeEnd  = 70

	// minSourceDuration rejects sources too short to carry a single
	// analysis window.
	minSourceDuration = 1.0

	// energyChunkWindows bounds how much audio is measured between
	// cancellation checks.
	energyChunkWindows = 30

	queueCapacity = 100
)

var clipNameRe = regexp.MustCompile(`^clip_[0-9a-f]{8}_[0-9]{2}\.mp4$`)

// MediaEngine is the ffmpeg surface the pipeline needs. Tests substitute a
// fake; production uses media.Executor.
type MediaEngine interface {
	Probe(ctx context.Context, path string) (*types.MediaInfo, error)
	ExtractAudio(ctx context.Context, input, output string) error
	ReadSamples(path string) ([]float64, error)
	SampleRate() int
	RenderClip(ctx context.Context, input string, window types.ClipWindow, output string) error
}

// Manager owns the job queue, the worker pool, and per-job cancellation.
// It is the single entry point the HTTP shell and the CLI drive.
type Manager struct {
	cfg        *config.Config
	registry   *Registry
	engine     MediaEngine
	downloader Downloader
	tracker    *FileTracker
	validate   *validator.Validate
	logger     zerolog.Logger

	queue chan string

	mu      sync.Mutex
	cancels map[string]context.CancelFunc

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager wires the pipeline together. downloader may be nil when yt-dlp
// is unavailable; remote submissions are then rejected up front.
func NewManager(cfg *config.Config, registry *Registry, engine MediaEngine, downloader Downloader) *Manager {
	baseCtx, stop := context.WithCancel(context.Background())
	return &Manager{
		cfg:        cfg,
		registry:   registry,
		engine:     engine,
		downloader: downloader,
		tracker:    NewFileTracker(),
		validate:   validator.New(),
		logger:     logging.WithComponent("pipeline"),
		queue:      make(chan string, queueCapacity),
		cancels:    make(map[string]context.CancelFunc),
		baseCtx:    baseCtx,
		stop:       stop,
	}
}

// Start launches the worker pool.
func (m *Manager) Start() {
	for i := 0; i < m.cfg.Workers; i++ {
		m.wg.Add(1)
		go m.worker(i)
	}
	m.logger.Info().Int("workers", m.cfg.Workers).Msg("pipeline started")
}

// Stop cancels all in-flight jobs and waits for the workers to drain.
func (m *Manager) Stop() {
	m.stop()
	m.wg.Wait()
}

// Submit validates parameters, registers the job, and enqueues it.
func (m *Manager) Submit(source types.JobSource, params types.Parameters) (*types.Job, error) {
	if err := m.validate.Struct(params); err != nil {
		return nil, types.NewJobError(types.ErrInvalidParameters, "invalid parameters: %v", err)
	}
	if source.Type == types.SourceRemote && m.downloader == nil {
		return nil, types.NewJobError(types.ErrUnreachable, "remote sources are disabled: yt-dlp is not installed")
	}

	job := m.registry.Create(source, params)
	if err := m.enqueue(job.ID); err != nil {
		m.registry.Fail(job.ID, types.AsJobError(err))
		return nil, err
	}
	return job, nil
}

// Get returns a snapshot of the job.
func (m *Manager) Get(id string) (*types.Job, bool) {
	return m.registry.Get(id)
}

// List returns job snapshots, newest first.
func (m *Manager) List(status types.JobStatus, limit int) []*types.Job {
	return m.registry.List(status, limit)
}

// Retry requeues a failed job with its original source and parameters.
func (m *Manager) Retry(id string) (*types.Job, error) {
	if err := m.registry.ResetForRetry(id); err != nil {
		return nil, err
	}
	if err := m.enqueue(id); err != nil {
		m.registry.Fail(id, types.AsJobError(err))
		return nil, err
	}
	job, _ := m.registry.Get(id)
	return job, nil
}

// Delete cancels the job if running and removes its record, clips, and
// scratch files. Uploaded sources are owned by their job and removed too.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	if cancel, ok := m.cancels[id]; ok {
		cancel()
	}
	m.mu.Unlock()

	job, ok := m.registry.Delete(id)
	if !ok {
		return types.NewJobError(types.ErrNotFound, "job %s not found", id)
	}

	for _, name := range job.Results.ClipFiles {
		if err := os.Remove(filepath.Join(m.cfg.ClipsDir, name)); err != nil && !os.IsNotExist(err) {
			m.logger.Warn().Err(err).Str("clip", name).Msg("failed to remove clip")
		}
	}
	if job.Source.Type == types.SourceUpload && job.Source.Path != "" {
		if err := os.Remove(job.Source.Path); err != nil && !os.IsNotExist(err) {
			m.logger.Warn().Err(err).Str("path", job.Source.Path).Msg("failed to remove upload")
		}
	}
	m.tracker.ReleaseJob(id)
	return nil
}

// ClipPath resolves a clip ID to a file on disk, rejecting names no
// completed job references.
func (m *Manager) ClipPath(clipID string) (string, error) {
	if !clipNameRe.MatchString(clipID) {
		return "", types.NewJobError(types.ErrInvalidParameters, "invalid clip id")
	}
	if !m.registry.ClipReferenced(clipID) {
		return "", types.NewJobError(types.ErrNotFound, "clip %s not found", clipID)
	}
	path := filepath.Join(m.cfg.ClipsDir, clipID)
	if _, err := os.Stat(path); err != nil {
		return "", types.NewJobError(types.ErrNotFound, "clip %s not found", clipID)
	}
	return path, nil
}

// Stats aggregates registry counts and storage usage.
func (m *Manager) Stats() types.Stats {
	byStatus, total, clips := m.registry.Counts()
	return types.Stats{
		TotalJobs:           total,
		JobsByStatus:        byStatus,
		TotalClipsGenerated: clips,
		DiskUsageBytes:      DiskUsage(m.cfg.UploadsDir, m.cfg.TempDir, m.cfg.ClipsDir),
	}
}

func (m *Manager) enqueue(id string) error {
	select {
	case m.queue <- id:
		return nil
	default:
		return types.NewJobError(types.ErrInternal, "job queue is full")
	}
}

func (m *Manager) worker(n int) {
	defer m.wg.Done()
	log := m.logger.With().Int("worker", n).Logger()
	for {
		select {
		case <-m.baseCtx.Done():
			return
		case id := <-m.queue:
			log.Debug().Str("job_id", id).Msg("picked up job")
			m.process(id)
		}
	}
}

// process runs one job end to end, guaranteeing scratch cleanup and a
// terminal status on every exit path.
func (m *Manager) process(id string) {
	job, ok := m.registry.Get(id)
	if !ok {
		// Deleted while queued.
		return
	}

	ctx, cancel := context.WithCancel(m.baseCtx)
	m.mu.Lock()
	m.cancels[id] = cancel
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.cancels, id)
		m.mu.Unlock()
		cancel()
		m.tracker.ReleaseJob(id)
	}()

	workDir := filepath.Join(m.cfg.TempDir, "job_"+shortID(id))
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		m.registry.Fail(id, types.WrapErrorf(types.ErrInternal, err, "creating scratch directory"))
		return
	}
	m.tracker.Register(id, workDir)

	err := m.run(ctx, job, workDir)
	if err == nil {
		return
	}

	if errors.Is(err, context.Canceled) && m.baseCtx.Err() == nil {
		// Canceled by Delete; the record is already gone and scratch
		// cleanup happens in the deferred release.
		m.logger.Info().Str("job_id", id).Msg("job canceled")
		return
	}
	m.registry.Fail(id, types.AsJobError(err))
}

// run executes the download, analyze, render sequence for one job.
func (m *Manager) run(ctx context.Context, job *types.Job, workDir string) error {
	id := job.ID

	sourcePath := job.Source.Path
	if job.Source.Type == types.SourceRemote {
		m.registry.SetPhase(id, types.JobStatusDownloading, 0, "downloading")

		dctx, dcancel := context.WithTimeout(ctx, m.cfg.DownloadTimeout)
		path, err := m.downloader.Download(dctx, job.Source.URL, workDir, func(pct float64) {
			m.registry.SetProgress(id, int(pct*progressDownloadEnd/100), "downloading")
		})
		dcancel()
		if err != nil {
			return err
		}
		sourcePath = path
	}

	m.registry.SetPhase(id, types.JobStatusAnalyzing, progressDownloadEnd, "probing source")
	info, err := m.engine.Probe(ctx, sourcePath)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return types.WrapErrorf(types.ErrUnprocessableMedia, err, "probing source")
	}
	if info.Duration < minSourceDuration {
		return types.NewJobError(types.ErrUnprocessableMedia, "source too short to analyze: %.2fs", info.Duration)
	}

	summary := &types.AnalysisSummary{
		Duration:   info.Duration,
		Resolution: info.Resolution(),
		Title:      info.Title,
		HasAudio:   info.HasAudio,
	}

	if !info.HasAudio {
		// Nothing to score; complete with zero clips rather than failing.
		m.logger.Info().Str("job_id", id).Msg("source has no audio track, completing with no clips")
		m.registry.Complete(id, types.Results{
			ClipFiles:      []string{},
			ClipTimestamps: []float64{},
			Summary:        summary,
		})
		return nil
	}

	m.registry.SetProgress(id, 45, "extracting audio")
	audioPath := filepath.Join(workDir, "audio.pcm")
	if err := m.engine.ExtractAudio(ctx, sourcePath, audioPath); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return types.WrapErrorf(types.ErrUnprocessableMedia, err, "extracting audio")
	}

	m.registry.SetProgress(id, 55, "decoding audio")
	samples, err := m.engine.ReadSamples(audioPath)
	if err != nil {
		return types.WrapErrorf(types.ErrInternal, err, "reading audio samples")
	}
	if len(samples) == 0 {
		return types.NewJobError(types.ErrUnprocessableMedia, "audio track decoded to zero samples")
	}

	energies, err := m.windowEnergies(ctx, id, samples)
	if err != nil {
		return err
	}

	m.registry.SetProgress(id, 68, "locating peaks")
	peaks := analysis.DetectPeaks(energies, job.Parameters)
	summary.PeaksFound = len(peaks)
	windows := analysis.PlanClips(peaks, info.Duration, job.Parameters.TargetClipDuration)
	m.logger.Info().Str("job_id", id).Int("peaks", len(peaks)).Int("windows", len(windows)).Msg("analysis complete")

	m.registry.SetPhase(id, types.JobStatusRendering, progressAnalyzeEnd, "rendering")
	clipFiles := []string{}
	timestamps := []float64{}
	failures := 0
	timeouts := 0
	for i, w := range windows {
		if err := ctx.Err(); err != nil {
			return err
		}
		phase := fmt.Sprintf("rendering clip %d/%d", i+1, len(windows))
		m.registry.SetProgress(id, progressAnalyzeEnd+(100-progressAnalyzeEnd)*i/len(windows), phase)

		name := clipFileName(id, i+1)
		scratch := filepath.Join(workDir, name)

		rctx, rcancel := context.WithTimeout(ctx, m.cfg.RenderTimeout)
		err := m.engine.RenderClip(rctx, sourcePath, w, scratch)
		timedOut := errors.Is(rctx.Err(), context.DeadlineExceeded)
		rcancel()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// One bad window must not sink the job; record and move on.
			failures++
			if timedOut {
				timeouts++
			}
			m.logger.Warn().Err(err).Str("job_id", id).Str("clip", name).Msg("clip render failed")
			continue
		}

		// Clips land in the public directory only once fully rendered, so
		// cancellation never leaves a partial file there.
		published := filepath.Join(m.cfg.ClipsDir, name)
		if err := moveFile(scratch, published); err != nil {
			failures++
			m.logger.Warn().Err(err).Str("job_id", id).Str("clip", name).Msg("failed to publish clip")
			continue
		}
		// The job record names the clip the moment it lands, so delete can
		// reclaim it mid-render. A dropped update means the job was deleted
		// after the move and the file is ours to remove.
		if !m.registry.AppendClip(id, name, w.Peak) {
			os.Remove(published)
			return context.Canceled
		}
		clipFiles = append(clipFiles, name)
		timestamps = append(timestamps, w.Peak)
	}

	summary.RenderFailures = failures
	if len(windows) > 0 && len(clipFiles) == 0 {
		if timeouts == len(windows) {
			return types.NewJobError(types.ErrTimeout, "rendering timed out for all %d planned clips", len(windows))
		}
		return types.NewJobError(types.ErrTotalRenderFailure, "all %d planned clips failed to render", len(windows))
	}

	m.registry.Complete(id, types.Results{
		ClipFiles:      clipFiles,
		ClipTimestamps: timestamps,
		Summary:        summary,
	})
	return nil
}

// windowEnergies measures RMS energy in fixed windows, checking for
// cancellation between chunks so delete aborts long sources promptly.
func (m *Manager) windowEnergies(ctx context.Context, id string, samples []float64) ([]float64, error) {
	chunkSamples := energyChunkWindows * int(analysis.WindowSeconds*float64(m.engine.SampleRate()))
	energies := make([]float64, 0, len(samples)/m.engine.SampleRate()+1)

	for offset := 0; offset < len(samples); offset += chunkSamples {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := offset + chunkSamples
		if end > len(samples) {
			end = len(samples)
		}
		energies = append(energies, analysis.WindowEnergies(samples[offset:end], m.engine.SampleRate())...)

		// Measuring spans 60-68 within the analyzing band.
		pct := 60 + 8*end/len(samples)
		m.registry.SetProgress(id, pct, "measuring energy")
	}
	return energies, nil
}

// moveFile renames, falling back to copy+remove across filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

// clipFileName builds the public clip name: clip_<job prefix>_<ordinal>.mp4.
func clipFileName(jobID string, n int) string {
	return fmt.Sprintf("clip_%s_%02d.mp4", shortID(jobID), n)
}

// shortID is the first 8 hex characters of the job UUID, used in scratch
// directory and clip file names.
func shortID(jobID string) string {
	id := strings.ReplaceAll(jobID, "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	return id
}
