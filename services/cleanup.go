package services

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/imprevi/clipgen/config"
	"github.com/imprevi/clipgen/logging"
)

// FileTracker records the scratch paths each job owns so they can be
// removed on every pipeline exit, including cancellation and crash-restart
// sweeps.
type FileTracker struct {
	mu     sync.Mutex
	paths  map[string][]string
	logger zerolog.Logger
}

// NewFileTracker creates an empty tracker.
func NewFileTracker() *FileTracker {
	return &FileTracker{
		paths:  make(map[string][]string),
		logger: logging.WithComponent("cleanup"),
	}
}

// Register associates a scratch path with a job.
func (t *FileTracker) Register(jobID, path string) {
	t.mu.Lock()
	t.paths[jobID] = append(t.paths[jobID], path)
	t.mu.Unlock()
}

// ReleaseJob removes every scratch path the job registered. Safe to call
// more than once.
func (t *FileTracker) ReleaseJob(jobID string) {
	t.mu.Lock()
	paths := t.paths[jobID]
	delete(t.paths, jobID)
	t.mu.Unlock()

	for _, path := range paths {
		if err := os.RemoveAll(path); err != nil {
			t.logger.Warn().Err(err).Str("job_id", jobID).Str("path", path).Msg("failed to remove scratch path")
		}
	}
}

// Sweeper periodically enforces retention: stale temp artifacts from
// crashed runs and clips past their retention window.
type Sweeper struct {
	cfg      *config.Config
	registry *Registry
	logger   zerolog.Logger
}

// NewSweeper creates a sweeper over the configured directories.
func NewSweeper(cfg *config.Config, registry *Registry) *Sweeper {
	return &Sweeper{
		cfg:      cfg,
		registry: registry,
		logger:   logging.WithComponent("sweeper"),
	}
}

// Start runs the sweep loop until stop is closed. One sweep runs
// immediately so a restart clears leftovers without waiting a full
// interval.
func (s *Sweeper) Start(stop <-chan struct{}) {
	s.Sweep()

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-stop:
			return
		}
	}
}

// Sweep runs one retention pass.
func (s *Sweeper) Sweep() {
	removed := 0
	removed += s.sweepDir(s.cfg.TempDir, s.cfg.TempMaxAge, nil)
	removed += s.sweepDir(s.cfg.ClipsDir, s.cfg.ClipRetention, func(name string) bool {
		// A clip younger than the temp horizon may belong to a render still
		// in flight; past it, anything no job references is an orphan.
		return s.registry.ClipReferenced(name)
	})
	if removed > 0 {
		s.logger.Info().Int("removed", removed).Msg("retention sweep complete")
	}
}

// sweepDir removes entries older than maxAge. When keep is non-nil,
// entries it rejects are also removed once they outlive TempMaxAge.
func (s *Sweeper) sweepDir(dir string, maxAge time.Duration, keep func(name string) bool) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Str("dir", dir).Msg("sweep failed to list directory")
		}
		return 0
	}

	now := time.Now()
	removed := 0
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		age := now.Sub(info.ModTime())

		expired := age > maxAge
		orphaned := keep != nil && age > s.cfg.TempMaxAge && !keep(entry.Name())
		if !expired && !orphaned {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			s.logger.Warn().Err(err).Str("path", path).Msg("sweep failed to remove entry")
			continue
		}
		removed++
		s.logger.Debug().Str("path", path).Dur("age", age).Msg("swept stale entry")
	}
	return removed
}

// DiskUsage sums the size of regular files under each directory.
func DiskUsage(dirs ...string) int64 {
	var total int64
	for _, dir := range dirs {
		filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			if info, err := d.Info(); err == nil {
				total += info.Size()
			}
			return nil
		})
	}
	return total
}
