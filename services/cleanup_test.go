package services

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imprevi/clipgen/config"
	"github.com/imprevi/clipgen/types"
)

func TestFileTrackerReleasesPaths(t *testing.T) {
	tracker := NewFileTracker()

	dir := filepath.Join(t.TempDir(), "job_abc")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "audio.pcm"), []byte("x"), 0o644))

	tracker.Register("job-1", dir)
	tracker.ReleaseJob("job-1")
	assert.NoDirExists(t, dir)

	// Releasing again is a no-op.
	tracker.ReleaseJob("job-1")
}

func TestSweeperRemovesStaleTempFiles(t *testing.T) {
	base := t.TempDir()
	cfg := &config.Config{
		TempDir:    filepath.Join(base, "temp"),
		ClipsDir:   filepath.Join(base, "clips"),
		TempMaxAge: time.Hour,
	}
	require.NoError(t, os.MkdirAll(cfg.TempDir, 0o755))
	require.NoError(t, os.MkdirAll(cfg.ClipsDir, 0o755))

	stale := filepath.Join(cfg.TempDir, "job_dead1234")
	require.NoError(t, os.MkdirAll(stale, 0o755))
	old := time.Now().Add(-3 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	fresh := filepath.Join(cfg.TempDir, "job_beef5678")
	require.NoError(t, os.MkdirAll(fresh, 0o755))

	registry := NewRegistry("", nil)
	NewSweeper(cfg, registry).Sweep()

	assert.NoDirExists(t, stale)
	assert.DirExists(t, fresh)
}

func TestSweeperClipRetention(t *testing.T) {
	base := t.TempDir()
	cfg := &config.Config{
		TempDir:       filepath.Join(base, "temp"),
		ClipsDir:      filepath.Join(base, "clips"),
		TempMaxAge:    time.Hour,
		ClipRetention: 24 * time.Hour,
	}
	require.NoError(t, os.MkdirAll(cfg.TempDir, 0o755))
	require.NoError(t, os.MkdirAll(cfg.ClipsDir, 0o755))

	registry := NewRegistry("", nil)
	job := registry.Create(types.JobSource{Type: types.SourceUpload, Path: "a.mp4"}, types.DefaultParameters())
	registry.Complete(job.ID, types.Results{ClipFiles: []string{"clip_abcd1234_01.mp4"}})

	writeClip := func(name string, age time.Duration) string {
		path := filepath.Join(cfg.ClipsDir, name)
		require.NoError(t, os.WriteFile(path, []byte("clip"), 0o644))
		if age > 0 {
			old := time.Now().Add(-age)
			require.NoError(t, os.Chtimes(path, old, old))
		}
		return path
	}

	expired := writeClip("clip_abcd1234_01.mp4", 48*time.Hour)
	orphan := writeClip("clip_ffff0000_01.mp4", 3*time.Hour)
	referenced := writeClip("clip_abcd1234_02.mp4", 0)

	retained := registry.Create(types.JobSource{Type: types.SourceUpload, Path: "b.mp4"}, types.DefaultParameters())
	registry.Complete(retained.ID, types.Results{ClipFiles: []string{"clip_abcd1234_02.mp4"}})

	NewSweeper(cfg, registry).Sweep()

	// Past retention: removed even while referenced.
	assert.NoFileExists(t, expired)
	// Unreferenced and older than the temp horizon: removed.
	assert.NoFileExists(t, orphan)
	// Young and referenced: kept.
	assert.FileExists(t, referenced)
}

func TestDiskUsage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), make([]byte, 100), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b"), make([]byte, 50), 0o644))

	assert.Equal(t, int64(150), DiskUsage(dir))
	assert.Equal(t, int64(0), DiskUsage(filepath.Join(dir, "missing")))
}
