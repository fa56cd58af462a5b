package handlers

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imprevi/clipgen/types"
)

func TestDownloadClip(t *testing.T) {
	helper := NewTestHelper(t)

	// Publish a clip the way the pipeline would: file on disk plus a
	// completed job referencing it.
	clipName := "clip_abcd1234_01.mp4"
	require.NoError(t, os.WriteFile(filepath.Join(helper.Config.ClipsDir, clipName), []byte("clip bytes"), 0o644))

	job := helper.Registry.Create(types.JobSource{Type: types.SourceUpload, Path: "a.mp4"}, types.DefaultParameters())
	helper.Registry.Complete(job.ID, types.Results{ClipFiles: []string{clipName}, ClipTimestamps: []float64{12}})

	resp, err := http.Get(helper.Server.URL + "/api/clips/" + clipName)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "clip bytes", string(body))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), clipName)
}

func TestDownloadClipValidation(t *testing.T) {
	helper := NewTestHelper(t)

	tests := []struct {
		name       string
		clipID     string
		wantStatus int
	}{
		{name: "traversal attempt", clipID: "..%2f..%2fetc%2fpasswd", wantStatus: http.StatusBadRequest},
		{name: "malformed name", clipID: "evil.mp4", wantStatus: http.StatusBadRequest},
		{name: "unknown clip", clipID: "clip_deadbeef_01.mp4", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := helper.GetJSON(t, "/api/clips/"+tt.clipID, nil)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestDownloadClipMissingFile(t *testing.T) {
	helper := NewTestHelper(t)

	// Referenced by a job but missing from disk, e.g. after a manual sweep.
	clipName := "clip_abcd1234_01.mp4"
	job := helper.Registry.Create(types.JobSource{Type: types.SourceUpload, Path: "a.mp4"}, types.DefaultParameters())
	helper.Registry.Complete(job.ID, types.Results{ClipFiles: []string{clipName}})

	resp := helper.GetJSON(t, "/api/clips/"+clipName, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
