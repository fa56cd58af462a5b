package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/imprevi/clipgen/config"
	"github.com/imprevi/clipgen/services"
	"github.com/imprevi/clipgen/types"
	"github.com/imprevi/clipgen/websocket"
)

// stubEngine is a minimal MediaEngine for handler tests: every source is a
// five minute silent video, so jobs complete quickly with zero clips.
type stubEngine struct{}

func (stubEngine) Probe(ctx context.Context, path string) (*types.MediaInfo, error) {
	return &types.MediaInfo{Duration: 300, Width: 1280, Height: 720, HasAudio: false}, nil
}

func (stubEngine) ExtractAudio(ctx context.Context, input, output string) error {
	return os.WriteFile(output, []byte{}, 0o644)
}

func (stubEngine) ReadSamples(path string) ([]float64, error) { return nil, nil }

func (stubEngine) SampleRate() int { return 4 }

func (stubEngine) RenderClip(ctx context.Context, input string, w types.ClipWindow, output string) error {
	return os.WriteFile(output, []byte("clip"), 0o644)
}

// TestHelper runs the full HTTP surface against a stubbed media engine.
type TestHelper struct {
	Server   *httptest.Server
	Manager  *services.Manager
	Registry *services.Registry
	Config   *config.Config
}

// NewTestHelper builds a server with all routes registered.
func NewTestHelper(t *testing.T) *TestHelper {
	t.Helper()
	gin.SetMode(gin.TestMode)

	base := t.TempDir()
	cfg := &config.Config{
		UploadsDir:      filepath.Join(base, "uploads"),
		TempDir:         filepath.Join(base, "temp"),
		ClipsDir:        filepath.Join(base, "clips"),
		Workers:         1,
		DownloadTimeout: 5 * time.Second,
		RenderTimeout:   5 * time.Second,
		MaxUploadBytes:  1 << 20,
	}
	require.NoError(t, cfg.EnsureDirs())

	hub := websocket.NewHub()
	go hub.Run()

	registry := services.NewRegistry("", hub)
	manager := services.NewManager(cfg, registry, stubEngine{}, nil)
	manager.Start()
	t.Cleanup(manager.Stop)

	jobHandler := NewJobHandler(manager, hub, cfg)
	clipHandler := NewClipHandler(manager)
	healthHandler := NewHealthHandler(manager)

	r := gin.New()
	r.GET("/health", healthHandler.HealthCheck)
	api := r.Group("/api")
	{
		api.GET("/status", healthHandler.APIStatus)
		api.GET("/stats", healthHandler.Stats)
		api.POST("/jobs/upload", jobHandler.UploadJob)
		api.POST("/jobs/remote", jobHandler.RemoteJob)
		api.GET("/jobs", jobHandler.ListJobs)
		api.GET("/jobs/:jobId", jobHandler.GetJob)
		api.POST("/jobs/:jobId/retry", jobHandler.RetryJob)
		api.DELETE("/jobs/:jobId", jobHandler.DeleteJob)
		api.GET("/ws/jobs/:jobId", jobHandler.JobProgressSocket)
		api.GET("/ws/jobs", jobHandler.AllJobsSocket)
		api.GET("/clips/:clipId", clipHandler.DownloadClip)
	}

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	return &TestHelper{
		Server:   server,
		Manager:  manager,
		Registry: registry,
		Config:   cfg,
	}
}

// GetJSON performs a GET and decodes the JSON response.
func (h *TestHelper) GetJSON(t *testing.T, path string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(h.Server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

// PostJSON performs a POST with a JSON body and decodes the response.
func (h *TestHelper) PostJSON(t *testing.T, path string, body, out any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	resp, err := http.Post(h.Server.URL+path, "application/json", reader)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

// UploadVideo posts a multipart video upload with optional form fields.
func (h *TestHelper) UploadVideo(t *testing.T, filename string, fields map[string]string, out any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("video", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte("not really a video"))
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	resp, err := http.Post(h.Server.URL+"/api/jobs/upload", w.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

// Do performs an arbitrary request and decodes the JSON response.
func (h *TestHelper) Do(t *testing.T, method, path string, out any) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, h.Server.URL+path, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

// ConnectWebSocket dials a WebSocket path on the test server.
func (h *TestHelper) ConnectWebSocket(t *testing.T, path string) *gorilla.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.Server.URL, "http") + path
	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

// WaitTerminal polls the API until the job reaches a final status.
func (h *TestHelper) WaitTerminal(t *testing.T, jobID string) *types.Job {
	t.Helper()
	var job *types.Job
	require.Eventually(t, func() bool {
		j, ok := h.Manager.Get(jobID)
		if !ok || !j.Status.Terminal() {
			return false
		}
		job = j
		return true
	}, 5*time.Second, 10*time.Millisecond)
	return job
}
