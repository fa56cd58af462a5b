package handlers

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/imprevi/clipgen/config"
	"github.com/imprevi/clipgen/services"
	"github.com/imprevi/clipgen/types"
	"github.com/imprevi/clipgen/websocket"
)

// allowedUploadExts lists the container formats accepted for upload.
var allowedUploadExts = map[string]bool{
	".mp4":  true,
	".avi":  true,
	".mov":  true,
	".mkv":  true,
	".webm": true,
	".flv":  true,
}

// JobHandler handles job submission and lifecycle endpoints.
type JobHandler struct {
	manager *services.Manager
	hub     websocket.Hub
	cfg     *config.Config
}

// NewJobHandler creates a new job handler.
func NewJobHandler(manager *services.Manager, hub websocket.Hub, cfg *config.Config) *JobHandler {
	return &JobHandler{
		manager: manager,
		hub:     hub,
		cfg:     cfg,
	}
}

// UploadJob accepts a multipart video upload and queues a job for it.
func (h *JobHandler) UploadJob(c *gin.Context) {
	file, err := c.FormFile("video")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "video file is required",
		})
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedUploadExts[ext] {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("unsupported file type %q", ext),
		})
		return
	}
	if h.cfg.MaxUploadBytes > 0 && file.Size > h.cfg.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("file exceeds the %d byte upload limit", h.cfg.MaxUploadBytes),
		})
		return
	}

	params, err := uploadParameters(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Stored under a fresh name so concurrent uploads of the same file
	// never collide.
	dest := filepath.Join(h.cfg.UploadsDir, uuid.New().String()+ext)
	if err := c.SaveUploadedFile(file, dest); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store upload"})
		return
	}

	job, err := h.manager.Submit(types.JobSource{Type: types.SourceUpload, Path: dest}, params)
	if err != nil {
		// No job owns the file when submission is rejected.
		os.Remove(dest)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "video queued for processing",
		"job":     job,
	})
}

// RemoteJob queues a job for a remote VOD URL.
func (h *JobHandler) RemoteJob(c *gin.Context) {
	var req types.RemoteJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "a valid url is required",
		})
		return
	}

	job, err := h.manager.Submit(types.JobSource{Type: types.SourceRemote, URL: req.URL}, req.ToParameters())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "remote video queued for processing",
		"job":     job,
	})
}

// GetJob returns a specific job by ID.
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID := c.Param("jobId")
	job, exists := h.manager.Get(jobID)
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"job": job})
}

// ListJobs returns jobs newest first, optionally filtered by status.
func (h *JobHandler) ListJobs(c *gin.Context) {
	status := types.JobStatus(c.Query("status"))
	if status != "" && !validStatus(status) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("unknown status %q", status),
		})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	jobs := h.manager.List(status, limit)
	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"total": len(jobs),
	})
}

// RetryJob requeues a failed job.
func (h *JobHandler) RetryJob(c *gin.Context) {
	job, err := h.manager.Retry(c.Param("jobId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "job queued for retry",
		"job":     job,
	})
}

// DeleteJob cancels a job if running and removes its record and files.
func (h *JobHandler) DeleteJob(c *gin.Context) {
	if err := h.manager.Delete(c.Param("jobId")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "job deleted"})
}

// JobProgressSocket upgrades to a WebSocket streaming one job's progress.
func (h *JobHandler) JobProgressSocket(c *gin.Context) {
	jobID := c.Param("jobId")
	if _, exists := h.manager.Get(jobID); !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	h.serveSocket(c, jobID)
}

// AllJobsSocket upgrades to a WebSocket streaming every job's progress.
func (h *JobHandler) AllJobsSocket(c *gin.Context) {
	h.serveSocket(c, websocket.AllJobs)
}

func (h *JobHandler) serveSocket(c *gin.Context, jobID string) {
	upgrader := websocket.GetUpgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := websocket.NewClient(h.hub, conn, jobID)
	h.hub.RegisterClient(client)
	client.StartPumps()
}

// uploadParameters parses the optional multipart form parameter overrides.
func uploadParameters(c *gin.Context) (types.Parameters, error) {
	params := types.DefaultParameters()

	if raw := c.PostForm("sensitivity"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return params, fmt.Errorf("sensitivity must be a number")
		}
		params.Sensitivity = v
	}
	if raw := c.PostForm("targetClipDuration"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return params, fmt.Errorf("targetClipDuration must be a number")
		}
		params.TargetClipDuration = v
	}
	if raw := c.PostForm("maxClips"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return params, fmt.Errorf("maxClips must be an integer")
		}
		params.MaxClips = v
	}
	return params, nil
}

func validStatus(status types.JobStatus) bool {
	for _, s := range types.ValidStatuses {
		if s == status {
			return true
		}
	}
	return false
}
