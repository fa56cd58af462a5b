package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/imprevi/clipgen/services"
)

// ClipHandler serves rendered clip files.
type ClipHandler struct {
	manager *services.Manager
}

// NewClipHandler creates a new clip handler.
func NewClipHandler(manager *services.Manager) *ClipHandler {
	return &ClipHandler{manager: manager}
}

// DownloadClip streams a rendered clip. The ID is validated against the
// registry, so path traversal and unpublished scratch files are both
// unreachable.
func (h *ClipHandler) DownloadClip(c *gin.Context) {
	clipID := c.Param("clipId")
	path, err := h.manager.ClipPath(clipID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.FileAttachment(path, clipID)
}
