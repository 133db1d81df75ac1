package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/capitao/athena-tasks/internal/apperrors"
	"github.com/capitao/athena-tasks/internal/services"
)

// AdminHandler exposes on-demand triggers for the archival and backup
// subsystems.
type AdminHandler struct {
	archive *services.ArchiveService
	backup  *services.BackupService
}

func NewAdminHandler(archive *services.ArchiveService, backup *services.BackupService) *AdminHandler {
	return &AdminHandler{archive: archive, backup: backup}
}

// RunArchive runs one archival pass and reports per-month counts.
func (h *AdminHandler) RunArchive(c *gin.Context) {
	archived, err := h.archive.Run()
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"archived": archived})
}

// RunBackup triggers a manual snapshot, rate-limited to one per minute.
func (h *AdminHandler) RunBackup(c *gin.Context) {
	path, err := h.backup.Manual()
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshot": path})
}
