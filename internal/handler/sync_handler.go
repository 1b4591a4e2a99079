package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"shopsync/feedhub/internal/model"
	"shopsync/feedhub/internal/service"
	"shopsync/feedhub/pkg/response"
)

// SyncHandler exposes the pipeline trigger and the dashboard's status and
// history reads.
type SyncHandler struct {
	syncService service.SyncService
}

func NewSyncHandler(syncService service.SyncService) *SyncHandler {
	return &SyncHandler{syncService: syncService}
}

// Trigger runs the pipeline. The route sits behind the sync-secret
// middleware; callers mark interactive runs with ?trigger=manual.
func (h *SyncHandler) Trigger(c *gin.Context) {
	trigger := model.RunTriggerCron
	if c.Query("trigger") == string(model.RunTriggerManual) {
		trigger = model.RunTriggerManual
	}

	run, err := h.syncService.Run(c.Request.Context(), trigger)
	if err != nil {
		respondClassified(c, err)
		return
	}
	response.Success(c, run)
}

// Status reports connection state and the latest run.
func (h *SyncHandler) Status(c *gin.Context) {
	status, err := h.syncService.Status(c.Request.Context())
	if err != nil {
		response.InternalError(c, "failed to load sync status")
		return
	}
	response.Success(c, status)
}

// Runs lists recent runs, newest first.
func (h *SyncHandler) Runs(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 0 {
		response.BadRequest(c, "limit must be a non-negative integer")
		return
	}

	runs, err := h.syncService.RecentRuns(c.Request.Context(), limit)
	if err != nil {
		response.InternalError(c, "failed to load run history")
		return
	}
	response.Success(c, runs)
}
