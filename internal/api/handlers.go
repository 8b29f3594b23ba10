// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ConvertQueue - FFmpeg 媒体转换队列

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ZSC714725/convertqueue/internal/ffmpeg"
	"github.com/ZSC714725/convertqueue/internal/job"
	"github.com/ZSC714725/convertqueue/internal/plan"
	"github.com/ZSC714725/convertqueue/internal/scheduler"
)

// Handler holds dependencies
type Handler struct {
	store   *job.Store
	sched   *scheduler.Scheduler
	ffmpeg  ffmpeg.FFmpeg
	planner *plan.Planner
	hub     *Hub
}

// NewHandler creates API handler
func NewHandler(store *job.Store, sched *scheduler.Scheduler, ff ffmpeg.FFmpeg, planner *plan.Planner, hub *Hub) *Handler {
	return &Handler{store: store, sched: sched, ffmpeg: ff, planner: planner, hub: hub}
}

func errResp(c *gin.Context, code int, msg, detail string) {
	c.JSON(code, ErrorResponse{Code: code, Message: msg, Detail: detail})
}

// EnqueueJob POST /api/v1/jobs
func (h *Handler) EnqueueJob(c *gin.Context) {
	var req EnqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errResp(c, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}

	tier, ok := plan.ParseTier(req.Tier)
	if !ok {
		errResp(c, http.StatusBadRequest, "Unknown tier", req.Tier)
		return
	}

	id, err := h.sched.Enqueue(req.Source, req.Preset, tier)
	if err != nil {
		errResp(c, http.StatusBadRequest, "Enqueue failed", err.Error())
		return
	}

	c.JSON(http.StatusOK, EnqueueResponse{ID: id, Skipped: id == ""})
}

// EnqueueBatch POST /api/v1/jobs/batch
func (h *Handler) EnqueueBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errResp(c, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if len(req.Sources) == 0 {
		errResp(c, http.StatusBadRequest, "At least one source required", "")
		return
	}

	tier, ok := plan.ParseTier(req.Tier)
	if !ok {
		errResp(c, http.StatusBadRequest, "Unknown tier", req.Tier)
		return
	}

	ids, err := h.sched.EnqueueMany(req.Sources, req.Preset, tier)
	if err != nil {
		errResp(c, http.StatusBadRequest, "Enqueue failed", err.Error())
		return
	}
	if ids == nil {
		ids = []string{}
	}

	c.JSON(http.StatusOK, BatchResponse{IDs: ids, Skipped: len(req.Sources) - len(ids)})
}

// ListJobs GET /api/v1/jobs
func (h *Handler) ListJobs(c *gin.Context) {
	status := c.DefaultQuery("status", "")

	jobs := h.store.List()
	details := make([]JobDetail, 0, len(jobs))
	for _, j := range jobs {
		detail := h.jobToDetail(j)
		if status != "" && string(detail.Status) != status {
			continue
		}
		details = append(details, detail)
	}

	c.JSON(http.StatusOK, details)
}

// GetJob GET /api/v1/jobs/:id
func (h *Handler) GetJob(c *gin.Context) {
	j, err := h.store.Get(c.Param("id"))
	if err != nil {
		errResp(c, http.StatusNotFound, "Unknown job ID", err.Error())
		return
	}

	c.JSON(http.StatusOK, h.jobToDetail(j))
}

// GetJobLog GET /api/v1/jobs/:id/log
func (h *Handler) GetJobLog(c *gin.Context) {
	j, err := h.store.Get(c.Param("id"))
	if err != nil {
		errResp(c, http.StatusNotFound, "Unknown job ID", err.Error())
		return
	}

	lines := j.Logs()
	if lines == nil {
		lines = []string{}
	}

	c.JSON(http.StatusOK, LogResponse{ID: j.ID(), Lines: lines})
}

// CancelJob POST /api/v1/jobs/:id/cancel
func (h *Handler) CancelJob(c *gin.Context) {
	id := c.Param("id")

	if err := h.sched.Cancel(id); err != nil {
		if err == job.ErrNotFound {
			errResp(c, http.StatusNotFound, "Unknown job ID", err.Error())
			return
		}
		errResp(c, http.StatusBadRequest, "Cancel failed", err.Error())
		return
	}

	c.JSON(http.StatusOK, "OK")
}

// RequeueJob POST /api/v1/jobs/:id/requeue
func (h *Handler) RequeueJob(c *gin.Context) {
	id := c.Param("id")

	if err := h.sched.Requeue(id); err != nil {
		if err == job.ErrNotFound {
			errResp(c, http.StatusNotFound, "Unknown job ID", err.Error())
			return
		}
		errResp(c, http.StatusBadRequest, "Requeue failed", err.Error())
		return
	}

	c.JSON(http.StatusOK, "OK")
}

// ClearCompleted DELETE /api/v1/jobs/completed
func (h *Handler) ClearCompleted(c *gin.Context) {
	removed := h.sched.ClearCompleted()
	if removed == nil {
		removed = []string{}
	}
	c.JSON(http.StatusOK, ClearResponse{Removed: removed})
}

// SchedulerState GET /api/v1/scheduler
func (h *Handler) SchedulerState(c *gin.Context) {
	c.JSON(http.StatusOK, h.schedulerStatus())
}

// StartNext POST /api/v1/scheduler/start-next
func (h *Handler) StartNext(c *gin.Context) {
	c.JSON(http.StatusOK, StartNextResponse{Started: h.sched.StartNext()})
}

// SetConcurrency PUT /api/v1/scheduler/concurrency
func (h *Handler) SetConcurrency(c *gin.Context) {
	var req ConcurrencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errResp(c, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}

	h.sched.SetMaxConcurrency(req.Max)
	c.JSON(http.StatusOK, h.schedulerStatus())
}

// Presets GET /api/v1/presets
func (h *Handler) Presets(c *gin.Context) {
	snapshot := h.ffmpeg.Capabilities()
	strategy := h.planner.Strategy()
	availableOnly := c.DefaultQuery("available", "") == "true"

	infos := make([]PresetInfo, 0)
	for _, p := range plan.Catalog() {
		info := presetToAPI(p, snapshot, strategy)
		if availableOnly && !info.Available {
			continue
		}
		infos = append(infos, info)
	}

	c.JSON(http.StatusOK, infos)
}

// Capabilities GET /api/v1/capabilities
func (h *Handler) Capabilities(c *gin.Context) {
	c.JSON(http.StatusOK, capsToAPI(
		h.ffmpeg.Binary(),
		h.ffmpeg.ProbeBinary(),
		h.planner.Strategy().Name(),
		h.ffmpeg.Capabilities(),
	))
}

// ReloadCapabilities POST /api/v1/capabilities/reload
func (h *Handler) ReloadCapabilities(c *gin.Context) {
	if err := h.ffmpeg.ReloadCapabilities(); err != nil {
		errResp(c, http.StatusInternalServerError, "Reload failed", err.Error())
		return
	}

	c.JSON(http.StatusOK, capsToAPI(
		h.ffmpeg.Binary(),
		h.ffmpeg.ProbeBinary(),
		h.planner.Strategy().Name(),
		h.ffmpeg.Capabilities(),
	))
}

// Events GET /api/v1/events
func (h *Handler) Events(c *gin.Context) {
	h.hub.Handle(c)
}

func (h *Handler) schedulerStatus() SchedulerStatus {
	status := SchedulerStatus{
		QueueLength:    h.sched.QueueLength(),
		Active:         h.sched.ActiveCount(),
		MaxConcurrency: h.sched.MaxConcurrency(),
		Autostart:      h.sched.Autostart(),
	}
	if next, ok := h.sched.PeekNext(); ok {
		status.NextID = next
	}
	return status
}

func (h *Handler) jobToDetail(j *job.Job) JobDetail {
	detail := JobDetail{Snapshot: j.Snapshot()}

	if detail.Status == job.StatusRunning {
		if status, ok := h.sched.ProcessStatus(j.ID()); ok {
			cpu := status.CPU
			memory := status.Memory
			detail.CPU = &cpu
			detail.Memory = &memory
		}
	}
	return detail
}
