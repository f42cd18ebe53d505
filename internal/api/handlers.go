// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MediaMorph - 媒体文件转换队列工具

package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ZSC714725/mediamorph/internal/events"
	"github.com/ZSC714725/mediamorph/internal/ffmpeg"
	"github.com/ZSC714725/mediamorph/internal/logger"
	"github.com/ZSC714725/mediamorph/internal/profile"
	"github.com/ZSC714725/mediamorph/internal/queue"
)

// Handler holds dependencies
type Handler struct {
	queue   *queue.Queue
	catalog *profile.Catalog
	encoder *ffmpeg.Encoder
	bus     *events.Bus
	logger  logger.Logger
}

// NewHandler creates API handler
func NewHandler(q *queue.Queue, catalog *profile.Catalog, enc *ffmpeg.Encoder, bus *events.Bus, log logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{queue: q, catalog: catalog, encoder: enc, bus: bus, logger: log}
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

	prof, err := h.catalog.Get(req.ProfileID)
	if err != nil {
		errResp(c, http.StatusBadRequest, "Unknown profile", err.Error())
		return
	}

	// 自定义码率生成副本,目录中的预设不变
	if req.VideoBitrate != "" || req.AudioBitrate != "" || req.Extra != nil {
		prof, err = prof.Customize("", req.VideoBitrate, req.AudioBitrate, req.Extra)
		if err != nil {
			errResp(c, http.StatusBadRequest, "Invalid profile customization", err.Error())
			return
		}
	}

	job, err := h.queue.Enqueue(req.Source, req.Destination, prof)
	if err != nil {
		switch {
		case errors.Is(err, queue.ErrDuplicateDestination):
			errResp(c, http.StatusConflict, "Duplicate destination", err.Error())
		case errors.Is(err, queue.ErrQueueClosed):
			errResp(c, http.StatusServiceUnavailable, "Queue shut down", err.Error())
		default:
			errResp(c, http.StatusBadRequest, "Invalid job", err.Error())
		}
		return
	}

	c.JSON(http.StatusCreated, jobToResponse(job))
}

// ListJobs GET /api/v1/jobs
func (h *Handler) ListJobs(c *gin.Context) {
	jobs := h.queue.Jobs()
	out := make([]JobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, jobToResponse(j))
	}
	c.JSON(http.StatusOK, out)
}

// GetJob GET /api/v1/jobs/:id
func (h *Handler) GetJob(c *gin.Context) {
	job, err := h.queue.Get(c.Param("id"))
	if err != nil {
		errResp(c, http.StatusNotFound, "Unknown job ID", err.Error())
		return
	}
	c.JSON(http.StatusOK, jobToResponse(job))
}

// CancelJob DELETE /api/v1/jobs/:id
func (h *Handler) CancelJob(c *gin.Context) {
	if err := h.queue.Cancel(c.Param("id")); err != nil {
		errResp(c, http.StatusNotFound, "Unknown job ID", err.Error())
		return
	}
	c.JSON(http.StatusOK, "OK")
}

// QueueState GET /api/v1/queue
func (h *Handler) QueueState(c *gin.Context) {
	pending, running := h.queue.Counts()
	c.JSON(http.StatusOK, QueueStateResponse{
		Paused:  h.queue.Paused(),
		Pending: pending,
		Running: running,
	})
}

// PauseQueue PUT /api/v1/queue/pause
func (h *Handler) PauseQueue(c *gin.Context) {
	h.queue.Pause()
	c.JSON(http.StatusOK, "OK")
}

// ResumeQueue PUT /api/v1/queue/resume
func (h *Handler) ResumeQueue(c *gin.Context) {
	h.queue.Resume()
	c.JSON(http.StatusOK, "OK")
}

// ListProfiles GET /api/v1/profiles
func (h *Handler) ListProfiles(c *gin.Context) {
	profiles := h.catalog.List()
	out := make([]ProfileResponse, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, profileToResponse(p))
	}
	c.JSON(http.StatusOK, out)
}

// AddProfile POST /api/v1/profiles
func (h *Handler) AddProfile(c *gin.Context) {
	var req ProfileSpecRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errResp(c, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	p, err := h.catalog.Add(req.toSpec())
	if err != nil {
		errResp(c, http.StatusBadRequest, "Invalid profile", err.Error())
		return
	}
	c.JSON(http.StatusCreated, profileToResponse(p))
}

// Capabilities GET /api/v1/capabilities
func (h *Handler) Capabilities(c *gin.Context) {
	c.JSON(http.StatusOK, h.encoder.Capabilities())
}

// ReloadCapabilities POST /api/v1/capabilities/reload
func (h *Handler) ReloadCapabilities(c *gin.Context) {
	if err := h.encoder.ReloadCapabilities(); err != nil {
		errResp(c, http.StatusInternalServerError, "Reload failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, h.encoder.Capabilities())
}
