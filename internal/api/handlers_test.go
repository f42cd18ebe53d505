// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MediaMorph - 媒体文件转换队列工具

package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZSC714725/mediamorph/internal/events"
	"github.com/ZSC714725/mediamorph/internal/profile"
	"github.com/ZSC714725/mediamorph/internal/queue"
)

type fakeEncoder struct{}

func (fakeEncoder) Path() string              { return "/usr/bin/ffmpeg" }
func (fakeEncoder) ValidateInput(string) bool { return true }
func (fakeEncoder) ValidateOutput(p string) bool {
	return !strings.HasPrefix(p, "rtmp://")
}

// newTestRouter wires a paused queue so no process is ever spawned
func newTestRouter(t *testing.T) (*gin.Engine, *queue.Queue) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	bus := events.NewBus(nil)
	q := queue.New(fakeEncoder{}, nil, bus, queue.Config{MaxConcurrentJobs: 1}, nil)
	q.Pause()
	t.Cleanup(func() { q.Shutdown(); bus.Close() })

	handler := NewHandler(q, profile.NewCatalog(), nil, bus, nil)

	r := gin.New()
	v1 := r.Group("/api/v1")
	v1.POST("/jobs", handler.EnqueueJob)
	v1.GET("/jobs", handler.ListJobs)
	v1.GET("/jobs/:id", handler.GetJob)
	v1.DELETE("/jobs/:id", handler.CancelJob)
	v1.GET("/queue", handler.QueueState)
	v1.PUT("/queue/pause", handler.PauseQueue)
	v1.PUT("/queue/resume", handler.ResumeQueue)
	v1.GET("/profiles", handler.ListProfiles)
	v1.POST("/profiles", handler.AddProfile)
	return r, q
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestListProfiles(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(r, http.MethodGet, "/api/v1/profiles", "")
	require.Equal(t, http.StatusOK, w.Code)

	var profiles []ProfileResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &profiles))
	require.NotEmpty(t, profiles)

	ids := make([]string, 0, len(profiles))
	for _, p := range profiles {
		ids = append(ids, p.ID)
	}
	assert.Contains(t, ids, "mp4-h264")
}

func TestEnqueueJob(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(r, http.MethodPost, "/api/v1/jobs",
		`{"source":"/media/in.mov","destination":"/media/out.mp4","profile_id":"mp4-h264"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var job JobResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, "pending", job.State)
	assert.Equal(t, "mp4-h264", job.ProfileID)
}

func TestEnqueueJobUnknownProfile(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(r, http.MethodPost, "/api/v1/jobs",
		`{"source":"in.mov","destination":"out.mp4","profile_id":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEnqueueJobDuplicateDestination(t *testing.T) {
	r, _ := newTestRouter(t)

	body := `{"source":"in.mov","destination":"/media/dup.mp4","profile_id":"mp4-h264"}`
	require.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/api/v1/jobs", body).Code)
	assert.Equal(t, http.StatusConflict, do(r, http.MethodPost, "/api/v1/jobs", body).Code)
}

func TestEnqueueJobCustomBitrateKeepsPreset(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(r, http.MethodPost, "/api/v1/jobs",
		`{"source":"in.mov","destination":"out.mp4","profile_id":"mp4-h264","video_bitrate":"8000k"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	// 目录中的预设不受影响
	wp := do(r, http.MethodGet, "/api/v1/profiles", "")
	var profiles []ProfileResponse
	require.NoError(t, json.Unmarshal(wp.Body.Bytes(), &profiles))
	for _, p := range profiles {
		if p.ID == "mp4-h264" {
			assert.NotContains(t, p.Arguments, "8000k")
		}
	}
}

func TestGetJobNotFound(t *testing.T) {
	r, _ := newTestRouter(t)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/v1/jobs/missing", "").Code)
}

func TestCancelJob(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(r, http.MethodPost, "/api/v1/jobs",
		`{"source":"in.mov","destination":"out.mp4","profile_id":"mp4-h264"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var job JobResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))

	require.Equal(t, http.StatusOK, do(r, http.MethodDelete, "/api/v1/jobs/"+job.ID, "").Code)

	wg := do(r, http.MethodGet, "/api/v1/jobs/"+job.ID, "")
	var got JobResponse
	require.NoError(t, json.Unmarshal(wg.Body.Bytes(), &got))
	assert.Equal(t, "canceled", got.State)
}

func TestQueueStateAndPauseResume(t *testing.T) {
	r, q := newTestRouter(t)

	w := do(r, http.MethodGet, "/api/v1/queue", "")
	require.Equal(t, http.StatusOK, w.Code)

	var state QueueStateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.True(t, state.Paused)

	require.Equal(t, http.StatusOK, do(r, http.MethodPut, "/api/v1/queue/resume", "").Code)
	assert.False(t, q.Paused())

	require.Equal(t, http.StatusOK, do(r, http.MethodPut, "/api/v1/queue/pause", "").Code)
	assert.True(t, q.Paused())
}

func TestAddProfile(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(r, http.MethodPost, "/api/v1/profiles",
		`{"id":"custom-webm","container":"webm","video_codec":"libvpx-vp9","audio_codec":"libopus"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	// 无效组合被拒绝
	w = do(r, http.MethodPost, "/api/v1/profiles",
		`{"id":"bad","container":"mp3","video_codec":"libx264"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
