// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MediaMorph - 媒体文件转换队列工具

package api

import (
	"github.com/ZSC714725/mediamorph/internal/profile"
	"github.com/ZSC714725/mediamorph/internal/queue"
)

// ErrorResponse is the common error body
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// EnqueueRequest submits one conversion job
type EnqueueRequest struct {
	Source       string   `json:"source" binding:"required"`
	Destination  string   `json:"destination" binding:"required"`
	ProfileID    string   `json:"profile_id" binding:"required"`
	VideoBitrate string   `json:"video_bitrate"`
	AudioBitrate string   `json:"audio_bitrate"`
	Extra        []string `json:"extra"`
}

// ProfileSpecRequest registers a customized profile
type ProfileSpecRequest struct {
	ID           string   `json:"id" binding:"required"`
	Label        string   `json:"label"`
	Container    string   `json:"container" binding:"required"`
	Extension    string   `json:"extension"`
	VideoCodec   string   `json:"video_codec"`
	AudioCodec   string   `json:"audio_codec"`
	VideoBitrate string   `json:"video_bitrate"`
	AudioBitrate string   `json:"audio_bitrate"`
	Extra        []string `json:"extra"`
	QualityTag   string   `json:"quality_tag"`
}

func (r ProfileSpecRequest) toSpec() profile.Spec {
	return profile.Spec{
		ID:           r.ID,
		Label:        r.Label,
		Container:    r.Container,
		Extension:    r.Extension,
		VideoCodec:   r.VideoCodec,
		AudioCodec:   r.AudioCodec,
		VideoBitrate: r.VideoBitrate,
		AudioBitrate: r.AudioBitrate,
		Extra:        r.Extra,
		QualityTag:   r.QualityTag,
	}
}

// ProgressResponse mirrors queue.Progress
type ProgressResponse struct {
	PositionSeconds float64 `json:"position_seconds"`
	DurationSeconds float64 `json:"duration_seconds"`
	Percent         float64 `json:"percent"`
	Speed           float64 `json:"speed"`
	Frame           uint64  `json:"frame"`
}

// JobResponse is one job snapshot
type JobResponse struct {
	ID          string           `json:"id"`
	Source      string           `json:"source"`
	Destination string           `json:"destination"`
	ProfileID   string           `json:"profile_id"`
	State       string           `json:"state"`
	Progress    ProgressResponse `json:"progress"`
	Reason      string           `json:"reason,omitempty"`
	ExitCode    int              `json:"exit_code"`
	Warnings    uint64           `json:"parse_warnings"`
	CPU         float64          `json:"cpu_usage"`
	Memory      uint64           `json:"memory_bytes"`
	EnqueuedAt  int64            `json:"enqueued_at"`
	StartedAt   int64            `json:"started_at,omitempty"`
	FinishedAt  int64            `json:"finished_at,omitempty"`
}

// QueueStateResponse describes the scheduler state
type QueueStateResponse struct {
	Paused  bool `json:"paused"`
	Pending int  `json:"pending"`
	Running int  `json:"running"`
}

// ProfileResponse is one catalog entry
type ProfileResponse struct {
	ID         string   `json:"id"`
	Label      string   `json:"label"`
	Container  string   `json:"container"`
	Extension  string   `json:"extension"`
	AudioOnly  bool     `json:"audio_only"`
	QualityTag string   `json:"quality_tag"`
	Arguments  []string `json:"arguments"`
}

func jobToResponse(j queue.Job) JobResponse {
	r := JobResponse{
		ID:          j.ID,
		Source:      j.Source,
		Destination: j.Destination,
		ProfileID:   j.ProfileID,
		State:       string(j.State),
		Progress: ProgressResponse{
			PositionSeconds: j.Progress.Position.Seconds(),
			DurationSeconds: j.Progress.Duration.Seconds(),
			Percent:         j.Progress.Percent,
			Speed:           j.Progress.Speed,
			Frame:           j.Progress.Frame,
		},
		Reason:     j.Reason,
		ExitCode:   j.ExitCode,
		Warnings:   j.Warnings,
		CPU:        j.CPU,
		Memory:     j.Memory,
		EnqueuedAt: j.EnqueuedAt.Unix(),
	}
	if !j.StartedAt.IsZero() {
		r.StartedAt = j.StartedAt.Unix()
	}
	if !j.FinishedAt.IsZero() {
		r.FinishedAt = j.FinishedAt.Unix()
	}
	return r
}

func profileToResponse(p *profile.Profile) ProfileResponse {
	return ProfileResponse{
		ID:         p.ID(),
		Label:      p.Label(),
		Container:  p.Container(),
		Extension:  p.Extension(),
		AudioOnly:  p.AudioOnly(),
		QualityTag: p.QualityTag(),
		Arguments:  p.Arguments(),
	}
}
