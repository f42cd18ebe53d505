// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MediaMorph - 媒体文件转换队列工具

package queue

import (
	"time"

	"github.com/ZSC714725/mediamorph/internal/ffmpeg/parse"
	"github.com/ZSC714725/mediamorph/internal/process"
	"github.com/ZSC714725/mediamorph/internal/profile"
)

// State of a job. Transitions are monotonic:
// Pending -> Running -> {Succeeded, Failed, Canceled}, with
// Pending -> Canceled allowed for jobs never started.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCanceled  State = "canceled"
)

// Terminal reports whether no further transition is possible
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateCanceled
}

func (s State) canTransition(to State) bool {
	switch s {
	case StatePending:
		return to == StateRunning || to == StateCanceled
	case StateRunning:
		return to.Terminal()
	default:
		return false
	}
}

// Progress of a running or finished job. Values never decrease while
// the job runs.
type Progress struct {
	Position time.Duration
	Duration time.Duration
	Percent  float64
	Speed    float64
	Frame    uint64
}

// Job is a point-in-time snapshot of one conversion job
type Job struct {
	ID          string
	Source      string
	Destination string
	ProfileID   string
	State       State
	Progress    Progress
	Reason      string
	ExitCode    int
	Warnings    uint64 // parse warnings observed so far
	CPU         float64
	Memory      uint64
	EnqueuedAt  time.Time
	StartedAt   time.Time
	FinishedAt  time.Time
}

// record is the queue-owned mutable state behind a Job snapshot. The
// process handle exists exactly while the job is running.
type record struct {
	job             Job
	profile         *profile.Profile
	proc            *process.Process
	parser          parse.Parser
	cancelRequested bool
}

func (r *record) snapshot() Job {
	j := r.job
	if r.parser != nil {
		j.Warnings = r.parser.WarningCount()
	}
	if r.proc != nil {
		j.CPU, j.Memory = r.proc.Usage()
	}
	return j
}
