// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MediaMorph - 媒体文件转换队列工具
//
// Package events delivers job progress and status to subscribers
// without ever blocking job execution. Events carry a per-job monotonic
// sequence number; a slow subscriber loses events (drop-on-full) and
// can detect the gap from the sequence.

package events

import (
	"sync"
	"time"

	"github.com/ZSC714725/mediamorph/internal/logger"
)

// Kind of an event
type Kind string

const (
	KindProgress  Kind = "progress"
	KindSucceeded Kind = "succeeded"
	KindFailed    Kind = "failed"
	KindCanceled  Kind = "canceled"
)

// Terminal reports whether the kind ends a job's event stream
func (k Kind) Terminal() bool {
	return k == KindSucceeded || k == KindFailed || k == KindCanceled
}

// Progress payload of a progress event
type Progress struct {
	PositionSeconds float64 `json:"position_seconds"`
	DurationSeconds float64 `json:"duration_seconds"`
	Percent         float64 `json:"percent"`
	Speed           float64 `json:"speed"`
	Frame           uint64  `json:"frame"`
}

// Event is an immutable notification about one job
type Event struct {
	JobID     string    `json:"job_id"`
	Seq       uint64    `json:"seq"`
	Kind      Kind      `json:"kind"`
	Progress  *Progress `json:"progress,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Subscription is one subscriber's event stream
type Subscription struct {
	C      <-chan Event
	id     uint64
	bus    *Bus
	cancel sync.Once
}

// Cancel detaches the subscriber and closes its channel
func (s *Subscription) Cancel() {
	s.cancel.Do(func() { s.bus.unsubscribe(s.id) })
}

// Bus is a publish/subscribe fanout for job events
type Bus struct {
	mu      sync.Mutex
	subs    map[uint64]chan Event
	nextSub uint64
	seq     map[string]uint64
	dropped uint64
	closed  bool
	logger  logger.Logger
}

// NewBus creates a Bus
func NewBus(log logger.Logger) *Bus {
	if log == nil {
		log = logger.NewNop()
	}
	return &Bus{
		subs:   make(map[uint64]chan Event),
		seq:    make(map[string]uint64),
		logger: log,
	}
}

// Subscribe registers a subscriber with the given channel buffer
func (b *Bus) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextSub
	b.nextSub++
	if b.closed {
		close(ch)
	} else {
		b.subs[id] = ch
	}
	return &Subscription{C: ch, id: id, bus: b}
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish assigns the next sequence number for the job and fans the
// event out. Never blocks; a full subscriber drops the event.
func (b *Bus) Publish(jobID string, kind Kind, progress *Progress, reason string) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq[jobID]++
	ev := Event{
		JobID:     jobID,
		Seq:       b.seq[jobID],
		Kind:      kind,
		Progress:  progress,
		Reason:    reason,
		Timestamp: time.Now(),
	}
	if kind.Terminal() {
		// 任务结束后序号不再使用
		delete(b.seq, jobID)
	}

	if b.closed {
		return ev
	}
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.dropped++
			b.logger.Debug("subscriber %d full, dropping %s event for job %s", id, kind, jobID)
		}
	}
	return ev
}

// Dropped returns the count of events lost to full subscribers
func (b *Bus) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Close detaches all subscribers
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
