// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MediaMorph - 媒体文件转换队列工具
//
// Package queue schedules conversion jobs. The queue is the single
// owner of all job state; every transition goes through its mutex.
// Each running job gets its own goroutine for spawn, stream and exit
// wait, so a blocked process never blocks enqueue or cancel of others.

package queue

import (
	"errors"
	"os"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/ZSC714725/mediamorph/internal/events"
	"github.com/ZSC714725/mediamorph/internal/ffmpeg/parse"
	"github.com/ZSC714725/mediamorph/internal/logger"
	"github.com/ZSC714725/mediamorph/internal/probe"
	"github.com/ZSC714725/mediamorph/internal/process"
	"github.com/ZSC714725/mediamorph/internal/profile"

	"github.com/lithammer/shortuuid/v4"
)

// Encoder is the slice of the encoder wrapper the queue needs
type Encoder interface {
	Path() string
	ValidateInput(path string) bool
	ValidateOutput(path string) bool
}

// Prober extracts source metadata ahead of a conversion
type Prober interface {
	Probe(path string) (probe.Info, error)
}

// Config for the queue
type Config struct {
	MaxConcurrentJobs      int
	OutputSilenceTimeout   time.Duration
	TerminationGracePeriod time.Duration
	LogLines               int
	KeepPartialOutput      bool
}

// Queue holds pending, running and finished jobs and drives the
// scheduler
type Queue struct {
	mu      sync.Mutex
	records map[string]*record
	order   []string // insertion order, for listing
	pending []string // FIFO
	running int
	paused  bool
	closed  bool

	encoder Encoder
	prober  Prober
	bus     *events.Bus
	config  Config
	logger  logger.Logger
	threads int
	wg      sync.WaitGroup
}

// New creates a Queue. The prober may be nil; total duration then comes
// from the encoder's own metadata output only.
func New(enc Encoder, prober Prober, bus *events.Bus, config Config, log logger.Logger) *Queue {
	if config.MaxConcurrentJobs < 1 {
		config.MaxConcurrentJobs = 1
	}
	if config.LogLines <= 0 {
		config.LogLines = 100
	}
	if log == nil {
		log = logger.NewNop()
	}
	threads := runtime.NumCPU() - 1
	if threads < 1 {
		threads = 1
	}
	return &Queue{
		records: make(map[string]*record),
		encoder: enc,
		prober:  prober,
		bus:     bus,
		config:  config,
		logger:  log,
		threads: threads,
	}
}

// Enqueue appends a job to the pending queue and kicks the scheduler
func (q *Queue) Enqueue(source, destination string, prof *profile.Profile) (Job, error) {
	if source == "" || destination == "" || prof == nil {
		return Job{}, ErrInvalidJob
	}
	if !q.encoder.ValidateInput(source) {
		return Job{}, ErrInvalidSource
	}
	if !q.encoder.ValidateOutput(destination) {
		return Job{}, ErrInvalidDestination
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return Job{}, ErrQueueClosed
	}
	for _, rec := range q.records {
		if rec.job.Destination == destination && !rec.job.State.Terminal() {
			return Job{}, ErrDuplicateDestination
		}
	}

	rec := &record{
		job: Job{
			ID:          shortuuid.New(),
			Source:      source,
			Destination: destination,
			ProfileID:   prof.ID(),
			State:       StatePending,
			ExitCode:    -1,
			EnqueuedAt:  time.Now(),
		},
		profile: prof,
	}
	q.records[rec.job.ID] = rec
	q.order = append(q.order, rec.job.ID)
	q.pending = append(q.pending, rec.job.ID)

	q.logger.Info("job %s enqueued: %s -> %s (%s)", rec.job.ID, source, destination, prof.ID())
	q.scheduleLocked()

	return rec.snapshot(), nil
}

// Cancel requests cancellation. Pending jobs move straight to
// Canceled; running jobs get their process stopped and reach Canceled
// through the runner. Canceling a finished job is a no-op.
func (q *Queue) Cancel(id string) error {
	q.mu.Lock()
	rec, ok := q.records[id]
	if !ok {
		q.mu.Unlock()
		return ErrNotFound
	}

	switch rec.job.State {
	case StatePending:
		for i, pid := range q.pending {
			if pid == id {
				q.pending = append(q.pending[:i], q.pending[i+1:]...)
				break
			}
		}
		rec.cancelRequested = true
		q.finishLocked(rec, StateCanceled, "canceled before start", -1)
		q.mu.Unlock()
		q.publishTerminal(rec.job.ID, StateCanceled, "canceled before start", nil)
		return nil
	case StateRunning:
		rec.cancelRequested = true
		proc := rec.proc
		q.mu.Unlock()
		if proc != nil {
			proc.Stop()
		}
		return nil
	default:
		q.mu.Unlock()
		return nil
	}
}

// Pause stops the scheduler from promoting pending jobs. Running jobs
// continue.
func (q *Queue) Pause() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.paused = true
}

// Resume restarts promotion
func (q *Queue) Resume() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.paused = false
	q.scheduleLocked()
}

// Paused reports whether promotion is suspended
func (q *Queue) Paused() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.paused
}

// Get returns a snapshot of one job
func (q *Queue) Get(id string) (Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	rec, ok := q.records[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return rec.snapshot(), nil
}

// Jobs returns snapshots of all jobs in enqueue order
func (q *Queue) Jobs() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Job, 0, len(q.order))
	for _, id := range q.order {
		out = append(out, q.records[id].snapshot())
	}
	return out
}

// Counts returns the number of pending and running jobs
func (q *Queue) Counts() (pending, running int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending), q.running
}

// Shutdown cancels everything and waits for running processes to die
func (q *Queue) Shutdown() {
	q.mu.Lock()
	q.closed = true

	var canceled []string
	for _, id := range q.pending {
		rec := q.records[id]
		rec.cancelRequested = true
		q.finishLocked(rec, StateCanceled, "queue shut down", -1)
		canceled = append(canceled, id)
	}
	q.pending = nil

	var procs []*process.Process
	for _, rec := range q.records {
		if rec.job.State == StateRunning {
			rec.cancelRequested = true
			if rec.proc != nil {
				procs = append(procs, rec.proc)
			}
		}
	}
	q.mu.Unlock()

	for _, id := range canceled {
		q.publishTerminal(id, StateCanceled, "queue shut down", nil)
	}
	for _, p := range procs {
		p.Stop()
	}
	q.wg.Wait()
}

// scheduleLocked promotes pending jobs while capacity remains. Caller
// holds q.mu.
func (q *Queue) scheduleLocked() {
	for !q.paused && !q.closed &&
		q.running < q.config.MaxConcurrentJobs && len(q.pending) > 0 {

		id := q.pending[0]
		q.pending = q.pending[1:]

		rec := q.records[id]
		rec.job.State = StateRunning
		rec.job.StartedAt = time.Now()
		q.running++

		q.wg.Add(1)
		go q.run(rec)
	}
}

// run owns one job's process lifecycle from spawn to terminal state
func (q *Queue) run(rec *record) {
	defer q.wg.Done()

	id := rec.job.ID
	parser := parse.New(parse.Config{LogLines: q.config.LogLines})

	q.mu.Lock()
	rec.parser = parser
	source, destination := rec.job.Source, rec.job.Destination
	prof := rec.profile
	q.mu.Unlock()

	if q.prober != nil {
		if info, err := q.prober.Probe(source); err == nil {
			parser.SetTotalDuration(info.Duration)
		} else {
			// 编码器自身的 Duration 行仍可提供总时长
			q.logger.Debug("job %s probe: %v", id, err)
		}
	}

	args := append([]string{"-i", source}, prof.Arguments()...)
	args = append(args, "-threads", strconv.Itoa(q.threads), "-y", destination)

	proc, err := process.Start(process.Config{
		Binary:         q.encoder.Path(),
		Args:           args,
		Sink:           &progressSink{queue: q, rec: rec, parser: parser},
		SilenceTimeout: q.config.OutputSilenceTimeout,
		GracePeriod:    q.config.TerminationGracePeriod,
		Logger:         q.logger,
	})
	if err != nil {
		q.logger.Error("job %s: %v", id, err)
		state := StateFailed
		if q.wasCanceled(rec) {
			state = StateCanceled
		}
		q.finish(rec, state, err.Error(), -1)
		return
	}

	q.mu.Lock()
	rec.proc = proc
	stopNow := rec.cancelRequested
	q.mu.Unlock()
	if stopNow {
		proc.Stop()
	}

	out := proc.Wait()
	status := parser.Finalize(out.ExitCode)

	state, reason := q.conclude(rec, out, status)
	if state != StateSucceeded && !q.config.KeepPartialOutput {
		// 中断的转换会留下残缺的输出文件
		os.Remove(destination)
	}
	q.finish(rec, state, reason, out.ExitCode)
}

// conclude maps a process outcome and parser status to a terminal state
func (q *Queue) conclude(rec *record, out process.Outcome, status parse.StatusEvent) (State, string) {
	switch {
	case errors.Is(out.Err, process.ErrTerminationFailed):
		return StateFailed, "process resisted termination"
	case q.wasCanceled(rec):
		return StateCanceled, "canceled"
	case out.HangTimeout:
		return StateFailed, "no output for " + q.config.OutputSilenceTimeout.String() + ", presumed hung"
	case status.Success:
		return StateSucceeded, ""
	default:
		return StateFailed, status.Reason
	}
}

func (q *Queue) wasCanceled(rec *record) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return rec.cancelRequested
}

// finish records the terminal state, releases the process handle,
// publishes the terminal event and re-runs the scheduler.
func (q *Queue) finish(rec *record, state State, reason string, exitCode int) {
	q.mu.Lock()
	q.running--
	q.finishLocked(rec, state, reason, exitCode)
	id := rec.job.ID
	q.mu.Unlock()

	var prog *events.Progress
	if state == StateSucceeded {
		prog = toEventProgress(rec.parser.Progress())
	}
	q.publishTerminal(id, state, reason, prog)
}

func (q *Queue) finishLocked(rec *record, state State, reason string, exitCode int) {
	if !rec.job.State.canTransition(state) {
		q.logger.Error("job %s: illegal transition %s -> %s", rec.job.ID, rec.job.State, state)
		return
	}
	rec.job.State = state
	rec.job.Reason = reason
	rec.job.ExitCode = exitCode
	rec.job.FinishedAt = time.Now()
	rec.proc = nil
	q.logger.Info("job %s %s%s", rec.job.ID, state, reasonSuffix(reason))
	q.scheduleLocked()
}

func reasonSuffix(reason string) string {
	if reason == "" {
		return ""
	}
	return ": " + reason
}

func (q *Queue) publishTerminal(id string, state State, reason string, prog *events.Progress) {
	if q.bus == nil {
		return
	}
	kind := events.KindFailed
	switch state {
	case StateSucceeded:
		kind = events.KindSucceeded
	case StateCanceled:
		kind = events.KindCanceled
	}
	q.bus.Publish(id, kind, prog, reason)
}

func toEventProgress(p parse.ProgressEvent) *events.Progress {
	return &events.Progress{
		PositionSeconds: p.Position.Seconds(),
		DurationSeconds: p.Duration.Seconds(),
		Percent:         p.Percent,
		Speed:           p.Speed,
		Frame:           p.Frame,
	}
}

// progressSink feeds encoder output to the parser and republishes the
// resulting events tagged with the job id
type progressSink struct {
	queue  *Queue
	rec    *record
	parser parse.Parser
}

func (s *progressSink) Feed(chunk []byte) {
	evs := s.parser.Feed(chunk)
	if len(evs) == 0 {
		return
	}

	q := s.queue
	last := evs[len(evs)-1]

	q.mu.Lock()
	job := &s.rec.job
	running := job.State == StateRunning
	if running {
		if last.Position > job.Progress.Position {
			job.Progress.Position = last.Position
		}
		if last.Duration > 0 && job.Progress.Duration == 0 {
			job.Progress.Duration = last.Duration
		}
		if last.Percent > job.Progress.Percent {
			job.Progress.Percent = last.Percent
		}
		job.Progress.Speed = last.Speed
		job.Progress.Frame = last.Frame
	}
	id := job.ID
	q.mu.Unlock()

	// late output after the terminal state must not produce events
	if !running || q.bus == nil {
		return
	}
	for _, ev := range evs {
		q.bus.Publish(id, events.KindProgress, toEventProgress(ev), "")
	}
}
