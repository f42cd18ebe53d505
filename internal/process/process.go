// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MediaMorph - 媒体文件转换队列工具
//
// Package process supervises one external encoder or prober process:
// it spawns the binary with merged stdout/stderr, streams raw output
// chunks to a sink, watches for output silence, and guarantees the
// process is gone after a stop or timeout.

package process

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/ZSC714725/mediamorph/internal/logger"
)

var (
	ErrSpawn             = errors.New("spawn failed")
	ErrHangTimeout       = errors.New("no output within silence window")
	ErrTerminationFailed = errors.New("process did not terminate")
)

// maxKillAttempts bounds the stop escalation before giving up
const maxKillAttempts = 3

// Sink consumes raw output chunks as the process produces them
type Sink interface {
	Feed(chunk []byte)
}

// Config for a supervised process
type Config struct {
	Binary         string
	Args           []string
	Dir            string
	Sink           Sink
	SilenceTimeout time.Duration // 0 disables the liveness watchdog
	GracePeriod    time.Duration // interrupt to kill escalation delay
	Sampler        Sampler
	Logger         logger.Logger
}

// Outcome describes how the process ended
type Outcome struct {
	ExitCode    int
	Stopped     bool // a Stop was requested before exit
	HangTimeout bool // the liveness watchdog fired
	Err         error
}

// Process is one live external process
type Process struct {
	cmd     *exec.Cmd
	pid     int
	sink    Sink
	sampler Sampler
	logger  logger.Logger
	grace   time.Duration

	done       chan struct{}
	termFailed chan struct{}
	outcome    Outcome

	mu            sync.Mutex
	lastOutput    time.Time
	staleTimeout  time.Duration
	stopRequested bool
	hang          bool
	exited        bool

	stopOnce       sync.Once
	staleOnce      sync.Once
	termFailedOnce sync.Once
	staleStop      chan struct{}
}

// Start spawns the process with stdout and stderr merged into one
// stream feeding the sink.
func Start(config Config) (*Process, error) {
	if config.Binary == "" {
		return nil, fmt.Errorf("%w: no binary given", ErrSpawn)
	}
	if config.GracePeriod <= 0 {
		config.GracePeriod = 3 * time.Second
	}
	if config.Sink == nil {
		config.Sink = &nullSink{}
	}
	if config.Sampler == nil {
		config.Sampler = NewSysSampler()
	}
	if config.Logger == nil {
		config.Logger = logger.NewNop()
	}

	p := &Process{
		sink:         config.Sink,
		sampler:      config.Sampler,
		logger:       config.Logger,
		grace:        config.GracePeriod,
		staleTimeout: config.SilenceTimeout,
		done:         make(chan struct{}),
		termFailed:   make(chan struct{}),
		staleStop:    make(chan struct{}),
	}

	cmd := exec.Command(config.Binary, config.Args...)
	cmd.Dir = config.Dir
	cmd.Env = []string{}

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpawn, err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, fmt.Errorf("%w: %v", ErrSpawn, err)
	}
	pw.Close()

	p.cmd = cmd
	p.pid = cmd.Process.Pid
	p.lastOutput = time.Now()

	if err := p.sampler.Attach(p.pid); err != nil {
		p.logger.Debug("usage sampler attach pid %d: %v", p.pid, err)
	}

	go p.reader(pr)
	if p.staleTimeout > 0 {
		go p.staler()
	}

	return p, nil
}

// Pid returns the OS process id
func (p *Process) Pid() int { return p.pid }

// Running reports whether the process has not yet exited
func (p *Process) Running() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Usage returns current CPU percentage and resident memory
func (p *Process) Usage() (cpu float64, memory uint64) {
	return p.sampler.Current()
}

// Stop requests graceful termination, escalating to kill after the
// grace period. Idempotent; stopping an exited process is a no-op.
func (p *Process) Stop() {
	p.mu.Lock()
	if p.exited {
		p.mu.Unlock()
		return
	}
	p.stopRequested = true
	p.mu.Unlock()
	p.terminate()
}

// Wait blocks until the process exits or termination is given up on
func (p *Process) Wait() Outcome {
	select {
	case <-p.done:
		return p.outcome
	case <-p.termFailed:
		p.mu.Lock()
		o := Outcome{
			ExitCode:    -1,
			Stopped:     p.stopRequested,
			HangTimeout: p.hang,
			Err:         ErrTerminationFailed,
		}
		p.mu.Unlock()
		return o
	}
}

func (p *Process) terminate() {
	p.stopOnce.Do(func() {
		if runtime.GOOS == "windows" {
			p.cmd.Process.Kill()
		} else {
			if err := p.cmd.Process.Signal(os.Interrupt); err != nil {
				p.cmd.Process.Kill()
			}
		}
		go p.escalate()
	})
}

// escalate confirms termination, killing again after each grace period
// until the attempt budget is spent.
func (p *Process) escalate() {
	for attempt := 1; attempt <= maxKillAttempts; attempt++ {
		select {
		case <-p.done:
			return
		case <-time.After(p.grace):
			p.logger.Error("process %d still alive, kill attempt %d", p.pid, attempt)
			p.cmd.Process.Kill()
		}
	}
	select {
	case <-p.done:
	case <-time.After(p.grace):
		p.logger.Error("process %d resisted termination", p.pid)
		p.termFailedOnce.Do(func() { close(p.termFailed) })
	}
}

func (p *Process) reader(r *os.File) {
	buf := make([]byte, 8192)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			p.mu.Lock()
			p.lastOutput = time.Now()
			p.mu.Unlock()

			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			p.sink.Feed(chunk)
		}
		if err != nil {
			break
		}
	}
	r.Close()
	p.waiter()
}

// staler watches for output silence. The deadline resets on every
// observed chunk, not on wall time since start.
func (p *Process) staler() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-p.staleStop:
			return
		case now := <-ticker.C:
			p.mu.Lock()
			silent := now.Sub(p.lastOutput) > p.staleTimeout
			if silent {
				p.hang = true
			}
			p.mu.Unlock()

			if silent {
				p.logger.Error("process %d silent for over %s, terminating", p.pid, p.staleTimeout)
				p.terminate()
				return
			}
		}
	}
}

func (p *Process) waiter() {
	err := p.cmd.Wait()

	exitCode := 0
	if err != nil {
		exitCode = -1
		if exiterr, ok := err.(*exec.ExitError); ok {
			if status, ok := exiterr.Sys().(syscall.WaitStatus); ok && status.Exited() {
				exitCode = status.ExitStatus()
			}
		}
	}

	p.sampler.Detach()
	p.staleOnce.Do(func() { close(p.staleStop) })

	p.mu.Lock()
	p.exited = true
	o := Outcome{
		ExitCode:    exitCode,
		Stopped:     p.stopRequested,
		HangTimeout: p.hang,
	}
	if p.hang {
		o.Err = ErrHangTimeout
	}
	p.mu.Unlock()

	p.outcome = o
	close(p.done)
}

type nullSink struct{}

func (s *nullSink) Feed(chunk []byte) {}
