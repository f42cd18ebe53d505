// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MediaMorph - 媒体文件转换队列工具
//
// Package parse turns raw encoder output into structured progress
// events. Chunks arrive in arbitrary sizes; partial lines are buffered
// until a delimiter is seen, so the resulting event sequence does not
// depend on chunk boundaries.

package parse

import (
	"container/ring"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// tailLines bounds the diagnostic context attached to a failure status
const tailLines = 20

// ProgressEvent is an immutable snapshot of conversion progress
type ProgressEvent struct {
	Position time.Duration // elapsed media time
	Duration time.Duration // total media time, 0 while unknown
	Percent  float64
	Speed    float64 // encoding speed relative to realtime
	Frame    uint64
	Size     uint64 // output bytes written so far
}

// StatusEvent is the terminal result derived from the exit code
type StatusEvent struct {
	Success  bool
	ExitCode int
	Reason   string
	Tail     []string // last lines of captured output, failure only
}

// Line is a timestamped output line
type Line struct {
	Timestamp time.Time
	Data      string
}

// Parser incrementally parses encoder output
type Parser interface {
	// Feed consumes a chunk and returns the progress events completed by it
	Feed(chunk []byte) []ProgressEvent
	// Finalize maps the exit code to a terminal status with diagnostics
	Finalize(exitCode int) StatusEvent
	// Progress returns the latest snapshot
	Progress() ProgressEvent
	// SetTotalDuration establishes the total media time if not yet known
	SetTotalDuration(d time.Duration)
	// WarningCount counts line-complete but unparseable progress input
	WarningCount() uint64
	// Log returns the buffered output tail
	Log() []Line
}

// Config for the parser
type Config struct {
	LogLines int
}

type parser struct {
	re struct {
		duration *regexp.Regexp
		time     *regexp.Regexp
		frame    *regexp.Regexp
		speed    *regexp.Regexp
		size     *regexp.Regexp
		// -progress 输出
		outTimeMs *regexp.Regexp
		totalSize *regexp.Regexp
		speedKV   *regexp.Regexp
	}

	buf      []byte
	log      *ring.Ring
	logLines int

	progress ProgressEvent
	warnings uint64
	lock     sync.RWMutex
}

// New creates a Parser
func New(config Config) Parser {
	p := &parser{logLines: config.LogLines}
	if p.logLines <= 0 {
		p.logLines = 100
	}
	p.re.duration = regexp.MustCompile(`Duration:\s*([0-9]+):([0-9]{2}):([0-9]{2})\.([0-9]+)`)
	p.re.time = regexp.MustCompile(`time=\s*([0-9]+):([0-9]{2}):([0-9]{2})\.([0-9]+)`)
	p.re.frame = regexp.MustCompile(`frame=\s*([0-9]+)`)
	p.re.speed = regexp.MustCompile(`speed=\s*([0-9\.]+)x`)
	p.re.size = regexp.MustCompile(`size=\s*([0-9]+)[kK]i?B`)
	p.re.outTimeMs = regexp.MustCompile(`^out_time_ms=([0-9]+)$`)
	p.re.totalSize = regexp.MustCompile(`^total_size=([0-9]+)$`)
	p.re.speedKV = regexp.MustCompile(`^speed=\s*([0-9\.]+)x?$`)
	p.log = ring.New(p.logLines)
	return p
}

func (p *parser) Feed(chunk []byte) []ProgressEvent {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.buf = append(p.buf, chunk...)

	var events []ProgressEvent
	for {
		line, rest, ok := nextLine(p.buf)
		if !ok {
			break
		}
		p.buf = rest
		if ev, emitted := p.parseLine(line); emitted {
			events = append(events, ev)
		}
	}
	return events
}

// nextLine splits off one complete line. The encoder rewrites progress
// lines in place, so '\r' terminates a line just like '\n'.
func nextLine(buf []byte) (string, []byte, bool) {
	for i, b := range buf {
		if b == '\n' || b == '\r' {
			line := string(buf[:i])
			rest := buf[i+1:]
			return line, rest, true
		}
	}
	return "", buf, false
}

// parseLine classifies one complete line. Unrecognized lines are kept
// in the log but produce no event and no error.
func (p *parser) parseLine(line string) (ProgressEvent, bool) {
	if strings.TrimSpace(line) != "" {
		p.log.Value = Line{Timestamp: time.Now(), Data: line}
		p.log = p.log.Next()
	}

	// 时长元数据行,首次出现生效
	if strings.Contains(line, "Duration:") {
		if p.progress.Duration == 0 {
			if m := p.re.duration.FindStringSubmatch(line); m != nil {
				p.progress.Duration = clockToDuration(m)
				p.recalc()
				return p.progress, true
			}
			if !strings.Contains(line, "N/A") {
				p.warnings++
			}
		}
		return ProgressEvent{}, false
	}

	if strings.Contains(line, "time=") && !strings.HasPrefix(line, "out_time") {
		m := p.re.time.FindStringSubmatch(line)
		if m == nil {
			p.warnings++
			return ProgressEvent{}, false
		}
		pos := clockToDuration(m)
		if pos >= p.progress.Position {
			p.progress.Position = pos
		}
		if m := p.re.frame.FindStringSubmatch(line); m != nil {
			if x, err := strconv.ParseUint(m[1], 10, 64); err == nil {
				p.progress.Frame = x
			}
		}
		if m := p.re.speed.FindStringSubmatch(line); m != nil {
			if x, err := strconv.ParseFloat(m[1], 64); err == nil {
				p.progress.Speed = x
			}
		}
		if m := p.re.size.FindStringSubmatch(line); m != nil {
			if x, err := strconv.ParseUint(m[1], 10, 64); err == nil {
				p.progress.Size = x * 1024
			}
		}
		p.recalc()
		return p.progress, true
	}

	// -progress 的 key=value 输出
	if m := p.re.outTimeMs.FindStringSubmatch(line); m != nil {
		x, err := strconv.ParseUint(m[1], 10, 64)
		if err != nil {
			p.warnings++
			return ProgressEvent{}, false
		}
		// out_time_ms 实为微秒
		pos := time.Duration(x) * time.Microsecond
		if pos >= p.progress.Position {
			p.progress.Position = pos
		}
		p.recalc()
		return p.progress, true
	}
	if strings.HasPrefix(line, "out_time_ms=") {
		p.warnings++
		return ProgressEvent{}, false
	}
	if m := p.re.totalSize.FindStringSubmatch(line); m != nil {
		if x, err := strconv.ParseUint(m[1], 10, 64); err == nil {
			p.progress.Size = x
		}
		return ProgressEvent{}, false
	}
	if m := p.re.speedKV.FindStringSubmatch(line); m != nil {
		if x, err := strconv.ParseFloat(m[1], 64); err == nil {
			p.progress.Speed = x
		}
		return ProgressEvent{}, false
	}
	if m := p.re.frame.FindStringSubmatch(line); m != nil && strings.HasPrefix(line, "frame=") {
		if x, err := strconv.ParseUint(m[1], 10, 64); err == nil {
			p.progress.Frame = x
		}
		return ProgressEvent{}, false
	}

	return ProgressEvent{}, false
}

func (p *parser) recalc() {
	if p.progress.Duration > 0 {
		pct := float64(p.progress.Position) / float64(p.progress.Duration) * 100
		if pct > 100 {
			pct = 100
		}
		p.progress.Percent = pct
	}
}

func clockToDuration(m []string) time.Duration {
	h, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	s, _ := strconv.Atoi(m[3])
	d := time.Duration(h)*time.Hour + time.Duration(mm)*time.Minute + time.Duration(s)*time.Second

	// 支持 .0 .00 .000 等
	if frac, err := strconv.ParseUint(m[4], 10, 64); err == nil {
		div := 1.0
		for range m[4] {
			div *= 10
		}
		d += time.Duration(float64(frac) / div * float64(time.Second))
	}
	return d
}

func (p *parser) Finalize(exitCode int) StatusEvent {
	p.lock.Lock()
	defer p.lock.Unlock()

	// flush a trailing partial line
	if len(p.buf) > 0 {
		p.parseLine(string(p.buf))
		p.buf = nil
	}

	if exitCode == 0 {
		return StatusEvent{Success: true, ExitCode: 0}
	}

	tail := p.tailLocked(tailLines)
	reason := "encoder exited with code " + strconv.Itoa(exitCode)
	if len(tail) > 0 {
		reason = tail[len(tail)-1]
	}
	return StatusEvent{
		Success:  false,
		ExitCode: exitCode,
		Reason:   reason,
		Tail:     tail,
	}
}

func (p *parser) Progress() ProgressEvent {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.progress
}

func (p *parser) SetTotalDuration(d time.Duration) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.progress.Duration == 0 && d > 0 {
		p.progress.Duration = d
		p.recalc()
	}
}

func (p *parser) WarningCount() uint64 {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.warnings
}

func (p *parser) Log() []Line {
	p.lock.RLock()
	defer p.lock.RUnlock()

	var out []Line
	p.log.Do(func(v interface{}) {
		if v != nil {
			out = append(out, v.(Line))
		}
	})
	return out
}

func (p *parser) tailLocked(n int) []string {
	var lines []string
	p.log.Do(func(v interface{}) {
		if v != nil {
			lines = append(lines, v.(Line).Data)
		}
	})
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}
