// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MediaMorph - 媒体文件转换队列工具
//
// Package probe extracts source metadata via the external prober. The
// prober is known to wedge on some inputs, so it runs under the same
// supervision as the encoder, with the output silence timeout applied.

package probe

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ZSC714725/mediamorph/internal/logger"
	"github.com/ZSC714725/mediamorph/internal/process"
)

var ErrProbe = errors.New("probe failed")

// Info is the parsed format section of a media file
type Info struct {
	Format   string
	Duration time.Duration
	Size     uint64
	BitRate  uint64
	Streams  int
}

// Config for the prober
type Config struct {
	Binary         string
	SilenceTimeout time.Duration
	GracePeriod    time.Duration
	Logger         logger.Logger
}

// Prober runs the external probe binary against source files
type Prober struct {
	binary  string
	silence time.Duration
	grace   time.Duration
	logger  logger.Logger
}

// New resolves the prober binary
func New(config Config) (*Prober, error) {
	binary, err := exec.LookPath(config.Binary)
	if err != nil {
		return nil, fmt.Errorf("invalid ffprobe binary: %w", err)
	}
	if config.SilenceTimeout <= 0 {
		config.SilenceTimeout = 10 * time.Second
	}
	if config.Logger == nil {
		config.Logger = logger.NewNop()
	}
	return &Prober{
		binary:  binary,
		silence: config.SilenceTimeout,
		grace:   config.GracePeriod,
		logger:  config.Logger,
	}, nil
}

// Probe reads the format metadata of one source file
func (p *Prober) Probe(path string) (Info, error) {
	sink := &collectSink{}

	proc, err := process.Start(process.Config{
		Binary:         p.binary,
		Args:           []string{"-v", "error", "-show_format", path},
		Sink:           sink,
		SilenceTimeout: p.silence,
		GracePeriod:    p.grace,
		Logger:         p.logger,
	})
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrProbe, err)
	}

	out := proc.Wait()
	if out.Err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrProbe, out.Err)
	}
	if out.ExitCode != 0 {
		return Info{}, fmt.Errorf("%w: prober exited with code %d: %s",
			ErrProbe, out.ExitCode, sink.tail())
	}

	info := ParseFormat(sink.String())
	if info.Duration <= 0 {
		return Info{}, fmt.Errorf("%w: no valid duration in %s", ErrProbe, path)
	}
	return info, nil
}

// ParseFormat parses "-show_format" key=value output
func ParseFormat(output string) Info {
	info := Info{}
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch k {
		case "format_name":
			info.Format = v
		case "duration":
			if x, err := strconv.ParseFloat(v, 64); err == nil {
				info.Duration = time.Duration(x * float64(time.Second))
			}
		case "size":
			if x, err := strconv.ParseUint(v, 10, 64); err == nil {
				info.Size = x
			}
		case "bit_rate":
			if x, err := strconv.ParseUint(v, 10, 64); err == nil {
				info.BitRate = x
			}
		case "nb_streams":
			if x, err := strconv.Atoi(v); err == nil {
				info.Streams = x
			}
		}
	}
	return info
}

type collectSink struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *collectSink) Feed(chunk []byte) {
	s.mu.Lock()
	s.buf.Write(chunk)
	s.mu.Unlock()
}

func (s *collectSink) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func (s *collectSink) tail() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := strings.Split(strings.TrimSpace(s.buf.String()), "\n")
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}
