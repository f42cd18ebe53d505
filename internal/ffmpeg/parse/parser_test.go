// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MediaMorph - 媒体文件转换队列工具

package parse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleStderr = "ffmpeg version 6.1 Copyright (c) 2000-2023\n" +
	"Input #0, mov,mp4,m4a,3gp,3g2,mj2, from 'in.mov':\n" +
	"  Duration: 00:00:10.00, start: 0.000000, bitrate: 1205 kb/s\n" +
	"Output #0, mp4, to 'out.mp4':\n" +
	"frame=   50 fps= 25 q=28.0 size=     128kB time=00:00:02.00 bitrate= 524.3kbits/s speed=1.25x\r" +
	"frame=  125 fps= 25 q=28.0 size=     512kB time=00:00:05.00 bitrate= 838.9kbits/s speed=1.30x\r" +
	"frame=  250 fps= 25 q=28.0 size=    1024kB time=00:00:10.00 bitrate= 838.9kbits/s speed=1.28x\n"

func TestFeedParsesDurationAndProgress(t *testing.T) {
	p := New(Config{})

	events := p.Feed([]byte(sampleStderr))
	require.Len(t, events, 4) // duration + three progress lines

	last := events[len(events)-1]
	assert.Equal(t, 10*time.Second, last.Position)
	assert.Equal(t, 10*time.Second, last.Duration)
	assert.InDelta(t, 100.0, last.Percent, 0.01)
	assert.InDelta(t, 1.28, last.Speed, 0.001)
	assert.Equal(t, uint64(250), last.Frame)
	assert.Equal(t, uint64(1024*1024), last.Size)
	assert.Zero(t, p.WarningCount())
}

func TestFirstDurationWins(t *testing.T) {
	p := New(Config{})
	p.Feed([]byte("  Duration: 00:00:10.00, start: 0.000000\n"))
	p.Feed([]byte("  Duration: 00:01:00.00, start: 0.000000\n"))
	assert.Equal(t, 10*time.Second, p.Progress().Duration)
}

func TestChunkBoundaryIndependence(t *testing.T) {
	full := New(Config{})
	want := full.Feed([]byte(sampleStderr))

	for _, size := range []int{1, 3, 7, 64, 1024} {
		p := New(Config{})
		var got []ProgressEvent
		data := []byte(sampleStderr)
		for i := 0; i < len(data); i += size {
			end := i + size
			if end > len(data) {
				end = len(data)
			}
			got = append(got, p.Feed(data[i:end])...)
		}
		assert.Equal(t, want, got, "chunk size %d", size)
	}
}

func TestProgressKeyValueForm(t *testing.T) {
	p := New(Config{})
	p.SetTotalDuration(20 * time.Second)

	events := p.Feed([]byte("frame=100\nout_time_ms=5000000\ntotal_size=2048\nspeed=1.5x\nprogress=continue\n"))
	require.Len(t, events, 1)

	got := p.Progress()
	assert.Equal(t, 5*time.Second, got.Position)
	assert.InDelta(t, 25.0, got.Percent, 0.01)
	assert.Equal(t, uint64(2048), got.Size)
	assert.InDelta(t, 1.5, got.Speed, 0.001)
	assert.Equal(t, uint64(100), got.Frame)
}

func TestSetTotalDurationDoesNotOverride(t *testing.T) {
	p := New(Config{})
	p.Feed([]byte("  Duration: 00:00:10.00, start: 0.000000\n"))
	p.SetTotalDuration(99 * time.Second)
	assert.Equal(t, 10*time.Second, p.Progress().Duration)
}

func TestMalformedLinesCountWarnings(t *testing.T) {
	p := New(Config{})

	events := p.Feed([]byte("size= 1kB time=bogus bitrate=x\nout_time_ms=notanumber\n"))
	assert.Empty(t, events)
	assert.Equal(t, uint64(2), p.WarningCount())

	// 无关行不计入警告
	p.Feed([]byte("Stream mapping:\n  Stream #0:0 -> #0:0\n"))
	assert.Equal(t, uint64(2), p.WarningCount())
}

func TestPositionNeverDecreases(t *testing.T) {
	p := New(Config{})
	p.Feed([]byte("frame= 10 size= 1kB time=00:00:05.00 speed=1x\n"))
	p.Feed([]byte("frame= 11 size= 2kB time=00:00:03.00 speed=1x\n"))
	assert.Equal(t, 5*time.Second, p.Progress().Position)
}

func TestFinalizeSuccess(t *testing.T) {
	p := New(Config{})
	p.Feed([]byte(sampleStderr))

	status := p.Finalize(0)
	assert.True(t, status.Success)
	assert.Equal(t, 0, status.ExitCode)
	assert.Empty(t, status.Tail)
}

func TestFinalizeFailureAttachesTail(t *testing.T) {
	p := New(Config{LogLines: 50})
	p.Feed([]byte("Input #0, movOutput muxer stuff\nout.mp4: Permission denied\n"))

	status := p.Finalize(1)
	require.False(t, status.Success)
	assert.Equal(t, 1, status.ExitCode)
	assert.Equal(t, "out.mp4: Permission denied", status.Reason)
	assert.LessOrEqual(t, len(status.Tail), 20)
	assert.Contains(t, status.Tail, "out.mp4: Permission denied")
}

func TestFinalizeFlushesTrailingPartialLine(t *testing.T) {
	p := New(Config{})
	p.Feed([]byte("out.mp4: No space left on device")) // no trailing newline

	status := p.Finalize(1)
	assert.Equal(t, "out.mp4: No space left on device", status.Reason)
}

func TestLogIsBounded(t *testing.T) {
	p := New(Config{LogLines: 5})
	for i := 0; i < 20; i++ {
		p.Feed([]byte("some diagnostic line\n"))
	}
	assert.Len(t, p.Log(), 5)
}
