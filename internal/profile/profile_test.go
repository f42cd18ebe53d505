// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MediaMorph - 媒体文件转换队列工具

package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresContainer(t *testing.T) {
	_, err := New(Spec{ID: "x", VideoCodec: "libx264"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidProfile)
}

func TestNewRequiresACodec(t *testing.T) {
	_, err := New(Spec{ID: "x", Container: "mp4"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidProfile)
}

func TestNewRejectsVideoCodecOnAudioContainer(t *testing.T) {
	_, err := New(Spec{
		ID:         "x",
		Container:  "mp3",
		VideoCodec: "libx264",
		AudioCodec: "libmp3lame",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidProfile)
}

func TestArgumentsDeterministic(t *testing.T) {
	p, err := New(Spec{
		ID:           "x",
		Container:    "mp4",
		VideoCodec:   "libx264",
		AudioCodec:   "aac",
		VideoBitrate: "1500k",
		AudioBitrate: "128k",
		Extra:        []string{"-preset", "medium"},
	})
	require.NoError(t, err)

	want := []string{
		"-c:v", "libx264", "-b:v", "1500k",
		"-c:a", "aac", "-b:a", "128k",
		"-preset", "medium",
		"-f", "mp4",
	}
	for i := 0; i < 5; i++ {
		assert.Equal(t, want, p.Arguments())
	}
}

func TestArgumentsAudioOnly(t *testing.T) {
	p, err := New(Spec{ID: "x", Container: "mp3", AudioCodec: "libmp3lame"})
	require.NoError(t, err)

	assert.True(t, p.AudioOnly())
	assert.Equal(t, []string{"-vn", "-c:a", "libmp3lame", "-f", "mp3"}, p.Arguments())
}

func TestExtensionDefaultsToContainer(t *testing.T) {
	p, err := New(Spec{ID: "x", Container: "webm", VideoCodec: "libvpx"})
	require.NoError(t, err)
	assert.Equal(t, ".webm", p.Extension())
}

func TestCustomizeCopiesOnWrite(t *testing.T) {
	p, err := New(Spec{
		ID: "x", Container: "mp4",
		VideoCodec: "libx264", AudioCodec: "aac",
		VideoBitrate: "1500k",
	})
	require.NoError(t, err)

	custom, err := p.Customize("y", "4000k", "", nil)
	require.NoError(t, err)

	assert.Equal(t, "y", custom.ID())
	assert.Contains(t, custom.Arguments(), "4000k")
	assert.Contains(t, p.Arguments(), "1500k")
	assert.NotContains(t, p.Arguments(), "4000k")
}

func TestCatalogBuiltins(t *testing.T) {
	c := NewCatalog()

	list := c.List()
	require.NotEmpty(t, list)

	p, err := c.Get("mp4-h264")
	require.NoError(t, err)
	assert.Equal(t, "mp4", p.Container())
	assert.Equal(t, ".mp4", p.Extension())

	_, err = c.Get("no-such-profile")
	assert.ErrorIs(t, err, ErrUnknownProfile)
}

func TestCatalogAdd(t *testing.T) {
	c := NewCatalog()

	p, err := c.Add(Spec{ID: "custom", Container: "mp4", VideoCodec: "libx264"})
	require.NoError(t, err)

	got, err := c.Get("custom")
	require.NoError(t, err)
	assert.Equal(t, p, got)

	_, err = c.Add(Spec{ID: "custom", Container: "mp4", VideoCodec: "libx264"})
	assert.Error(t, err)
}
