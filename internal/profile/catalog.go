// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MediaMorph - 媒体文件转换队列工具

package profile

import (
	"fmt"
	"sync"
)

// Catalog holds named profiles, built-in presets plus user additions
type Catalog struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
	order    []string
}

// NewCatalog returns a catalog populated with the built-in presets
func NewCatalog() *Catalog {
	c := &Catalog{profiles: make(map[string]*Profile)}
	for _, spec := range builtinSpecs {
		p, err := New(spec)
		if err != nil {
			// 内置预设必须有效
			panic(fmt.Sprintf("builtin preset %s: %v", spec.ID, err))
		}
		c.profiles[p.ID()] = p
		c.order = append(c.order, p.ID())
	}
	return c
}

// Get returns the profile with the given id
func (c *Catalog) Get(id string) (*Profile, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.profiles[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProfile, id)
	}
	return p, nil
}

// List returns all profiles in registration order
func (c *Catalog) List() []*Profile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Profile, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.profiles[id])
	}
	return out
}

// Add validates and registers a customized profile
func (c *Catalog) Add(spec Spec) (*Profile, error) {
	p, err := New(spec)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.profiles[p.ID()]; exists {
		return nil, fmt.Errorf("%w: id %s already registered", ErrInvalidProfile, p.ID())
	}
	c.profiles[p.ID()] = p
	c.order = append(c.order, p.ID())
	return p, nil
}

// builtinSpecs mirror the classic desktop converter presets
var builtinSpecs = []Spec{
	{
		ID: "mp4-h264", Label: "MP4 (H.264/AAC)",
		Container: "mp4", Extension: ".mp4",
		VideoCodec: "libx264", AudioCodec: "aac",
		VideoBitrate: "1500k", AudioBitrate: "128k",
		Extra:      []string{"-preset", "medium", "-movflags", "+faststart"},
		QualityTag: "[MP4]",
	},
	{
		ID: "mp4-h264-hq", Label: "MP4 High Quality (H.264/AAC)",
		Container: "mp4", Extension: ".mp4",
		VideoCodec: "libx264", AudioCodec: "aac",
		VideoBitrate: "4000k", AudioBitrate: "192k",
		Extra:      []string{"-preset", "slow", "-movflags", "+faststart"},
		QualityTag: "[MP4HQ]",
	},
	{
		ID: "webm-vp8", Label: "WEBM (VP8/Vorbis)",
		Container: "webm", Extension: ".webm",
		VideoCodec: "libvpx", AudioCodec: "libvorbis",
		VideoBitrate: "1200k", AudioBitrate: "112k",
		QualityTag: "[WEBM]",
	},
	{
		ID: "mkv-h265", Label: "MKV (H.265/AAC)",
		Container: "matroska", Extension: ".mkv",
		VideoCodec: "libx265", AudioCodec: "aac",
		VideoBitrate: "2000k", AudioBitrate: "160k",
		Extra:      []string{"-preset", "medium"},
		QualityTag: "[MKV]",
	},
	{
		ID: "avi-mpeg4", Label: "AVI (MPEG-4/MP3)",
		Container: "avi", Extension: ".avi",
		VideoCodec: "mpeg4", AudioCodec: "libmp3lame",
		VideoBitrate: "1000k", AudioBitrate: "128k",
		Extra:      []string{"-vtag", "DIVX"},
		QualityTag: "[AVI]",
	},
	{
		ID: "ogv-theora", Label: "OGV (Theora/Vorbis)",
		Container: "ogg", Extension: ".ogv",
		VideoCodec: "libtheora", AudioCodec: "libvorbis",
		VideoBitrate: "1000k", AudioBitrate: "112k",
		QualityTag: "[OGV]",
	},
	{
		ID: "wmv", Label: "WMV (WMV2/WMA)",
		Container: "asf", Extension: ".wmv",
		VideoCodec: "wmv2", AudioCodec: "wmav2",
		VideoBitrate: "1200k", AudioBitrate: "128k",
		QualityTag: "[WMV]",
	},
	{
		ID: "mp3", Label: "MP3 (audio only)",
		Container: "mp3", Extension: ".mp3",
		AudioCodec:   "libmp3lame",
		AudioBitrate: "192k",
		QualityTag:   "[MP3]",
	},
}
