// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MediaMorph - 媒体文件转换队列工具
//
// Package profile holds conversion profiles and renders them into
// encoder argument lists. A Profile is validated when it is created and
// never mutated afterwards, so Arguments is infallible.

package profile

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidProfile = errors.New("invalid profile")
	ErrUnknownProfile = errors.New("unknown profile")
)

// audio-only containers must not carry a video codec
var audioOnlyContainers = map[string]bool{
	"mp3":  true,
	"flac": true,
	"wav":  true,
	"oga":  true,
	"adts": true,
}

// Spec describes a conversion profile before validation
type Spec struct {
	ID           string
	Label        string
	Container    string // ffmpeg muxer name, e.g. "mp4", "webm", "matroska"
	Extension    string // output file extension, e.g. ".mp4"
	VideoCodec   string
	AudioCodec   string
	VideoBitrate string
	AudioBitrate string
	Extra        []string // extra encoder flags appended verbatim
	QualityTag   string   // prepended to tagged output file names
}

// Profile is an immutable, validated conversion profile
type Profile struct {
	spec Spec
}

// New validates a Spec and returns an immutable Profile
func New(spec Spec) (*Profile, error) {
	if spec.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrInvalidProfile)
	}
	if spec.Container == "" {
		return nil, fmt.Errorf("%w: missing target container", ErrInvalidProfile)
	}
	if spec.VideoCodec == "" && spec.AudioCodec == "" {
		return nil, fmt.Errorf("%w: at least one codec required", ErrInvalidProfile)
	}
	if audioOnlyContainers[spec.Container] && spec.VideoCodec != "" {
		return nil, fmt.Errorf("%w: video codec %q set on audio-only container %q",
			ErrInvalidProfile, spec.VideoCodec, spec.Container)
	}
	if spec.Extension == "" {
		spec.Extension = "." + spec.Container
	}
	spec.Extra = append([]string(nil), spec.Extra...)
	return &Profile{spec: spec}, nil
}

func (p *Profile) ID() string         { return p.spec.ID }
func (p *Profile) Label() string      { return p.spec.Label }
func (p *Profile) Container() string  { return p.spec.Container }
func (p *Profile) Extension() string  { return p.spec.Extension }
func (p *Profile) QualityTag() string { return p.spec.QualityTag }

// AudioOnly reports whether the profile produces no video stream
func (p *Profile) AudioOnly() bool {
	return p.spec.VideoCodec == ""
}

// Arguments renders the encoder argument list. Deterministic and pure;
// input/output paths are supplied by the caller around it.
func (p *Profile) Arguments() []string {
	var args []string
	if p.spec.VideoCodec != "" {
		args = append(args, "-c:v", p.spec.VideoCodec)
		if p.spec.VideoBitrate != "" {
			args = append(args, "-b:v", p.spec.VideoBitrate)
		}
	} else {
		args = append(args, "-vn")
	}
	if p.spec.AudioCodec != "" {
		args = append(args, "-c:a", p.spec.AudioCodec)
		if p.spec.AudioBitrate != "" {
			args = append(args, "-b:a", p.spec.AudioBitrate)
		}
	}
	args = append(args, p.spec.Extra...)
	args = append(args, "-f", p.spec.Container)
	return args
}

// Customize returns a copy with modified bitrates and extra flags
// (copy-on-customize, the original stays untouched). Empty arguments
// keep the original value.
func (p *Profile) Customize(id, videoBitrate, audioBitrate string, extra []string) (*Profile, error) {
	spec := p.spec
	if id != "" {
		spec.ID = id
	}
	if videoBitrate != "" {
		spec.VideoBitrate = videoBitrate
	}
	if audioBitrate != "" {
		spec.AudioBitrate = audioBitrate
	}
	if extra != nil {
		spec.Extra = append([]string(nil), extra...)
	}
	return New(spec)
}
