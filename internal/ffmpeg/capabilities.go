// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MediaMorph - 媒体文件转换队列工具

package ffmpeg

import (
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// Format is a supported container format
type Format struct {
	ID   string
	Name string
}

// Capabilities are the detected abilities of the encoder binary
type Capabilities struct {
	Version       string
	Compiler      string
	Configuration string
	Demuxers      []Format
	Muxers        []Format
}

// SupportsMuxer reports whether a container can be written. A muxer id
// line may list aliases, e.g. "mov,mp4,m4a,3gp,3g2,mj2".
func (c Capabilities) SupportsMuxer(id string) bool {
	for _, f := range c.Muxers {
		for _, alias := range strings.Split(f.ID, ",") {
			if alias == id {
				return true
			}
		}
	}
	return false
}

// DetectCapabilities runs the binary and parses its version and format
// listings
func DetectCapabilities(binary string) (Capabilities, error) {
	c := Capabilities{}

	out, err := run(binary, "-version")
	if err != nil {
		return Capabilities{}, fmt.Errorf("can't run ffmpeg: %w", err)
	}
	parseVersion(out, &c)
	if c.Version == "" {
		return Capabilities{}, fmt.Errorf("can't parse ffmpeg version")
	}

	if out, err := run(binary, "-formats"); err == nil {
		c.Demuxers, c.Muxers = parseFormats(out)
	}

	return c, nil
}

func run(binary string, args ...string) ([]byte, error) {
	cmd := exec.Command(binary, args...)
	cmd.Env = []string{}
	return cmd.CombinedOutput()
}

var (
	reVersion       = regexp.MustCompile(`^ffmpeg version ([0-9]+\.[0-9]+(\.[0-9]+)?)`)
	reCompiler      = regexp.MustCompile(`(?m)^\s*built with (.*)$`)
	reConfiguration = regexp.MustCompile(`(?m)^\s*configuration: (.*)$`)
	// " DE mov,mp4,m4a  QuickTime / MOV" 中 D 解封装,E 封装
	reFormat = regexp.MustCompile(`(?m)^ ([D ])([E ])\s+([a-z0-9_,]+)\s+(.*)$`)
)

func parseVersion(data []byte, c *Capabilities) {
	if m := reVersion.FindSubmatch(data); m != nil {
		c.Version = string(m[1])
		if len(m[2]) == 0 {
			c.Version += ".0"
		}
	}
	if m := reCompiler.FindSubmatch(data); m != nil {
		c.Compiler = string(m[1])
	}
	if m := reConfiguration.FindSubmatch(data); m != nil {
		c.Configuration = string(m[1])
	}
}

func parseFormats(data []byte) (demuxers, muxers []Format) {
	for _, m := range reFormat.FindAllSubmatch(data, -1) {
		f := Format{ID: string(m[3]), Name: strings.TrimSpace(string(m[4]))}
		if string(m[1]) == "D" {
			demuxers = append(demuxers, f)
		}
		if string(m[2]) == "E" {
			muxers = append(muxers, f)
		}
	}
	return demuxers, muxers
}
