// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MediaMorph - 媒体文件转换队列工具

package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 应用配置
type Config struct {
	Server Server `yaml:"server"`
	FFmpeg FFmpeg `yaml:"ffmpeg"`
	Queue  Queue  `yaml:"queue"`
}

// Server 服务配置
type Server struct {
	Bind string `yaml:"bind"`
}

// FFmpeg 编码器配置
type FFmpeg struct {
	Path      string `yaml:"path"`
	ProbePath string `yaml:"probe_path"`
	LogLines  int    `yaml:"log_lines"`
}

// Queue 任务队列配置
type Queue struct {
	MaxConcurrentJobs        int    `yaml:"max_concurrent_jobs"`
	OutputSilenceTimeoutSecs uint64 `yaml:"output_silence_timeout_seconds"`
	TerminationGraceSecs     uint64 `yaml:"termination_grace_period_seconds"`
}

// OutputSilenceTimeout returns the liveness timeout as a duration
func (q Queue) OutputSilenceTimeout() time.Duration {
	return time.Duration(q.OutputSilenceTimeoutSecs) * time.Second
}

// TerminationGracePeriod returns the stop escalation delay as a duration
func (q Queue) TerminationGracePeriod() time.Duration {
	return time.Duration(q.TerminationGraceSecs) * time.Second
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Server: Server{Bind: ":8080"},
		FFmpeg: FFmpeg{Path: "ffmpeg", ProbePath: "ffprobe", LogLines: 100},
		Queue: Queue{
			MaxConcurrentJobs:        1,
			OutputSilenceTimeoutSecs: 30,
			TerminationGraceSecs:     3,
		},
	}
}

// Load 从 YAML 文件加载配置
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// 填充空值
	if cfg.Server.Bind == "" {
		cfg.Server.Bind = ":8080"
	}
	if cfg.FFmpeg.Path == "" {
		cfg.FFmpeg.Path = "ffmpeg"
	}
	if cfg.FFmpeg.ProbePath == "" {
		cfg.FFmpeg.ProbePath = "ffprobe"
	}
	if cfg.FFmpeg.LogLines <= 0 {
		cfg.FFmpeg.LogLines = 100
	}
	if cfg.Queue.MaxConcurrentJobs < 1 {
		cfg.Queue.MaxConcurrentJobs = 1
	}
	if cfg.Queue.OutputSilenceTimeoutSecs == 0 {
		cfg.Queue.OutputSilenceTimeoutSecs = 30
	}
	if cfg.Queue.TerminationGraceSecs == 0 {
		cfg.Queue.TerminationGraceSecs = 3
	}

	return cfg, nil
}
