// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ConvertQueue - FFmpeg 媒体转换队列

package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config 应用配置
type Config struct {
	Server ServerConfig `yaml:"server"`
	FFmpeg FFmpegConfig `yaml:"ffmpeg"`
	Jobs   JobsConfig   `yaml:"jobs"`
	Watch  WatchConfig  `yaml:"watch"`
}

// ServerConfig 服务配置
type ServerConfig struct {
	Bind string `yaml:"bind"`
}

// FFmpegConfig FFmpeg/ffprobe 配置
type FFmpegConfig struct {
	Path      string `yaml:"path"`
	ProbePath string `yaml:"probe_path"`
	Strategy  string `yaml:"strategy"` // software | hardware-first, 默认 software
}

// JobsConfig controls the scheduler and the per-job runner.
type JobsConfig struct {
	MaxConcurrency      int    `yaml:"max_concurrency"`
	LogLines            int    `yaml:"log_lines"`
	Autostart           bool   `yaml:"autostart"`
	OutputDir           string `yaml:"output_dir"`
	KillGraceSeconds    int    `yaml:"kill_grace_seconds"`
	StaleTimeoutSeconds int    `yaml:"stale_timeout_seconds"` // 0 关闭
}

// WatchConfig enables the inbox watcher when Dir is set.
type WatchConfig struct {
	Dir    string `yaml:"dir"`
	Preset string `yaml:"preset"`
	Tier   string `yaml:"tier"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{Bind: ":8080"},
		FFmpeg: FFmpegConfig{Path: "ffmpeg", ProbePath: "ffprobe"},
		Jobs: JobsConfig{
			MaxConcurrency:   2,
			LogLines:         500,
			Autostart:        true,
			KillGraceSeconds: 5,
		},
		Watch: WatchConfig{Preset: "mp4-h264", Tier: "balanced"},
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
	if cfg.Jobs.MaxConcurrency < 1 {
		cfg.Jobs.MaxConcurrency = 2
	}
	if cfg.Jobs.LogLines <= 0 {
		cfg.Jobs.LogLines = 500
	}
	if cfg.Jobs.KillGraceSeconds <= 0 {
		cfg.Jobs.KillGraceSeconds = 5
	}
	if cfg.Watch.Preset == "" {
		cfg.Watch.Preset = "mp4-h264"
	}
	if cfg.Watch.Tier == "" {
		cfg.Watch.Tier = "balanced"
	}

	return cfg, nil
}
