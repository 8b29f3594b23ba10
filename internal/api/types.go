// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ConvertQueue - FFmpeg 媒体转换队列

package api

import (
	"github.com/ZSC714725/convertqueue/internal/ffmpeg/caps"
	"github.com/ZSC714725/convertqueue/internal/job"
	"github.com/ZSC714725/convertqueue/internal/plan"
)

// EnqueueRequest for POST /api/v1/jobs
type EnqueueRequest struct {
	Source string `json:"source" binding:"required"`
	Preset string `json:"preset" binding:"required"`
	Tier   string `json:"tier"`
}

// EnqueueResponse returns the created job id. A source that already has an
// unfinished job is skipped and gets no id.
type EnqueueResponse struct {
	ID      string `json:"id"`
	Skipped bool   `json:"skipped,omitempty"`
}

// BatchRequest for POST /api/v1/jobs/batch
type BatchRequest struct {
	Sources []string `json:"sources" binding:"required"`
	Preset  string   `json:"preset" binding:"required"`
	Tier    string   `json:"tier"`
}

// BatchResponse lists the jobs actually created
type BatchResponse struct {
	IDs     []string `json:"ids"`
	Skipped int      `json:"skipped"`
}

// JobDetail is a job snapshot plus live process stats while running
type JobDetail struct {
	job.Snapshot
	CPU    *float64 `json:"cpu_usage,omitempty"`
	Memory *uint64  `json:"memory_bytes,omitempty"`
}

// LogResponse for GET /api/v1/jobs/:id/log
type LogResponse struct {
	ID    string   `json:"id"`
	Lines []string `json:"lines"`
}

// ClearResponse for DELETE /api/v1/jobs/completed
type ClearResponse struct {
	Removed []string `json:"removed"`
}

// StartNextResponse for POST /api/v1/scheduler/start-next
type StartNextResponse struct {
	Started bool `json:"started"`
}

// ConcurrencyRequest for PUT /api/v1/scheduler/concurrency
type ConcurrencyRequest struct {
	Max int `json:"max" binding:"required"`
}

// SchedulerStatus for GET /api/v1/scheduler
type SchedulerStatus struct {
	QueueLength    int    `json:"queue_length"`
	Active         int    `json:"active"`
	MaxConcurrency int    `json:"max_concurrency"`
	Autostart      bool   `json:"autostart"`
	NextID         string `json:"next_id,omitempty"`
}

// PresetInfo is one catalog entry with its availability under the current
// capability snapshot
type PresetInfo struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Container    string   `json:"container"`
	Kind         string   `json:"kind"`
	VideoCodec   string   `json:"video_codec,omitempty"`
	AudioCodec   string   `json:"audio_codec,omitempty"`
	Subtitle     string   `json:"subtitle,omitempty"`
	Tiers        []string `json:"tiers"`
	RemuxOnly    bool     `json:"remux_only,omitempty"`
	Exclusive    bool     `json:"exclusive,omitempty"`
	Experimental bool     `json:"experimental,omitempty"`
	Available    bool     `json:"available"`
}

// CapabilitiesResponse for GET /api/v1/capabilities
type CapabilitiesResponse struct {
	Binary        string   `json:"binary,omitempty"`
	ProbeBinary   string   `json:"probe_binary,omitempty"`
	Strategy      string   `json:"strategy"`
	VideoEncoders []string `json:"video_encoders"`
	AudioEncoders []string `json:"audio_encoders"`
	Formats       []string `json:"formats"`
	Filters       []string `json:"filters"`
}

// ErrorResponse for API errors
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func presetToAPI(p plan.Preset, snapshot caps.Snapshot, strategy plan.EncoderStrategy) PresetInfo {
	info := PresetInfo{
		ID:           p.ID,
		Name:         p.Name,
		Container:    p.Container,
		Kind:         string(p.Kind),
		VideoCodec:   p.Video.Codec,
		AudioCodec:   p.Audio.Codec,
		Subtitle:     string(p.Subtitle),
		Tiers:        presetTiers(p),
		RemuxOnly:    p.RemuxOnly,
		Exclusive:    p.Exclusive(),
		Experimental: p.Experimental,
		Available:    plan.PresetIsAvailable(p, snapshot, strategy),
	}
	return info
}

// presetTiers lists the tiers the preset actually defines, in the fixed
// fast/balanced/high order
func presetTiers(p plan.Preset) []string {
	tiers := make([]string, 0, 3)
	for _, t := range []plan.Tier{plan.TierFast, plan.TierBalanced, plan.TierHigh} {
		_, video := p.Video.Tiers[t]
		_, audio := p.Audio.Tiers[t]
		if video || audio {
			tiers = append(tiers, string(t))
		}
	}
	return tiers
}

func capsToAPI(binary, probeBinary, strategy string, s caps.Snapshot) CapabilitiesResponse {
	resp := CapabilitiesResponse{
		Binary:        binary,
		ProbeBinary:   probeBinary,
		Strategy:      strategy,
		VideoEncoders: s.VideoEncoders,
		AudioEncoders: s.AudioEncoders,
		Formats:       s.Formats,
		Filters:       s.Filters,
	}
	if resp.VideoEncoders == nil {
		resp.VideoEncoders = []string{}
	}
	if resp.AudioEncoders == nil {
		resp.AudioEncoders = []string{}
	}
	if resp.Formats == nil {
		resp.Formats = []string{}
	}
	if resp.Filters == nil {
		resp.Filters = []string{}
	}
	return resp
}
