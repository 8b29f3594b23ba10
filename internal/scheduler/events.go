// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ConvertQueue - FFmpeg 媒体转换队列

package scheduler

import (
	"github.com/ZSC714725/convertqueue/internal/job"
)

// Event names pushed to callers, keyed by job id in the payload
const (
	EventProgress   = "job.progress"
	EventStderr     = "job.stderr"
	EventCompletion = "job.completion"
	EventStatus     = "job.status"
)

// ProgressPayload carries a rate-limited progress update
type ProgressPayload struct {
	JobID    string       `json:"job_id"`
	Progress job.Progress `json:"progress"`
	Raw      string       `json:"raw,omitempty"`
}

// StderrPayload mirrors one raw stderr line
type StderrPayload struct {
	JobID string `json:"job_id"`
	Line  string `json:"line"`
}

// CompletionPayload describes how a run ended. Code is one of the stable
// job_* codes; Logs carries the tail of the job log ring.
type CompletionPayload struct {
	JobID     string   `json:"job_id"`
	Success   bool     `json:"success"`
	Cancelled bool     `json:"cancelled"`
	ExitCode  *int     `json:"exit_code,omitempty"`
	Signal    *int     `json:"signal,omitempty"`
	Code      string   `json:"code"`
	Message   string   `json:"message,omitempty"`
	Logs      []string `json:"logs,omitempty"`
}

// StatusPayload announces a lifecycle transition
type StatusPayload struct {
	JobID string     `json:"job_id"`
	From  job.Status `json:"from"`
	To    job.Status `json:"to"`
}

// Emitter pushes job events to callers. Implementations must not block; the
// scheduler calls these from monitoring goroutines.
type Emitter interface {
	EmitProgress(payload ProgressPayload)
	EmitStderr(payload StderrPayload)
	EmitCompletion(payload CompletionPayload)
	EmitStatus(payload StatusPayload)
}

// NopEmitter discards every event
type NopEmitter struct{}

func (NopEmitter) EmitProgress(ProgressPayload)     {}
func (NopEmitter) EmitStderr(StderrPayload)         {}
func (NopEmitter) EmitCompletion(CompletionPayload) {}
func (NopEmitter) EmitStatus(StatusPayload)         {}
