// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ConvertQueue - FFmpeg 媒体转换队列

// Package job holds the conversion job model: the lifecycle state machine,
// the status-tagged state payloads, the per-job log ring, and the in-memory
// store.
package job

import (
	"fmt"
	"sync"
	"time"

	"github.com/ZSC714725/convertqueue/internal/ffmpeg/probe"
	"github.com/ZSC714725/convertqueue/internal/plan"
)

// State is the status-tagged payload. Exactly one concrete type exists per
// status, so an illegal payload/status pairing cannot be represented.
type State interface {
	Status() Status
}

// Queued carries the enqueue timestamp only
type Queued struct {
	EnqueuedAt time.Time `json:"enqueued_at"`
}

func (Queued) Status() Status { return StatusQueued }

// Probing marks the metadata probe in flight
type Probing struct {
	StartedAt time.Time `json:"started_at"`
}

func (Probing) Status() Status { return StatusProbing }

// Planning carries the probe summary while the decision is built
type Planning struct {
	Summary probe.Summary `json:"summary"`
}

func (Planning) Status() Status { return StatusPlanning }

// Progress is the mutable part of a running job
type Progress struct {
	ProcessedSec *float64 `json:"processed_sec,omitempty"`
	Fps          *float64 `json:"fps,omitempty"`
	Speed        *float64 `json:"speed,omitempty"`
	Ratio        *float64 `json:"ratio,omitempty"`
}

// Running carries the decision and the live progress record
type Running struct {
	Decision *plan.Decision `json:"decision"`
	Progress Progress       `json:"progress"`
}

func (Running) Status() Status { return StatusRunning }

// Completed carries the final output path
type Completed struct {
	OutputPath string `json:"output_path"`
}

func (Completed) Status() Status { return StatusCompleted }

// Failed carries the human-readable message and the machine code
type Failed struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func (Failed) Status() Status { return StatusFailed }

// Cancelled has no payload
type Cancelled struct{}

func (Cancelled) Status() Status { return StatusCancelled }

// Job is the mutable unit of work. All access goes through methods; the
// state field only ever holds a payload matching the current status.
type Job struct {
	id       string
	source   string
	presetID string
	tier     plan.Tier

	mu        sync.RWMutex
	state     State
	summary   *probe.Summary // set once probed, never mutated after
	output    string         // final output path once determined
	exclusive bool
	logs      *LogBuffer
	createdAt time.Time
	updatedAt time.Time
}

// New creates a queued job
func New(id, source, presetID string, tier plan.Tier, logCap int) *Job {
	now := time.Now()
	return &Job{
		id:        id,
		source:    source,
		presetID:  presetID,
		tier:      tier,
		state:     Queued{EnqueuedAt: now},
		logs:      NewLogBuffer(logCap),
		createdAt: now,
		updatedAt: now,
	}
}

// ID returns the job id
func (j *Job) ID() string { return j.id }

// Source returns the source path
func (j *Job) Source() string { return j.source }

// PresetID returns the preset id
func (j *Job) PresetID() string { return j.presetID }

// Tier returns the requested quality tier
func (j *Job) Tier() plan.Tier { return j.tier }

// Status returns the current status
func (j *Job) Status() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.state.Status()
}

// State returns the current status-tagged payload
func (j *Job) State() State {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.state
}

// Summary returns the probe summary, nil before probing finished
func (j *Job) Summary() *probe.Summary {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.summary
}

// Output returns the final output path, empty until planned
func (j *Job) Output() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.output
}

// SetOutput records the final output path
func (j *Job) SetOutput(path string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.output = path
	j.updatedAt = time.Now()
}

// Exclusive reports whether the planned run must execute alone
func (j *Job) Exclusive() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.exclusive
}

// SetExclusive records the planner's exclusivity verdict
func (j *Job) SetExclusive(exclusive bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.exclusive = exclusive
	j.updatedAt = time.Now()
}

// Transition moves the job to the next state from whatever state it is in
// now. Illegal steps trip the lifecycle guard and are refused.
func (j *Job) Transition(next State) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.transitionLocked(next)
}

// Advance moves the job to the next state only if it still is in the
// expected status. A conflict (someone else moved it first, e.g. a cancel
// racing the setup phase) returns ErrStatusConflict without tripping the
// guard.
func (j *Job) Advance(expected Status, next State) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Status() != expected {
		return fmt.Errorf("%w: expected %s, is %s", ErrStatusConflict, expected, j.state.Status())
	}
	return j.transitionLocked(next)
}

func (j *Job) transitionLocked(next State) error {
	from := j.state.Status()
	to := next.Status()
	if !CanTransition(from, to) {
		transitionGuard(j.id, from, to)
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}

	if planning, ok := next.(Planning); ok {
		s := planning.Summary
		j.summary = &s
	}

	j.state = next
	j.updatedAt = time.Now()
	return nil
}

// UpdateProgress folds new progress values into the running state; nil
// fields keep their previous value. Calls in any other status are a no-op.
// The ratio is derived from the probed duration when it is known and > 0.
func (j *Job) UpdateProgress(processedSec, fps, speed *float64) (Progress, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	running, ok := j.state.(Running)
	if !ok {
		return Progress{}, false
	}

	if processedSec != nil {
		v := *processedSec
		running.Progress.ProcessedSec = &v
		if j.summary != nil && j.summary.DurationSec > 0 {
			ratio := v / j.summary.DurationSec
			running.Progress.Ratio = &ratio
		}
	}
	if fps != nil {
		v := *fps
		running.Progress.Fps = &v
	}
	if speed != nil {
		v := *speed
		running.Progress.Speed = &v
	}

	j.state = running
	j.updatedAt = time.Now()
	return running.Progress, true
}

// AppendLog adds one line to the job's log ring
func (j *Job) AppendLog(line string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.logs.Append(line)
}

// Logs returns the buffered log lines, oldest first
func (j *Job) Logs() []string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.logs.Lines()
}

// Snapshot is the read-only JSON view of a job
type Snapshot struct {
	ID        string         `json:"id"`
	Source    string         `json:"source"`
	PresetID  string         `json:"preset_id"`
	Tier      plan.Tier      `json:"tier"`
	Status    Status         `json:"status"`
	State     State          `json:"state"`
	Summary   *probe.Summary `json:"summary,omitempty"`
	Output    string         `json:"output_path,omitempty"`
	Exclusive bool           `json:"exclusive"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Snapshot captures the job under one read lock
func (j *Job) Snapshot() Snapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return Snapshot{
		ID:        j.id,
		Source:    j.source,
		PresetID:  j.presetID,
		Tier:      j.tier,
		Status:    j.state.Status(),
		State:     j.state,
		Summary:   j.summary,
		Output:    j.output,
		Exclusive: j.exclusive,
		CreatedAt: j.createdAt,
		UpdatedAt: j.updatedAt,
	}
}
