// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ConvertQueue - FFmpeg 媒体转换队列

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ZSC714725/convertqueue/internal/apperr"
	"github.com/ZSC714725/convertqueue/internal/ffmpeg"
	"github.com/ZSC714725/convertqueue/internal/ffmpeg/parse"
	"github.com/ZSC714725/convertqueue/internal/job"
	"github.com/ZSC714725/convertqueue/internal/metrics"
	"github.com/ZSC714725/convertqueue/internal/plan"
	"github.com/ZSC714725/convertqueue/internal/process"
)

// progressInterval rate-limits progress events; the latest sample wins
const progressInterval = 250 * time.Millisecond

var errCancelled = errors.New("cancelled before spawn")

// runner drives one job from probe to its terminal state. Every state
// transition of an active job happens here; the scheduler only raises the
// cancel flag.
type runner struct {
	sched *Scheduler
	job   *job.Job

	ctx    context.Context
	cancel context.CancelFunc

	parser parse.Parser

	mu        sync.Mutex
	exclusive bool
	cancelled bool
	proc      process.Process
	lastEmit  time.Time

	finalPath string
	tempPath  string
	startedAt time.Time
}

// newRunner prepares a runner; exclusive starts as the preset's prediction
// until the plan replaces it.
func newRunner(s *Scheduler, j *job.Job, exclusive bool) *runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &runner{
		sched:     s,
		job:       j,
		ctx:       ctx,
		cancel:    cancel,
		parser:    s.ffmpeg.NewParser(),
		exclusive: exclusive,
	}
}

// run is the job pipeline: probe, plan, validate, prepare output, spawn.
// It returns once the process is up, the rest happens in callbacks.
func (r *runner) run() {
	j := r.job

	result, err := r.sched.ffmpeg.Probe(r.ctx, j.Source())
	if r.isCancelled() {
		r.finishCancelled(job.StatusProbing)
		return
	}
	if err != nil {
		r.fail(job.StatusProbing, err)
		return
	}
	summary := result.Summary

	if err := r.sched.transition(j, job.StatusProbing, job.Planning{Summary: summary}); err != nil {
		r.abandon()
		return
	}

	preset, ok := plan.PresetByID(j.PresetID())
	if !ok {
		r.fail(job.StatusPlanning, apperr.Errorf(apperr.CodeJobFailed, "preset '%s' not found", j.PresetID()))
		return
	}

	decision := r.sched.planner.Plan(plan.Request{
		Source:  j.Source(),
		Preset:  preset,
		Tier:    j.Tier(),
		Summary: summary,
	}, r.sched.ffmpeg.Capabilities())

	for _, note := range decision.Notes {
		j.AppendLog("plan: " + note)
	}
	for _, warning := range decision.Warnings {
		j.AppendLog("plan warning: " + warning)
	}

	if r.isCancelled() {
		r.finishCancelled(job.StatusPlanning)
		return
	}

	if !r.sched.registerDecision(r, decision) {
		// either requeued or cancelled, requeued runners just go away
		if r.isCancelled() {
			r.finishCancelled(job.StatusPlanning)
		}
		return
	}

	if err := r.sched.ffmpeg.ValidateArgs(decision.Args); err != nil {
		r.fail(job.StatusPlanning, err)
		return
	}

	r.finalPath = outputPathFor(j.Source(), r.sched.outputDir, preset)
	temp, err := prepareOutput(r.finalPath)
	if err != nil {
		r.fail(job.StatusPlanning, err)
		return
	}
	r.tempPath = temp

	j.SetOutput(r.finalPath)
	j.SetExclusive(decision.Exclusive)

	if err := r.sched.transition(j, job.StatusPlanning, job.Running{Decision: decision}); err != nil {
		r.abandon()
		return
	}

	if err := r.spawn(decision); err != nil {
		if errors.Is(err, errCancelled) {
			r.finishCancelled(job.StatusRunning)
			return
		}
		r.fail(job.StatusRunning, err)
		return
	}

	r.sched.log.Info("job %s running: %s", j.ID(), strings.Join(decision.Args, " "))
}

// spawn starts the FFmpeg process with the runner-side additions
func (r *runner) spawn(decision *plan.Decision) error {
	args := r.spawnArgs(decision)

	proc, err := r.sched.ffmpeg.New(ffmpeg.ProcessConfig{
		Args:         args,
		KillGrace:    r.sched.killGrace,
		StaleTimeout: r.sched.staleTimeout,
		Parser:       r.parser,
		Logger:       r.sched.log,
		OnLine:       r.onLine,
		OnExit:       r.onExit,
	})
	if err != nil {
		return err
	}

	r.mu.Lock()
	if r.cancelled {
		r.mu.Unlock()
		return errCancelled
	}
	r.proc = proc
	r.mu.Unlock()

	r.startedAt = time.Now()
	if err := proc.Start(); err != nil {
		return apperr.Wrap(apperr.CodeSpawnFailed, err, "failed to start ffmpeg")
	}

	// a cancel that hit between publishing the handle and Start would have
	// stopped a process that was not running yet, repeat it now
	r.mu.Lock()
	cancelled := r.cancelled
	r.mu.Unlock()
	if cancelled {
		proc.Stop(false)
	}
	return nil
}

// spawnArgs appends what the planner leaves to the runner: the burn-in
// filter, the progress pipe, and the temp output path.
func (r *runner) spawnArgs(decision *plan.Decision) []string {
	args := make([]string, 0, len(decision.Args)+5)
	args = append(args, decision.Args...)

	if decision.BurnIn {
		args = append(args, "-vf", "subtitles="+escapeFilterPath(r.job.Source()))
	}

	args = append(args, "-progress", "pipe:2")
	return append(args, r.tempPath)
}

// onLine mirrors one stderr line into the job log and the event stream,
// then folds any parsed progress into the job.
func (r *runner) onLine(line string) {
	j := r.job

	j.AppendLog(line)
	r.sched.log.Debug("[ffmpeg][%s] %s", j.ID(), line)
	r.sched.emitter.EmitStderr(StderrPayload{JobID: j.ID(), Line: line})

	sample := r.parser.Progress()
	if sample.TimeSec == nil && sample.Fps == nil && sample.Speed == nil {
		return
	}

	progress, ok := j.UpdateProgress(sample.TimeSec, sample.Fps, sample.Speed)
	if !ok {
		return
	}

	r.mu.Lock()
	due := time.Since(r.lastEmit) >= progressInterval
	if due {
		r.lastEmit = time.Now()
	}
	r.mu.Unlock()
	if !due {
		return
	}

	r.sched.emitter.EmitProgress(ProgressPayload{JobID: j.ID(), Progress: progress, Raw: line})
}

// onExit settles the job: finalize on success, cleanup otherwise, then the
// terminal transition and the completion event.
func (r *runner) onExit(exit process.ExitInfo) {
	r.cancel()
	j := r.job

	cancelled := r.isCancelled()
	success := exit.Code != nil && *exit.Code == 0 && !cancelled

	var message string
	var code string
	switch {
	case exit.Err != "":
		success = false
		code = apperr.CodeWaitFailed
		message = fmt.Sprintf("ffmpeg wait error: %s", exit.Err)
		j.AppendLog(message)
		r.sched.emitter.EmitStderr(StderrPayload{JobID: j.ID(), Line: message})
	case cancelled:
		code = apperr.CodeJobCancelled
	case success:
		code = apperr.CodeJobComplete
	default:
		code = apperr.CodeJobFailed
	}

	if success {
		if err := finalizeOutput(r.tempPath, r.finalPath); err != nil {
			success = false
			code = apperr.CodeOf(err)
			message = apperr.MessageOf(err)
			j.AppendLog(message)
		}
	} else {
		cleanupTemp(r.tempPath)
	}

	if !success && !cancelled && message == "" {
		switch {
		case exit.Code != nil:
			message = explainExit(*exit.Code)
		case exit.Signal != nil:
			message = fmt.Sprintf("ffmpeg terminated by signal %d", *exit.Signal)
		}
		if message != "" {
			j.AppendLog(message)
		}
	}

	switch {
	case cancelled:
		r.sched.transition(j, job.StatusRunning, job.Cancelled{})
		r.sched.log.Info("job %s cancelled", j.ID())
	case success:
		r.sched.transition(j, job.StatusRunning, job.Completed{OutputPath: r.finalPath})
		metrics.JobDuration.Observe(time.Since(r.startedAt).Seconds())
		r.sched.log.Info("job %s completed: %s", j.ID(), r.finalPath)
	default:
		r.sched.transition(j, job.StatusRunning, job.Failed{Message: message, Code: code})
		r.sched.log.Warn("job %s failed: %s", j.ID(), message)
	}

	r.sched.emitter.EmitCompletion(CompletionPayload{
		JobID:     j.ID(),
		Success:   success,
		Cancelled: cancelled,
		ExitCode:  exit.Code,
		Signal:    exit.Signal,
		Code:      code,
		Message:   message,
		Logs:      j.Logs(),
	})

	r.sched.onFinished(j.ID(), j.Status())
}

// finishCancelled ends a job that never reached a running process
func (r *runner) finishCancelled(from job.Status) {
	r.cancel()
	cleanupTemp(r.tempPath)

	r.sched.transition(r.job, from, job.Cancelled{})
	r.sched.emitter.EmitCompletion(CompletionPayload{
		JobID:     r.job.ID(),
		Cancelled: true,
		Code:      apperr.CodeJobCancelled,
		Logs:      r.job.Logs(),
	})
	r.sched.log.Info("job %s cancelled", r.job.ID())
	r.sched.onFinished(r.job.ID(), job.StatusCancelled)
}

// fail ends a job with a typed error before or after the spawn
func (r *runner) fail(from job.Status, err error) {
	r.cancel()
	cleanupTemp(r.tempPath)

	code := apperr.CodeOf(err)
	message := apperr.MessageOf(err)
	r.job.AppendLog(message)

	r.sched.transition(r.job, from, job.Failed{Message: message, Code: code})
	r.sched.emitter.EmitCompletion(CompletionPayload{
		JobID:   r.job.ID(),
		Code:    code,
		Message: message,
		Logs:    r.job.Logs(),
	})
	r.sched.log.Warn("job %s failed: %s", r.job.ID(), message)
	r.sched.onFinished(r.job.ID(), job.StatusFailed)
}

// abandon unwinds a runner whose job was moved under it. With transitions
// owned by the runner this cannot happen, the branch only keeps a stray bug
// from wedging a slot.
func (r *runner) abandon() {
	r.cancel()
	cleanupTemp(r.tempPath)
	r.sched.log.Error("job %s: runner abandoned in %s", r.job.ID(), r.job.Status())
	r.sched.onFinished(r.job.ID(), r.job.Status())
}

// flagCancel marks the runner cancelled and hands back the process handle.
// Called with the scheduler lock held so it cannot race the requeue path.
func (r *runner) flagCancel() process.Process {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = true
	return r.proc
}

func (r *runner) isCancelled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled
}

func (r *runner) isExclusive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exclusive
}

func (r *runner) setExclusive(exclusive bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exclusive = exclusive
}

func (r *runner) processStatus() (process.Status, bool) {
	r.mu.Lock()
	proc := r.proc
	r.mu.Unlock()

	if proc == nil {
		return process.Status{}, false
	}
	return proc.Status(), true
}

// explainExit maps the common FFmpeg exit codes onto a hint
func explainExit(code int) string {
	switch code {
	case 1:
		return fmt.Sprintf("ffmpeg exited with status %d: Encoding failed. Check input file format and codec support.", code)
	case 2:
		return fmt.Sprintf("ffmpeg exited with status %d: Invalid FFmpeg arguments. Please report this issue.", code)
	case 69:
		return fmt.Sprintf("ffmpeg exited with status %d: Output file already exists and cannot be overwritten.", code)
	}
	return fmt.Sprintf("ffmpeg exited with status %d", code)
}

// escapeFilterPath escapes a path for use inside a filter graph string.
// The graph parser strips one level, so backslash goes first.
func escapeFilterPath(path string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`,
		`'`, `\'`,
		`:`, `\:`,
		`[`, `\[`,
		`]`, `\]`,
		`,`, `\,`,
		`;`, `\;`,
	)
	return replacer.Replace(path)
}
