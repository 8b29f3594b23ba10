// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ConvertQueue - FFmpeg 媒体转换队列

// Package scheduler owns the job queue: admission, concurrency and
// exclusivity limits, and the per-job runner pipeline from probe to
// finished output.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ZSC714725/convertqueue/internal/apperr"
	"github.com/ZSC714725/convertqueue/internal/ffmpeg"
	"github.com/ZSC714725/convertqueue/internal/job"
	"github.com/ZSC714725/convertqueue/internal/logger"
	"github.com/ZSC714725/convertqueue/internal/metrics"
	"github.com/ZSC714725/convertqueue/internal/plan"
	"github.com/ZSC714725/convertqueue/internal/process"
)

// DefaultMaxConcurrency caps parallel conversions unless configured
const DefaultMaxConcurrency = 2

// Config for a Scheduler
type Config struct {
	Store   *job.Store
	FFmpeg  ffmpeg.FFmpeg
	Planner *plan.Planner
	Emitter Emitter
	Logger  logger.Logger

	MaxConcurrency int
	Autostart      bool
	OutputDir      string
	KillGrace      time.Duration
	StaleTimeout   time.Duration
}

// Scheduler admits queued jobs in FIFO order. At most maxConcurrency jobs
// run at once, an exclusive job runs strictly alone, and nothing running is
// ever preempted.
type Scheduler struct {
	store   *job.Store
	ffmpeg  ffmpeg.FFmpeg
	planner *plan.Planner
	emitter Emitter
	log     logger.Logger

	outputDir    string
	killGrace    time.Duration
	staleTimeout time.Duration
	autostart    bool

	mu             sync.Mutex
	queue          []string
	active         map[string]*runner
	maxConcurrency int
}

// New creates a Scheduler
func New(config Config) *Scheduler {
	s := &Scheduler{
		store:          config.Store,
		ffmpeg:         config.FFmpeg,
		planner:        config.Planner,
		emitter:        config.Emitter,
		log:            config.Logger,
		outputDir:      config.OutputDir,
		killGrace:      config.KillGrace,
		staleTimeout:   config.StaleTimeout,
		autostart:      config.Autostart,
		active:         map[string]*runner{},
		maxConcurrency: config.MaxConcurrency,
	}
	if s.emitter == nil {
		s.emitter = NopEmitter{}
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	if s.maxConcurrency == 0 {
		s.maxConcurrency = DefaultMaxConcurrency
	}
	if s.maxConcurrency < 1 {
		s.maxConcurrency = 1
	}
	if s.killGrace <= 0 {
		s.killGrace = 5 * time.Second
	}
	return s
}

// Enqueue creates a queued job for the source. A source that already has a
// non-terminal job is not enqueued again and returns an empty id.
func (s *Scheduler) Enqueue(source, presetID string, tier plan.Tier) (string, error) {
	if source == "" {
		return "", fmt.Errorf("source path must not be empty")
	}
	if _, ok := plan.PresetByID(presetID); !ok {
		return "", fmt.Errorf("unknown preset '%s'", presetID)
	}
	if tier == "" {
		tier = plan.TierBalanced
	}

	if existing := s.store.FindActiveBySource(source); existing != nil {
		s.log.Info("source %s already queued as job %s, skipping", source, existing.ID())
		return "", nil
	}

	j := s.store.Create(source, presetID, tier)

	s.mu.Lock()
	s.queue = append(s.queue, j.ID())
	s.updateGaugesLocked()
	s.mu.Unlock()

	metrics.JobsEnqueued.Inc()
	s.log.Info("job %s queued: %s -> %s (%s)", j.ID(), source, presetID, tier)

	if s.autostart {
		s.kick()
	}
	return j.ID(), nil
}

// EnqueueMany enqueues every source with the same preset and tier.
// Duplicates are skipped silently; the returned ids cover only the jobs
// actually created.
func (s *Scheduler) EnqueueMany(sources []string, presetID string, tier plan.Tier) ([]string, error) {
	if _, ok := plan.PresetByID(presetID); !ok {
		return nil, fmt.Errorf("unknown preset '%s'", presetID)
	}

	ids := make([]string, 0, len(sources))
	for _, source := range sources {
		id, err := s.Enqueue(source, presetID, tier)
		if err != nil {
			return ids, err
		}
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// PeekNext returns the id at the head of the queue without starting it
func (s *Scheduler) PeekNext() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return "", false
	}
	return s.queue[0], true
}

// StartNext tries to admit the head of the queue. It reports whether a job
// was started; a denial leaves the head queued and starts nothing.
func (s *Scheduler) StartNext() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startNextLocked()
}

func (s *Scheduler) startNextLocked() bool {
	for len(s.queue) > 0 {
		id := s.queue[0]

		j, err := s.store.Get(id)
		if err != nil || j.Status() != job.StatusQueued {
			// cleared or cancelled while waiting, drop the stale entry
			s.queue = s.queue[1:]
			s.updateGaugesLocked()
			continue
		}

		if !s.admitLocked(j) {
			return false
		}

		s.queue = s.queue[1:]

		r := newRunner(s, j, s.wouldBeExclusive(j))
		s.active[id] = r
		s.updateGaugesLocked()

		if err := s.transition(j, job.StatusQueued, job.Probing{StartedAt: time.Now()}); err != nil {
			// lost a cancel race before the runner even started
			delete(s.active, id)
			s.updateGaugesLocked()
			continue
		}

		go r.run()
		return true
	}
	return false
}

// admitLocked applies the admission rules to a queued candidate
func (s *Scheduler) admitLocked(j *job.Job) bool {
	if len(s.active) >= s.maxConcurrency {
		metrics.SchedulingDenied.WithLabelValues("concurrency").Inc()
		s.log.Debug("job %s held back: %d/%d slots busy", j.ID(), len(s.active), s.maxConcurrency)
		return false
	}

	for _, r := range s.active {
		if r.isExclusive() {
			metrics.SchedulingDenied.WithLabelValues("exclusive_active").Inc()
			s.log.Debug("job %s held back: exclusive job %s active", j.ID(), r.job.ID())
			return false
		}
	}

	if s.wouldBeExclusive(j) && len(s.active) > 0 {
		metrics.SchedulingDenied.WithLabelValues("exclusive_candidate").Inc()
		s.log.Debug("job %s held back: wants exclusive slot, %d jobs active", j.ID(), len(s.active))
		return false
	}

	return true
}

// wouldBeExclusive predicts exclusivity from the preset before planning has
// run. The planner's decision later replaces the prediction.
func (s *Scheduler) wouldBeExclusive(j *job.Job) bool {
	preset, ok := plan.PresetByID(j.PresetID())
	return ok && preset.Exclusive()
}

// registerDecision re-checks admission with the planner's authoritative
// exclusivity. True means the runner may spawn. False either sent the job
// back to the queue head, or a cancel won the race and the runner finishes
// the cancel on its own.
func (s *Scheduler) registerDecision(r *runner, decision *plan.Decision) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !decision.Exclusive || len(s.active) <= 1 {
		r.setExclusive(decision.Exclusive)
		s.updateGaugesLocked()
		return true
	}

	metrics.SchedulingDenied.WithLabelValues("exclusive_candidate").Inc()

	if r.isCancelled() {
		return false
	}

	if err := r.job.Advance(job.StatusPlanning, job.Queued{EnqueuedAt: time.Now()}); err != nil {
		s.log.Error("job %s: requeue after exclusive denial refused: %v", r.job.ID(), err)
		delete(s.active, r.job.ID())
		s.updateGaugesLocked()
		return false
	}
	delete(s.active, r.job.ID())
	s.queue = append([]string{r.job.ID()}, s.queue...)
	s.updateGaugesLocked()

	s.emitter.EmitStatus(StatusPayload{JobID: r.job.ID(), From: job.StatusPlanning, To: job.StatusQueued})
	s.log.Info("job %s requeued: exclusive plan while other jobs active", r.job.ID())
	return false
}

// Cancel stops a job wherever it is. Queued jobs are cancelled in place,
// active jobs get a cancel flag and a SIGINT, terminal jobs refuse.
func (s *Scheduler) Cancel(id string) error {
	j, err := s.store.Get(id)
	if err != nil {
		return err
	}

	// The flag is raised under the scheduler lock so a cancel can never
	// slip between the runner's requeue check and its unregistration.
	s.mu.Lock()
	if r, ok := s.active[id]; ok {
		proc := r.flagCancel()
		s.mu.Unlock()

		r.cancel()
		if proc != nil && proc.IsRunning() {
			proc.Stop(false)
		}
		s.log.Info("job %s cancel requested", id)
		return nil
	}

	if err := j.Advance(job.StatusQueued, job.Cancelled{}); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("job %s is %s and cannot be cancelled", id, j.Status())
	}
	s.removeQueuedLocked(id)
	s.mu.Unlock()

	s.emitter.EmitStatus(StatusPayload{JobID: id, From: job.StatusQueued, To: job.StatusCancelled})
	s.emitter.EmitCompletion(CompletionPayload{
		JobID:     id,
		Cancelled: true,
		Code:      apperr.CodeJobCancelled,
		Logs:      j.Logs(),
	})
	metrics.JobsFinished.WithLabelValues(string(job.StatusCancelled)).Inc()
	s.log.Info("job %s cancelled while queued", id)
	return nil
}

// Requeue puts a finished job back in line. Active or queued jobs refuse.
func (s *Scheduler) Requeue(id string) error {
	j, err := s.store.Get(id)
	if err != nil {
		return err
	}

	// probing/planning/running also have queued edges in the lifecycle
	// table, reserved for the scheduler's own denial requeue. A caller
	// requeue is legal only from a terminal state, once the runner has
	// unregistered.
	from := j.Status()
	if !from.IsTerminal() {
		return fmt.Errorf("job %s is %s and cannot be requeued", id, from)
	}
	if err := j.Transition(job.Queued{EnqueuedAt: time.Now()}); err != nil {
		return fmt.Errorf("job %s is %s and cannot be requeued", id, from)
	}

	s.mu.Lock()
	s.queue = append(s.queue, id)
	s.updateGaugesLocked()
	s.mu.Unlock()

	s.emitter.EmitStatus(StatusPayload{JobID: id, From: from, To: job.StatusQueued})
	s.log.Info("job %s requeued from %s", id, from)

	if s.autostart {
		s.kick()
	}
	return nil
}

// ClearCompleted removes every terminal job from the store
func (s *Scheduler) ClearCompleted() []string {
	removed := s.store.ClearCompleted()
	if len(removed) > 0 {
		s.log.Info("cleared %d finished jobs", len(removed))
	}
	return removed
}

// SetMaxConcurrency changes the slot count at runtime, clamped to at least
// one. Raising the limit never preempts, it only admits more.
func (s *Scheduler) SetMaxConcurrency(limit int) int {
	if limit < 1 {
		limit = 1
	}

	s.mu.Lock()
	s.maxConcurrency = limit
	s.mu.Unlock()

	s.log.Info("max concurrency set to %d", limit)
	if s.autostart {
		s.kick()
	}
	return limit
}

// MaxConcurrency returns the current slot count
func (s *Scheduler) MaxConcurrency() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxConcurrency
}

// QueueLength returns the number of queued ids
func (s *Scheduler) QueueLength() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// ActiveCount returns the number of jobs between probing and running
func (s *Scheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Autostart reports whether the scheduler admits on its own
func (s *Scheduler) Autostart() bool {
	return s.autostart
}

// ProcessStatus exposes the live process stats for a running job
func (s *Scheduler) ProcessStatus(id string) (process.Status, bool) {
	s.mu.Lock()
	r, ok := s.active[id]
	s.mu.Unlock()

	if !ok {
		return process.Status{}, false
	}
	return r.processStatus()
}

// Shutdown cancels every active job and waits for the runners to drain or
// the context to expire.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	ids := make([]string, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		if err := s.Cancel(id); err != nil {
			s.log.Debug("shutdown: %v", err)
		}
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if s.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// kick admits as many queued jobs as the rules allow
func (s *Scheduler) kick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.startNextLocked() {
	}
}

// onFinished is called by the runner after its terminal transition
func (s *Scheduler) onFinished(id string, status job.Status) {
	s.mu.Lock()
	delete(s.active, id)
	s.updateGaugesLocked()
	s.mu.Unlock()

	metrics.JobsFinished.WithLabelValues(string(status)).Inc()

	if s.autostart {
		s.kick()
	}
}

// transition advances the job and announces the change to listeners
func (s *Scheduler) transition(j *job.Job, expected job.Status, next job.State) error {
	if err := j.Advance(expected, next); err != nil {
		s.log.Warn("job %s: %s -> %s refused: %v", j.ID(), expected, next.Status(), err)
		return err
	}
	s.emitter.EmitStatus(StatusPayload{JobID: j.ID(), From: expected, To: next.Status()})
	return nil
}

// removeQueuedLocked drops an id from the pending queue if present
func (s *Scheduler) removeQueuedLocked(id string) {
	for i, queued := range s.queue {
		if queued == id {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			s.updateGaugesLocked()
			return
		}
	}
}

func (s *Scheduler) updateGaugesLocked() {
	metrics.QueueLength.Set(float64(len(s.queue)))
	metrics.ActiveJobs.Set(float64(len(s.active)))

	exclusive := 0.0
	for _, r := range s.active {
		if r.isExclusive() {
			exclusive = 1.0
			break
		}
	}
	metrics.ExclusiveActive.Set(exclusive)
}
