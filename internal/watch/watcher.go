// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ConvertQueue - FFmpeg 媒体转换队列

// Package watch enqueues media files dropped into an inbox directory.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ZSC714725/convertqueue/internal/logger"
	"github.com/ZSC714725/convertqueue/internal/metrics"
	"github.com/ZSC714725/convertqueue/internal/plan"
)

// DefaultSettle is how long a file must stay quiet before it is enqueued.
// Copies into the inbox fire a write event per chunk; enqueueing early
// would probe a half-written file.
const DefaultSettle = 2 * time.Second

// Enqueuer is the scheduler surface the watcher needs
type Enqueuer interface {
	Enqueue(source, presetID string, tier plan.Tier) (string, error)
}

// Config for a Watcher
type Config struct {
	Dir    string
	Preset string
	Tier   plan.Tier
	Settle time.Duration
	Logger logger.Logger
}

// Watcher converts inbox file events into jobs
type Watcher struct {
	dir    string
	preset string
	tier   plan.Tier
	settle time.Duration
	enq    Enqueuer
	log    logger.Logger

	watcher *fsnotify.Watcher
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// media extensions worth enqueueing, everything else is ignored
var mediaExts = map[string]bool{
	".mp4": true, ".mkv": true, ".mov": true, ".avi": true, ".webm": true,
	".m4v": true, ".wmv": true, ".flv": true, ".ts": true, ".mts": true,
	".m2ts": true, ".mpg": true, ".mpeg": true, ".3gp": true,
	".mp3": true, ".m4a": true, ".aac": true, ".flac": true, ".wav": true,
	".ogg": true, ".opus": true, ".wma": true,
	".gif": true,
}

// New creates a Watcher for the configured inbox directory
func New(config Config, enq Enqueuer) (*Watcher, error) {
	if config.Dir == "" {
		return nil, fmt.Errorf("watch directory not set")
	}
	if _, ok := plan.PresetByID(config.Preset); !ok {
		return nil, fmt.Errorf("watch preset '%s' unknown", config.Preset)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	w := &Watcher{
		dir:     config.Dir,
		preset:  config.Preset,
		tier:    config.Tier,
		settle:  config.Settle,
		enq:     enq,
		log:     config.Logger,
		watcher: fw,
		ctx:     ctx,
		cancel:  cancel,
	}
	if w.settle <= 0 {
		w.settle = DefaultSettle
	}
	if w.log == nil {
		w.log = logger.Nop()
	}
	if w.tier == "" {
		w.tier = plan.TierBalanced
	}
	return w, nil
}

// Start begins watching the inbox directory
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.dir); err != nil {
		w.watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}

	w.wg.Add(1)
	go w.loop()

	w.log.Info("watching %s (preset %s, tier %s)", w.dir, w.preset, w.tier)
	return nil
}

// Stop shuts the watcher down and waits for the loop to drain
func (w *Watcher) Stop() {
	w.cancel()
	w.watcher.Close()
	w.wg.Wait()
}

// loop collects events and enqueues files once they settle
func (w *Watcher) loop() {
	defer w.wg.Done()

	// path -> earliest time the file may be enqueued
	pending := map[string]time.Time{}

	ticker := time.NewTicker(w.settle / 2)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event, pending)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("watcher error: %v", err)

		case now := <-ticker.C:
			for path, due := range pending {
				if now.Before(due) {
					continue
				}
				delete(pending, path)
				w.enqueue(path)
			}

		case <-w.ctx.Done():
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event, pending map[string]time.Time) {
	metrics.WatchEvents.WithLabelValues(opLabel(event.Op)).Inc()

	if !isMediaFile(event.Name) {
		return
	}

	switch {
	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		pending[event.Name] = time.Now().Add(w.settle)
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		delete(pending, event.Name)
	}
}

func (w *Watcher) enqueue(path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() || info.Size() == 0 {
		return
	}

	id, err := w.enq.Enqueue(path, w.preset, w.tier)
	if err != nil {
		w.log.Warn("watch enqueue %s: %v", path, err)
		return
	}
	if id == "" {
		// already queued for this source
		return
	}

	metrics.WatchEnqueued.Inc()
	w.log.Info("watch enqueued %s as job %s", path, id)
}

func isMediaFile(path string) bool {
	return mediaExts[strings.ToLower(filepath.Ext(path))]
}

func opLabel(op fsnotify.Op) string {
	switch {
	case op&fsnotify.Create != 0:
		return "create"
	case op&fsnotify.Write != 0:
		return "write"
	case op&fsnotify.Remove != 0:
		return "remove"
	case op&fsnotify.Rename != 0:
		return "rename"
	case op&fsnotify.Chmod != 0:
		return "chmod"
	}
	return "other"
}
