// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ConvertQueue - FFmpeg 媒体转换队列

package ffmpeg

import (
	"context"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/ZSC714725/convertqueue/internal/apperr"
	"github.com/ZSC714725/convertqueue/internal/ffmpeg/caps"
	"github.com/ZSC714725/convertqueue/internal/ffmpeg/parse"
	"github.com/ZSC714725/convertqueue/internal/ffmpeg/probe"
	"github.com/ZSC714725/convertqueue/internal/logger"
	"github.com/ZSC714725/convertqueue/internal/process"
)

// Environment overrides take priority over the configured binary paths.
const (
	EnvFFmpeg  = "CONVERTQUEUE_FFMPEG"
	EnvFFprobe = "CONVERTQUEUE_FFPROBE"
)

// FFmpeg manages the ffmpeg and ffprobe binaries: probing, capability
// detection, argument screening, and process creation all go through here.
type FFmpeg interface {
	New(config ProcessConfig) (process.Process, error)
	NewParser() parse.Parser
	Probe(ctx context.Context, path string) (*probe.Result, error)
	Capabilities() caps.Snapshot
	ReloadCapabilities() error
	ValidateArgs(args []string) error
	Binary() string
	ProbeBinary() string
}

// ProcessConfig for creating a process
type ProcessConfig struct {
	Args         []string
	KillGrace    time.Duration
	StaleTimeout time.Duration
	Parser       process.Parser
	Logger       logger.Logger
	OnLine       func(line string)
	OnStart      func()
	OnExit       func(exit process.ExitInfo)
}

// Config for FFmpeg
type Config struct {
	Binary      string // ffmpeg, 为空时用默认名
	ProbeBinary string // ffprobe
	Logger      logger.Logger
}

type ffmpeg struct {
	binary      string
	probeBinary string
	log         logger.Logger

	caps     caps.Snapshot
	capsLock sync.RWMutex
}

// New creates FFmpeg. Missing binaries are not fatal: jobs fail with a
// typed error at start and the capability snapshot stays empty until
// ReloadCapabilities finds a binary.
func New(config Config) FFmpeg {
	f := &ffmpeg{
		log: config.Logger,
	}
	if f.log == nil {
		f.log = logger.Nop()
	}

	f.binary = resolveBinary(EnvFFmpeg, config.Binary, "ffmpeg")
	f.probeBinary = resolveBinary(EnvFFprobe, config.ProbeBinary, "ffprobe")

	if f.binary == "" {
		f.log.Warn("ffmpeg binary not found, conversions will fail until one is available")
	}
	if f.probeBinary == "" {
		f.log.Warn("ffprobe binary not found, probing will fail until one is available")
	}

	if f.binary != "" {
		snapshot, err := caps.Detect(f.binary)
		if err != nil {
			f.log.Error("capability detection failed: %v", err)
		} else {
			f.caps = snapshot
		}
	}

	return f
}

// resolveBinary picks the first usable binary: environment override, then
// the configured path, then the bare name on PATH.
func resolveBinary(envVar, configured, fallback string) string {
	if override := os.Getenv(envVar); override != "" {
		if path, err := exec.LookPath(override); err == nil {
			return path
		}
	}
	if configured != "" {
		if path, err := exec.LookPath(configured); err == nil {
			return path
		}
	}
	if path, err := exec.LookPath(fallback); err == nil {
		return path
	}
	return ""
}

func (f *ffmpeg) New(config ProcessConfig) (process.Process, error) {
	if f.binary == "" {
		return nil, apperr.New(apperr.CodeFFmpegNotFound, "no usable ffmpeg binary found")
	}
	return process.New(process.Config{
		Binary:       f.binary,
		Args:         config.Args,
		KillGrace:    config.KillGrace,
		StaleTimeout: config.StaleTimeout,
		Parser:       config.Parser,
		Logger:       config.Logger,
		OnLine:       config.OnLine,
		OnStart:      config.OnStart,
		OnExit:       config.OnExit,
	})
}

func (f *ffmpeg) NewParser() parse.Parser {
	return parse.New()
}

func (f *ffmpeg) Probe(ctx context.Context, path string) (*probe.Result, error) {
	if f.probeBinary == "" {
		return nil, apperr.New(apperr.CodeProbeExec, "no usable ffprobe binary found")
	}
	return probe.Run(ctx, f.probeBinary, path)
}

func (f *ffmpeg) Capabilities() caps.Snapshot {
	f.capsLock.RLock()
	defer f.capsLock.RUnlock()
	return f.caps
}

func (f *ffmpeg) ReloadCapabilities() error {
	if f.binary == "" {
		return apperr.New(apperr.CodeFFmpegNotFound, "no usable ffmpeg binary found")
	}

	snapshot, err := caps.Detect(f.binary)
	if err != nil {
		return err
	}

	f.capsLock.Lock()
	f.caps = snapshot
	f.capsLock.Unlock()
	return nil
}

func (f *ffmpeg) ValidateArgs(args []string) error {
	return ValidateArgs(args)
}

func (f *ffmpeg) Binary() string {
	return f.binary
}

func (f *ffmpeg) ProbeBinary() string {
	return f.probeBinary
}
