// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ConvertQueue - FFmpeg 媒体转换队列
//
// Package process wraps exec.Cmd for controlling a single FFmpeg run.

package process

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"syscall"
	"time"
	"unicode/utf8"
)

// Process represents a child process
type Process interface {
	Status() Status
	Start() error
	Stop(wait bool) error
	Kill(wait bool) error
	IsRunning() bool
}

// Config for a process
type Config struct {
	Binary       string
	Args         []string
	KillGrace    time.Duration
	StaleTimeout time.Duration
	Parser       Parser
	OnLine       func(line string)
	OnStart      func()
	OnExit       func(exit ExitInfo)
	Logger       Logger
}

// ExitInfo describes how the child process ended.
type ExitInfo struct {
	Code   *int
	Signal *int
	Err    string
}

// Status of a process
type Status struct {
	State    string
	States   States
	Duration time.Duration
	Time     time.Time
	LastLine string
	Exit     ExitInfo
	CPU      float64
	Memory   uint64
}

// States cumulative counts
type States struct {
	Finished  uint64
	Starting  uint64
	Running   uint64
	Finishing uint64
	Failed    uint64
	Killed    uint64
}

// Logger interface
type Logger interface {
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
	Debug(format string, args ...interface{})
}

type stateType string

const (
	stateFinished  stateType = "finished"
	stateStarting  stateType = "starting"
	stateRunning   stateType = "running"
	stateFinishing stateType = "finishing"
	stateFailed    stateType = "failed"
	stateKilled    stateType = "killed"
)

func (s stateType) String() string { return string(s) }

func (s stateType) IsRunning() bool {
	return s == stateStarting || s == stateRunning || s == stateFinishing
}

type process struct {
	binary string
	args   []string
	cmd    *exec.Cmd
	pid    int32
	stderr io.ReadCloser

	lastLine struct {
		line string
		lock sync.Mutex
	}
	state struct {
		state  stateType
		time   time.Time
		states States
		lock   sync.Mutex
	}
	exit struct {
		info ExitInfo
		lock sync.Mutex
	}
	stale struct {
		last    time.Time
		timeout time.Duration
		cancel  context.CancelFunc
		lock    sync.Mutex
	}
	killGrace     time.Duration
	killTimer     *time.Timer
	killTimerLock sync.Mutex
	parser        Parser
	logger        Logger
	sampler       Sampler
	callbacks     struct {
		onLine  func(line string)
		onStart func()
		onExit  func(exit ExitInfo)
		lock    sync.Mutex
	}
}

// New creates a new process
func New(config Config) (Process, error) {
	p := &process{
		binary:    config.Binary,
		args:      config.Args,
		killGrace: config.KillGrace,
		parser:    config.Parser,
		logger:    config.Logger,
		sampler:   NewSysSampler(),
	}

	if len(p.binary) == 0 {
		return nil, fmt.Errorf("no valid binary given")
	}

	if p.parser == nil {
		p.parser = &nullParser{}
	}

	if p.logger == nil {
		p.logger = &nopLogger{}
	}

	if p.killGrace <= 0 {
		p.killGrace = 5 * time.Second
	}

	p.initState(stateFinished)
	p.stale.last = time.Now()
	p.stale.timeout = config.StaleTimeout
	p.callbacks.onLine = config.OnLine
	p.callbacks.onStart = config.OnStart
	p.callbacks.onExit = config.OnExit

	return p, nil
}

func (p *process) initState(state stateType) {
	p.state.lock.Lock()
	defer p.state.lock.Unlock()
	p.state.state = state
	p.state.time = time.Now()
}

func (p *process) setState(state stateType) error {
	p.state.lock.Lock()
	defer p.state.lock.Unlock()

	failed := false

	switch p.state.state {
	case stateFinished:
		if state == stateStarting {
			p.state.state = state
			p.state.states.Starting++
		} else {
			failed = true
		}
	case stateStarting:
		switch state {
		case stateFinishing, stateRunning, stateFailed:
			p.state.state = state
			if state == stateFinishing {
				p.state.states.Finishing++
			} else if state == stateRunning {
				p.state.states.Running++
			} else {
				p.state.states.Failed++
			}
		default:
			failed = true
		}
	case stateRunning:
		switch state {
		case stateFinished, stateFinishing, stateFailed, stateKilled:
			p.state.state = state
			switch state {
			case stateFinished:
				p.state.states.Finished++
			case stateFinishing:
				p.state.states.Finishing++
			case stateFailed:
				p.state.states.Failed++
			case stateKilled:
				p.state.states.Killed++
			}
		default:
			failed = true
		}
	case stateFinishing:
		switch state {
		case stateFinished, stateFailed, stateKilled:
			p.state.state = state
			if state == stateFinished {
				p.state.states.Finished++
			} else if state == stateFailed {
				p.state.states.Failed++
			} else {
				p.state.states.Killed++
			}
		default:
			failed = true
		}
	case stateFailed, stateKilled:
		if state == stateStarting {
			p.state.state = state
			p.state.states.Starting++
		} else {
			failed = true
		}
	default:
		return fmt.Errorf("unhandled state: %s", p.state.state)
	}

	if failed {
		return fmt.Errorf("can't change from %s to %s", p.state.state, state)
	}

	p.state.time = time.Now()
	return nil
}

func (p *process) getState() stateType {
	p.state.lock.Lock()
	defer p.state.lock.Unlock()
	return p.state.state
}

func (p *process) isRunning() bool {
	return p.getState().IsRunning()
}

func (p *process) Status() Status {
	cpu, memory := p.sampler.Current()

	p.state.lock.Lock()
	stateTime := p.state.time
	stateString := p.state.state.String()
	states := p.state.states
	p.state.lock.Unlock()

	p.lastLine.lock.Lock()
	lastLine := p.lastLine.line
	p.lastLine.lock.Unlock()

	p.exit.lock.Lock()
	exit := p.exit.info
	p.exit.lock.Unlock()

	return Status{
		State:    stateString,
		States:   states,
		Duration: time.Since(stateTime),
		Time:     stateTime,
		LastLine: lastLine,
		Exit:     exit,
		CPU:      cpu,
		Memory:   memory,
	}
}

func (p *process) IsRunning() bool {
	return p.isRunning()
}

func (p *process) Start() error {
	if p.isRunning() {
		return nil
	}

	if err := p.setState(stateStarting); err != nil {
		return err
	}

	p.exit.lock.Lock()
	p.exit.info = ExitInfo{}
	p.exit.lock.Unlock()

	var err error
	p.cmd = exec.Command(p.binary, p.args...)
	p.cmd.Env = []string{}
	p.cmd.Stdin = nil
	p.cmd.Stdout = nil

	p.stderr, err = p.cmd.StderrPipe()
	if err != nil {
		p.setState(stateFailed)
		p.parser.Parse(err.Error())
		return err
	}

	if err := p.cmd.Start(); err != nil {
		p.setState(stateFailed)
		p.parser.Parse(err.Error())
		return err
	}

	p.pid = int32(p.cmd.Process.Pid)
	p.sampler.Start(int(p.pid))

	p.setState(stateRunning)

	if p.callbacks.onStart != nil {
		go p.callbacks.onStart()
	}

	go p.reader()

	if p.stale.timeout != 0 {
		p.stale.lock.Lock()
		ctx, cancel := context.WithCancel(context.Background())
		p.stale.cancel = cancel
		p.stale.lock.Unlock()
		go p.staler(ctx)
	}

	return nil
}

// Stop requests a graceful shutdown (interrupt, then kill after the grace
// period). When wait is true it blocks until the process has exited.
func (p *process) Stop(wait bool) error {
	if !p.isRunning() {
		return nil
	}
	if p.getState() == stateFinishing {
		return nil
	}

	p.setState(stateFinishing)

	wg := sync.WaitGroup{}
	if wait {
		wg.Add(1)
		p.callbacks.lock.Lock()
		cb := p.callbacks.onExit
		p.callbacks.onExit = func(exit ExitInfo) {
			if cb != nil {
				cb(exit)
			}
			wg.Done()
		}
		p.callbacks.lock.Unlock()
	}

	var err error
	if runtime.GOOS == "windows" {
		err = p.cmd.Process.Kill()
	} else {
		err = p.cmd.Process.Signal(os.Interrupt)
		if err != nil {
			err = p.cmd.Process.Kill()
		} else {
			p.killTimerLock.Lock()
			p.killTimer = time.AfterFunc(p.killGrace, func() {
				p.cmd.Process.Kill()
			})
			p.killTimerLock.Unlock()
		}
	}

	if err == nil && wait {
		wg.Wait()
	}

	if err != nil {
		p.parser.Parse(err.Error())
		p.setState(stateFailed)
	}
	return err
}

// Kill terminates the process immediately, without the grace period.
func (p *process) Kill(wait bool) error {
	if !p.isRunning() {
		return nil
	}

	p.setState(stateFinishing)

	wg := sync.WaitGroup{}
	if wait {
		wg.Add(1)
		p.callbacks.lock.Lock()
		cb := p.callbacks.onExit
		p.callbacks.onExit = func(exit ExitInfo) {
			if cb != nil {
				cb(exit)
			}
			wg.Done()
		}
		p.callbacks.lock.Unlock()
	}

	err := p.cmd.Process.Kill()
	if err == nil && wait {
		wg.Wait()
	}
	return err
}

func (p *process) staler(ctx context.Context) {
	p.stale.lock.Lock()
	p.stale.last = time.Now()
	p.stale.lock.Unlock()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			p.stale.lock.Lock()
			last := p.stale.last
			timeout := p.stale.timeout
			p.stale.lock.Unlock()

			if t.Sub(last) > timeout {
				p.logger.Warn("no progress for %s, stopping process", timeout)
				p.Stop(false)
				return
			}
		}
	}
}

func (p *process) reader() {
	scanner := bufio.NewScanner(p.stderr)
	scanner.Split(scanLine)

	p.parser.ResetStats()

	p.callbacks.lock.Lock()
	onLine := p.callbacks.onLine
	p.callbacks.lock.Unlock()

	for scanner.Scan() {
		line := scanner.Text()

		p.lastLine.lock.Lock()
		p.lastLine.line = line
		p.lastLine.lock.Unlock()

		n := p.parser.Parse(line)
		if n != 0 {
			p.stale.lock.Lock()
			p.stale.last = time.Now()
			p.stale.lock.Unlock()
		}

		if onLine != nil {
			onLine(line)
		}
	}

	p.waiter()
}

func (p *process) waiter() {
	exit := ExitInfo{}

	if err := p.cmd.Wait(); err != nil {
		if exiterr, ok := err.(*exec.ExitError); ok {
			status := exiterr.Sys().(syscall.WaitStatus)
			if status.Exited() {
				code := status.ExitStatus()
				exit.Code = &code
				// ffmpeg exits 255 after a graceful interrupt
				if code == 255 {
					p.setState(stateFinished)
				} else {
					p.setState(stateFailed)
				}
			} else {
				if status.Signaled() {
					sig := int(status.Signal())
					exit.Signal = &sig
				}
				p.setState(stateKilled)
			}
		} else {
			exit.Err = err.Error()
			p.setState(stateKilled)
		}
	} else {
		code := 0
		exit.Code = &code
		p.setState(stateFinished)
	}

	p.exit.lock.Lock()
	p.exit.info = exit
	p.exit.lock.Unlock()

	p.sampler.Stop()

	p.killTimerLock.Lock()
	if p.killTimer != nil {
		p.killTimer.Stop()
		p.killTimer = nil
	}
	p.killTimerLock.Unlock()

	p.stale.lock.Lock()
	if p.stale.cancel != nil {
		p.stale.cancel()
		p.stale.cancel = nil
	}
	p.stale.lock.Unlock()

	p.callbacks.lock.Lock()
	if p.callbacks.onExit != nil {
		go p.callbacks.onExit(exit)
	}
	p.callbacks.lock.Unlock()
}

// scanLine splits on both \n and \r so FFmpeg's carriage-return progress
// updates surface as individual lines.
func scanLine(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	for start < len(data) {
		r, w := utf8.DecodeRune(data[start:])
		if r != '\n' && r != '\r' {
			break
		}
		start += w
	}

	for i := start; i < len(data); {
		r, w := utf8.DecodeRune(data[i:])
		if r == '\n' || r == '\r' {
			return i + w, data[start:i], nil
		}
		i += w
	}

	if atEOF && len(data) > start {
		return len(data), data[start:], nil
	}
	return start, nil, nil
}

type nullParser struct{}

func (p *nullParser) Parse(line string) uint64 { return 1 }
func (p *nullParser) ResetStats()              {}

type nopLogger struct{}

func (l *nopLogger) Info(format string, args ...interface{})  {}
func (l *nopLogger) Warn(format string, args ...interface{})  {}
func (l *nopLogger) Error(format string, args ...interface{}) {}
func (l *nopLogger) Debug(format string, args ...interface{}) {}
