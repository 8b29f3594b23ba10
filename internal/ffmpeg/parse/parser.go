// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ConvertQueue - FFmpeg 媒体转换队列

// Package parse extracts progress information from FFmpeg stderr. It
// understands both the classic stats line ("frame= 120 ... time=00:00:05.00
// speed=1.2x") and the key=value lines emitted by `-progress pipe:2`.
package parse

import (
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/ZSC714725/convertqueue/internal/process"
)

// Progress holds the latest values seen on stderr. Pointer fields stay nil
// until the corresponding token has been parsed at least once.
type Progress struct {
	Frame   uint64
	TimeSec *float64
	Fps     *float64
	Speed   *float64
}

// Parser implements process.Parser and parses FFmpeg stderr
type Parser interface {
	process.Parser
	Progress() Progress
}

type parser struct {
	re struct {
		frame  *regexp.Regexp
		time   *regexp.Regexp
		timeUs *regexp.Regexp
		fps    *regexp.Regexp
		speed  *regexp.Regexp
	}

	progress Progress
	lock     sync.RWMutex
}

// New creates a Parser
func New() Parser {
	p := &parser{}
	p.re.frame = regexp.MustCompile(`frame=\s*([0-9]+)`)
	p.re.time = regexp.MustCompile(`(?:^|\s)(?:out_)?time=\s*([0-9:.]+)`)
	p.re.timeUs = regexp.MustCompile(`out_time_ms=\s*([0-9]+)`) // out_time_ms 实为微秒
	p.re.fps = regexp.MustCompile(`fps=\s*([0-9.]+)`)
	p.re.speed = regexp.MustCompile(`speed=\s*([0-9.]+)x?`)
	return p
}

// Parse scans one stderr line for progress tokens and folds them into the
// running snapshot. The return value is non-zero when the line advanced
// progress in some way.
func (p *parser) Parse(line string) uint64 {
	line = strings.TrimSpace(line)
	if line == "" {
		return 0
	}

	p.lock.Lock()
	defer p.lock.Unlock()

	advanced := uint64(0)

	if m := p.re.frame.FindStringSubmatch(line); m != nil {
		if x, err := strconv.ParseUint(m[1], 10, 64); err == nil {
			p.progress.Frame = x
			advanced = 1
		}
	}
	if m := p.re.time.FindStringSubmatch(line); m != nil {
		if sec, ok := parseTimecode(m[1]); ok {
			p.progress.TimeSec = &sec
			advanced = 1
		}
	}
	if m := p.re.timeUs.FindStringSubmatch(line); m != nil {
		if x, err := strconv.ParseUint(m[1], 10, 64); err == nil {
			sec := float64(x) / 1000000.0
			p.progress.TimeSec = &sec
			advanced = 1
		}
	}
	if m := p.re.fps.FindStringSubmatch(line); m != nil {
		if x, err := strconv.ParseFloat(m[1], 64); err == nil {
			p.progress.Fps = &x
			advanced = 1
		}
	}
	if m := p.re.speed.FindStringSubmatch(line); m != nil {
		if x, err := strconv.ParseFloat(m[1], 64); err == nil {
			p.progress.Speed = &x
			advanced = 1
		}
	}

	return advanced
}

func (p *parser) ResetStats() {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.progress = Progress{}
}

func (p *parser) Progress() Progress {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.progress
}

// parseTimecode converts "HH:MM:SS.frac" or a plain seconds value into
// seconds. Values with a colon count other than two are rejected.
func parseTimecode(value string) (float64, bool) {
	if value == "" {
		return 0, false
	}

	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		if len(parts) != 1 {
			return 0, false
		}
		sec, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, false
		}
		return sec, true
	}

	hours, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, false
	}
	minutes, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, false
	}

	return hours*3600 + minutes*60 + seconds, true
}
