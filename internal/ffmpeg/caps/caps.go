// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ConvertQueue - FFmpeg 媒体转换队列

// Package caps detects what the installed FFmpeg binary can actually do:
// which encoders, container formats and filters it reports.
package caps

import (
	"bufio"
	"bytes"
	"os/exec"
	"regexp"
	"sort"
	"strings"

	"github.com/ZSC714725/convertqueue/internal/apperr"
)

// Snapshot are the detected capabilities of one FFmpeg binary. All sets are
// sorted and duplicate-free. The zero value is the "nothing available"
// snapshot used when detection fails.
type Snapshot struct {
	VideoEncoders []string `json:"video_encoders"`
	AudioEncoders []string `json:"audio_encoders"`
	Formats       []string `json:"formats"`
	Filters       []string `json:"filters"`
}

// HasVideoEncoder reports whether name is in the video encoder set.
func (s *Snapshot) HasVideoEncoder(name string) bool {
	return contains(s.VideoEncoders, name)
}

// HasAudioEncoder reports whether name is in the audio encoder set.
func (s *Snapshot) HasAudioEncoder(name string) bool {
	return contains(s.AudioEncoders, name)
}

// HasFormat reports whether name is in the container format set.
func (s *Snapshot) HasFormat(name string) bool {
	return contains(s.Formats, name)
}

// HasFilter reports whether name is in the filter set.
func (s *Snapshot) HasFilter(name string) bool {
	return contains(s.Filters, name)
}

// IsEmpty reports whether nothing was detected.
func (s *Snapshot) IsEmpty() bool {
	return len(s.VideoEncoders) == 0 && len(s.AudioEncoders) == 0 &&
		len(s.Formats) == 0 && len(s.Filters) == 0
}

func contains(set []string, name string) bool {
	for _, s := range set {
		if s == name {
			return true
		}
	}
	return false
}

// Detect queries the binary for encoders, formats and filters
func Detect(binary string) (Snapshot, error) {
	encoders, err := run(binary, "-encoders")
	if err != nil {
		return Snapshot{}, err
	}
	formats, err := run(binary, "-formats")
	if err != nil {
		return Snapshot{}, err
	}
	filters, err := run(binary, "-filters")
	if err != nil {
		return Snapshot{}, err
	}

	s := Snapshot{}
	s.VideoEncoders, s.AudioEncoders = parseEncoders(encoders)
	s.Formats = parseFormats(formats)
	s.Filters = parseFilters(filters)
	return s, nil
}

func run(binary string, listing string) ([]byte, error) {
	cmd := exec.Command(binary, "-hide_banner", listing)
	cmd.Env = []string{}
	out, err := cmd.Output()
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeCapabilityExec, err, "ffmpeg "+listing+" failed")
	}
	return out, nil
}

// parseEncoders splits `-encoders` lines into video and audio sets. Entry
// lines are " V....D <name> <description>"; the first flag char is the
// stream type, the legend lines never match the name class.
func parseEncoders(data []byte) (video []string, audio []string) {
	videoSet := map[string]struct{}{}
	audioSet := map[string]struct{}{}

	re := regexp.MustCompile(`^\s([VAS])[FSXBD.]{5} ([0-9A-Za-z_]+)\s`)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		m := re.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}

		switch m[1] {
		case "V":
			videoSet[m[2]] = struct{}{}
		case "A":
			audioSet[m[2]] = struct{}{}
		}
	}

	return sorted(videoSet), sorted(audioSet)
}

// parseFormats keeps `-formats` entries flagged D (demux) or E (mux). Ids
// like "mov,mp4,m4a,3gp,3g2,mj2" list aliases, every alias is kept.
func parseFormats(data []byte) []string {
	set := map[string]struct{}{}

	re := regexp.MustCompile(`^\s([D ])([E ]) ([0-9A-Za-z_,]+)\s`)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		m := re.FindStringSubmatch(scanner.Text())
		if m == nil || (m[1] != "D" && m[2] != "E") {
			continue
		}

		for _, id := range strings.Split(m[3], ",") {
			set[id] = struct{}{}
		}
	}

	return sorted(set)
}

// parseFilters keeps `-filters` names. Entry lines carry a three-char flag
// column before the name; the legend is indented one space deeper and never
// matches.
func parseFilters(data []byte) []string {
	set := map[string]struct{}{}

	re := regexp.MustCompile(`^\s[TSC.]{3} ([0-9A-Za-z_]+)\s`)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		if m := re.FindStringSubmatch(scanner.Text()); m != nil {
			set[m[1]] = struct{}{}
		}
	}

	return sorted(set)
}

func sorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
