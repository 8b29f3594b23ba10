// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ConvertQueue - FFmpeg 媒体转换队列

package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ZSC714725/convertqueue/internal/job"
	"github.com/ZSC714725/convertqueue/internal/plan"
)

func TestExplainExit(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{1, "ffmpeg exited with status 1: Encoding failed. Check input file format and codec support."},
		{2, "ffmpeg exited with status 2: Invalid FFmpeg arguments. Please report this issue."},
		{69, "ffmpeg exited with status 69: Output file already exists and cannot be overwritten."},
		{255, "ffmpeg exited with status 255"},
		{134, "ffmpeg exited with status 134"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, explainExit(tt.code))
	}
}

func TestEscapeFilterPath(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "/media/movie.mkv", "/media/movie.mkv"},
		{"single quote", "/media/movie's cut.mkv", `/media/movie\'s cut.mkv`},
		{"colon", "/media/part:2.mkv", `/media/part\:2.mkv`},
		{"brackets", "/media/show [1080p].mkv", `/media/show \[1080p\].mkv`},
		{"comma and semicolon", "/media/a,b;c.mkv", `/media/a\,b\;c.mkv`},
		{"backslash", `/media/odd\name.mkv`, `/media/odd\\name.mkv`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, escapeFilterPath(tt.in))
		})
	}
}

func TestRunner_SpawnArgs(t *testing.T) {
	r := &runner{
		job:      job.New("j1", "/media/in.mkv", "mp4-h264", plan.TierBalanced, 50),
		tempPath: "/out/in.mp4.tmp",
	}
	decision := &plan.Decision{Args: []string{"-hide_banner", "-nostdin", "-i", "/media/in.mkv", "-c:v", "copy", "-f", "mp4"}}

	args := r.spawnArgs(decision)

	want := []string{
		"-hide_banner", "-nostdin", "-i", "/media/in.mkv", "-c:v", "copy", "-f", "mp4",
		"-progress", "pipe:2",
		"/out/in.mp4.tmp",
	}
	assert.Equal(t, want, args)
}

func TestRunner_SpawnArgsBurnIn(t *testing.T) {
	r := &runner{
		job:      job.New("j1", "/media/movie [1080p].mkv", "mp4-h264-burn", plan.TierBalanced, 50),
		tempPath: "/out/movie [1080p].mp4.tmp",
	}
	decision := &plan.Decision{
		Args:   []string{"-hide_banner", "-nostdin", "-i", "/media/movie [1080p].mkv", "-c:v", "libx264", "-f", "mp4"},
		BurnIn: true,
	}

	args := r.spawnArgs(decision)

	// the filter goes in after the planned args, escaped for the filter
	// grammar; the temp output path is always the final token
	assert.Contains(t, args, "-vf")
	idx := -1
	for i, a := range args {
		if a == "-vf" {
			idx = i
		}
	}
	assert.Equal(t, `subtitles=/media/movie \[1080p\].mkv`, args[idx+1])
	assert.Equal(t, []string{"-progress", "pipe:2"}, args[idx+2:idx+4])
	assert.Equal(t, "/out/movie [1080p].mp4.tmp", args[len(args)-1])
}
