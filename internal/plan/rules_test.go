// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ConvertQueue - FFmpeg 媒体转换队列

package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRules_Lookup(t *testing.T) {
	// every catalog container has a rule except the pure image/animation
	// targets, which bypass remux classification entirely
	for _, container := range []string{"mp4", "mkv", "webm", "mov", "m4a", "mp3"} {
		rule, ok := Rules(container)
		assert.True(t, ok, "container %s", container)
		assert.Equal(t, container, rule.Container)
	}

	_, ok := Rules("avi")
	assert.False(t, ok)
}

func TestContainerRule_AllowsVideo(t *testing.T) {
	mp4, _ := Rules("mp4")
	assert.True(t, mp4.AllowsVideo("h264"))
	assert.True(t, mp4.AllowsVideo("hevc"))
	assert.False(t, mp4.AllowsVideo("vp9"))
	assert.False(t, mp4.AllowsVideo("prores"))

	// mkv takes anything
	mkv, _ := Rules("mkv")
	assert.True(t, mkv.AllowsVideo("h264"))
	assert.True(t, mkv.AllowsVideo("prores"))
	assert.True(t, mkv.AllowsVideo("whatever"))

	// audio-only containers take no video at all
	m4a, _ := Rules("m4a")
	assert.False(t, m4a.AllowsVideo("h264"))
}

func TestContainerRule_AllowsAudio(t *testing.T) {
	webm, _ := Rules("webm")
	assert.True(t, webm.AllowsAudio("opus"))
	assert.True(t, webm.AllowsAudio("vorbis"))
	assert.False(t, webm.AllowsAudio("aac"))

	mkv, _ := Rules("mkv")
	assert.True(t, mkv.AllowsAudio("dts"))

	mp3, _ := Rules("mp3")
	assert.True(t, mp3.AllowsAudio("mp3"))
	assert.False(t, mp3.AllowsAudio("aac"))
}

func TestContainerRule_Faststart(t *testing.T) {
	tests := []struct {
		container string
		faststart bool
	}{
		{"mp4", true},
		{"mov", true},
		{"m4a", true},
		{"mkv", false},
		{"webm", false},
		{"mp3", false},
	}

	for _, tt := range tests {
		rule, ok := Rules(tt.container)
		assert.True(t, ok)
		assert.Equal(t, tt.faststart, rule.Faststart, "container %s", tt.container)
	}
}

func TestContainerRule_Subtitles(t *testing.T) {
	mp4, _ := Rules("mp4")
	assert.Equal(t, []string{"mov_text"}, mp4.TextSubs)
	assert.Empty(t, mp4.ImageSubs)

	mkv, _ := Rules("mkv")
	assert.NotEmpty(t, mkv.TextSubs)
	assert.NotEmpty(t, mkv.ImageSubs)

	webm, _ := Rules("webm")
	assert.Equal(t, []string{"webvtt"}, webm.TextSubs)
}
