// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ConvertQueue - FFmpeg 媒体转换队列

package scheduler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZSC714725/convertqueue/internal/apperr"
	"github.com/ZSC714725/convertqueue/internal/plan"
)

func TestOutputPathFor(t *testing.T) {
	mp4, _ := plan.PresetByID("mp4-h264")
	gif, _ := plan.PresetByID("gif-anim")

	tests := []struct {
		name      string
		source    string
		outputDir string
		preset    plan.Preset
		want      string
	}{
		{"next to source", "/media/movie.mkv", "", mp4, "/media/movie.mp4"},
		{"configured directory", "/media/movie.mkv", "/out", mp4, "/out/movie.mp4"},
		{"extension swap", "/media/clip.webm", "", gif, "/media/clip.gif"},
		{"dotted stem", "/media/show.s01e02.mkv", "", mp4, "/media/show.s01e02.mp4"},
		{"consecutive dots in stem", "/media/album..2020.mkv", "", mp4, "/media/album..2020.mp4"},
		{"collision gets .out", "/media/movie.mp4", "", mp4, "/media/movie.out.mp4"},
		{"no collision across directories", "/media/movie.mp4", "/out", mp4, "/out/movie.mp4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, outputPathFor(tt.source, tt.outputDir, tt.preset))
		})
	}
}

func TestTempPathFor(t *testing.T) {
	assert.Equal(t, "/out/movie.mp4.tmp", tempPathFor("/out/movie.mp4"))
}

func TestPrepareOutput(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "movie.mp4")

	temp, err := prepareOutput(final)
	require.NoError(t, err)
	assert.Equal(t, final+".tmp", temp)

	// the permission probe must not leave the touched file behind
	assert.NoFileExists(t, temp)
}

func TestPrepareOutput_CreatesParents(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "a", "b", "movie.mp4")

	_, err := prepareOutput(final)
	require.NoError(t, err)
	assert.DirExists(t, filepath.Join(dir, "a", "b"))
}

func TestPrepareOutput_ClearsStaleTemp(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "movie.mp4")
	stale := final + ".tmp"
	require.NoError(t, os.WriteFile(stale, []byte("leftover from a crashed run"), 0o644))

	temp, err := prepareOutput(final)
	require.NoError(t, err)
	assert.NoFileExists(t, temp)
}

func TestPrepareOutput_RejectsRelative(t *testing.T) {
	_, err := prepareOutput("movie.mp4")
	assert.Error(t, err)
	assert.Equal(t, apperr.CodeOutputInvalid, apperr.CodeOf(err))
}

func TestPrepareOutput_RejectsDotDot(t *testing.T) {
	_, err := prepareOutput("/out/../etc/movie.mp4")
	assert.Error(t, err)
	assert.Equal(t, apperr.CodeOutputInvalid, apperr.CodeOf(err))
}

func TestPrepareOutput_AllowsDottedNames(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "album..2020.mp4")

	temp, err := prepareOutput(final)
	require.NoError(t, err)
	assert.Equal(t, final+".tmp", temp)
	assert.NoFileExists(t, temp)
}

func TestPrepareOutput_ParentIsFile(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	_, err := prepareOutput(filepath.Join(blocker, "movie.mp4"))
	assert.Error(t, err)
	assert.Equal(t, apperr.CodeOutputDirectory, apperr.CodeOf(err))
}

func TestFinalizeOutput(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "movie.mp4")
	temp := final + ".tmp"
	require.NoError(t, os.WriteFile(temp, []byte("encoded"), 0o644))

	require.NoError(t, finalizeOutput(temp, final))

	data, err := os.ReadFile(final)
	require.NoError(t, err)
	assert.Equal(t, "encoded", string(data))
	assert.NoFileExists(t, temp)
}

func TestFinalizeOutput_ReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "movie.mp4")
	temp := final + ".tmp"
	require.NoError(t, os.WriteFile(final, []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(temp, []byte("new"), 0o644))

	require.NoError(t, finalizeOutput(temp, final))

	data, err := os.ReadFile(final)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestFinalizeOutput_MissingTemp(t *testing.T) {
	dir := t.TempDir()
	err := finalizeOutput(filepath.Join(dir, "gone.tmp"), filepath.Join(dir, "movie.mp4"))
	assert.Error(t, err)
	assert.Equal(t, apperr.CodeFinalizeFailed, apperr.CodeOf(err))
}

func TestCleanupTemp(t *testing.T) {
	dir := t.TempDir()
	temp := filepath.Join(dir, "movie.mp4.tmp")
	require.NoError(t, os.WriteFile(temp, []byte("partial"), 0o644))

	cleanupTemp(temp)
	assert.NoFileExists(t, temp)

	// missing file and empty path are both fine
	cleanupTemp(temp)
	cleanupTemp("")
}
