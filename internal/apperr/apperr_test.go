// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ConvertQueue - FFmpeg 媒体转换队列

package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	e := New(CodeSpawnFailed, "could not start ffmpeg")
	assert.Equal(t, "job_spawn_failed: could not start ffmpeg", e.Error())

	wrapped := Wrap(CodeProbeExec, errors.New("exit status 1"), "ffprobe failed")
	assert.Equal(t, "probe_ffprobe_exec: ffprobe failed: exit status 1", wrapped.Error())
}

func TestErrorf(t *testing.T) {
	e := Errorf(CodeInvalidArgs, "argument %q not allowed", ";")
	assert.Equal(t, CodeInvalidArgs, e.Code)
	assert.Equal(t, `argument ";" not allowed`, e.Message)
}

func TestUnwrap(t *testing.T) {
	inner := errors.New("exit status 1")
	e := Wrap(CodeWaitFailed, inner, "wait failed")

	assert.ErrorIs(t, e, inner)
	assert.Nil(t, New(CodeJobFailed, "x").Unwrap())
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeOutputInvalid, CodeOf(New(CodeOutputInvalid, "bad path")))
	assert.Equal(t, CodeJobFailed, CodeOf(errors.New("plain")))

	// the code survives fmt wrapping
	err := fmt.Errorf("context: %w", New(CodeFinalizeFailed, "rename failed"))
	assert.Equal(t, CodeFinalizeFailed, CodeOf(err))
}

func TestMessageOf(t *testing.T) {
	assert.Equal(t, "bad path", MessageOf(New(CodeOutputInvalid, "bad path")))
	assert.Equal(t, "plain", MessageOf(errors.New("plain")))
	assert.Empty(t, MessageOf(nil))

	err := fmt.Errorf("context: %w", New(CodeFinalizeFailed, "rename failed"))
	assert.Equal(t, "rename failed", MessageOf(err))
}
