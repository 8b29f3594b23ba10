// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ConvertQueue - FFmpeg 媒体转换队列
//
// Package apperr carries errors with a stable machine-readable code next to
// the human-readable message, so callers and the event stream can branch on
// the code without string matching.

package apperr

import (
	"errors"
	"fmt"
)

// Stable error codes. These travel over the API and the event stream; do not
// rename them.
const (
	CodeProbeExec      = "probe_ffprobe_exec"
	CodeProbeParseJSON = "probe_parse_json"

	CodeCapabilityExec = "capability_ffmpeg_exec"

	CodeInvalidArgs      = "job_invalid_args"
	CodeAlreadyRunning   = "job_already_running"
	CodeExclusiveBlocked = "job_exclusive_blocked"
	CodeConcurrencyLimit = "job_concurrency_limit"
	CodeFFmpegNotFound   = "job_ffmpeg_not_found"
	CodeOutputDirectory  = "job_output_directory"
	CodeOutputPermission = "job_output_permission"
	CodeOutputPrepare    = "job_output_prepare"
	CodeOutputInvalid    = "job_output_invalid"
	CodeSpawnFailed      = "job_spawn_failed"
	CodeMissingChild     = "job_missing_child"
	CodeWaitFailed       = "job_wait_failed"
	CodeCancelFailed     = "job_cancel_failed"
	CodeFinalizeFailed   = "job_finalize_failed"

	// Completion codes: not errors, but reported through the same field.
	CodeJobComplete  = "job_complete"
	CodeJobCancelled = "job_cancelled"
	CodeJobFailed    = "job_failed"
)

// Error is an error with a stable code.
type Error struct {
	Code    string
	Message string
	Err     error
}

// New creates an Error with the given code and message.
func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates an Error with a formatted message.
func Errorf(code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error around an underlying error.
func Wrap(code string, err error, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of err if it is (or wraps) an *Error, otherwise
// CodeJobFailed.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeJobFailed
}

// MessageOf returns the message of err if it is (or wraps) an *Error,
// otherwise err.Error().
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
