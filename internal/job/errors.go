// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ConvertQueue - FFmpeg 媒体转换队列

package job

import "errors"

var (
	// ErrNotFound 任务不存在
	ErrNotFound = errors.New("job not found")
	// ErrIllegalTransition is a lifecycle table violation
	ErrIllegalTransition = errors.New("illegal status transition")
	// ErrStatusConflict means the job moved away from the expected status
	// before the transition could happen (a race, not a bug).
	ErrStatusConflict = errors.New("job status conflict")
)
