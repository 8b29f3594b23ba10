// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ConvertQueue - FFmpeg 媒体转换队列

package process

// Parser consumes process output line by line (e.g. FFmpeg stderr). Parse
// returns a non-zero value when the line carried forward progress, which
// feeds the stale watchdog.
type Parser interface {
	Parse(line string) uint64
	ResetStats()
}
