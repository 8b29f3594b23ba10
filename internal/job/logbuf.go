// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ConvertQueue - FFmpeg 媒体转换队列

package job

import "container/ring"

// DefaultLogLines is the per-job log cap when the config does not set one
const DefaultLogLines = 500

// LogBuffer is a fixed-capacity FIFO of log lines; once full, each append
// evicts the oldest line. Not safe for concurrent use on its own, the
// owning Job serializes access.
type LogBuffer struct {
	head *ring.Ring // 下一个写入位置
	size int
	cap  int
}

// NewLogBuffer creates a LogBuffer
func NewLogBuffer(capacity int) *LogBuffer {
	if capacity <= 0 {
		capacity = DefaultLogLines
	}
	return &LogBuffer{head: ring.New(capacity), cap: capacity}
}

// Append adds a line, evicting the oldest when at capacity
func (b *LogBuffer) Append(line string) {
	b.head.Value = line
	b.head = b.head.Next()
	if b.size < b.cap {
		b.size++
	}
}

// Lines returns the buffered lines, oldest first
func (b *LogBuffer) Lines() []string {
	out := make([]string, 0, b.size)
	r := b.head.Move(-b.size)
	for i := 0; i < b.size; i++ {
		out = append(out, r.Value.(string))
		r = r.Next()
	}
	return out
}

// Len returns the number of buffered lines
func (b *LogBuffer) Len() int {
	return b.size
}

// Cap returns the line capacity
func (b *LogBuffer) Cap() int {
	return b.cap
}
