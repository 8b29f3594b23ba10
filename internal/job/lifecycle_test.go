// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ConvertQueue - FFmpeg 媒体转换队列

package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition_Matrix(t *testing.T) {
	// Full lifecycle matrix: for every from-status, the exact set of legal
	// next statuses. Everything else must be refused.
	allowed := map[Status][]Status{
		StatusQueued:    {StatusProbing, StatusCancelled},
		StatusProbing:   {StatusPlanning, StatusFailed, StatusCancelled, StatusQueued},
		StatusPlanning:  {StatusRunning, StatusFailed, StatusCancelled, StatusQueued},
		StatusRunning:   {StatusCompleted, StatusFailed, StatusCancelled, StatusQueued},
		StatusCompleted: {StatusQueued},
		StatusFailed:    {StatusQueued},
		StatusCancelled: {StatusQueued},
	}

	for _, from := range StatusSequence {
		for _, to := range StatusSequence {
			want := false
			for _, s := range allowed[from] {
				if s == to {
					want = true
				}
			}
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestCanTransition_NoSelfLoops(t *testing.T) {
	for _, s := range StatusSequence {
		assert.False(t, CanTransition(s, s), "self loop %s", s)
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   Status
		terminal bool
	}{
		{StatusQueued, false},
		{StatusProbing, false},
		{StatusPlanning, false},
		{StatusRunning, false},
		{StatusCompleted, true},
		{StatusFailed, true},
		{StatusCancelled, true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.terminal, tt.status.IsTerminal(), "status %s", tt.status)
	}
}

func TestStatus_IsActive(t *testing.T) {
	tests := []struct {
		status Status
		active bool
	}{
		{StatusQueued, false},
		{StatusProbing, true},
		{StatusPlanning, true},
		{StatusRunning, true},
		{StatusCompleted, false},
		{StatusFailed, false},
		{StatusCancelled, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.active, tt.status.IsActive(), "status %s", tt.status)
	}
}
