// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ConvertQueue - FFmpeg 媒体转换队列

package job

// Status of a job
type Status string

const (
	StatusQueued    Status = "queued"
	StatusProbing   Status = "probing"
	StatusPlanning  Status = "planning"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// StatusSequence lists every status in pipeline order
var StatusSequence = []Status{
	StatusQueued,
	StatusProbing,
	StatusPlanning,
	StatusRunning,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

// allowedTransitions is the whole lifecycle. The back edges from
// probing/planning/running to queued exist solely for scheduling-denial
// requeue; terminal states may only be requeued.
var allowedTransitions = map[Status][]Status{
	StatusQueued:    {StatusProbing, StatusCancelled},
	StatusProbing:   {StatusPlanning, StatusFailed, StatusCancelled, StatusQueued},
	StatusPlanning:  {StatusRunning, StatusFailed, StatusCancelled, StatusQueued},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusCancelled, StatusQueued},
	StatusCompleted: {StatusQueued},
	StatusFailed:    {StatusQueued},
	StatusCancelled: {StatusQueued},
}

// CanTransition reports whether from -> to is a legal lifecycle step
func CanTransition(from, to Status) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status ends the job
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// IsActive reports whether the status occupies a concurrency slot
func (s Status) IsActive() bool {
	return s == StatusProbing || s == StatusPlanning || s == StatusRunning
}
