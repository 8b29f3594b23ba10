// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ConvertQueue - FFmpeg 媒体转换队列

package job

import (
	"sync"

	"github.com/lithammer/shortuuid/v4"

	"github.com/ZSC714725/convertqueue/internal/plan"
)

// Store manages jobs in memory. Listing order is creation order.
type Store struct {
	mu     sync.RWMutex
	jobs   map[string]*Job
	order  []string
	logCap int
}

// NewStore creates a job store; logCap bounds every job's log ring
func NewStore(logCap int) *Store {
	return &Store{
		jobs:   make(map[string]*Job),
		logCap: logCap,
	}
}

// Create makes a new queued job with a fresh short id
func (s *Store) Create(source, presetID string, tier plan.Tier) *Job {
	j := New(shortuuid.New(), source, presetID, tier, s.logCap)

	s.mu.Lock()
	s.jobs[j.ID()] = j
	s.order = append(s.order, j.ID())
	s.mu.Unlock()

	return j
}

// Get returns the job with the given id
func (s *Store) Get(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return j, nil
}

// List returns every job in creation order
func (s *Store) List() []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Job, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.jobs[id])
	}
	return out
}

// FindActiveBySource returns a job with the same source path that has not
// reached a terminal state yet. This backs enqueue deduplication.
func (s *Store) FindActiveBySource(source string) *Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.order {
		j := s.jobs[id]
		if j.Source() == source && !j.Status().IsTerminal() {
			return j
		}
	}
	return nil
}

// ClearCompleted removes every job in a terminal state and returns the
// removed ids.
func (s *Store) ClearCompleted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	var keep []string
	for _, id := range s.order {
		if s.jobs[id].Status().IsTerminal() {
			delete(s.jobs, id)
			removed = append(removed, id)
			continue
		}
		keep = append(keep, id)
	}
	s.order = keep
	return removed
}

// Len returns the number of stored jobs
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
