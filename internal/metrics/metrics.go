// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ConvertQueue - FFmpeg 媒体转换队列

// Package metrics defines the Prometheus instruments exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scheduler metrics
var (
	QueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "convertqueue_queue_length",
			Help: "Number of jobs waiting in the queue",
		},
	)

	ActiveJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "convertqueue_active_jobs",
			Help: "Number of jobs currently probing, planning or running",
		},
	)

	ExclusiveActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "convertqueue_exclusive_active",
			Help: "Whether an exclusive job is running (1 = yes, 0 = no)",
		},
	)

	JobsEnqueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "convertqueue_jobs_enqueued_total",
			Help: "Total number of jobs accepted into the queue",
		},
	)

	JobsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "convertqueue_jobs_finished_total",
			Help: "Total number of jobs by terminal status",
		},
		[]string{"status"}, // "completed", "failed", "cancelled"
	)

	SchedulingDenied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "convertqueue_scheduling_denied_total",
			Help: "Total number of denied scheduling attempts",
		},
		[]string{"reason"}, // "concurrency", "exclusive_active", "exclusive_candidate"
	)

	JobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "convertqueue_job_duration_seconds",
			Help:    "Wall-clock duration of finished conversion runs",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		},
	)
)

// Watcher metrics
var (
	WatchEnqueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "convertqueue_watch_enqueued_total",
			Help: "Total number of jobs enqueued by the watch folder",
		},
	)

	WatchEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "convertqueue_watch_events_total",
			Help: "Total number of filesystem watcher events",
		},
		[]string{"event_type"},
	)
)
