// Package metrics exposes JellyStream's Prometheus instrumentation. This is
// the first home for prometheus/client_golang in the codebase — the teacher
// repo declared it in go.mod but no kept file actually registered a metric.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveStreams is the number of stream connections currently open. A
	// connection counts for its whole lifetime, including schedule gaps in
	// which no transcoder child process is running.
	ActiveStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "jellystream",
		Subsystem: "stream",
		Name:      "active_connections",
		Help:      "Number of stream connections currently open.",
	})

	// TranscoderSpawns counts ffmpeg child-process starts, labeled by channel.
	TranscoderSpawns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jellystream",
		Subsystem: "stream",
		Name:      "transcoder_spawns_total",
		Help:      "Total ffmpeg child processes spawned by the stream proxy.",
	}, []string{"channel_id"})

	// TranscoderExits counts ffmpeg child-process exits, labeled by outcome
	// (clean, error, killed).
	TranscoderExits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jellystream",
		Subsystem: "stream",
		Name:      "transcoder_exits_total",
		Help:      "Total ffmpeg child processes that exited, by outcome.",
	}, []string{"channel_id", "outcome"})

	// ScheduleGenerationDuration observes how long one generate() call takes.
	ScheduleGenerationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "jellystream",
		Subsystem: "scheduler",
		Name:      "generate_duration_seconds",
		Help:      "Duration of schedule generation calls.",
		Buckets:   prometheus.DefBuckets,
	})

	// ScheduleEntriesCreated counts entries written per generate() call.
	ScheduleEntriesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "jellystream",
		Subsystem: "scheduler",
		Name:      "entries_created_total",
		Help:      "Total schedule entries created across all generate() calls.",
	})

	// MaintainerSweeps counts maintainer sweep outcomes per channel.
	MaintainerSweeps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jellystream",
		Subsystem: "maintainer",
		Name:      "sweep_outcomes_total",
		Help:      "Maintainer per-channel sweep outcomes (extended, skipped, failed).",
	}, []string{"outcome"})
)
