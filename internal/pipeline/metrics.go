package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RepositoriesTotal counts repository outcomes.
	// Labels: status (indexed, analyzed, failed, canceled)
	RepositoriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "repoindexer",
			Subsystem: "pipeline",
			Name:      "repositories_total",
			Help:      "Total number of repositories processed by outcome",
		},
		[]string{"status"},
	)

	// FilesTotal counts file outcomes.
	// Labels: outcome (indexed, skipped_size, skipped_content, skipped_embedding, failed, ignored)
	FilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "repoindexer",
			Subsystem: "pipeline",
			Name:      "files_total",
			Help:      "Total number of listed files by outcome",
		},
		[]string{"outcome"},
	)

	// RepositoryDuration tracks per-repository processing time.
	RepositoryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "repoindexer",
			Subsystem: "pipeline",
			Name:      "repository_duration_seconds",
			Help:      "Duration of per-repository processing in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	// ActiveWorkers is the number of repositories currently in flight.
	ActiveWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "repoindexer",
			Subsystem: "pipeline",
			Name:      "active_workers",
			Help:      "Number of repositories currently being processed",
		},
	)
)

func recordReport(r RepositoryReport) {
	RepositoriesTotal.WithLabelValues(string(r.Status)).Inc()
	add := func(outcome string, n int) {
		if n > 0 {
			FilesTotal.WithLabelValues(outcome).Add(float64(n))
		}
	}
	add("indexed", r.FilesIndexed)
	add("skipped_size", r.SkippedSize)
	add("skipped_content", r.SkippedContent)
	add("skipped_embedding", r.SkippedEmbedding)
	add("failed", r.FilesFailed)
	add("ignored", r.FilesIgnored)
}
