package vectorstore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpsertsTotal counts upsert calls.
	// Labels: provider (chromem, qdrant), result (success, error)
	UpsertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "repoindexer",
			Subsystem: "vectorstore",
			Name:      "upserts_total",
			Help:      "Total number of upsert operations",
		},
		[]string{"provider", "result"},
	)

	// RecordsWritten counts records successfully written.
	RecordsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "repoindexer",
			Subsystem: "vectorstore",
			Name:      "records_written_total",
			Help:      "Total number of records written to the index",
		},
		[]string{"provider"},
	)

	// UpsertDuration tracks how long upserts take.
	UpsertDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "repoindexer",
			Subsystem: "vectorstore",
			Name:      "upsert_duration_seconds",
			Help:      "Duration of upsert operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider"},
	)
)

func recordUpsert(provider string, n int, start time.Time, err error) {
	UpsertDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	if err != nil {
		UpsertsTotal.WithLabelValues(provider, "error").Inc()
		return
	}
	UpsertsTotal.WithLabelValues(provider, "success").Inc()
	RecordsWritten.WithLabelValues(provider).Add(float64(n))
}
