package harvest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the harvest engine.
var (
	segmentsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvest_segments_completed_total",
		Help: "Segments whose record set reached the data sink",
	})

	segmentsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvest_segments_failed_total",
		Help: "Segments that never discovered a record total",
	})

	recordsDownloadedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvest_records_downloaded_total",
		Help: "Total records written to the data sink",
	})

	parseFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvest_parse_failures_total",
		Help: "Pages abandoned after exhausting decode attempts, by segment",
	}, []string{"segment"})

	transientRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvest_transient_retries_total",
		Help: "Backoff retries triggered by transient-busy responses, by segment",
	}, []string{"segment"})

	jobsDiscardedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvest_jobs_discarded_total",
		Help: "Queued jobs discarded during shutdown before any worker took them",
	})
)
