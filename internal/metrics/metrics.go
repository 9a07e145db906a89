// Package metrics defines the prometheus collectors for the ingest
// pipeline and registers them with the default registry.
//
// The counters follow the flow of a job: files come in (accepted),
// finish one way or the other (completed), and rows move through the
// parse/insert funnel with discard reasons broken out.
package metrics

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	// Register the metrics defined with Prometheus's default registry.
	prometheus.MustRegister(JobsAccepted)
	prometheus.MustRegister(JobsCompleted)
	prometheus.MustRegister(RowsRead)
	prometheus.MustRegister(RowsInserted)
	prometheus.MustRegister(RowsDiscarded)
	prometheus.MustRegister(JobDuration)
}

var (
	// Counts accepted ingest jobs.
	//
	// Provides metrics:
	//   sabanas_jobs_accepted_total
	// Example usage:
	//   metrics.JobsAccepted.Inc()
	JobsAccepted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sabanas_jobs_accepted_total",
			Help: "Number of ingest jobs accepted for processing.",
		},
	)

	// Counts finished ingest jobs by terminal state.
	//
	// Provides metrics:
	//   sabanas_jobs_completed_total{status}
	// Example usage:
	//   metrics.JobsCompleted.WithLabelValues("processed").Inc()
	JobsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sabanas_jobs_completed_total",
			Help: "Number of ingest jobs finished, by terminal state.",
		},
		// processed / error
		[]string{"status"},
	)

	// Counts data rows read out of carrier spreadsheets.
	//
	// Provides metrics:
	//   sabanas_rows_read_total{carrier}
	// Example usage:
	//   metrics.RowsRead.WithLabelValues("TELCEL").Add(float64(n))
	RowsRead = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sabanas_rows_read_total",
			Help: "Number of spreadsheet rows read, before filtering.",
		},
		[]string{"carrier"},
	)

	// Counts canonical rows written to the record store.
	//
	// Provides metrics:
	//   sabanas_rows_inserted_total{carrier}
	// Example usage:
	//   metrics.RowsInserted.WithLabelValues("TELCEL").Add(float64(n))
	RowsInserted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sabanas_rows_inserted_total",
			Help: "Number of canonical rows inserted.",
		},
		[]string{"carrier"},
	)

	// Counts rows dropped in the parse funnel, by reason.
	//
	// Provides metrics:
	//   sabanas_rows_discarded_total{carrier,reason}
	// Example usage:
	//   metrics.RowsDiscarded.WithLabelValues("TELCEL", "number_a").Add(float64(n))
	RowsDiscarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sabanas_rows_discarded_total",
			Help: "Number of rows discarded during parsing, by reason.",
		},
		// number_a / date / imei / geo / duplicate
		[]string{"carrier", "reason"},
	)

	// A histogram of end-to-end job processing times.
	//
	// Provides metrics:
	//   sabanas_job_duration_seconds_bucket{le="..."}
	//   sabanas_job_duration_seconds_sum
	//   sabanas_job_duration_seconds_count
	// Example usage:
	//   t := time.Now()
	//   // download, parse, insert.
	//   metrics.JobDuration.Observe(time.Since(t).Seconds())
	JobDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "sabanas_job_duration_seconds",
			Help: "End-to-end job processing time distributions.",
			Buckets: []float64{
				0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0, 120.0, 300.0,
				600.0, 1800.0, 3600.0, math.Inf(+1),
			},
		},
	)
)
