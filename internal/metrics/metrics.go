package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Bus consumption metrics
	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digestd_events_consumed_total",
			Help: "Total number of bus entries delivered to handlers",
		},
		[]string{"event_type"},
	)

	EventsAcked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digestd_events_acked_total",
			Help: "Total number of bus entries acknowledged after successful handling",
		},
		[]string{"event_type"},
	)

	EventsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digestd_events_failed_total",
			Help: "Total number of handler failures (entry left pending for redelivery)",
		},
		[]string{"event_type"},
	)

	EventsDeadLettered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digestd_events_dead_lettered_total",
			Help: "Total number of entries written to the DLQ after exhausting deliveries",
		},
		[]string{"event_type"},
	)

	// Pipeline metrics
	FilesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digestd_pipeline_files_processed_total",
			Help: "Total number of files successfully processed by pipelines",
		},
		[]string{"strategy"},
	)

	FilesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digestd_pipeline_files_failed_total",
			Help: "Total number of per-file pipeline failures by stage",
		},
		[]string{"strategy", "stage"},
	)

	NodesIndexed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digestd_pipeline_nodes_indexed_total",
			Help: "Total number of nodes added to stores",
		},
		[]string{"strategy"},
	)

	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "digestd_pipeline_duration_seconds",
			Help:    "Duration of pipeline executions in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)

	// HTTP upload metrics
	UploadsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "digestd_uploads_total",
			Help: "Total number of uploads accepted",
		},
	)

	UploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "digestd_upload_bytes_total",
			Help: "Total bytes of uploaded file data received",
		},
	)
)
