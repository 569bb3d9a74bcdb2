package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_preparser_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_preparser_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_preparser_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Preparser request metrics
var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_preparser_requests_total",
			Help: "Preparser requests by kind and terminal status",
		},
		[]string{"kind", "status"}, // kind: "preparse", "thumbnail"
	)

	RequestsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_preparser_requests_rejected_total",
			Help: "Submissions rejected during validation",
		},
		[]string{"kind", "reason"},
	)

	RequestsPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_preparser_requests_pending",
			Help: "Requests registered and not yet terminal",
		},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_preparser_request_duration_seconds",
			Help:    "Time from submission to terminal state",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"kind"},
	)

	CancellationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_preparser_cancellations_total",
			Help: "Requests interrupted before completion",
		},
		[]string{"reason"}, // "cancel", "timeout"
	)
)

// Subjob metrics, one series per domain
var (
	SubjobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_preparser_subjobs_total",
			Help: "Subjob outcomes per domain",
		},
		[]string{"domain", "status"},
	)

	SubjobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_preparser_subjob_duration_seconds",
			Help:    "Worker run time per domain",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"domain"},
	)

	SubjobPanics = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_preparser_subjob_panics_total",
			Help: "Worker panics recovered per domain",
		},
		[]string{"domain"},
	)
)

// Executor metrics
var (
	ExecutorWorkers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_preparser_executor_workers",
			Help: "Configured worker goroutines per executor",
		},
		[]string{"executor"},
	)

	ExecutorActiveWorkers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_preparser_executor_active_workers",
			Help: "Workers currently running a task",
		},
		[]string{"executor"},
	)

	ExecutorQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_preparser_executor_queue_depth",
			Help: "Tasks waiting for a worker",
		},
		[]string{"executor"},
	)

	ExecutorTasksDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_preparser_executor_tasks_dropped_total",
			Help: "Queued tasks removed before they ran",
		},
		[]string{"executor"},
	)
)

// Thumbnail metrics
var (
	ThumbnailGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_preparser_thumbnail_generations_total",
			Help: "Total number of thumbnail generations",
		},
		[]string{"type", "status"},
	)

	ThumbnailGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_preparser_thumbnail_generation_duration_seconds",
			Help:    "Thumbnail generation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"type"},
	)

	ThumbnailFFmpegDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_preparser_thumbnail_ffmpeg_duration_seconds",
			Help:    "ffmpeg frame extraction time by seek mode",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"seek"},
	)

	ThumbnailCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_preparser_thumbnail_cache_hits_total",
			Help: "Thumbnails served from the disk cache",
		},
	)

	ThumbnailCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_preparser_thumbnail_cache_misses_total",
			Help: "Thumbnails that had to be generated",
		},
	)
)

// Parser and fetcher metrics
var (
	ParsedItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_preparser_parsed_items_total",
			Help: "Items parsed by detected media type",
		},
		[]string{"type"},
	)

	SubitemsDiscovered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_preparser_subitems_discovered_total",
			Help: "Sub-items discovered in directories and playlists",
		},
	)

	ArtCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_preparser_artcache_lookups_total",
			Help: "Art cache lookups by result",
		},
		[]string{"result"}, // "hit", "miss", "error"
	)

	ArtCacheQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_preparser_artcache_query_duration_seconds",
			Help:    "Art cache query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)

	NetworkFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_preparser_network_fetches_total",
			Help: "Network metadata lookups by outcome",
		},
		[]string{"status"}, // "success", "not_found", "error", "shared"
	)

	NetworkFetchWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_preparser_network_fetch_rate_wait_seconds",
			Help:    "Time spent waiting on the network rate limiter",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10},
		},
	)
)

// Filesystem retry metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_preparser_filesystem_retry_attempts_total",
			Help: "Retries of filesystem operations after stale NFS handles",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_preparser_filesystem_retry_success_total",
			Help: "Filesystem operations that succeeded after retrying",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_preparser_filesystem_retry_failures_total",
			Help: "Filesystem operations that failed after all retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_preparser_filesystem_stale_errors_total",
			Help: "ESTALE errors observed",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_preparser_filesystem_retry_duration_seconds",
			Help:    "Total time of filesystem operations including retries",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"operation", "volume"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_preparser_memory_usage_ratio",
			Help: "Heap usage as a fraction of the memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_preparser_memory_paused",
			Help: "1 while thumbnail generation is paused for memory pressure",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_preparser_memory_gc_pauses_total",
			Help: "Times work was paused because memory crossed the critical watermark",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_preparser_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
