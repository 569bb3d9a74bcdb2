// Package metrics declares the Prometheus series exported by the preparser
// service.
//
// All series are registered on the default registry through promauto and
// carry the media_preparser_ prefix. Call [InitializeMetrics] once at startup
// so that every known label combination is exported as zero before the first
// scrape; dashboards and rate() queries then work from the start instead of
// waiting for the first event of each kind.
//
// # Metric Categories
//
// ## HTTP Metrics
//
// Recorded by the middleware package for every routed request:
//   - HTTPRequestsTotal: Counter by method, route template and status
//   - HTTPRequestDuration: Histogram of request duration by method and route
//   - HTTPRequestsInFlight: Gauge of requests currently being served
//
// Route templates ("/api/requests/{id}") are used instead of raw paths to
// keep label cardinality bounded.
//
// ## Request Metrics
//
// Recorded by the preparser for each Push or GenerateThumbnail call:
//   - RequestsTotal: Counter by kind (preparse, thumbnail) and terminal status
//     (success, timeout, interrupted, error)
//   - RequestsRejected: Counter of submissions refused before an id was
//     issued, by kind and reason
//   - RequestsPending: Gauge of registered, non-terminal requests
//   - RequestDuration: Histogram of submission to terminal state, by kind
//   - CancellationsTotal: Counter by reason (cancel, timeout)
//
// ## Subjob Metrics
//
// One subjob runs per requested domain (parse, fetchmeta_local,
// fetchmeta_net, thumbnail):
//   - SubjobsTotal: Counter by domain and outcome (success, error, interrupted)
//   - SubjobDuration: Histogram of worker run time by domain
//   - SubjobPanics: Counter of worker panics recovered by domain
//
// ## Executor Metrics
//
// Each domain has its own bounded executor:
//   - ExecutorWorkers: Gauge of configured worker goroutines
//   - ExecutorActiveWorkers: Gauge of workers running a task
//   - ExecutorQueueDepth: Gauge of tasks waiting for a worker
//   - ExecutorTasksDropped: Counter of queued tasks removed before running
//
// ## Thumbnail Metrics
//
// Recorded by the thumbnailer:
//   - ThumbnailGenerationsTotal: Counter by media type (image, video, audio)
//     and status (success, error, cached)
//   - ThumbnailGenerationDuration: Histogram of generation time by media type
//   - ThumbnailFFmpegDuration: Histogram of frame extraction by seek mode
//     (none, precise, fast)
//   - ThumbnailCacheHits, ThumbnailCacheMisses: Disk cache counters
//
// ## Parser and Fetcher Metrics
//
//   - ParsedItemsTotal: Counter of parsed items by detected type
//   - SubitemsDiscovered: Counter of directory and playlist entries emitted
//   - ArtCacheLookups: Counter by result (hit, miss, error)
//   - ArtCacheQueryDuration: Histogram of SQLite query time by operation
//   - NetworkFetchesTotal: Counter by outcome (success, not_found, error,
//     shared); shared counts lookups answered by an identical in-flight query
//   - NetworkFetchWait: Histogram of time spent waiting on the rate limiter
//
// ## Filesystem Metrics
//
// Reported through the [filesystem.Observer] returned by
// [NewFilesystemObserver], labelled by operation (stat, open, readdir, write)
// and volume (media, cache, database, unknown):
//   - FilesystemRetryAttempts, FilesystemRetrySuccess, FilesystemRetryFailures
//   - FilesystemStaleErrors: ESTALE errors observed
//   - FilesystemRetryDuration: Histogram including time spent in backoff
//
// The observer indirection keeps the filesystem package free of a
// dependency on this one.
//
// ## Memory Metrics
//
// Updated by the memory monitor:
//   - MemoryUsageRatio: Heap usage as a fraction of the limit (0.0-1.0)
//   - MemoryPaused: 1 while thumbnail generation is paused
//   - MemoryGCPauses: Counter of pauses triggered by the critical watermark
//
// ## Application Info
//
//   - AppInfo: Gauge with version, commit and Go version labels, set by
//     [SetAppInfo]
//
// # Collector
//
// Queue depths and active workers change on every task, so they are
// sampled instead of updated inline. A [Collector] polls a [StatsProvider]
// (the preparser implements it) at a fixed interval:
//
//	collector := metrics.NewCollector(pp, 15*time.Second)
//	collector.Start()
//	defer collector.Stop()
//
// The collector updates RequestsPending, ExecutorQueueDepth and
// ExecutorActiveWorkers.
//
// # Recording Metrics
//
//	metrics.RequestsTotal.WithLabelValues("preparse", "success").Inc()
//	metrics.SubjobDuration.WithLabelValues("parse").Observe(elapsed.Seconds())
//
// # Prometheus Queries
//
// Request rate by terminal status:
//
//	sum(rate(media_preparser_requests_total[5m])) by (kind, status)
//
// P95 time to terminal state:
//
//	histogram_quantile(0.95, sum(rate(media_preparser_request_duration_seconds_bucket[5m])) by (le, kind))
//
// Share of requests hitting their deadline:
//
//	sum(rate(media_preparser_requests_total{status="timeout"}[5m])) /
//	sum(rate(media_preparser_requests_total[5m]))
//
// Saturated executors (queue growing while every worker is busy):
//
//	media_preparser_executor_queue_depth > 0
//	and media_preparser_executor_active_workers == media_preparser_executor_workers
//
// Thumbnail cache hit rate:
//
//	rate(media_preparser_thumbnail_cache_hits_total[5m]) /
//	(rate(media_preparser_thumbnail_cache_hits_total[5m]) + rate(media_preparser_thumbnail_cache_misses_total[5m]))
//
// Memory pressure events:
//
//	rate(media_preparser_memory_gc_pauses_total[1h])
package metrics
