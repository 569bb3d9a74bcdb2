package metrics

// Domains are the executor and subjob label values.
var Domains = []string{"parse", "fetchmeta_local", "fetchmeta_net", "thumbnail"}

// InitializeMetrics pre-populates the expected label combinations so every
// series is exported from the first scrape.
func InitializeMetrics() {
	for _, kind := range []string{"preparse", "thumbnail"} {
		for _, status := range []string{"success", "timeout", "interrupted", "error"} {
			RequestsTotal.WithLabelValues(kind, status)
		}
		RequestDuration.WithLabelValues(kind)
	}

	for _, reason := range []string{"cancel", "timeout"} {
		CancellationsTotal.WithLabelValues(reason)
	}

	for _, d := range Domains {
		for _, status := range []string{"success", "error", "interrupted"} {
			SubjobsTotal.WithLabelValues(d, status)
		}
		SubjobDuration.WithLabelValues(d)
		SubjobPanics.WithLabelValues(d)
		ExecutorWorkers.WithLabelValues(d)
		ExecutorActiveWorkers.WithLabelValues(d)
		ExecutorQueueDepth.WithLabelValues(d)
		ExecutorTasksDropped.WithLabelValues(d)
	}

	for _, t := range []string{"image", "video", "audio"} {
		for _, s := range []string{"success", "error", "cached"} {
			ThumbnailGenerationsTotal.WithLabelValues(t, s)
		}
		ThumbnailGenerationDuration.WithLabelValues(t)
	}
	for _, s := range []string{"none", "precise", "fast"} {
		ThumbnailFFmpegDuration.WithLabelValues(s)
	}

	for _, r := range []string{"hit", "miss", "error"} {
		ArtCacheLookups.WithLabelValues(r)
	}
	for _, s := range []string{"success", "not_found", "error", "shared"} {
		NetworkFetchesTotal.WithLabelValues(s)
	}

	for _, op := range []string{"stat", "open", "readdir", "write"} {
		for _, vol := range []string{"media", "cache", "database", "unknown"} {
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}
}
