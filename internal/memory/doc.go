// Package memory keeps the preparser inside its container memory limit.
//
// # Overview
//
// Go detects the CPU quota of a container through GOMAXPROCS but not its
// memory limit. Without GOMEMLIMIT the collector only reacts to heap growth
// ratios and a burst of thumbnail requests can push the process over the
// cgroup limit. The preparser is especially exposed: ffmpeg frame
// extraction and libvips decoding allocate outside the Go heap, and decoded
// frames are large.
//
// The package does two things:
//   - [ConfigureFromEnv] sets GOMEMLIMIT from the container limit
//   - [Monitor] samples heap usage and throttles thumbnail generation
//
// # Configuration
//
// Call [ConfigureFromEnv] first thing in main, before significant
// allocations:
//
//	startup.LogMemoryConfig(memory.ConfigureFromEnv())
//
// The returned [ConfigResult] records where the limit came from so it can
// be logged.
//
// # Environment Variables
//
//   - GOMEMLIMIT: Standard Go variable. When set it wins and nothing is
//     changed.
//   - MEMORY_LIMIT: Container limit in bytes, usually injected with the
//     Kubernetes Downward API.
//   - MEMORY_RATIO: Fraction of MEMORY_LIMIT given to the Go heap, between
//     0.0 and 1.0. Default 0.85. Invalid values fall back to the default.
//
// # Kubernetes Configuration
//
//	env:
//	- name: MEMORY_LIMIT
//	  valueFrom:
//	    resourceFieldRef:
//	      resource: limits.memory
//	- name: MEMORY_RATIO
//	  value: "0.75"
//
// # Memory Ratio Guidelines
//
// Whatever MEMORY_RATIO leaves over is shared by ffmpeg and ffprobe child
// processes, libvips allocations, goroutine stacks and SQLite page cache.
//
//	| Workload                                | Ratio          |
//	|-----------------------------------------|----------------|
//	| Parse and fetch only, no thumbnails     | 0.90           |
//	| Image thumbnails, pure Go decoding      | 0.85 (default) |
//	| Image thumbnails with libvips           | 0.80           |
//	| Video thumbnails (ffmpeg)               | 0.75           |
//	| Many concurrent video thumbnails        | 0.70           |
//
// # Backpressure
//
// A [Monitor] reads runtime heap statistics every CheckInterval and
// compares them with the limit (GOMEMLIMIT, or Config.MemoryLimitBytes):
//
//   - At or above CriticalWaterMark (default 0.85) the monitor pauses and
//     triggers a GC.
//   - Below HighWaterMark (default 0.70) a paused monitor resumes.
//
// The gap between the two marks keeps it from flapping. While paused,
// [Monitor.Wait] blocks the thumbnailer until resume, monitor stop, or the
// end of the request's context, whichever comes first; a preparse request
// with a deadline therefore times out instead of waiting indefinitely. The
// HTTP thumbnail endpoint checks [Monitor.IsPaused] and answers 503 with
// Retry-After up front.
//
//	monitor := memory.NewMonitor(memory.DefaultConfig())
//	monitor.Start()
//	defer monitor.Stop()
//
//	if err := monitor.Wait(ctx); err != nil {
//		return nil, err
//	}
//
// Without a limit the monitor never pauses. A nil *Monitor is valid and
// never blocks, so callers do not need to special-case a disabled monitor.
//
// # Metrics
//
// The monitor updates media_preparser_memory_usage_ratio,
// media_preparser_memory_paused and media_preparser_memory_gc_pauses_total.
package memory
