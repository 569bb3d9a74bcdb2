// Package main provides the entry point for the media preparser service.
//
// The service accepts media items over HTTP and runs them through up to four
// domains: parsing (ffprobe, tags, directory and playlist expansion), local
// artwork lookup, network metadata lookup and thumbnail generation. Each
// domain has its own bounded worker pool inside [preparser.Preparser].
//
// # Application Lifecycle
//
//  1. Memory Configuration: Sets GOMEMLIMIT from MEMORY_LIMIT or the container limit
//  2. Configuration Loading: Reads the TOML file and environment overrides
//  3. Tool Detection: libvips, ffmpeg and ffprobe
//  4. Art Cache: Opens the SQLite artwork and response cache
//  5. Component Initialization:
//     - Memory Monitor: Pauses thumbnail generation under memory pressure
//     - Workers: Parser, local and network fetchers, thumbnailer
//     - Preparser: Executors sized from PARSER_THREADS and THUMBNAILER_THREADS
//     - Metrics Collector: Samples queue depths for Prometheus
//  6. HTTP Server Setup: Routes, request id, access logging and metrics middleware
//  7. Graceful Shutdown: Handles SIGINT/SIGTERM and stops every component
//
// # HTTP Server
//
// The application runs two HTTP servers:
//
//  1. Main Server (default port 8080):
//     - POST /api/preparse: Preparse one item and wait for the result
//     - GET /api/thumbnail: Generate a JPEG thumbnail at a time or position
//     - GET/DELETE /api/requests: Inspect and cancel outstanding requests
//     - /health, /healthz, /livez, /readyz, /version
//
//  2. Metrics Server (default port 9090, optional):
//     - Prometheus metrics endpoint (/metrics)
//     - Liveness endpoint (/health)
//
// # Graceful Shutdown
//
//  1. Stop accepting new HTTP requests
//  2. Cancel pending preparse requests and wait for their callbacks
//  3. Stop the response pruner, metrics collector and memory monitor
//  4. Shutdown metrics server (if running)
//  5. Close the art cache
//  6. Shutdown libvips
//
// # Build Requirements
//
// CGO is required for SQLite (mattn/go-sqlite3) and libvips (govips).
// ffprobe and ffmpeg are looked up at runtime; without them video parsing
// and video thumbnails fail per item.
//
// The preparse command line tool lives in cmd/preparse.
package main
