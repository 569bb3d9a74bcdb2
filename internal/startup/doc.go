// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// [LoadConfig] starts from the embedded config.example.toml, reads the TOML
// file named by PREPARSER_CONFIG when set, then applies environment
// overrides. [Load] does the same without logging and with an injectable
// environment. The supported variables are:
//
//   - PREPARSER_TYPES: Enabled domains, comma separated (default: all)
//   - PARSER_THREADS: Parser and fetcher pool size, 0 for auto (default: 0)
//   - THUMBNAILER_THREADS: Thumbnailer pool size, 0 for auto (default: 0)
//   - PREPARSE_TIMEOUT: Default request deadline, 0s for none (default: 30s)
//   - MAX_SUBITEMS: Cap on sub-items per directory or playlist (default: 10000)
//   - MEDIA_DIR, CACHE_DIR, DATABASE_DIR: Directories (default: /media, /cache, /database)
//   - FFMPEG_PATH, FFPROBE_PATH: External tools (default: looked up in PATH)
//   - PORT, METRICS_PORT, METRICS_ENABLED: HTTP listeners (default: 8080, 9090, true)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//   - META_API_URL, META_API_RATE, META_API_BURST, META_API_TTL: Network metadata service
//   - THUMBNAIL_SIZE, THUMBNAIL_QUALITY, VIPS_ENABLED: Thumbnail output
//
// The network fetcher is dropped from the enabled domains when no metadata
// endpoint is configured.
//
// # Directory Setup
//
// The database directory must be writable. The thumbnail and artwork
// directories below CACHE_DIR are optional; an unwritable one disables the
// corresponding disk cache.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
//
// # Lifecycle Logging
//
//   - [LogMemoryConfig]: Memory limit configuration
//   - [LogArtCacheInit]: Art cache database timing
//   - [LogToolsInit]: FFmpeg, FFprobe and libvips availability
//   - [LogPreparserInit]: Enabled domains and pool sizes
//   - [LogHTTPRoutes]: Registered HTTP routes (debug level)
//   - [LogServerStarted]: Server endpoints and startup duration
//   - [LogShutdownInitiated], [LogShutdownComplete]: Graceful shutdown
package startup
