package startup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"media-preparser/internal/logging"
	"media-preparser/internal/memory"

	"github.com/gorilla/mux"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// LoadConfig prints the startup banner, loads the configuration named by
// PREPARSER_CONFIG plus environment overrides and prepares the directories
// it references.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	config, err := Load(os.Getenv("PREPARSER_CONFIG"), os.Getenv)
	if err != nil {
		return nil, err
	}

	if config.Source != "" {
		logging.Info("  Config file:         %s", config.Source)
	} else {
		logging.Info("  Config file:         (built-in defaults)")
	}
	logging.Info("  PREPARSER_TYPES:     %s", config.Types)
	logging.Info("  PARSER_THREADS:      %d (configured %d)", config.ParserWorkers, config.Preparser.ParserThreads)
	logging.Info("  THUMBNAILER_THREADS: %d (configured %d)", config.ThumbnailerWorkers, config.Preparser.ThumbnailerThreads)
	logging.Info("  PREPARSE_TIMEOUT:    %v", config.Preparser.Timeout)
	logging.Info("  MEDIA_DIR:           %s", config.Paths.MediaDir)
	logging.Info("  CACHE_DIR:           %s", config.Paths.CacheDir)
	logging.Info("  DATABASE_DIR:        %s", config.Paths.DatabaseDir)
	logging.Info("  PORT:                %s", config.Server.Port)
	logging.Info("  METRICS_PORT:        %s", config.Server.MetricsPort)
	logging.Info("  METRICS_ENABLED:     %v", config.Server.MetricsEnabled)
	logging.Info("  META_API_URL:        %s", displayOrNone(config.Network.Endpoint))
	logging.Info("  THUMBNAIL_SIZE:      %d", config.Thumbnails.Size)
	logging.Info("  VIPS_ENABLED:        %v", config.Thumbnails.Vips)
	logging.Info("  LOG_HEALTH_CHECKS:   %v", config.Server.LogHealthChecks)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	// Check/create media directory (warning only)
	if err := ensureDirectory(config.Paths.MediaDir, "media"); err != nil {
		logging.Warn("  Media directory issue: %v", err)
	}

	if err := ensureDirectory(config.Paths.DatabaseDir, "database"); err != nil {
		return nil, fmt.Errorf("database directory error: %w", err)
	}
	logging.Debug("  Testing database directory write access...")
	if err := testWriteAccess(config.Paths.DatabaseDir); err != nil {
		return nil, fmt.Errorf("database directory is not writable (required for art cache): %w", err)
	}
	logging.Info("  [OK] Database directory is writable")

	if !setupOptionalDir(config.ThumbnailDir, "thumbnail cache") {
		config.ThumbnailDir = ""
	}
	if !setupOptionalDir(config.ArtDir, "artwork") {
		config.ArtDir = ""
	}

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Art cache:       ENABLED (required)")
	logging.Info("    Thumbnail cache: %s", enabledString(config.ThumbnailDir != ""))
	logging.Info("    Artwork store:   %s", enabledString(config.ArtDir != ""))
	logging.Info("    Network fetch:   %s", enabledString(config.Network.Endpoint != ""))
	logging.Info("    Metrics:         %s", enabledString(config.Server.MetricsEnabled))

	return config, nil
}

func displayOrNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func setupOptionalDir(path, name string) bool {
	logging.Debug("  Setting up %s directory: %s", name, path)
	if err := os.MkdirAll(path, 0o755); err != nil {
		logging.Warn("    Failed to create %s directory: %v", name, err)
		logging.Warn("    %s will be disabled", name)
		return false
	}
	if err := testWriteAccess(path); err != nil {
		logging.Warn("    %s directory is not writable: %v", name, err)
		logging.Warn("    %s will be disabled", name)
		return false
	}
	logging.Debug("    [OK] %s directory ready", name)
	return true
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogMemoryConfig logs how the memory limit was derived.
func LogMemoryConfig(res memory.ConfigResult) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("MEMORY")
	logging.Info("------------------------------------------------------------")
	if !res.Configured {
		logging.Info("  No memory limit configured (set MEMORY_LIMIT or GOMEMLIMIT)")
		return
	}
	logging.Info("  GOMEMLIMIT:      %s (from %s)", memory.FormatBytes(res.GoMemLimit), res.Source)
	if res.ContainerLimit > 0 {
		logging.Info("  Container limit: %s (ratio %.2f)", memory.FormatBytes(res.ContainerLimit), res.Ratio)
	}
}

// LogArtCacheInit logs art cache initialization
func LogArtCacheInit(path string, duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("ART CACHE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Art cache %s opened in %v", path, duration)
}

// LogToolsInit checks the external media tools the workers shell out to.
func LogToolsInit(ffmpeg, ffprobe string, vipsEnabled bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("MEDIA TOOLS")
	logging.Info("------------------------------------------------------------")

	if err := checkTool(ffmpeg); err != nil {
		logging.Warn("  [WARN] FFmpeg check failed: %v", err)
		logging.Warn("  Video thumbnails will not be generated")
	} else {
		logging.Info("  [OK] FFmpeg is available")
	}
	if err := checkTool(ffprobe); err != nil {
		logging.Warn("  [WARN] FFprobe check failed: %v", err)
		logging.Warn("  Audio and video parsing will be limited to tags")
	} else {
		logging.Info("  [OK] FFprobe is available")
	}
	if vipsEnabled {
		logging.Info("  [OK] libvips image decoding enabled")
	} else {
		logging.Info("  libvips disabled, using pure Go decoders")
	}
}

// LogPreparserInit logs the preparser's resolved shape
func LogPreparserInit(config *Config) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("PREPARSER INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Domains:            %s", config.Types)
	logging.Info("  Parser workers:     %d", config.ParserWorkers)
	logging.Info("  Thumbnail workers:  %d", config.ThumbnailerWorkers)
	if config.Preparser.Timeout.Duration > 0 {
		logging.Info("  Default timeout:    %v", config.Preparser.Timeout)
	} else {
		logging.Info("  Default timeout:    none")
	}
	logging.Info("  [OK] Preparser started")
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}
		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes dynamically
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))
		logging.Debug("")

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}
			for _, route := range groups[group] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
			logging.Debug("")
		}
	}

	logging.Info("  HTTP logging enabled")
	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")

	parts := strings.SplitN(path, "/", 2)
	first := parts[0]

	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}
	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs the listening endpoints.
func LogServerStarted(config ServerConfig) {
	ev := logging.Logger().Info().
		Dur("startup", config.StartupDuration).
		Str("api", "http://0.0.0.0:"+config.Port)
	if config.MetricsEnabled {
		ev = ev.Str("metrics", "http://0.0.0.0:"+config.MetricsPort+"/metrics")
	} else {
		ev = ev.Bool("metrics", false)
	}
	ev.Msg("Preparser service ready")
}

func LogShutdownInitiated(signal string) {
	logging.Logger().Info().Str("signal", signal).Msg("Shutdown initiated")
}

func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

func LogShutdownComplete() {
	logging.Logger().Info().Msg("Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
                   _ _
  _ __ ___   ___  __| (_) __ _   _ __  _ __ ___ _ __   __ _ _ __ ___  ___ _ __
 | '_ ' _ \ / _ \/ _' | |/ _' | | '_ \| '__/ _ \ '_ \ / _' | '__/ __|/ _ \ '__|
 | | | | | |  __/ (_| | | (_| | | |_) | | |  __/ |_) | (_| | |  \__ \  __/ |
 |_| |_| |_|\___|\__,_|_|\__,_| | .__/|_|  \___| .__/ \__,_|_|  |___/\___|_|
                                |_|            |_|
------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	ev := logging.Logger().Info().
		Str("go", runtime.Version()).
		Str("platform", runtime.GOOS+"/"+runtime.GOARCH).
		Int("cpus", runtime.NumCPU()).
		Int("gomaxprocs", runtime.GOMAXPROCS(0))
	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			ev = ev.Str("workdir", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			ev = ev.Str("host", hostname)
		}
	}
	ev.Msg("System information")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

// checkTool verifies that tool runs and logs the first line of its version.
func checkTool(tool string) error {
	path, err := exec.LookPath(tool)
	if err != nil {
		return fmt.Errorf("%s not found in PATH", tool)
	}
	logging.Debug("  %s path: %s", tool, path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return fmt.Errorf("failed to get %s version: %w", tool, err)
	}

	if line, _, _ := strings.Cut(string(output), "\n"); line != "" {
		logging.Debug("  %s version: %s", tool, strings.TrimSpace(line))
	}
	return nil
}
