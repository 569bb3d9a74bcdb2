package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"media-preparser/internal/artcache"
	"media-preparser/internal/filesystem"
	"media-preparser/internal/handlers"
	"media-preparser/internal/logging"
	"media-preparser/internal/media"
	"media-preparser/internal/memory"
	"media-preparser/internal/metrics"
	"media-preparser/internal/middleware"
	"media-preparser/internal/preparser"
	"media-preparser/internal/startup"

	"github.com/gorilla/mux"
)

const (
	metricsInterval = 15 * time.Second
	pruneInterval   = 1 * time.Hour
)

// components holds everything that needs stopping on shutdown.
type components struct {
	srv        *http.Server
	metricsSrv *http.Server
	preparser  *preparser.Preparser
	collector  *metrics.Collector
	monitor    *memory.Monitor
	cache      *artcache.Cache
	stopPrune  context.CancelFunc
	vips       bool
}

func main() {
	startTime := time.Now()

	// Memory limit first, so everything after runs under it
	startup.LogMemoryConfig(memory.ConfigureFromEnv())

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	metrics.InitializeMetrics()
	metrics.SetAppInfo(startup.Version, startup.Commit, runtime.Version())
	filesystem.SetObserver(metrics.NewFilesystemObserver())
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"media":    config.Paths.MediaDir,
		"cache":    config.Paths.CacheDir,
		"database": config.Paths.DatabaseDir,
	}))

	vipsEnabled := false
	if config.Thumbnails.Vips {
		if err := media.InitVips(); err != nil {
			logging.Warn("libvips unavailable, falling back to pure Go decoding: %v", err)
		} else {
			vipsEnabled = true
		}
	}
	startup.LogToolsInit(config.Paths.FFmpeg, config.Paths.FFprobe, vipsEnabled)

	ctx := context.Background()
	cacheStart := time.Now()
	cache, err := artcache.New(ctx, config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to open art cache: %v", err)
	}
	startup.LogArtCacheInit(config.DatabasePath, time.Since(cacheStart))

	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()

	pp, err := startup.NewPreparser(config, cache, monitor)
	if err != nil {
		startup.LogFatal("Failed to create preparser: %v", err)
	}
	startup.LogPreparserInit(config)

	collector := metrics.NewCollector(pp, metricsInterval)
	collector.Start()

	pruneCtx, stopPrune := context.WithCancel(ctx)
	if config.Types.Has(preparser.TypeFetchMetaNet) {
		go pruneResponses(pruneCtx, cache, config.Network.ResponseTTL.Duration)
	}

	h := handlers.New(pp, handlers.Config{
		MediaDir:         config.Paths.MediaDir,
		ThumbnailQuality: config.Thumbnails.Quality,
		Retry:            filesystem.DefaultRetryConfig(),
		Memory:           monitor,
	})

	router := setupRouter(h, config)
	startup.LogHTTPRoutes(router, config.Server.LogHealthChecks)

	srv := &http.Server{
		Addr:              ":" + config.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Preparse and thumbnail requests wait on the preparser.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	c := &components{
		srv:       srv,
		preparser: pp,
		collector: collector,
		monitor:   monitor,
		cache:     cache,
		stopPrune: stopPrune,
		vips:      vipsEnabled,
	}

	if config.Server.MetricsEnabled {
		c.metricsSrv = startMetricsServer(h, config.Server.MetricsPort)
	}

	go handleShutdown(c)

	h.SetReady(true)
	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Server.Port,
		MetricsPort:     config.Server.MetricsPort,
		MetricsEnabled:  config.Server.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}

	// ListenAndServe returns as soon as Shutdown starts; wait for the rest.
	<-shutdownDone
}

var shutdownDone = make(chan struct{})

func setupRouter(h *handlers.Handlers, config *startup.Config) *mux.Router {
	r := mux.NewRouter()

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.Server.LogHealthChecks

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(loggingConfig))
	if config.Server.MetricsEnabled {
		r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
	}

	h.RegisterRoutes(r)
	return r
}

func startMetricsServer(h *handlers.Handlers, port string) *http.Server {
	mr := http.NewServeMux()
	mr.Handle("/metrics", h.MetricsHandler())
	mr.HandleFunc("/health", h.LivenessCheck)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mr,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logging.Error("Metrics server error: %v", err)
		}
	}()
	return srv
}

// pruneResponses drops expired metadata service responses until ctx ends.
func pruneResponses(ctx context.Context, cache *artcache.Cache, ttl time.Duration) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := cache.PruneResponses(ctx, ttl)
			if err != nil {
				logging.Warn("Failed to prune cached responses: %v", err)
			} else if n > 0 {
				logging.Debug("Pruned %d cached responses", n)
			}
		}
	}
}

func handleShutdown(c *components) {
	defer close(shutdownDone)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := c.srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Cancelling pending requests")
	c.preparser.Delete()
	startup.LogShutdownStepComplete("Preparser stopped")

	c.stopPrune()
	c.collector.Stop()
	c.monitor.Stop()

	if c.metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := c.metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownStep("Closing art cache")
	if err := c.cache.Close(); err != nil {
		logging.Warn("Art cache close error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Art cache closed")
	}

	if c.vips {
		media.ShutdownVips()
	}

	startup.LogShutdownComplete()
}
