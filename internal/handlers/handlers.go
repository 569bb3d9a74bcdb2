package handlers

import (
	"path/filepath"
	"sync/atomic"
	"time"

	"media-preparser/internal/filesystem"
	"media-preparser/internal/item"
	"media-preparser/internal/preparser"
)

// Service is the part of the preparser the handlers drive.
// *preparser.Preparser implements it.
type Service interface {
	Push(it *item.Item, flags preparser.Type, cbs preparser.ParseCallbacks, data any) (preparser.RequestID, error)
	GenerateThumbnail(it *item.Item, seek preparser.SeekArg, timeout time.Duration, cbs preparser.ThumbnailCallbacks, data any) (preparser.RequestID, error)
	Cancel(id preparser.RequestID) int
	Pending() int
	Enabled(t preparser.Type) bool
}

// Pauser reports memory backpressure. *memory.Monitor implements it.
type Pauser interface {
	IsPaused() bool
}

// Config configures the handlers.
type Config struct {
	// MediaDir bounds every local path a client may name.
	MediaDir         string
	ThumbnailQuality int
	Retry            filesystem.RetryConfig
	// Memory is optional.
	Memory Pauser
}

// Handlers serves the HTTP API.
type Handlers struct {
	svc      Service
	cfg      Config
	mediaDir string
	started  time.Time
	ready    atomic.Bool
}

// New creates the handlers. They report not ready until SetReady(true).
func New(svc Service, cfg Config) *Handlers {
	mediaDir, err := filepath.Abs(cfg.MediaDir)
	if err != nil {
		mediaDir = filepath.Clean(cfg.MediaDir)
	}
	if cfg.ThumbnailQuality <= 0 || cfg.ThumbnailQuality > 100 {
		cfg.ThumbnailQuality = 80
	}
	return &Handlers{
		svc:      svc,
		cfg:      cfg,
		mediaDir: mediaDir,
		started:  time.Now(),
	}
}

// SetReady flips the readiness reported by /readyz and /healthz.
func (h *Handlers) SetReady(ready bool) {
	h.ready.Store(ready)
}

func (h *Handlers) memoryPaused() bool {
	return h.cfg.Memory != nil && h.cfg.Memory.IsPaused()
}
