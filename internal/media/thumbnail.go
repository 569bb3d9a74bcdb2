package media

import (
	"bytes"
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"time"

	"media-preparser/internal/filesystem"
	"media-preparser/internal/item"
	"media-preparser/internal/logging"
	"media-preparser/internal/mediatypes"
	"media-preparser/internal/metrics"
	"media-preparser/internal/preparser"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultThumbnailSize bounds both thumbnail edges.
	DefaultThumbnailSize = 200
	// DefaultThumbnailQuality is the JPEG quality of cached thumbnails.
	DefaultThumbnailQuality = 80
)

// ErrUnsupported is returned for items no thumbnail can be produced for.
var ErrUnsupported = errors.New("thumbnails not supported for this item")

// ThumbnailerConfig configures a Thumbnailer.
type ThumbnailerConfig struct {
	// CacheDir holds generated thumbnails. Empty disables the disk cache.
	CacheDir    string
	Size        int
	Quality     int
	FFmpegPath  string
	FFprobePath string
	Retry       filesystem.RetryConfig
	// Throttle, when set, gates every generation. memory.Monitor satisfies it.
	Throttle Throttle
}

// Throttle blocks until work may proceed or ctx ends.
type Throttle interface {
	Wait(ctx context.Context) error
}

// Thumbnailer implements preparser.Thumbnailer for local images, videos
// and audio files with embedded covers, and for remote videos.
type Thumbnailer struct {
	cfg   ThumbnailerConfig
	group singleflight.Group
}

// NewThumbnailer creates a thumbnailer, creating the cache directory.
func NewThumbnailer(cfg ThumbnailerConfig) *Thumbnailer {
	if cfg.Size <= 0 {
		cfg.Size = DefaultThumbnailSize
	}
	if cfg.Quality <= 0 || cfg.Quality > 100 {
		cfg.Quality = DefaultThumbnailQuality
	}
	if cfg.CacheDir != "" {
		if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
			logging.Warn("Thumbnailer: failed to create cache dir %s: %v, caching disabled", cfg.CacheDir, err)
			cfg.CacheDir = ""
		} else {
			logging.Debug("Thumbnailer: cache dir %s", cfg.CacheDir)
		}
	}
	return &Thumbnailer{cfg: cfg}
}

// Size returns the bounding edge of produced thumbnails.
func (t *Thumbnailer) Size() int {
	return t.cfg.Size
}

// EncodeJPEG encodes img at the given quality.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// cacheKey changes whenever the source file, the seek or the size changes.
// Only videos honour the seek argument.
func cacheKey(path string, info os.FileInfo, kind mediatypes.FileType, seek preparser.SeekArg, size int) string {
	if kind != mediatypes.FileTypeVideo {
		seek = preparser.SeekArg{}
	}
	raw := fmt.Sprintf("%s|%d|%d|%s|%d", path, info.ModTime().UnixNano(), info.Size(), seek, size)
	return fmt.Sprintf("%x.jpg", md5.Sum([]byte(raw)))
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Thumbnail produces a thumbnail of it fitted within Size x Size.
func (t *Thumbnailer) Thumbnail(ctx context.Context, it *item.Item, seek preparser.SeekArg) (image.Image, error) {
	kind := it.Type()
	label := string(kind)
	start := time.Now()

	path := it.Path()
	if path == "" {
		if kind != mediatypes.FileTypeVideo {
			return nil, fmt.Errorf("%w: remote %s", ErrUnsupported, kind)
		}
		img, err := t.generate(ctx, it, it.URI(), seek)
		t.observe(label, start, err)
		return img, err
	}

	info, err := filesystem.Stat(ctx, path, t.cfg.Retry)
	if err != nil {
		return nil, fmt.Errorf("file not accessible: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: directory", ErrUnsupported)
	}

	key := cacheKey(path, info, kind, seek, t.cfg.Size)
	if img, ok := t.cached(ctx, key); ok {
		logging.Debug("Thumbnail cache hit: %s", path)
		metrics.ThumbnailCacheHits.Inc()
		metrics.ThumbnailGenerationsTotal.WithLabelValues(label, "cached").Inc()
		return img, nil
	}
	metrics.ThumbnailCacheMisses.Inc()

	build := func() (any, error) {
		img, err := t.generate(ctx, it, path, seek)
		if err != nil {
			return nil, err
		}
		t.store(ctx, key, img)
		return img, nil
	}

	v, err, shared := t.group.Do(key, build)
	if err != nil && shared && isContextErr(err) && ctx.Err() == nil {
		// The leader was cancelled, not us.
		v, err = build()
	}
	t.observe(label, start, err)
	if err != nil {
		return nil, err
	}
	return v.(image.Image), nil
}

func (t *Thumbnailer) observe(label string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.ThumbnailGenerationsTotal.WithLabelValues(label, status).Inc()
	metrics.ThumbnailGenerationDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
}

func (t *Thumbnailer) generate(ctx context.Context, it *item.Item, src string, seek preparser.SeekArg) (image.Image, error) {
	if t.cfg.Throttle != nil {
		if err := t.cfg.Throttle.Wait(ctx); err != nil {
			return nil, err
		}
	}
	logging.Debug("Thumbnail generating: %s (type: %s, seek: %s)", src, it.Type(), seek)

	var (
		img image.Image
		err error
	)
	switch it.Type() {
	case mediatypes.FileTypeImage:
		img, err = t.imageSource(ctx, src)
	case mediatypes.FileTypeVideo:
		img, err = t.videoSource(ctx, it, src, seek)
	case mediatypes.FileTypeAudio:
		img, err = EmbeddedImage(ctx, src, t.cfg.Retry)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, it.Type())
	}
	if err != nil {
		return nil, fmt.Errorf("thumbnail generation failed: %w", err)
	}
	if img == nil {
		return nil, errors.New("thumbnail generation returned nil image")
	}

	return imaging.Fit(img, t.cfg.Size, t.cfg.Size, imaging.Lanczos), nil
}

func (t *Thumbnailer) imageSource(ctx context.Context, path string) (image.Image, error) {
	if IsVipsAvailable() {
		img, err := LoadImageWithVips(path, t.cfg.Size, t.cfg.Size)
		if err == nil {
			return img, nil
		}
		logging.Debug("vips failed for %s: %v, trying imaging", path, err)
	}

	img, err := LoadImageConstrained(ctx, path, t.cfg.Retry, MaxImageDimension, MaxImagePixels)
	if err == nil {
		return img, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	logging.Debug("Standard decode failed for %s: %v, trying ffmpeg fallback", path, err)
	img, ferr := ExtractFrame(ctx, t.cfg.FFmpegPath, path, 0, preparser.SeekPrecise)
	if ferr != nil {
		return nil, fmt.Errorf("all image decode methods failed for %s: %w", path, errors.Join(err, ferr))
	}
	return img, nil
}

func (t *Thumbnailer) videoSource(ctx context.Context, it *item.Item, src string, seek preparser.SeekArg) (image.Image, error) {
	duration := it.Duration()
	if duration == 0 && seek.Type == preparser.SeekPosition {
		probe, err := Probe(ctx, t.cfg.FFprobePath, src)
		if err != nil {
			return nil, err
		}
		duration = probe.Duration
		it.SetDuration(duration)
	}
	return videoFrame(ctx, t.cfg.FFmpegPath, src, seek, duration)
}

func (t *Thumbnailer) cachePath(key string) string {
	return filepath.Join(t.cfg.CacheDir, key[:2], key)
}

func (t *Thumbnailer) cached(ctx context.Context, key string) (image.Image, bool) {
	if t.cfg.CacheDir == "" {
		return nil, false
	}
	f, err := filesystem.Open(ctx, t.cachePath(key), t.cfg.Retry)
	if err != nil {
		return nil, false
	}
	defer f.Close()

	img, err := jpeg.Decode(f)
	if err != nil {
		logging.Warn("Discarding unreadable cached thumbnail %s: %v", f.Name(), err)
		return nil, false
	}
	return img, true
}

func (t *Thumbnailer) store(ctx context.Context, key string, img image.Image) {
	if t.cfg.CacheDir == "" {
		return
	}
	data, err := EncodeJPEG(img, t.cfg.Quality)
	if err != nil {
		logging.Warn("Failed to encode thumbnail for cache: %v", err)
		return
	}
	path := t.cachePath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		logging.Warn("Failed to create cache shard %s: %v", filepath.Dir(path), err)
		return
	}
	if err := filesystem.WriteFile(ctx, path, data, t.cfg.Retry); err != nil {
		logging.Warn("Failed to cache thumbnail %s: %v", path, err)
		return
	}
	logging.Debug("Thumbnail cached: %s", path)
}
