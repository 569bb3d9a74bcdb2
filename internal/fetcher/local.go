package fetcher

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"media-preparser/internal/artcache"
	"media-preparser/internal/filesystem"
	"media-preparser/internal/item"
	"media-preparser/internal/logging"
	"media-preparser/internal/media"
	"media-preparser/internal/mediatypes"
	"media-preparser/internal/preparser"
)

// DefaultCoverNames are the sidecar base names tried, in order.
var DefaultCoverNames = []string{"cover", "folder", "front", "album", "albumart"}

// LocalConfig configures a Local fetcher.
type LocalConfig struct {
	Retry filesystem.RetryConfig
	// Cache is optional.
	Cache ArtStore
	// ArtDir receives pictures extracted from tags.
	ArtDir     string
	CoverNames []string
}

// Local finds artwork on the local filesystem.
type Local struct {
	cfg LocalConfig
}

// NewLocal creates a local fetcher.
func NewLocal(cfg LocalConfig) *Local {
	if len(cfg.CoverNames) == 0 {
		cfg.CoverNames = DefaultCoverNames
	}
	return &Local{cfg: cfg}
}

// FetchMeta sets the item's artwork URL from the art cache, a sidecar image
// or an embedded picture.
func (l *Local) FetchMeta(ctx context.Context, it *item.Item, _ preparser.Options) error {
	if it.Meta(item.MetaArtworkURL) != "" {
		return nil
	}
	key := artKey(it)
	if cachedArt(ctx, l.cfg.Cache, key, it) {
		return nil
	}

	path := it.Path()
	if path == "" {
		return fmt.Errorf("%w: %s is not local", ErrNoArt, it.URI())
	}

	dir := filepath.Dir(path)
	if it.Type() == mediatypes.FileTypeFolder {
		dir = path
	}

	cover, err := l.sidecar(ctx, dir, strings.TrimSuffix(it.Name(), mediatypes.Ext(it.Name())))
	if err != nil {
		return err
	}
	if cover == "" && it.Type() == mediatypes.FileTypeAudio {
		cover, err = l.embedded(ctx, path, key)
		if err != nil {
			logging.Debug("No embedded art in %s: %v", path, err)
		}
	}
	if cover == "" {
		return fmt.Errorf("%w: %s", ErrNoArt, it.URI())
	}

	it.SetMetaIfEmpty(item.MetaArtworkURL, cover)
	rememberArt(ctx, l.cfg.Cache, key, cover, artcache.SourceLocal)
	return nil
}

// sidecar returns the file URL of the best cover image in dir, or "".
// An image named after the item itself wins over the generic names.
func (l *Local) sidecar(ctx context.Context, dir, base string) (string, error) {
	entries, err := filesystem.ReadDir(ctx, dir, l.cfg.Retry)
	if err != nil {
		return "", err
	}

	rank := make(map[string]int, len(l.cfg.CoverNames)+1)
	rank[strings.ToLower(base)] = 0
	for i, n := range l.cfg.CoverNames {
		if _, ok := rank[n]; !ok {
			rank[n] = i + 1
		}
	}

	best, bestRank := "", len(rank)+1
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := mediatypes.Ext(e.Name())
		if !mediatypes.ImageExtensions[ext] {
			continue
		}
		stem := strings.ToLower(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
		if r, ok := rank[stem]; ok && r < bestRank {
			best, bestRank = e.Name(), r
		}
	}
	if best == "" {
		return "", nil
	}
	return fileURL(filepath.Join(dir, best)), nil
}

func (l *Local) embedded(ctx context.Context, path, key string) (string, error) {
	pic, err := media.EmbeddedPicture(ctx, path, l.cfg.Retry)
	if err != nil {
		return "", err
	}
	return saveArt(ctx, l.cfg.ArtDir, key, pic.Ext, pic.Data, l.cfg.Retry)
}
