package fetcher

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"media-preparser/internal/artcache"
	"media-preparser/internal/filesystem"
	"media-preparser/internal/item"
	"media-preparser/internal/logging"
)

// ErrNoArt is returned when no artwork could be found for an item.
var ErrNoArt = errors.New("no artwork found")

// ArtStore remembers artwork locations.
type ArtStore interface {
	LookupArt(ctx context.Context, key string) (string, error)
	StoreArt(ctx context.Context, key, url, source string) error
}

// ResponseStore remembers raw metadata service responses.
type ResponseStore interface {
	LookupResponse(ctx context.Context, query string, maxAge time.Duration) ([]byte, error)
	StoreResponse(ctx context.Context, query string, body []byte) error
}

func fileURL(path string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}

// artKey prefers the album so every track shares one entry.
func artKey(it *item.Item) string {
	artist := it.Meta(item.MetaAlbumArtist)
	if artist == "" {
		artist = it.Meta(item.MetaArtist)
	}
	if album := it.Meta(item.MetaAlbum); album != "" {
		return artcache.AlbumKey(artist, album)
	}
	return artcache.ItemKey(it.URI())
}

// cachedArt applies a cached artwork URL to it. It reports whether one was
// found; cache failures only cost the shortcut.
func cachedArt(ctx context.Context, store ArtStore, key string, it *item.Item) bool {
	if store == nil {
		return false
	}
	u, err := store.LookupArt(ctx, key)
	if err != nil {
		if !errors.Is(err, artcache.ErrNotFound) {
			logging.Warn("Art cache lookup for %s failed: %v", key, err)
		}
		return false
	}
	it.SetMetaIfEmpty(item.MetaArtworkURL, u)
	return true
}

func rememberArt(ctx context.Context, store ArtStore, key, u, source string) {
	if store == nil {
		return
	}
	if err := store.StoreArt(ctx, key, u, source); err != nil {
		logging.Warn("Failed to cache artwork for %s: %v", key, err)
	}
}

// saveArt writes data under dir, named after key, and returns its file URL.
func saveArt(ctx context.Context, dir, key, ext string, data []byte, retry filesystem.RetryConfig) (string, error) {
	if dir == "" {
		return "", errors.New("no art directory configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating art directory: %w", err)
	}
	if ext == "" {
		ext = "jpg"
	}
	path := filepath.Join(dir, fmt.Sprintf("%x.%s", md5.Sum([]byte(key)), ext))
	if err := filesystem.WriteFile(ctx, path, data, retry); err != nil {
		return "", err
	}
	return fileURL(path), nil
}
