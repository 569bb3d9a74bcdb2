package artcache

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"media-preparser/internal/metrics"
)

// Art sources recorded alongside each entry.
const (
	SourceLocal   = "local"
	SourceNetwork = "network"
)

// AlbumKey identifies an album across its tracks.
func AlbumKey(artist, album string) string {
	norm := func(s string) string {
		return strings.Join(strings.Fields(strings.ToLower(s)), " ")
	}
	return "album:" + norm(artist) + "\x1f" + norm(album)
}

// ItemKey identifies a single item's art.
func ItemKey(uri string) string {
	return "item:" + uri
}

// LookupArt returns the artwork URL stored under key, or ErrNotFound.
func (c *Cache) LookupArt(ctx context.Context, key string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	defer observe("lookup_art", time.Now())

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var url string
	err := c.db.QueryRowContext(ctx, "SELECT url FROM art WHERE key = ?", key).Scan(&url)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		metrics.ArtCacheLookups.WithLabelValues("miss").Inc()
		return "", ErrNotFound
	case err != nil:
		metrics.ArtCacheLookups.WithLabelValues("error").Inc()
		return "", err
	}
	metrics.ArtCacheLookups.WithLabelValues("hit").Inc()
	return url, nil
}

// StoreArt records url as the artwork for key.
func (c *Cache) StoreArt(ctx context.Context, key, url, source string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer observe("store_art", time.Now())

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO art (key, url, source, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET url = excluded.url, source = excluded.source, updated_at = excluded.updated_at
	`, key, url, source, time.Now().Unix())
	return err
}

// ForgetArt removes the entry for key.
func (c *Cache) ForgetArt(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := c.db.ExecContext(ctx, "DELETE FROM art WHERE key = ?", key)
	return err
}
