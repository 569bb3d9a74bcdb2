package artcache

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// LookupResponse returns the cached body for query when it is younger than
// maxAge, or ErrNotFound.
func (c *Cache) LookupResponse(ctx context.Context, query string, maxAge time.Duration) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	defer observe("lookup_response", time.Now())

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var body []byte
	err := c.db.QueryRowContext(ctx,
		"SELECT body FROM lookups WHERE query = ? AND fetched_at >= ?",
		query, time.Now().Add(-maxAge).Unix(),
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return body, err
}

// StoreResponse caches body as the answer to query.
func (c *Cache) StoreResponse(ctx context.Context, query string, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer observe("store_response", time.Now())

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO lookups (query, body, fetched_at) VALUES (?, ?, ?)
		ON CONFLICT(query) DO UPDATE SET body = excluded.body, fetched_at = excluded.fetched_at
	`, query, body, time.Now().Unix())
	return err
}

// PruneResponses deletes responses older than maxAge and returns how many
// were removed.
func (c *Cache) PruneResponses(ctx context.Context, maxAge time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer observe("prune", time.Now())

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := c.db.ExecContext(ctx, "DELETE FROM lookups WHERE fetched_at < ?", time.Now().Add(-maxAge).Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
