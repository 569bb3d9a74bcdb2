package artcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"media-preparser/internal/logging"
	"media-preparser/internal/metrics"
)

// Default timeout for cache operations
const defaultTimeout = 5 * time.Second

// ErrNotFound is returned when a key has no entry.
var ErrNotFound = errors.New("artcache: not found")

// Cache is the SQLite-backed art and lookup cache.
type Cache struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// New opens or creates the cache database at dbPath. The parent directory
// must exist and be writable.
func New(ctx context.Context, dbPath string) (*Cache, error) {
	logging.Info("Art cache path: %s", dbPath)

	if err := diagnosePermissions(dbPath); err != nil {
		logging.Warn("Art cache permission diagnostics: %v", err)
	}

	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_temp_store=MEMORY&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open art cache: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close art cache after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to art cache: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(time.Hour)

	c := &Cache{db: db, dbPath: dbPath}
	if err := c.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close art cache after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize art cache schema: %w", err)
	}

	logging.Info("Art cache initialized at %s", dbPath)
	return c, nil
}

func (c *Cache) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS art (
		key TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		source TEXT NOT NULL,
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE TABLE IF NOT EXISTS lookups (
		query TEXT PRIMARY KEY,
		body BLOB NOT NULL,
		fetched_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_lookups_fetched_at ON lookups(fetched_at);
	`
	_, err := c.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Path returns the database file path.
func (c *Cache) Path() string {
	return c.dbPath
}

func observe(operation string, start time.Time) {
	metrics.ArtCacheQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// diagnosePermissions logs what is wrong when the cache directory or its
// WAL file is not writable.
func diagnosePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat cache directory: %w", err)
	}
	logging.Debug("Art cache directory: %s (mode: %v)", dir, dirInfo.Mode())

	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("cache directory not writable: %w", err)
	}
	_ = os.Remove(testFile)

	walPath := dbPath + "-wal"
	if walInfo, err := os.Stat(walPath); err == nil && walInfo.Mode().Perm()&0o200 == 0 {
		logging.Warn("WAL file is read-only! Mode: %v", walInfo.Mode())
		if chmodErr := os.Chmod(walPath, 0o600); chmodErr != nil {
			logging.Error("Failed to fix WAL file permissions: %v", chmodErr)
		}
	}
	return nil
}
