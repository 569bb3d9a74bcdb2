package artcache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(context.Background(), filepath.Join(t.TempDir(), "art.db"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() {
		if err := c.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
	return c
}

func TestAlbumKeyNormalises(t *testing.T) {
	tests := []struct {
		a1, b1, a2, b2 string
		same           bool
	}{
		{"The Band", "Album", "the band", "ALBUM", true},
		{"The  Band ", "Album", "The Band", "Album", true},
		{"Band", "One", "Band", "Two", false},
		{"A", "BC", "AB", "C", false},
	}
	for _, tt := range tests {
		if got := AlbumKey(tt.a1, tt.b1) == AlbumKey(tt.a2, tt.b2); got != tt.same {
			t.Errorf("AlbumKey(%q,%q) == AlbumKey(%q,%q): %v, want %v", tt.a1, tt.b1, tt.a2, tt.b2, got, tt.same)
		}
	}
}

func TestArtRoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	key := AlbumKey("Artist", "Album")

	if _, err := c.LookupArt(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("LookupArt on empty cache = %v, want ErrNotFound", err)
	}

	if err := c.StoreArt(ctx, key, "file:///music/cover.jpg", SourceLocal); err != nil {
		t.Fatalf("StoreArt failed: %v", err)
	}
	if err := c.StoreArt(ctx, key, "file:///cache/art/x.jpg", SourceNetwork); err != nil {
		t.Fatalf("StoreArt overwrite failed: %v", err)
	}

	got, err := c.LookupArt(ctx, key)
	if err != nil {
		t.Fatalf("LookupArt failed: %v", err)
	}
	if got != "file:///cache/art/x.jpg" {
		t.Errorf("LookupArt = %q, want the latest url", got)
	}

	if err := c.ForgetArt(ctx, key); err != nil {
		t.Fatalf("ForgetArt failed: %v", err)
	}
	if _, err := c.LookupArt(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Errorf("LookupArt after ForgetArt = %v, want ErrNotFound", err)
	}
}

func TestResponsesExpire(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	if err := c.StoreResponse(ctx, "q=abba", []byte(`{"ok":true}`)); err != nil {
		t.Fatalf("StoreResponse failed: %v", err)
	}

	body, err := c.LookupResponse(ctx, "q=abba", time.Hour)
	if err != nil {
		t.Fatalf("LookupResponse failed: %v", err)
	}
	if string(body) != `{"ok":true}` {
		t.Errorf("body = %s", body)
	}

	if _, err := c.db.ExecContext(ctx, "UPDATE lookups SET fetched_at = ?", time.Now().Add(-48*time.Hour).Unix()); err != nil {
		t.Fatal(err)
	}
	if _, err := c.LookupResponse(ctx, "q=abba", time.Hour); !errors.Is(err, ErrNotFound) {
		t.Errorf("stale LookupResponse = %v, want ErrNotFound", err)
	}

	n, err := c.PruneResponses(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("PruneResponses failed: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned %d rows, want 1", n)
	}
}

func TestNewFailsOnMissingDirectory(t *testing.T) {
	if _, err := New(context.Background(), filepath.Join(t.TempDir(), "missing", "art.db")); err == nil {
		t.Error("expected error for a missing parent directory")
	}
}
