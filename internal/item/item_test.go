package item

import (
	"path/filepath"
	"sync"
	"testing"

	"media-preparser/internal/mediatypes"
)

func TestNewNormalisesPaths(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := filepath.Join(dir, "Song.mp3")

	it := New(p)
	if got := it.Path(); got != p {
		t.Errorf("Path() = %q, want %q", got, p)
	}
	if it.Name() != "Song.mp3" {
		t.Errorf("Name() = %q", it.Name())
	}
	if it.Type() != mediatypes.FileTypeAudio {
		t.Errorf("Type() = %q, want audio", it.Type())
	}
	if it.Refs() != 1 {
		t.Errorf("Refs() = %d, want 1", it.Refs())
	}
}

func TestRemoteURIHasNoPath(t *testing.T) {
	t.Parallel()

	it := New("https://example.com/stream/live.m3u8")
	if it.Path() != "" {
		t.Errorf("Path() = %q, want empty", it.Path())
	}
	if it.Name() != "live.m3u8" {
		t.Errorf("Name() = %q", it.Name())
	}
	if it.Type() != mediatypes.FileTypePlaylist {
		t.Errorf("Type() = %q", it.Type())
	}
}

func TestConcurrentHoldRelease(t *testing.T) {
	t.Parallel()

	it := New("/tmp/x.mkv")
	var wg sync.WaitGroup
	for range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			it.Hold()
			it.Release()
		}()
	}
	wg.Wait()

	if it.Refs() != 1 {
		t.Errorf("Refs() = %d after balanced hold/release, want 1", it.Refs())
	}
}

func TestReleaseUnderflowPanics(t *testing.T) {
	t.Parallel()

	it := New("/tmp/x.mkv")
	it.Release()

	defer func() {
		if recover() == nil {
			t.Error("expected panic on extra release")
		}
	}()
	it.Release()
}

func TestMeta(t *testing.T) {
	t.Parallel()

	it := New("/tmp/a.flac")
	it.SetMeta(MetaTitle, "Intro")
	if it.SetMetaIfEmpty(MetaTitle, "Other") {
		t.Error("SetMetaIfEmpty overwrote existing value")
	}
	if !it.SetMetaIfEmpty(MetaArtist, "Band") {
		t.Error("SetMetaIfEmpty did not store new value")
	}

	metas := it.Metas()
	metas[MetaTitle] = "mutated"
	if it.Meta(MetaTitle) != "Intro" {
		t.Error("Metas() must return a copy")
	}

	it.SetMeta(MetaArtist, "")
	if it.Meta(MetaArtist) != "" {
		t.Error("empty value should delete the field")
	}
}

func TestNodeRelease(t *testing.T) {
	t.Parallel()

	a := New("/m/a.mp3")
	b := New("/m/sub")
	c := New("/m/sub/c.mp3")

	keepA, keepC := a.Hold(), c.Hold()

	root := &Node{}
	root.Add(NewNode(a))
	sub := root.Add(NewNode(b))
	sub.Add(NewNode(c))

	if root.Len() != 3 {
		t.Errorf("Len() = %d, want 3", root.Len())
	}

	var depths []int
	root.Walk(func(depth int, _ *Node) { depths = append(depths, depth) })
	if len(depths) != 3 || depths[2] != 1 {
		t.Errorf("Walk depths = %v", depths)
	}

	root.Release()
	if keepA.Refs() != 1 || keepC.Refs() != 1 {
		t.Errorf("refs after tree release: a=%d c=%d", keepA.Refs(), keepC.Refs())
	}
}
