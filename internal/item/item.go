package item

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"media-preparser/internal/mediatypes"
)

// MetaKey names a metadata field on an Item.
type MetaKey string

// Metadata keys filled in by the parser and the fetchers.
const (
	MetaTitle       MetaKey = "title"
	MetaArtist      MetaKey = "artist"
	MetaAlbum       MetaKey = "album"
	MetaAlbumArtist MetaKey = "album_artist"
	MetaGenre       MetaKey = "genre"
	MetaDate        MetaKey = "date"
	MetaTrackNumber MetaKey = "track_number"
	MetaDiscNumber  MetaKey = "disc_number"
	MetaDescription MetaKey = "description"
	MetaArtworkURL  MetaKey = "artwork_url"
	MetaWidth       MetaKey = "width"
	MetaHeight      MetaKey = "height"
	MetaVideoCodec  MetaKey = "video_codec"
	MetaAudioCodec  MetaKey = "audio_codec"
	MetaMimeType    MetaKey = "mime_type"
)

// Item describes one media resource. It is reference counted: New returns an
// Item holding one reference, Hold adds one and Release drops one.
type Item struct {
	uri  string
	name string

	refs atomic.Int32

	mu       sync.RWMutex
	fileType mediatypes.FileType
	duration time.Duration
	meta     map[MetaKey]string
}

// New creates an Item for uri. A plain filesystem path is converted to a
// file:// URI.
func New(uri string) *Item {
	if !strings.Contains(uri, "://") {
		abs, err := filepath.Abs(uri)
		if err == nil {
			uri = abs
		}
		uri = (&url.URL{Scheme: "file", Path: filepath.ToSlash(uri)}).String()
	}

	it := &Item{
		uri:  uri,
		meta: make(map[MetaKey]string),
	}
	it.name = it.baseName()
	it.refs.Store(1)
	return it
}

func (i *Item) baseName() string {
	u, err := url.Parse(i.uri)
	if err != nil || u.Path == "" {
		return i.uri
	}
	return path.Base(u.Path)
}

// Hold takes a reference and returns the item for chaining.
func (i *Item) Hold() *Item {
	i.refs.Add(1)
	return i
}

// Release drops a reference. Releasing an item with no references left panics.
func (i *Item) Release() {
	if n := i.refs.Add(-1); n < 0 {
		panic(fmt.Sprintf("item: release of %s with no references", i.uri))
	}
}

// Refs returns the current reference count.
func (i *Item) Refs() int32 {
	return i.refs.Load()
}

// URI returns the item's URI.
func (i *Item) URI() string {
	return i.uri
}

// Name returns the last path element of the URI.
func (i *Item) Name() string {
	return i.name
}

// Path returns the local filesystem path for file:// items, or "" otherwise.
func (i *Item) Path() string {
	u, err := url.Parse(i.uri)
	if err != nil || u.Scheme != "file" {
		return ""
	}
	return filepath.FromSlash(u.Path)
}

// SetType records the detected media type.
func (i *Item) SetType(t mediatypes.FileType) {
	i.mu.Lock()
	i.fileType = t
	i.mu.Unlock()
}

// Type returns the detected media type, falling back to the URI extension.
func (i *Item) Type() mediatypes.FileType {
	i.mu.RLock()
	t := i.fileType
	i.mu.RUnlock()
	if t == "" {
		return mediatypes.GetFileType(mediatypes.Ext(i.name))
	}
	return t
}

// SetDuration records the media duration.
func (i *Item) SetDuration(d time.Duration) {
	i.mu.Lock()
	i.duration = d
	i.mu.Unlock()
}

// Duration returns the media duration, zero when unknown.
func (i *Item) Duration() time.Duration {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.duration
}

// SetMeta sets a metadata field. An empty value removes the field.
func (i *Item) SetMeta(key MetaKey, value string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if value == "" {
		delete(i.meta, key)
		return
	}
	i.meta[key] = value
}

// SetMetaIfEmpty sets key only when it has no value yet. It reports whether
// the value was stored.
func (i *Item) SetMetaIfEmpty(key MetaKey, value string) bool {
	if value == "" {
		return false
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.meta[key]; ok {
		return false
	}
	i.meta[key] = value
	return true
}

// Meta returns a metadata field.
func (i *Item) Meta(key MetaKey) string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.meta[key]
}

// Metas returns a copy of all metadata fields.
func (i *Item) Metas() map[MetaKey]string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make(map[MetaKey]string, len(i.meta))
	for k, v := range i.meta {
		out[k] = v
	}
	return out
}

func (i *Item) String() string {
	return i.uri
}
