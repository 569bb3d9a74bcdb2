package preparser

import (
	"context"
	"image"
	"sync"
	"testing"
	"time"

	"media-preparser/internal/item"
)

const waitTimeout = 5 * time.Second

type parseFunc func(ctx context.Context, it *item.Item, opts Options) (*ParseOutput, error)

func (f parseFunc) Parse(ctx context.Context, it *item.Item, opts Options) (*ParseOutput, error) {
	return f(ctx, it, opts)
}

type fetchFunc func(ctx context.Context, it *item.Item, opts Options) error

func (f fetchFunc) FetchMeta(ctx context.Context, it *item.Item, opts Options) error {
	return f(ctx, it, opts)
}

type thumbFunc func(ctx context.Context, it *item.Item, seek SeekArg) (image.Image, error)

func (f thumbFunc) Thumbnail(ctx context.Context, it *item.Item, seek SeekArg) (image.Image, error) {
	return f(ctx, it, seek)
}

func okParser() Parser {
	return parseFunc(func(context.Context, *item.Item, Options) (*ParseOutput, error) {
		return &ParseOutput{}, nil
	})
}

func okFetcher() MetaFetcher {
	return fetchFunc(func(context.Context, *item.Item, Options) error { return nil })
}

func okThumbnailer() Thumbnailer {
	return thumbFunc(func(context.Context, *item.Item, SeekArg) (image.Image, error) {
		return image.NewRGBA(image.Rect(0, 0, 4, 4)), nil
	})
}

// blockingParser waits for cancellation and signals each start.
func blockingParser(started chan<- *item.Item) Parser {
	return parseFunc(func(ctx context.Context, it *item.Item, _ Options) (*ParseOutput, error) {
		if started != nil {
			started <- it
		}
		<-ctx.Done()
		return nil, ctx.Err()
	})
}

func fullConfig() Config {
	return Config{
		Types:          TypeParse | TypeFetchMetaAll | TypeThumbnail,
		Parser:         okParser(),
		LocalFetcher:   okFetcher(),
		NetworkFetcher: okFetcher(),
		Thumbnailer:    okThumbnailer(),
	}
}

func newTestPreparser(t *testing.T, cfg Config) *Preparser {
	t.Helper()
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	t.Cleanup(p.Delete)
	return p
}

// parseRecorder collects OnEnded calls of Push requests.
type parseRecorder struct {
	mu      sync.Mutex
	results map[any][]ParseResult
	ended   chan any
}

func newParseRecorder() *parseRecorder {
	return &parseRecorder{
		results: make(map[any][]ParseResult),
		ended:   make(chan any, 1024),
	}
}

func (r *parseRecorder) callbacks() ParseCallbacks {
	return ParseCallbacks{
		OnEnded: func(_ *item.Item, res ParseResult, data any) {
			r.mu.Lock()
			r.results[data] = append(r.results[data], res)
			r.mu.Unlock()
			r.ended <- data
		},
	}
}

func (r *parseRecorder) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.ended:
		case <-time.After(waitTimeout):
			t.Fatalf("waited for %d callbacks, got %d", n, i)
		}
	}
}

func (r *parseRecorder) get(data any) []ParseResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ParseResult(nil), r.results[data]...)
}

func (r *parseRecorder) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, v := range r.results {
		n += len(v)
	}
	return n
}

func receive[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for %s", what)
	}
	var zero T
	return zero
}

func waitRefs(t *testing.T, it *item.Item, want int32) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for it.Refs() != want {
		if time.Now().After(deadline) {
			t.Fatalf("item refs = %d, want %d", it.Refs(), want)
		}
		time.Sleep(time.Millisecond)
	}
}
