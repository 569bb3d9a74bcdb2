package preparser

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"media-preparser/internal/item"
)

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "zero threads default to one", mutate: func(c *Config) { c.MaxParserThreads = 0 }},
		{name: "no domain", mutate: func(c *Config) { c.Types = 0 }, wantErr: true},
		{name: "option bits in types", mutate: func(c *Config) { c.Types |= OptionSubitems }, wantErr: true},
		{name: "too many parser threads", mutate: func(c *Config) { c.MaxParserThreads = MaxThreads + 1 }, wantErr: true},
		{name: "too many thumbnailer threads", mutate: func(c *Config) { c.MaxThumbnailerThreads = MaxThreads + 1 }, wantErr: true},
		{name: "negative timeout", mutate: func(c *Config) { c.Timeout = -time.Second }, wantErr: true},
		{name: "parse without parser", mutate: func(c *Config) { c.Parser = nil }, wantErr: true},
		{name: "thumbnail without thumbnailer", mutate: func(c *Config) { c.Thumbnailer = nil }, wantErr: true},
		{name: "disabled domain needs no worker", mutate: func(c *Config) {
			c.Types = TypeParse
			c.Thumbnailer = nil
			c.LocalFetcher = nil
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := fullConfig()
			tt.mutate(&cfg)
			p, err := New(cfg)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("New() err = %v, want ErrInvalidConfig", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("New() = %v", err)
			}
			p.Delete()
		})
	}
}

func TestPushRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	cfg := fullConfig()
	cfg.Types = TypeParse | TypeFetchMetaLocal
	p := newTestPreparser(t, cfg)

	cbs := ParseCallbacks{OnEnded: func(*item.Item, ParseResult, any) {
		t.Error("callback fired for rejected submission")
	}}
	it := item.New("/media/a.mkv")

	tests := []struct {
		name  string
		it    *item.Item
		flags Type
		cbs   ParseCallbacks
		want  error
	}{
		{"nil item", nil, TypeParse, cbs, ErrNilItem},
		{"nil callback", it, TypeParse, ParseCallbacks{}, ErrNoCallback},
		{"no domain", it, OptionSubitems, cbs, ErrNoDomain},
		{"unknown bits", it, TypeParse | 0x100, cbs, ErrUnknownFlags},
		{"disabled domain", it, TypeParse | TypeFetchMetaNet, cbs, ErrDomainDisabled},
	}

	for _, tt := range tests {
		id, err := p.Push(tt.it, tt.flags, tt.cbs, nil)
		if id != InvalidID {
			t.Errorf("%s: id = %d, want InvalidID", tt.name, id)
		}
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
	}

	if it.Refs() != 1 {
		t.Errorf("rejected submissions leaked references: refs = %d", it.Refs())
	}
}

func TestGenerateThumbnailRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	cfg := fullConfig()
	cfg.Types = TypeParse
	parseOnly := newTestPreparser(t, cfg)
	full := newTestPreparser(t, fullConfig())

	it := item.New("/media/a.mkv")
	cbs := ThumbnailCallbacks{OnEnded: func(*item.Item, Status, image.Image, any) {
		t.Error("callback fired for rejected submission")
	}}

	if _, err := parseOnly.GenerateThumbnail(it, SeekArg{}, 0, cbs, nil); !errors.Is(err, ErrDomainDisabled) {
		t.Errorf("disabled thumbnail domain: err = %v", err)
	}
	if _, err := full.GenerateThumbnail(nil, SeekArg{}, 0, cbs, nil); !errors.Is(err, ErrNilItem) {
		t.Errorf("nil item: err = %v", err)
	}
	if _, err := full.GenerateThumbnail(it, SeekArg{}, 0, ThumbnailCallbacks{}, nil); !errors.Is(err, ErrNoCallback) {
		t.Errorf("nil callback: err = %v", err)
	}
	if _, err := full.GenerateThumbnail(it, SeekToPosition(1.5, SeekFast), 0, cbs, nil); !errors.Is(err, ErrInvalidSeek) {
		t.Errorf("bad seek: err = %v", err)
	}
}

func TestIDsAreNonZeroAndUnique(t *testing.T) {
	t.Parallel()

	cfg := fullConfig()
	cfg.Parser = blockingParser(nil)
	p := newTestPreparser(t, cfg)
	rec := newParseRecorder()

	const n = 50
	seen := make(map[RequestID]bool, n)
	for i := range n {
		id, err := p.Push(item.New(fmt.Sprintf("/media/%d.mkv", i)), TypeParse, rec.callbacks(), i)
		if err != nil {
			t.Fatalf("Push() = %v", err)
		}
		if id == InvalidID {
			t.Fatal("Push() returned InvalidID")
		}
		if seen[id] {
			t.Fatalf("id %d issued twice", id)
		}
		seen[id] = true
	}
	if p.Pending() != n {
		t.Errorf("Pending() = %d, want %d", p.Pending(), n)
	}
}

func TestCancelAllCountsPendingRequests(t *testing.T) {
	t.Parallel()

	cfg := fullConfig()
	cfg.MaxParserThreads = 2
	cfg.Parser = blockingParser(nil)
	p := newTestPreparser(t, cfg)
	rec := newParseRecorder()

	const n = 8
	for i := range n {
		if _, err := p.Push(item.New("/media/x.mkv"), TypeParse, rec.callbacks(), i); err != nil {
			t.Fatal(err)
		}
	}

	if got := p.Cancel(InvalidID); got != n {
		t.Errorf("Cancel(0) = %d, want %d", got, n)
	}
	if got := p.Cancel(InvalidID); got != 0 {
		t.Errorf("second Cancel(0) = %d, want 0", got)
	}

	rec.wait(t, n)
	for i := range n {
		res := rec.get(i)
		if len(res) != 1 || res[0].Status != StatusInterrupted {
			t.Errorf("request %d results = %+v", i, res)
		}
	}
}

func TestCallbackFiresExactlyOnceUnderCancelRace(t *testing.T) {
	t.Parallel()

	cfg := fullConfig()
	cfg.MaxParserThreads = 4
	p := newTestPreparser(t, cfg)
	rec := newParseRecorder()

	const n = 200
	ids := make([]RequestID, n)
	for i := range n {
		id, err := p.Push(item.New("/media/x.flac"), TypeParse|TypeFetchMetaLocal, rec.callbacks(), i)
		if err != nil {
			t.Fatal(err)
		}
		ids[i] = id
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Cancel(id)
		}()
	}
	wg.Wait()
	rec.wait(t, n)

	time.Sleep(20 * time.Millisecond)
	if rec.total() != n {
		t.Fatalf("callbacks = %d, want %d", rec.total(), n)
	}
	for i, id := range ids {
		if got := len(rec.get(i)); got != 1 {
			t.Errorf("request %d got %d callbacks", i, got)
		}
		if p.Cancel(id) != 0 {
			t.Errorf("Cancel(%d) after callback returned non-zero", id)
		}
	}
}

func TestTimeoutReportsTimedOutAndReleasesItem(t *testing.T) {
	t.Parallel()

	cfg := fullConfig()
	cfg.Timeout = time.Millisecond
	cfg.Parser = parseFunc(func(ctx context.Context, _ *item.Item, _ Options) (*ParseOutput, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
			return &ParseOutput{}, nil
		}
	})
	p := newTestPreparser(t, cfg)
	rec := newParseRecorder()

	it := item.New("/media/slow.mkv")
	if _, err := p.Push(it, TypeParse, rec.callbacks(), "slow"); err != nil {
		t.Fatal(err)
	}
	rec.wait(t, 1)

	res := rec.get("slow")[0]
	if res.Status != StatusTimeout {
		t.Errorf("status = %v, want timeout", res.Status)
	}
	if !errors.Is(res.Err(), ErrTimeout) {
		t.Errorf("Err() = %v, want ErrTimeout", res.Err())
	}
	if d := res.Domains[TypeParse]; d.Status != StatusTimeout {
		t.Errorf("parse domain = %+v", d)
	}
	waitRefs(t, it, 1)
}

func TestDeleteWaitsForAllCallbacks(t *testing.T) {
	t.Parallel()

	started := make(chan *item.Item, 16)
	cfg := fullConfig()
	cfg.MaxParserThreads = 2
	cfg.Parser = blockingParser(started)
	p, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	var fired atomic.Int32
	cbs := ParseCallbacks{OnEnded: func(_ *item.Item, res ParseResult, _ any) {
		if res.Status != StatusInterrupted {
			t.Errorf("status = %v, want interrupted", res.Status)
		}
		time.Sleep(5 * time.Millisecond)
		fired.Add(1)
	}}

	const k = 5
	items := make([]*item.Item, k)
	for i := range items {
		items[i] = item.New(fmt.Sprintf("/media/%d.mkv", i))
		if _, err := p.Push(items[i], TypeParse, cbs, nil); err != nil {
			t.Fatal(err)
		}
	}
	receive(t, started, "first parser start")

	p.Delete()

	if got := fired.Load(); got != k {
		t.Errorf("callbacks fired before Delete returned = %d, want %d", got, k)
	}
	for i, it := range items {
		if it.Refs() != 1 {
			t.Errorf("item %d refs after Delete = %d, want 1", i, it.Refs())
		}
	}
	if _, err := p.Push(items[0], TypeParse, cbs, nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Push after Delete = %v, want ErrClosed", err)
	}
	p.Delete()
}

func TestThumbnailStatusMatchesImage(t *testing.T) {
	t.Parallel()

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	tests := []struct {
		name       string
		thumb      func(ctx context.Context) (image.Image, error)
		timeout    time.Duration
		wantStatus Status
	}{
		{
			name:       "success",
			thumb:      func(context.Context) (image.Image, error) { return img, nil },
			wantStatus: StatusSuccess,
		},
		{
			name:       "decode error",
			thumb:      func(context.Context) (image.Image, error) { return nil, errors.New("no frame") },
			wantStatus: StatusError,
		},
		{
			name:       "image with error is dropped",
			thumb:      func(context.Context) (image.Image, error) { return img, errors.New("partial") },
			wantStatus: StatusError,
		},
		{
			name:       "nil image without error",
			thumb:      func(context.Context) (image.Image, error) { return nil, nil },
			wantStatus: StatusError,
		},
		{
			name: "timeout",
			thumb: func(ctx context.Context) (image.Image, error) {
				<-ctx.Done()
				return img, nil
			},
			timeout:    time.Millisecond,
			wantStatus: StatusTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var gotSeek SeekArg
			cfg := fullConfig()
			cfg.Thumbnailer = thumbFunc(func(ctx context.Context, _ *item.Item, seek SeekArg) (image.Image, error) {
				gotSeek = seek
				return tt.thumb(ctx)
			})
			p := newTestPreparser(t, cfg)

			type ended struct {
				status Status
				thumb  image.Image
			}
			done := make(chan ended, 1)
			seek := SeekToTime(5*time.Second, SeekFast)
			it := item.New("/media/clip.mp4")

			timeout := tt.timeout
			if timeout == 0 {
				timeout = NoTimeout
			}
			_, err := p.GenerateThumbnail(it, seek, timeout, ThumbnailCallbacks{
				OnEnded: func(_ *item.Item, status Status, thumb image.Image, _ any) {
					done <- ended{status, thumb}
				},
			}, nil)
			if err != nil {
				t.Fatal(err)
			}
			it.Release()

			got := receive(t, done, "thumbnail callback")
			if got.status != tt.wantStatus {
				t.Errorf("status = %v, want %v", got.status, tt.wantStatus)
			}
			if (got.status == StatusSuccess) != (got.thumb != nil) {
				t.Errorf("status %v with thumb %v", got.status, got.thumb)
			}
			p.Delete()
			if gotSeek != seek {
				t.Errorf("thumbnailer seek = %+v, want %+v", gotSeek, seek)
			}
		})
	}
}

func TestThumbnailNoTimeoutOverridesDefault(t *testing.T) {
	t.Parallel()

	cfg := fullConfig()
	cfg.Timeout = time.Millisecond
	cfg.Thumbnailer = thumbFunc(func(ctx context.Context, _ *item.Item, _ SeekArg) (image.Image, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(30 * time.Millisecond):
			return image.NewGray(image.Rect(0, 0, 2, 2)), nil
		}
	})
	p := newTestPreparser(t, cfg)

	done := make(chan Status, 2)
	cbs := ThumbnailCallbacks{OnEnded: func(_ *item.Item, s Status, _ image.Image, _ any) { done <- s }}

	if _, err := p.GenerateThumbnail(item.New("/a.mp4"), SeekArg{}, NoTimeout, cbs, nil); err != nil {
		t.Fatal(err)
	}
	if s := receive(t, done, "no-timeout thumbnail"); s != StatusSuccess {
		t.Errorf("NoTimeout status = %v, want success", s)
	}

	if _, err := p.GenerateThumbnail(item.New("/b.mp4"), SeekArg{}, 0, cbs, nil); err != nil {
		t.Fatal(err)
	}
	if s := receive(t, done, "default-timeout thumbnail"); s != StatusTimeout {
		t.Errorf("default timeout status = %v, want timeout", s)
	}
}

func TestFanOutPartialSuccessIsOneCompletedCallback(t *testing.T) {
	t.Parallel()

	errLocal := errors.New("no local art")
	cfg := fullConfig()
	cfg.LocalFetcher = fetchFunc(func(context.Context, *item.Item, Options) error { return errLocal })
	p := newTestPreparser(t, cfg)
	rec := newParseRecorder()

	if _, err := p.Push(item.New("/m/a.flac"), TypeParse|TypeFetchMetaLocal, rec.callbacks(), "a"); err != nil {
		t.Fatal(err)
	}
	rec.wait(t, 1)
	time.Sleep(10 * time.Millisecond)

	results := rec.get("a")
	if len(results) != 1 {
		t.Fatalf("callbacks = %d, want 1", len(results))
	}
	res := results[0]
	if res.Status != StatusSuccess {
		t.Errorf("status = %v, want success", res.Status)
	}
	if res.Domains[TypeParse].Status != StatusSuccess {
		t.Errorf("parse = %+v", res.Domains[TypeParse])
	}
	local := res.Domains[TypeFetchMetaLocal]
	if local.Status != StatusError || !errors.Is(local.Err, errLocal) {
		t.Errorf("local = %+v", local)
	}
	if len(res.Domains) != 2 {
		t.Errorf("domains = %v", res.Domains)
	}
}

func TestFanOutTotalFailure(t *testing.T) {
	t.Parallel()

	fail := fetchFunc(func(context.Context, *item.Item, Options) error { return errors.New("down") })
	cfg := fullConfig()
	cfg.LocalFetcher = fail
	cfg.NetworkFetcher = fail
	p := newTestPreparser(t, cfg)
	rec := newParseRecorder()

	if _, err := p.Push(item.New("/m/a.flac"), TypeFetchMetaAll, rec.callbacks(), "a"); err != nil {
		t.Fatal(err)
	}
	rec.wait(t, 1)

	res := rec.get("a")[0]
	if res.Status != StatusError || !errors.Is(res.Err(), ErrFailed) {
		t.Errorf("status = %v err = %v, want error/ErrFailed", res.Status, res.Err())
	}
}

func TestCancelQueuedRequestNeverRunsWorker(t *testing.T) {
	t.Parallel()

	started := make(chan *item.Item, 4)
	cfg := fullConfig()
	cfg.MaxParserThreads = 1
	cfg.Parser = blockingParser(started)
	p := newTestPreparser(t, cfg)
	rec := newParseRecorder()

	first := item.New("/m/first.mkv")
	second := item.New("/m/second.mkv")
	if _, err := p.Push(first, TypeParse, rec.callbacks(), "first"); err != nil {
		t.Fatal(err)
	}
	receive(t, started, "first parse")

	id, err := p.Push(second, TypeParse, rec.callbacks(), "second")
	if err != nil {
		t.Fatal(err)
	}
	if got := p.Cancel(id); got != 1 {
		t.Fatalf("Cancel() = %d, want 1", got)
	}
	rec.wait(t, 1)

	if res := rec.get("second"); len(res) != 1 || res[0].Status != StatusInterrupted {
		t.Errorf("second results = %+v", res)
	}
	waitRefs(t, second, 1)

	p.Cancel(InvalidID)
	rec.wait(t, 1)
	p.Delete()

	select {
	case it := <-started:
		t.Errorf("worker started for cancelled queued item %s", it)
	default:
	}
}

func TestCancelAfterPartialResult(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		parseErr   error
		wantStatus Status
		wantParse  Status
	}{
		{"parse succeeded", nil, StatusSuccess, StatusSuccess},
		{"parse failed", errors.New("boom"), StatusInterrupted, StatusError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			netStarted := make(chan struct{})
			cfg := fullConfig()
			cfg.Parser = parseFunc(func(context.Context, *item.Item, Options) (*ParseOutput, error) {
				if tt.parseErr != nil {
					return nil, tt.parseErr
				}
				return &ParseOutput{}, nil
			})
			cfg.NetworkFetcher = fetchFunc(func(ctx context.Context, _ *item.Item, _ Options) error {
				close(netStarted)
				<-ctx.Done()
				return ctx.Err()
			})
			p := newTestPreparser(t, cfg)
			rec := newParseRecorder()

			id, err := p.Push(item.New("/m/a.flac"), TypeParse|TypeFetchMetaNet, rec.callbacks(), "a")
			if err != nil {
				t.Fatal(err)
			}
			receive(t, netStarted, "network fetch start")
			waitPending(t, p, id)

			if got := p.Cancel(id); got != 1 {
				t.Fatalf("Cancel() = %d, want 1", got)
			}
			rec.wait(t, 1)

			res := rec.get("a")[0]
			if res.Status != tt.wantStatus {
				t.Errorf("status = %v, want %v", res.Status, tt.wantStatus)
			}
			if got := res.Domains[TypeParse].Status; got != tt.wantParse {
				t.Errorf("parse domain = %v, want %v", got, tt.wantParse)
			}
			if got := res.Domains[TypeFetchMetaNet].Status; got != StatusInterrupted {
				t.Errorf("net domain = %v, want interrupted", got)
			}
		})
	}
}

// waitPending waits until the parse result of id has been recorded.
func waitPending(t *testing.T, p *Preparser, id RequestID) {
	t.Helper()
	r, ok := p.reg.lookup(id)
	if !ok {
		t.Fatalf("request %d not registered", id)
	}
	deadline := time.Now().Add(waitTimeout)
	for {
		r.mu.Lock()
		_, done := r.results[TypeParse]
		r.mu.Unlock()
		if done {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("parse result never recorded")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestCallbackNeverRunsInsidePush(t *testing.T) {
	t.Parallel()

	p := newTestPreparser(t, fullConfig())

	pushed := make(chan struct{})
	ended := make(chan bool, 1)
	cbs := ParseCallbacks{OnEnded: func(*item.Item, ParseResult, any) {
		select {
		case <-pushed:
			ended <- true
		case <-time.After(waitTimeout):
			ended <- false
		}
	}}

	if _, err := p.Push(item.New("/m/a.mkv"), TypeParse, cbs, nil); err != nil {
		t.Fatal(err)
	}
	close(pushed)

	if !receive(t, ended, "callback") {
		t.Error("callback ran before Push returned")
	}
}

func TestSubtreeAndAttachmentsPrecedeEnd(t *testing.T) {
	t.Parallel()

	child := item.New("/m/album/01.flac")
	keep := child.Hold()

	cfg := fullConfig()
	cfg.Parser = parseFunc(func(_ context.Context, it *item.Item, opts Options) (*ParseOutput, error) {
		if !opts.Subitems {
			return nil, errors.New("subitems option not forwarded")
		}
		root := item.NewNode(it.Hold())
		root.Add(item.NewNode(child))
		return &ParseOutput{
			Subtree:     root,
			Attachments: []item.Attachment{{Name: "cover", MIMEType: "image/jpeg", Data: []byte{0xff}}},
		}, nil
	})
	p := newTestPreparser(t, cfg)

	var mu sync.Mutex
	var events []string
	done := make(chan struct{})
	cbs := ParseCallbacks{
		OnSubtreeAdded: func(_ *item.Item, tree *item.Node, _ any) {
			mu.Lock()
			events = append(events, fmt.Sprintf("subtree:%d", tree.Len()))
			mu.Unlock()
		},
		OnAttachmentsAdded: func(_ *item.Item, atts []item.Attachment, _ any) {
			mu.Lock()
			events = append(events, "attachments:"+atts[0].Name)
			mu.Unlock()
		},
		OnEnded: func(_ *item.Item, res ParseResult, _ any) {
			mu.Lock()
			events = append(events, "ended:"+res.Status.String())
			mu.Unlock()
			close(done)
		},
	}

	dir := item.New("/m/album")
	if _, err := p.Push(dir, TypeParse|OptionSubitems, cbs, nil); err != nil {
		t.Fatal(err)
	}
	receive(t, done, "end of request")

	mu.Lock()
	got := fmt.Sprint(events)
	mu.Unlock()
	if want := "[subtree:1 attachments:cover ended:success]"; got != want {
		t.Errorf("events = %s, want %s", got, want)
	}

	waitRefs(t, keep, 1)
	waitRefs(t, dir, 1)
}

func TestWorkerPanicIsDomainFailure(t *testing.T) {
	t.Parallel()

	cfg := fullConfig()
	cfg.Parser = parseFunc(func(context.Context, *item.Item, Options) (*ParseOutput, error) {
		panic("corrupt header")
	})
	p := newTestPreparser(t, cfg)
	rec := newParseRecorder()

	if _, err := p.Push(item.New("/m/bad.mkv"), TypeParse|TypeFetchMetaLocal, rec.callbacks(), "x"); err != nil {
		t.Fatal(err)
	}
	rec.wait(t, 1)

	res := rec.get("x")[0]
	if res.Status != StatusSuccess {
		t.Errorf("status = %v, want success from the local fetch", res.Status)
	}
	if res.Domains[TypeParse].Status != StatusError {
		t.Errorf("parse = %+v, want error", res.Domains[TypeParse])
	}

	// The executor survives the panic.
	if _, err := p.Push(item.New("/m/next.mkv"), TypeFetchMetaLocal, rec.callbacks(), "y"); err != nil {
		t.Fatal(err)
	}
	rec.wait(t, 1)
}

func TestSetTimeoutAffectsOnlyLaterRequests(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	cfg := fullConfig()
	cfg.MaxParserThreads = 2
	cfg.Parser = parseFunc(func(ctx context.Context, _ *item.Item, _ Options) (*ParseOutput, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-release:
			return &ParseOutput{}, nil
		}
	})
	p := newTestPreparser(t, cfg)
	rec := newParseRecorder()

	if _, err := p.Push(item.New("/m/before.mkv"), TypeParse, rec.callbacks(), "before"); err != nil {
		t.Fatal(err)
	}

	p.SetTimeout(time.Millisecond)
	if p.Timeout() != time.Millisecond {
		t.Errorf("Timeout() = %v", p.Timeout())
	}
	if _, err := p.Push(item.New("/m/after.mkv"), TypeParse, rec.callbacks(), "after"); err != nil {
		t.Fatal(err)
	}
	rec.wait(t, 1)
	if res := rec.get("after"); len(res) != 1 || res[0].Status != StatusTimeout {
		t.Errorf("after = %+v, want timeout", res)
	}

	close(release)
	rec.wait(t, 1)
	if res := rec.get("before"); len(res) != 1 || res[0].Status != StatusSuccess {
		t.Errorf("before = %+v, want success", res)
	}
}

func TestPushWithThumbnailDomainCarriesImage(t *testing.T) {
	t.Parallel()

	p := newTestPreparser(t, fullConfig())
	rec := newParseRecorder()

	if _, err := p.Push(item.New("/m/a.mp4"), TypeParse|TypeThumbnail, rec.callbacks(), "a"); err != nil {
		t.Fatal(err)
	}
	rec.wait(t, 1)

	res := rec.get("a")[0]
	if res.Thumbnail == nil {
		t.Error("Thumbnail missing from result")
	}
}

func TestStatsReportsExecutors(t *testing.T) {
	t.Parallel()

	p := newTestPreparser(t, fullConfig())
	s := p.Stats()
	for _, name := range []string{"parse", "fetchmeta_local", "fetchmeta_net", "thumbnail"} {
		if _, ok := s.Queued[name]; !ok {
			t.Errorf("Stats() missing executor %s", name)
		}
	}
	if !p.Enabled(TypeFetchMetaAll) || p.Enabled(0) {
		t.Error("Enabled() mismatch")
	}
}
