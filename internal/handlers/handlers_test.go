package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"media-preparser/internal/filesystem"
	"media-preparser/internal/item"
	"media-preparser/internal/mediatypes"
	"media-preparser/internal/preparser"

	"github.com/gorilla/mux"
)

type parseFunc func(ctx context.Context, it *item.Item, opts preparser.Options) (*preparser.ParseOutput, error)

func (f parseFunc) Parse(ctx context.Context, it *item.Item, opts preparser.Options) (*preparser.ParseOutput, error) {
	return f(ctx, it, opts)
}

type fetchFunc func(ctx context.Context, it *item.Item, opts preparser.Options) error

func (f fetchFunc) FetchMeta(ctx context.Context, it *item.Item, opts preparser.Options) error {
	return f(ctx, it, opts)
}

type thumbFunc func(ctx context.Context, it *item.Item, seek preparser.SeekArg) (image.Image, error)

func (f thumbFunc) Thumbnail(ctx context.Context, it *item.Item, seek preparser.SeekArg) (image.Image, error) {
	return f(ctx, it, seek)
}

func blockingParser(started chan<- struct{}) preparser.Parser {
	return parseFunc(func(ctx context.Context, _ *item.Item, _ preparser.Options) (*preparser.ParseOutput, error) {
		if started != nil {
			started <- struct{}{}
		}
		<-ctx.Done()
		return nil, ctx.Err()
	})
}

func solidImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	return img
}

type fakePauser struct{ paused atomic.Bool }

func (f *fakePauser) IsPaused() bool { return f.paused.Load() }

type testEnv struct {
	h        *Handlers
	router   *mux.Router
	pp       *preparser.Preparser
	mediaDir string
	pauser   *fakePauser
}

func newTestEnv(t *testing.T, cfg preparser.Config) *testEnv {
	t.Helper()
	if cfg.Types == 0 {
		cfg.Types = preparser.TypeParse
	}
	if cfg.Parser == nil {
		cfg.Parser = parseFunc(func(context.Context, *item.Item, preparser.Options) (*preparser.ParseOutput, error) {
			return &preparser.ParseOutput{}, nil
		})
	}
	pp, err := preparser.New(cfg)
	if err != nil {
		t.Fatalf("preparser.New: %v", err)
	}
	t.Cleanup(pp.Delete)

	env := &testEnv{pp: pp, mediaDir: t.TempDir(), pauser: &fakePauser{}}
	env.h = New(pp, Config{
		MediaDir: env.mediaDir,
		Retry:    filesystem.DefaultRetryConfig(),
		Memory:   env.pauser,
	})
	env.h.SetReady(true)
	env.router = mux.NewRouter()
	env.h.RegisterRoutes(env.router)
	return env
}

func (e *testEnv) file(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(e.mediaDir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) preparse(t *testing.T, body string) (*httptest.ResponseRecorder, PreparseResponse) {
	t.Helper()
	rec := e.do(httptest.NewRequest(http.MethodPost, "/api/preparse", strings.NewReader(body)))
	var resp PreparseResponse
	if rec.Code < 400 || rec.Code >= 500 {
		_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	}
	return rec, resp
}

func TestPreparseReturnsMetaTreeAndAttachments(t *testing.T) {
	var env *testEnv
	env = newTestEnv(t, preparser.Config{
		Parser: parseFunc(func(_ context.Context, it *item.Item, opts preparser.Options) (*preparser.ParseOutput, error) {
			it.SetType(mediatypes.FileTypeFolder)
			it.SetMeta(item.MetaTitle, "Album")
			out := &preparser.ParseOutput{
				Attachments: []item.Attachment{{Name: "cover.jpg", MIMEType: "image/jpeg", Data: []byte("jpeg")}},
			}
			if opts.Subitems {
				root := item.NewNode(it.Hold())
				track := item.New(filepath.Join(env.mediaDir, "album", "01.mp3"))
				track.SetMeta(item.MetaTitle, "Intro")
				root.Add(item.NewNode(track))
				out.Subtree = root
			}
			return out, nil
		}),
	})
	env.file(t, "album/01.mp3")

	rec, resp := env.preparse(t, `{"path":"album","subitems":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if resp.Status != "success" || resp.Type != "folder" {
		t.Errorf("status/type = %s/%s", resp.Status, resp.Type)
	}
	if resp.Meta["title"] != "Album" {
		t.Errorf("meta = %v", resp.Meta)
	}
	if d := resp.Domains["parse"]; d.Status != "success" {
		t.Errorf("parse domain = %+v", d)
	}
	if len(resp.Subitems) != 1 || resp.Subitems[0].Title != "Intro" || resp.Subitems[0].Type != "audio" {
		t.Errorf("subitems = %+v", resp.Subitems)
	}
	if len(resp.Attachments) != 1 || resp.Attachments[0].Size != 4 {
		t.Errorf("attachments = %+v", resp.Attachments)
	}
	if resp.ID == 0 {
		t.Error("response id must be non-zero")
	}
}

func TestPreparseAllUsesEnabledDomains(t *testing.T) {
	env := newTestEnv(t, preparser.Config{
		Types: preparser.TypeParse | preparser.TypeFetchMetaLocal,
		LocalFetcher: fetchFunc(func(context.Context, *item.Item, preparser.Options) error {
			return errors.New("no art")
		}),
	})
	env.file(t, "a.mp3")

	rec, resp := env.preparse(t, `{"path":"a.mp3","types":["all"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(resp.Domains) != 2 {
		t.Fatalf("domains = %v, want parse and fetchmeta_local", resp.Domains)
	}
	if d := resp.Domains["fetchmeta_local"]; d.Status != "error" || d.Error == "" {
		t.Errorf("fetchmeta_local = %+v, want error with message", d)
	}
}

func TestPreparseFailureIs500(t *testing.T) {
	env := newTestEnv(t, preparser.Config{
		Parser: parseFunc(func(context.Context, *item.Item, preparser.Options) (*preparser.ParseOutput, error) {
			return nil, errors.New("corrupt")
		}),
	})
	env.file(t, "a.mp3")

	rec, resp := env.preparse(t, `{"path":"a.mp3"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Status != "error" || !strings.Contains(resp.Domains["parse"].Error, "corrupt") {
		t.Errorf("response = %+v", resp)
	}
}

func TestPreparseBadRequests(t *testing.T) {
	env := newTestEnv(t, preparser.Config{})

	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"unknown field", `{"path":"a","color":"red"}`},
		{"bad timeout", `{"path":"a","timeout":"soon"}`},
		{"negative timeout", `{"path":"a","timeout":"-1s"}`},
		{"unknown type", `{"path":"a","types":["transcode"]}`},
		{"disabled domain", `{"path":"a","types":["thumbnail"]}`},
		{"escaping path", `{"path":"../../etc/passwd"}`},
		{"absolute path outside", `{"path":"/etc/passwd"}`},
		{"unsupported scheme", `{"path":"ftp://host/a.mp3"}`},
		{"empty path", `{"path":""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := env.preparse(t, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestPreparseTimeoutCancelsRequest(t *testing.T) {
	env := newTestEnv(t, preparser.Config{Parser: blockingParser(nil)})
	env.file(t, "slow.mkv")

	rec, resp := env.preparse(t, `{"path":"slow.mkv","timeout":"20ms"}`)
	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, want 504", rec.Code)
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Status != "timeout" {
		t.Errorf("status = %q, want timeout", resp.Status)
	}
	if n := env.pp.Pending(); n != 0 {
		t.Errorf("Pending() = %d after timeout, want 0", n)
	}
}

func TestPreparseClientDisconnectCancels(t *testing.T) {
	started := make(chan struct{}, 1)
	env := newTestEnv(t, preparser.Config{Parser: blockingParser(started)})
	env.file(t, "slow.mkv")

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodPost, "/api/preparse", strings.NewReader(`{"path":"slow.mkv"}`)).WithContext(ctx)

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() { done <- env.do(req) }()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("parser never started")
	}
	cancel()

	select {
	case rec := <-done:
		if rec.Body.Len() != 0 {
			t.Errorf("wrote %q to a departed client", rec.Body.String())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("handler did not return after client disconnect")
	}
	if n := env.pp.Pending(); n != 0 {
		t.Errorf("Pending() = %d, want 0", n)
	}
}

func thumbnailEnv(t *testing.T, th preparser.Thumbnailer) *testEnv {
	t.Helper()
	return newTestEnv(t, preparser.Config{
		Types:       preparser.TypeParse | preparser.TypeThumbnail,
		Thumbnailer: th,
	})
}

func TestGetThumbnailEncodesJPEG(t *testing.T) {
	seeks := make(chan preparser.SeekArg, 1)
	env := thumbnailEnv(t, thumbFunc(func(_ context.Context, _ *item.Item, seek preparser.SeekArg) (image.Image, error) {
		seeks <- seek
		return solidImage(16, 9), nil
	}))
	env.file(t, "clip.mp4")

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/thumbnail?path=clip.mp4&time=1.5&fast=true", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %q", ct)
	}
	img, err := jpeg.Decode(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("body is not a JPEG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 16 || b.Dy() != 9 {
		t.Errorf("thumbnail is %dx%d, want 16x9", b.Dx(), b.Dy())
	}

	want := preparser.SeekToTime(1500*time.Millisecond, preparser.SeekFast)
	if got := <-seeks; got != want {
		t.Errorf("seek = %+v, want %+v", got, want)
	}
}

func TestGetThumbnailErrors(t *testing.T) {
	env := thumbnailEnv(t, thumbFunc(func(_ context.Context, it *item.Item, _ preparser.SeekArg) (image.Image, error) {
		if it.Name() == "broken.jpg" {
			return nil, errors.New("decode failed")
		}
		return solidImage(4, 4), nil
	}))
	env.file(t, "ok.jpg")
	env.file(t, "broken.jpg")
	env.file(t, "notes.txt")
	if err := os.Mkdir(filepath.Join(env.mediaDir, "dir"), 0o755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"no path", "", http.StatusBadRequest},
		{"missing file", "path=gone.jpg", http.StatusNotFound},
		{"directory", "path=dir", http.StatusBadRequest},
		{"unsupported type", "path=notes.txt", http.StatusBadRequest},
		{"remote image", "path=https://example.com/a.jpg", http.StatusBadRequest},
		{"time and pos", "path=ok.jpg&time=1&pos=0.5", http.StatusBadRequest},
		{"pos out of range", "path=ok.jpg&pos=2", http.StatusBadRequest},
		{"bad time", "path=ok.jpg&time=later", http.StatusBadRequest},
		{"bad fast", "path=ok.jpg&fast=maybe", http.StatusBadRequest},
		{"bad timeout", "path=ok.jpg&timeout=-1s", http.StatusBadRequest},
		{"generation failure", "path=broken.jpg", http.StatusInternalServerError},
		{"no timeout", "path=ok.jpg&timeout=none", http.StatusOK},
		{"escaping path", "path=../x.jpg", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(httptest.NewRequest(http.MethodGet, "/api/thumbnail?"+tt.query, nil))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestGetThumbnailTimeout(t *testing.T) {
	env := thumbnailEnv(t, thumbFunc(func(ctx context.Context, _ *item.Item, _ preparser.SeekArg) (image.Image, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}))
	env.file(t, "clip.mp4")

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/thumbnail?path=clip.mp4&timeout=20ms", nil))
	if rec.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want 504", rec.Code)
	}
}

func TestGetThumbnailUnderMemoryPressure(t *testing.T) {
	var calls atomic.Int32
	env := thumbnailEnv(t, thumbFunc(func(context.Context, *item.Item, preparser.SeekArg) (image.Image, error) {
		calls.Add(1)
		return solidImage(1, 1), nil
	}))
	env.file(t, "a.jpg")
	env.pauser.paused.Store(true)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/thumbnail?path=a.jpg", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
	if calls.Load() != 0 {
		t.Error("thumbnailer ran while paused")
	}
}

func TestRequestsEndpoints(t *testing.T) {
	started := make(chan struct{}, 2)
	env := newTestEnv(t, preparser.Config{Parser: blockingParser(started), MaxParserThreads: 2})

	ended := make(chan preparser.Status, 2)
	cbs := preparser.ParseCallbacks{OnEnded: func(_ *item.Item, res preparser.ParseResult, _ any) {
		ended <- res.Status
	}}
	var ids []preparser.RequestID
	for _, name := range []string{"a.mp3", "b.mp3"} {
		it := item.New(env.file(t, name))
		id, err := env.pp.Push(it, preparser.TypeParse, cbs, nil)
		it.Release()
		if err != nil {
			t.Fatalf("Push: %v", err)
		}
		ids = append(ids, id)
		<-started
	}

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/requests", nil))
	if !strings.Contains(rec.Body.String(), `"pending":2`) {
		t.Errorf("GET /api/requests = %s", rec.Body.String())
	}

	path := "/api/requests/" + strconvID(ids[0])
	if rec := env.do(httptest.NewRequest(http.MethodDelete, path, nil)); rec.Code != http.StatusOK {
		t.Errorf("DELETE %s = %d", path, rec.Code)
	}
	if got := <-ended; got != preparser.StatusInterrupted {
		t.Errorf("cancelled request ended with %s", got)
	}
	if rec := env.do(httptest.NewRequest(http.MethodDelete, path, nil)); rec.Code != http.StatusNotFound {
		t.Errorf("second DELETE %s = %d, want 404", path, rec.Code)
	}
	if rec := env.do(httptest.NewRequest(http.MethodDelete, "/api/requests/0", nil)); rec.Code != http.StatusBadRequest {
		t.Errorf("DELETE id 0 = %d, want 400", rec.Code)
	}

	rec = env.do(httptest.NewRequest(http.MethodDelete, "/api/requests", nil))
	if !strings.Contains(rec.Body.String(), `"cancelled":1`) {
		t.Errorf("DELETE /api/requests = %s", rec.Body.String())
	}
	if got := <-ended; got != preparser.StatusInterrupted {
		t.Errorf("cancel-all request ended with %s", got)
	}
}

func strconvID(id preparser.RequestID) string {
	b, _ := json.Marshal(uint64(id))
	return string(b)
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, preparser.Config{})
	env.h.SetReady(false)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	var health HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusServiceUnavailable || health.Status != statusStarting {
		t.Errorf("not ready: %d %s", rec.Code, health.Status)
	}
	if rec := env.do(httptest.NewRequest(http.MethodGet, "/readyz", nil)); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/readyz not ready = %d", rec.Code)
	}

	env.h.SetReady(true)
	rec = env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	_ = json.Unmarshal(rec.Body.Bytes(), &health)
	if rec.Code != http.StatusOK || health.Status != statusHealthy {
		t.Errorf("ready: %d %s", rec.Code, health.Status)
	}
	if len(health.Domains) != 1 || health.Domains[0] != "parse" {
		t.Errorf("domains = %v", health.Domains)
	}

	env.pauser.paused.Store(true)
	rec = env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	_ = json.Unmarshal(rec.Body.Bytes(), &health)
	if health.Status != statusDegraded || !health.MemoryPaused {
		t.Errorf("paused: %s memoryPaused=%v", health.Status, health.MemoryPaused)
	}

	rec = env.do(httptest.NewRequest(http.MethodHead, "/livez", nil))
	if rec.Code != http.StatusOK || rec.Body.Len() != 0 {
		t.Errorf("HEAD /livez = %d with %d body bytes", rec.Code, rec.Body.Len())
	}

	rec = env.do(httptest.NewRequest(http.MethodGet, "/version", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"goVersion"`) {
		t.Errorf("/version = %d %s", rec.Code, rec.Body.String())
	}
}

func TestResolveItem(t *testing.T) {
	h := New(nil, Config{MediaDir: "/media"})

	tests := []struct {
		in      string
		wantURI string
		wantErr bool
	}{
		{"music/a.mp3", "file:///media/music/a.mp3", false},
		{"/media/b.mp3", "file:///media/b.mp3", false},
		{"music/../c.mp3", "file:///media/c.mp3", false},
		{"https://example.com/v.mp4", "https://example.com/v.mp4", false},
		{"../secret", "", true},
		{"/mediafoo/x", "", true},
		{"file:///etc/passwd", "", true},
		{"http:///nohost", "", true},
		{"  ", "", true},
	}
	for _, tt := range tests {
		it, err := h.resolveItem(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("resolveItem(%q) = %s, want error", tt.in, it)
				it.Release()
			}
			continue
		}
		if err != nil {
			t.Errorf("resolveItem(%q) error = %v", tt.in, err)
			continue
		}
		if it.URI() != tt.wantURI {
			t.Errorf("resolveItem(%q) = %s, want %s", tt.in, it.URI(), tt.wantURI)
		}
		it.Release()
	}
}

func TestParseSeek(t *testing.T) {
	tests := []struct {
		query map[string][]string
		want  preparser.SeekArg
	}{
		{nil, preparser.SeekArg{}},
		{map[string][]string{"time": {"2s"}}, preparser.SeekToTime(2*time.Second, preparser.SeekPrecise)},
		{map[string][]string{"time": {"0.25"}, "fast": {"1"}}, preparser.SeekToTime(250*time.Millisecond, preparser.SeekFast)},
		{map[string][]string{"pos": {"0.5"}}, preparser.SeekToPosition(0.5, preparser.SeekPrecise)},
	}
	for _, tt := range tests {
		got, err := parseSeek(tt.query)
		if err != nil || got != tt.want {
			t.Errorf("parseSeek(%v) = %+v, %v; want %+v", tt.query, got, err, tt.want)
		}
	}
}

func TestMetricsHandlerServesRegistry(t *testing.T) {
	env := newTestEnv(t, preparser.Config{})

	rec := httptest.NewRecorder()
	env.h.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "promhttp_metric_handler_requests_total") {
		t.Error("scrape is missing the handler's own request counter")
	}
}
