package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"media-preparser/internal/artcache"
	"media-preparser/internal/filesystem"
	"media-preparser/internal/item"
	"media-preparser/internal/logging"
	"media-preparser/internal/mediatypes"
	"media-preparser/internal/metrics"
	"media-preparser/internal/preparser"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	// DefaultRate is the default number of service requests per second.
	DefaultRate = 1.0
	// DefaultResponseTTL is how long cached service answers stay valid.
	DefaultResponseTTL = 7 * 24 * time.Hour
	maxBodySize        = 1 << 20
	maxArtSize         = 10 << 20
)

// ErrNotFound is returned when the service knows nothing about an item.
var ErrNotFound = errors.New("no metadata found")

// NetworkConfig configures a Network fetcher.
type NetworkConfig struct {
	// Endpoint is queried with artist, album and title parameters.
	Endpoint string
	Client   *http.Client
	// Rate is in requests per second; Burst defaults to 1.
	Rate  float64
	Burst int
	// Cache and Responses are optional.
	Cache       ArtStore
	Responses   ResponseStore
	ResponseTTL time.Duration
	ArtDir      string
	Retry       filesystem.RetryConfig
}

// Network looks items up on a JSON metadata service.
type Network struct {
	cfg     NetworkConfig
	limiter *rate.Limiter
	group   singleflight.Group
}

// lookupResult is the service's answer. Empty fields are unknown.
type lookupResult struct {
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Album       string `json:"album"`
	AlbumArtist string `json:"album_artist"`
	Genre       string `json:"genre"`
	Date        string `json:"date"`
	TrackNumber string `json:"track_number"`
	Description string `json:"description"`
	ArtworkURL  string `json:"artwork_url"`
}

func (r *lookupResult) apply(it *item.Item) {
	for k, v := range map[item.MetaKey]string{
		item.MetaTitle:       r.Title,
		item.MetaArtist:      r.Artist,
		item.MetaAlbum:       r.Album,
		item.MetaAlbumArtist: r.AlbumArtist,
		item.MetaGenre:       r.Genre,
		item.MetaDate:        r.Date,
		item.MetaTrackNumber: r.TrackNumber,
		item.MetaDescription: r.Description,
	} {
		it.SetMetaIfEmpty(k, v)
	}
}

// NewNetwork creates a network fetcher.
func NewNetwork(cfg NetworkConfig) (*Network, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("network fetcher: endpoint is required")
	}
	if _, err := url.Parse(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("network fetcher: invalid endpoint: %w", err)
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Rate <= 0 {
		cfg.Rate = DefaultRate
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.ResponseTTL <= 0 {
		cfg.ResponseTTL = DefaultResponseTTL
	}
	return &Network{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst),
	}, nil
}

// query builds the lookup query string. Items without any usable field
// cannot be looked up.
func query(it *item.Item) (string, bool) {
	title := it.Meta(item.MetaTitle)
	if title == "" {
		title = strings.TrimSuffix(it.Name(), mediatypes.Ext(it.Name()))
	}
	artist := it.Meta(item.MetaArtist)
	album := it.Meta(item.MetaAlbum)
	if title == "" && artist == "" && album == "" {
		return "", false
	}

	v := url.Values{}
	for k, s := range map[string]string{"title": title, "artist": artist, "album": album} {
		if s != "" {
			v.Set(k, s)
		}
	}
	return v.Encode(), true
}

// FetchMeta fills in missing metadata and artwork from the service.
func (n *Network) FetchMeta(ctx context.Context, it *item.Item, _ preparser.Options) error {
	key := artKey(it)
	haveArt := it.Meta(item.MetaArtworkURL) != "" || cachedArt(ctx, n.cfg.Cache, key, it)

	q, ok := query(it)
	if !ok {
		return fmt.Errorf("%w: nothing to search for in %s", ErrNotFound, it.URI())
	}

	v, err, shared := n.group.Do(q, func() (any, error) {
		return n.lookup(ctx, q)
	})
	if err != nil && shared && isContextErr(err) && ctx.Err() == nil {
		v, err = n.lookup(ctx, q)
	}
	if shared {
		metrics.NetworkFetchesTotal.WithLabelValues("shared").Inc()
	}
	if err != nil {
		return err
	}

	res := v.(*lookupResult)
	res.apply(it)

	if haveArt || res.ArtworkURL == "" {
		return nil
	}
	art, err := n.artwork(ctx, key, res.ArtworkURL)
	if err != nil {
		logging.Warn("Downloading artwork %s failed: %v", res.ArtworkURL, err)
		return nil
	}
	it.SetMetaIfEmpty(item.MetaArtworkURL, art)
	return nil
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// lookup answers q from the response cache or the service.
func (n *Network) lookup(ctx context.Context, q string) (*lookupResult, error) {
	if n.cfg.Responses != nil {
		if body, err := n.cfg.Responses.LookupResponse(ctx, q, n.cfg.ResponseTTL); err == nil {
			var res lookupResult
			if err := json.Unmarshal(body, &res); err == nil {
				logging.Debug("Metadata lookup %q served from cache", q)
				return &res, nil
			}
		} else if !errors.Is(err, artcache.ErrNotFound) {
			logging.Warn("Response cache lookup failed: %v", err)
		}
	}

	body, err := n.get(ctx, n.cfg.Endpoint+"?"+q, maxBodySize)
	if err != nil {
		status := "error"
		if errors.Is(err, ErrNotFound) {
			status = "not_found"
		}
		metrics.NetworkFetchesTotal.WithLabelValues(status).Inc()
		return nil, err
	}

	var res lookupResult
	if err := json.Unmarshal(body, &res); err != nil {
		metrics.NetworkFetchesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("decoding metadata response: %w", err)
	}
	metrics.NetworkFetchesTotal.WithLabelValues("success").Inc()

	if n.cfg.Responses != nil {
		if err := n.cfg.Responses.StoreResponse(ctx, q, body); err != nil {
			logging.Warn("Failed to cache metadata response: %v", err)
		}
	}
	return &res, nil
}

// get performs a throttled GET and returns at most limit bytes of body.
func (n *Network) get(ctx context.Context, target string, limit int64) ([]byte, error) {
	return n.fetch(ctx, target, limit, nil)
}

func (n *Network) fetch(ctx context.Context, target string, limit int64, header *http.Header) ([]byte, error) {
	start := time.Now()
	if err := n.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	metrics.NetworkFetchWait.Observe(time.Since(start).Seconds())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json, image/*")

	resp, err := n.cfg.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("unexpected status %s from %s", resp.Status, req.URL.Host)
	}
	if header != nil {
		*header = resp.Header
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

// artwork downloads remote art into ArtDir and records it in the cache.
func (n *Network) artwork(ctx context.Context, key, src string) (string, error) {
	u, err := url.Parse(src)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported artwork scheme %q", u.Scheme)
	}

	var header http.Header
	data, err := n.fetch(ctx, src, maxArtSize, &header)
	if err != nil {
		return "", err
	}

	local, err := saveArt(ctx, n.cfg.ArtDir, key, artExt(data, header.Get("Content-Type"), u.Path), data, n.cfg.Retry)
	if err != nil {
		return "", err
	}
	rememberArt(ctx, n.cfg.Cache, key, local, artcache.SourceNetwork)
	return local, nil
}

// artExt picks the file extension for downloaded art. Sniffed image content
// wins over the declared content type, which wins over the URL path.
func artExt(data []byte, contentType, path string) string {
	if sniffed := mimetype.Detect(data); strings.HasPrefix(sniffed.String(), "image/") && sniffed.Extension() != "" {
		return strings.TrimPrefix(sniffed.Extension(), ".")
	}
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		switch mt {
		case "image/jpeg":
			return "jpg"
		case "image/png":
			return "png"
		case "image/webp":
			return "webp"
		case "image/gif":
			return "gif"
		}
	}
	if ext := strings.TrimPrefix(mediatypes.Ext(path), "."); mediatypes.ImageExtensions["."+ext] {
		return ext
	}
	return "jpg"
}
