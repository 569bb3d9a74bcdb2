package handlers

import (
	"context"
	"errors"
	"image"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"media-preparser/internal/filesystem"
	"media-preparser/internal/item"
	"media-preparser/internal/logging"
	"media-preparser/internal/mediatypes"
	"media-preparser/internal/preparser"

	"github.com/disintegration/imaging"
)

// parseSeek reads time, pos and fast from the query. time accepts a Go
// duration or a number of seconds.
func parseSeek(q map[string][]string) (preparser.SeekArg, error) {
	get := func(k string) string {
		if v := q[k]; len(v) > 0 {
			return v[0]
		}
		return ""
	}

	speed := preparser.SeekPrecise
	if s := get("fast"); s != "" {
		fast, err := strconv.ParseBool(s)
		if err != nil {
			return preparser.SeekArg{}, errors.New("invalid fast flag")
		}
		if fast {
			speed = preparser.SeekFast
		}
	}

	ts, ps := get("time"), get("pos")
	switch {
	case ts != "" && ps != "":
		return preparser.SeekArg{}, errors.New("time and pos are mutually exclusive")
	case ts != "":
		d, err := time.ParseDuration(ts)
		if err != nil {
			secs, ferr := strconv.ParseFloat(ts, 64)
			if ferr != nil {
				return preparser.SeekArg{}, errors.New("invalid time")
			}
			d = time.Duration(secs * float64(time.Second))
		}
		seek := preparser.SeekToTime(d, speed)
		return seek, seek.Validate()
	case ps != "":
		pos, err := strconv.ParseFloat(ps, 64)
		if err != nil {
			return preparser.SeekArg{}, errors.New("invalid pos")
		}
		seek := preparser.SeekToPosition(pos, speed)
		return seek, seek.Validate()
	default:
		return preparser.SeekArg{Speed: speed}, nil
	}
}

// parseThumbnailTimeout maps "" to the preparser default and "none" to no
// deadline.
func parseThumbnailTimeout(s string) (time.Duration, error) {
	switch s {
	case "":
		return 0, nil
	case "none":
		return preparser.NoTimeout, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, errors.New("invalid timeout")
	}
	return d, nil
}

type thumbnailResult struct {
	status preparser.Status
	img    image.Image
}

// GetThumbnail generates a JPEG thumbnail for ?path= at the requested seek.
func (h *Handlers) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	seek, err := parseSeek(q)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	timeout, err := parseThumbnailTimeout(q.Get("timeout"))
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	it, err := h.resolveItem(q.Get("path"))
	if err != nil {
		writeJSONError(w, "Invalid path", http.StatusBadRequest)
		return
	}
	defer it.Release()

	if status, msg := h.checkThumbnailable(r.Context(), it); status != http.StatusOK {
		writeJSONError(w, msg, status)
		return
	}

	if h.memoryPaused() {
		w.Header().Set("Retry-After", "5")
		writeJSONError(w, "Server under memory pressure", http.StatusServiceUnavailable)
		return
	}

	done := make(chan thumbnailResult, 1)
	id, err := h.svc.GenerateThumbnail(it, seek, timeout, preparser.ThumbnailCallbacks{
		OnEnded: func(_ *item.Item, status preparser.Status, thumb image.Image, _ any) {
			done <- thumbnailResult{status: status, img: thumb}
		},
	}, nil)
	if err != nil {
		writeJSONError(w, err.Error(), submitStatus(err))
		return
	}

	var res thumbnailResult
	select {
	case res = <-done:
	case <-r.Context().Done():
		h.svc.Cancel(id)
		<-done
		logging.Debug("Thumbnail: client went away, request %d cancelled", id)
		return
	}

	if res.status != preparser.StatusSuccess {
		logging.Debug("Thumbnail: %s ended with %s", it, res.status)
		writeJSONError(w, "Thumbnail "+res.status.String(), resultStatus(res.status))
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if err := imaging.Encode(w, res.img, imaging.JPEG, imaging.JPEGQuality(h.cfg.ThumbnailQuality)); err != nil {
		logging.Error("Thumbnail: failed to encode %s: %v", it, err)
	}
}

// checkThumbnailable rejects items no thumbnail can be made for before a
// request is queued.
func (h *Handlers) checkThumbnailable(ctx context.Context, it *item.Item) (int, string) {
	path := it.Path()
	if path == "" {
		if it.Type() != mediatypes.FileTypeVideo {
			return http.StatusBadRequest, "Unsupported remote media type"
		}
		return http.StatusOK, ""
	}

	info, err := filesystem.Stat(ctx, path, h.cfg.Retry)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound, "File not found"
	case err != nil:
		logging.Warn("Thumbnail: failed to stat %s: %v", path, err)
		return http.StatusInternalServerError, "Failed to access file"
	case info.IsDir():
		return http.StatusBadRequest, "Cannot generate thumbnail for directory"
	}

	switch it.Type() {
	case mediatypes.FileTypeImage, mediatypes.FileTypeVideo, mediatypes.FileTypeAudio:
		return http.StatusOK, ""
	default:
		return http.StatusBadRequest, "Unsupported file type"
	}
}
