package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"media-preparser/internal/item"
	"media-preparser/internal/logging"
	"media-preparser/internal/preparser"
)

var errInvalidPath = errors.New("invalid path")

// writeJSON encodes v as JSON and writes it to the response writer.
// Any encoding or write errors are logged since we typically cannot
// recover from them in an HTTP handler context.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONError writes an error response as JSON with the given status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSONStatusCode(w, statusCode, map[string]string{"error": message})
}

func writeJSONStatusCode(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, v)
}

// resolveItem turns a client supplied location into an item. http and
// https URLs pass through; anything else is a path that must stay inside
// the media directory, given either absolute or relative to it.
func (h *Handlers) resolveItem(raw string) (*item.Item, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errInvalidPath
	}

	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, errInvalidPath
		}
		return item.New(u.String()), nil
	}

	path := raw
	if !filepath.IsAbs(path) {
		path = filepath.Join(h.mediaDir, path)
	}
	path = filepath.Clean(path)

	rel, err := filepath.Rel(h.mediaDir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, errInvalidPath
	}
	return item.New(path), nil
}

// submitStatus maps a synchronous submission error to an HTTP status.
func submitStatus(err error) int {
	switch {
	case errors.Is(err, preparser.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, preparser.ErrDomainDisabled),
		errors.Is(err, preparser.ErrNoDomain),
		errors.Is(err, preparser.ErrUnknownFlags),
		errors.Is(err, preparser.ErrInvalidSeek):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// resultStatus maps a terminal request status to an HTTP status.
func resultStatus(s preparser.Status) int {
	switch s {
	case preparser.StatusSuccess:
		return http.StatusOK
	case preparser.StatusTimeout:
		return http.StatusGatewayTimeout
	case preparser.StatusInterrupted:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
