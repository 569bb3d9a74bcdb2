package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"media-preparser/internal/item"
	"media-preparser/internal/logging"
	"media-preparser/internal/preparser"
)

const maxPreparseBody = 64 << 10

// PreparseRequest is the body of POST /api/preparse.
type PreparseRequest struct {
	Path string `json:"path"`
	// Types lists domains by name. Empty means parse; "all" means every
	// enabled domain.
	Types    []string `json:"types"`
	Subitems bool     `json:"subitems"`
	Interact bool     `json:"interact"`
	// Timeout bounds how long the handler waits, as a Go duration. On expiry
	// the request is cancelled and reported as timed out.
	Timeout string `json:"timeout,omitempty"`
}

// DomainResponse is the outcome of one domain.
type DomainResponse struct {
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	Duration string `json:"duration"`
}

// SubitemResponse describes one discovered sub-item.
type SubitemResponse struct {
	URI   string `json:"uri"`
	Name  string `json:"name"`
	Type  string `json:"type"`
	Depth int    `json:"depth"`
	Title string `json:"title,omitempty"`
}

// AttachmentResponse describes one attachment without its data.
type AttachmentResponse struct {
	Name     string `json:"name"`
	MIMEType string `json:"mimeType"`
	Size     int    `json:"size"`
}

// PreparseResponse is the body returned by POST /api/preparse.
type PreparseResponse struct {
	ID           uint64                    `json:"id"`
	Status       string                    `json:"status"`
	URI          string                    `json:"uri"`
	Type         string                    `json:"type"`
	Duration     string                    `json:"duration,omitempty"`
	Meta         map[string]string         `json:"meta"`
	Domains      map[string]DomainResponse `json:"domains"`
	Subitems     []SubitemResponse         `json:"subitems,omitempty"`
	Attachments  []AttachmentResponse      `json:"attachments,omitempty"`
	HasThumbnail bool                      `json:"hasThumbnail"`
}

var allDomains = []preparser.Type{
	preparser.TypeParse,
	preparser.TypeFetchMetaLocal,
	preparser.TypeFetchMetaNet,
	preparser.TypeThumbnail,
}

// requestFlags builds the preparser flags of req.
func (h *Handlers) requestFlags(req PreparseRequest) (preparser.Type, error) {
	var flags preparser.Type
	switch {
	case len(req.Types) == 0:
		flags = preparser.TypeParse
	case len(req.Types) == 1 && req.Types[0] == "all":
		for _, d := range allDomains {
			if h.svc.Enabled(d) {
				flags |= d
			}
		}
	default:
		t, err := preparser.ParseTypes(req.Types)
		if err != nil {
			return 0, err
		}
		flags = t
	}
	if req.Subitems {
		flags |= preparser.OptionSubitems
	}
	if req.Interact {
		flags |= preparser.OptionInteract
	}
	return flags, nil
}

// preparseCollector gathers the callbacks of one request. Every callback
// runs before OnEnded closes done.
type preparseCollector struct {
	done        chan struct{}
	result      preparser.ParseResult
	subitems    []SubitemResponse
	attachments []AttachmentResponse
}

func (c *preparseCollector) callbacks() preparser.ParseCallbacks {
	return preparser.ParseCallbacks{
		OnSubtreeAdded: func(_ *item.Item, tree *item.Node, _ any) {
			tree.Walk(func(depth int, n *item.Node) {
				c.subitems = append(c.subitems, SubitemResponse{
					URI:   n.Item.URI(),
					Name:  n.Item.Name(),
					Type:  string(n.Item.Type()),
					Depth: depth,
					Title: n.Item.Meta(item.MetaTitle),
				})
			})
		},
		OnAttachmentsAdded: func(_ *item.Item, atts []item.Attachment, _ any) {
			for _, a := range atts {
				c.attachments = append(c.attachments, AttachmentResponse{
					Name:     a.Name,
					MIMEType: a.MIMEType,
					Size:     len(a.Data),
				})
			}
		},
		OnEnded: func(_ *item.Item, res preparser.ParseResult, _ any) {
			c.result = res
			close(c.done)
		},
	}
}

// Preparse runs a preparse request and waits for its result.
func (h *Handlers) Preparse(w http.ResponseWriter, r *http.Request) {
	var req PreparseRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPreparseBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSONError(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	var timeout time.Duration
	if req.Timeout != "" {
		d, err := time.ParseDuration(req.Timeout)
		if err != nil || d <= 0 {
			writeJSONError(w, "Invalid timeout", http.StatusBadRequest)
			return
		}
		timeout = d
	}

	flags, err := h.requestFlags(req)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	it, err := h.resolveItem(req.Path)
	if err != nil {
		writeJSONError(w, "Invalid path", http.StatusBadRequest)
		return
	}
	defer it.Release()

	c := &preparseCollector{done: make(chan struct{})}
	id, err := h.svc.Push(it, flags, c.callbacks(), nil)
	if err != nil {
		logging.Debug("Preparse: rejected %s: %v", it, err)
		writeJSONError(w, err.Error(), submitStatus(err))
		return
	}

	ctx := r.Context()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	timedOut := false
	select {
	case <-c.done:
	case <-ctx.Done():
		h.svc.Cancel(id)
		<-c.done
		if r.Context().Err() != nil {
			logging.Debug("Preparse: client went away, request %d cancelled", id)
			return
		}
		timedOut = errors.Is(ctx.Err(), context.DeadlineExceeded)
	}

	res := c.result
	if timedOut && res.Status == preparser.StatusInterrupted {
		res.Status = preparser.StatusTimeout
	}

	resp := PreparseResponse{
		ID:           uint64(id),
		Status:       res.Status.String(),
		URI:          it.URI(),
		Type:         string(it.Type()),
		Meta:         make(map[string]string),
		Domains:      make(map[string]DomainResponse, len(res.Domains)),
		Subitems:     c.subitems,
		Attachments:  c.attachments,
		HasThumbnail: res.Thumbnail != nil,
	}
	if d := it.Duration(); d > 0 {
		resp.Duration = d.String()
	}
	for k, v := range it.Metas() {
		resp.Meta[string(k)] = v
	}
	for d, dr := range res.Domains {
		out := DomainResponse{Status: dr.Status.String(), Duration: dr.Duration.String()}
		if dr.Err != nil {
			out.Error = dr.Err.Error()
		}
		resp.Domains[d.String()] = out
	}

	writeJSONStatusCode(w, resultStatus(res.Status), resp)
}
