package preparser

import (
	"image"
	"sync"
	"time"

	"media-preparser/internal/executor"
	"media-preparser/internal/item"
)

// RequestID identifies a submitted request. InvalidID is never issued.
type RequestID uint64

// InvalidID is returned on rejected submissions. Passed to Cancel it means
// every pending request.
const InvalidID RequestID = 0

// DomainResult is the outcome of one domain of a preparse request.
type DomainResult struct {
	Status   Status
	Err      error
	Duration time.Duration
}

// ParseResult is delivered to ParseCallbacks.OnEnded.
type ParseResult struct {
	Status  Status
	Domains map[Type]DomainResult
	// Thumbnail is set when TypeThumbnail was requested and succeeded.
	Thumbnail image.Image
}

// Err returns the sentinel matching Status.
func (r ParseResult) Err() error { return r.Status.Err() }

// ParseCallbacks receive the events of a Push request. OnEnded is required.
// Tree and attachment events arrive before OnEnded, on the same goroutine,
// and only for requests that complete. The preparser releases the subtree
// once OnSubtreeAdded returns; Hold any item that must outlive the call.
type ParseCallbacks struct {
	OnEnded            func(it *item.Item, res ParseResult, data any)
	OnSubtreeAdded     func(it *item.Item, tree *item.Node, data any)
	OnAttachmentsAdded func(it *item.Item, atts []item.Attachment, data any)
}

// ThumbnailCallbacks receive the end of a GenerateThumbnail request. thumb is
// non-nil exactly when status is StatusSuccess.
type ThumbnailCallbacks struct {
	OnEnded func(it *item.Item, status Status, thumb image.Image, data any)
}

type requestKind int

const (
	kindPreparse requestKind = iota
	kindThumbnail
)

func (k requestKind) String() string {
	if k == kindThumbnail {
		return "thumbnail"
	}
	return "preparse"
}

type subjob struct {
	domain Type
	exec   *executor.Executor
	task   *executor.Task
}

// outcome is what one subjob reports back.
type outcome struct {
	status  Status
	err     error
	elapsed time.Duration
	parsed  *ParseOutput
	thumb   image.Image
}

func (o *outcome) discard() {
	if o.parsed != nil && o.parsed.Subtree != nil {
		o.parsed.Subtree.Release()
		o.parsed.Subtree = nil
	}
}

type request struct {
	id        RequestID
	kind      requestKind
	it        *item.Item
	domains   Type
	opts      Options
	seek      SeekArg
	data      any
	parseCbs  ParseCallbacks
	thumbCbs  ThumbnailCallbacks
	submitted time.Time
	subjobs   []*subjob

	mu          sync.Mutex
	terminal    bool
	pending     int
	results     map[Type]DomainResult
	subtree     *item.Node
	attachments []item.Attachment
	thumb       image.Image
	timer       *time.Timer
}

// record stores a subjob outcome. Callers hold r.mu.
func (r *request) record(d Type, out outcome) {
	r.results[d] = DomainResult{Status: out.status, Err: out.err, Duration: out.elapsed}
	if out.parsed != nil {
		r.subtree = out.parsed.Subtree
		r.attachments = out.parsed.Attachments
	}
	if out.thumb != nil {
		r.thumb = out.thumb
	}
	r.pending--
}

// completedStatus combines resolved domains: success if any succeeded.
// Callers hold r.mu.
func (r *request) completedStatus() Status {
	for _, res := range r.results {
		if res.Status == StatusSuccess {
			return StatusSuccess
		}
	}
	return StatusError
}

// interruptedStatus decides the terminal status when a cancel or the
// deadline ends the request early, and marks unresolved domains. A cancel
// that arrives after some domain already succeeded reports success; failed
// domains alone never turn a cancel into an error. Callers hold r.mu.
func (r *request) interruptedStatus(reason Status) Status {
	status := reason
	if reason == StatusInterrupted {
		for _, res := range r.results {
			if res.Status == StatusSuccess {
				status = StatusSuccess
				break
			}
		}
	}
	for _, sj := range r.subjobs {
		if _, ok := r.results[sj.domain]; !ok {
			r.results[sj.domain] = DomainResult{Status: reason, Err: reason.Err()}
		}
	}
	return status
}

// markTerminal flips the request to terminal and disarms the deadline.
// Callers hold r.mu and have checked r.terminal.
func (r *request) markTerminal() {
	r.terminal = true
	if r.timer != nil {
		r.timer.Stop()
	}
}

func (r *request) domainResults() map[Type]DomainResult {
	out := make(map[Type]DomainResult, len(r.results))
	for d, res := range r.results {
		out[d] = res
	}
	return out
}
