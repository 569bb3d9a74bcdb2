package preparser

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"media-preparser/internal/executor"
	"media-preparser/internal/item"
	"media-preparser/internal/logging"
	"media-preparser/internal/metrics"
)

// MaxThreads bounds the per-executor thread counts accepted by New.
const MaxThreads = 256

// NoTimeout disables the deadline of a GenerateThumbnail request.
const NoTimeout time.Duration = -1

// Config configures a Preparser.
type Config struct {
	// Types is the set of domains to enable (Type* flags only).
	Types Type
	// MaxParserThreads sizes the parse and fetch executors, 0 means 1.
	MaxParserThreads uint
	// MaxThumbnailerThreads sizes the thumbnail executor, 0 means 1.
	MaxThumbnailerThreads uint
	// Timeout is the default deadline of a request, 0 for none.
	Timeout time.Duration

	Parser         Parser
	LocalFetcher   MetaFetcher
	NetworkFetcher MetaFetcher
	Thumbnailer    Thumbnailer
}

func (c *Config) validate() error {
	if c.Types.Domains() == 0 {
		return fmt.Errorf("%w: no domain enabled", ErrInvalidConfig)
	}
	if rest := c.Types &^ domainMask; rest != 0 {
		return fmt.Errorf("%w: unexpected type bits %#x", ErrInvalidConfig, uint32(rest))
	}
	if c.MaxParserThreads > MaxThreads || c.MaxThumbnailerThreads > MaxThreads {
		return fmt.Errorf("%w: thread count above %d", ErrInvalidConfig, MaxThreads)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: negative timeout", ErrInvalidConfig)
	}

	missing := map[Type]bool{
		TypeParse:          c.Parser == nil,
		TypeFetchMetaLocal: c.LocalFetcher == nil,
		TypeFetchMetaNet:   c.NetworkFetcher == nil,
		TypeThumbnail:      c.Thumbnailer == nil,
	}
	for _, d := range domainOrder {
		if c.Types.Has(d) && missing[d] {
			return fmt.Errorf("%w: %s enabled without a worker", ErrInvalidConfig, d)
		}
	}
	return nil
}

func threads(n uint) int {
	if n == 0 {
		return 1
	}
	return int(n)
}

// Preparser dispatches items to per-domain executors and reports each
// request's end through a single callback.
type Preparser struct {
	cfg     Config
	timeout atomic.Int64
	execs   map[Type]*executor.Executor
	reg     *registry

	// mu orders submissions against Delete.
	mu      sync.RWMutex
	closed  bool
	pending sync.WaitGroup

	deleteOnce sync.Once
}

// New validates cfg and starts one executor per enabled domain.
func New(cfg Config) (*Preparser, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	p := &Preparser{
		cfg:   cfg,
		execs: make(map[Type]*executor.Executor),
		reg:   newRegistry(),
	}
	p.timeout.Store(int64(cfg.Timeout))

	for _, d := range domainOrder {
		if !cfg.Types.Has(d) {
			continue
		}
		n := threads(cfg.MaxParserThreads)
		if d == TypeThumbnail {
			n = threads(cfg.MaxThumbnailerThreads)
		}
		p.execs[d] = executor.New(d.String(), n)
	}

	logging.Info("Preparser started: types=%s parser_threads=%d thumbnailer_threads=%d timeout=%v",
		cfg.Types, threads(cfg.MaxParserThreads), threads(cfg.MaxThumbnailerThreads), cfg.Timeout)
	return p, nil
}

// Enabled reports whether every domain in t was enabled at creation.
func (p *Preparser) Enabled(t Type) bool {
	return t.Domains() != 0 && p.cfg.Types.Has(t.Domains())
}

// SetTimeout changes the default deadline of future requests.
//
// Deprecated: pass Config.Timeout to New instead. Requests already
// submitted keep their deadline.
func (p *Preparser) SetTimeout(d time.Duration) {
	if d < 0 {
		d = 0
	}
	p.timeout.Store(int64(d))
}

// Timeout returns the default deadline of new requests.
func (p *Preparser) Timeout() time.Duration {
	return time.Duration(p.timeout.Load())
}

// Pending returns the number of requests not yet terminal.
func (p *Preparser) Pending() int {
	return p.reg.len()
}

// Stats samples the registry and executors for the metrics collector.
func (p *Preparser) Stats() metrics.Stats {
	s := metrics.Stats{
		Pending: p.reg.len(),
		Queued:  make(map[string]int, len(p.execs)),
		Running: make(map[string]int, len(p.execs)),
	}
	for _, e := range p.execs {
		s.Queued[e.Name()] = e.Pending()
		s.Running[e.Name()] = e.Running()
	}
	return s
}

func reject(kind requestKind, err error) (RequestID, error) {
	metrics.RequestsRejected.WithLabelValues(kind.String(), rejectReason(err)).Inc()
	return InvalidID, err
}

func rejectReason(err error) string {
	switch err {
	case ErrNilItem:
		return "nil_item"
	case ErrNoCallback:
		return "no_callback"
	case ErrNoDomain:
		return "no_domain"
	case ErrUnknownFlags:
		return "unknown_flags"
	case ErrDomainDisabled:
		return "domain_disabled"
	case ErrClosed:
		return "closed"
	default:
		return "invalid_seek"
	}
}

// Push submits it for the domains in flags (plus option flags). On success
// the returned id is non-zero and cbs.OnEnded will be called exactly once.
// On error no callback is ever made.
func (p *Preparser) Push(it *item.Item, flags Type, cbs ParseCallbacks, data any) (RequestID, error) {
	switch {
	case it == nil:
		return reject(kindPreparse, ErrNilItem)
	case cbs.OnEnded == nil:
		return reject(kindPreparse, ErrNoCallback)
	case flags&^(domainMask|optionMask) != 0:
		return reject(kindPreparse, ErrUnknownFlags)
	case flags.Domains() == 0:
		return reject(kindPreparse, ErrNoDomain)
	case !p.cfg.Types.Has(flags.Domains()):
		return reject(kindPreparse, ErrDomainDisabled)
	}

	r := &request{
		kind:     kindPreparse,
		domains:  flags.Domains(),
		opts:     optionsOf(flags),
		data:     data,
		parseCbs: cbs,
	}
	return p.submit(r, it, p.Timeout())
}

// GenerateThumbnail submits it to the thumbnail executor. timeout 0 uses
// the default deadline and NoTimeout disables it. The caller may release its
// own reference to it as soon as this returns.
func (p *Preparser) GenerateThumbnail(it *item.Item, seek SeekArg, timeout time.Duration, cbs ThumbnailCallbacks, data any) (RequestID, error) {
	switch {
	case it == nil:
		return reject(kindThumbnail, ErrNilItem)
	case cbs.OnEnded == nil:
		return reject(kindThumbnail, ErrNoCallback)
	case !p.cfg.Types.Has(TypeThumbnail):
		return reject(kindThumbnail, ErrDomainDisabled)
	}
	if err := seek.Validate(); err != nil {
		metrics.RequestsRejected.WithLabelValues(kindThumbnail.String(), "invalid_seek").Inc()
		return InvalidID, err
	}

	switch {
	case timeout == 0:
		timeout = p.Timeout()
	case timeout < 0:
		timeout = 0
	}

	r := &request{
		kind:     kindThumbnail,
		domains:  TypeThumbnail,
		seek:     seek,
		data:     data,
		thumbCbs: cbs,
	}
	return p.submit(r, it, timeout)
}

func (p *Preparser) submit(r *request, it *item.Item, timeout time.Duration) (RequestID, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return reject(r.kind, ErrClosed)
	}

	r.it = it.Hold()
	r.submitted = time.Now()
	r.results = make(map[Type]DomainResult, len(domainOrder))
	for _, d := range domainOrder {
		if !r.domains.Has(d) {
			continue
		}
		sj := &subjob{domain: d, exec: p.execs[d]}
		sj.task = executor.NewTask(context.Background(), p.runner(r, sj), p.dropper(r, sj))
		r.subjobs = append(r.subjobs, sj)
	}
	r.pending = len(r.subjobs)

	// Cancel must not see r before its subjobs are queued.
	r.mu.Lock()
	id := p.reg.register(r)
	p.pending.Add(1)
	metrics.RequestsPending.Inc()

	if timeout > 0 {
		r.timer = time.AfterFunc(timeout, func() { p.interrupt(r, StatusTimeout) })
	}
	for _, sj := range r.subjobs {
		// subjob reference, released by the runner or the drop hook
		r.it.Hold()
		if err := sj.exec.Submit(sj.task); err != nil {
			r.it.Release()
			r.record(sj.domain, outcome{status: StatusError, err: err})
		}
	}
	if r.pending == 0 {
		status := r.completedStatus()
		r.markTerminal()
		r.mu.Unlock()
		p.reg.remove(id)
		go p.finish(r, status)
	} else {
		r.mu.Unlock()
	}

	logging.Debug("Preparser: request %d submitted (%s %s, timeout %v)", id, r.kind, r.domains, timeout)
	return id, nil
}

// Cancel interrupts the request with the given id, or every pending request
// for InvalidID, and returns how many requests it interrupted. Callbacks of
// interrupted requests are delivered asynchronously.
func (p *Preparser) Cancel(id RequestID) int {
	if id == InvalidID {
		n := 0
		p.reg.forEach(func(r *request) {
			if p.interrupt(r, StatusInterrupted) {
				n++
			}
		})
		if n > 0 {
			logging.Debug("Preparser: cancelled %d requests", n)
		}
		return n
	}

	r, ok := p.reg.lookup(id)
	if !ok || !p.interrupt(r, StatusInterrupted) {
		return 0
	}
	return 1
}

// Delete cancels every pending request, waits until all their callbacks
// have run, then stops the executors. The Preparser cannot be used
// afterwards. Delete must not be called from a callback.
func (p *Preparser) Delete() {
	p.deleteOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()

		n := p.Cancel(InvalidID)
		p.pending.Wait()

		for _, d := range domainOrder {
			if e, ok := p.execs[d]; ok {
				e.Close()
			}
		}
		logging.Info("Preparser deleted (%d requests cancelled)", n)
	})
}

// interrupt ends r early with reason (StatusInterrupted or StatusTimeout).
// It returns false if r was already terminal.
func (p *Preparser) interrupt(r *request, reason Status) bool {
	r.mu.Lock()
	if r.terminal {
		r.mu.Unlock()
		return false
	}
	status := r.interruptedStatus(reason)
	r.markTerminal()
	r.mu.Unlock()

	p.reg.remove(r.id)
	for _, sj := range r.subjobs {
		sj.exec.Cancel(sj.task)
	}

	label := "cancel"
	if reason == StatusTimeout {
		label = "timeout"
	}
	metrics.CancellationsTotal.WithLabelValues(label).Inc()
	logging.Debug("Preparser: request %d interrupted (%s)", r.id, reason)

	go p.finish(r, status)
	return true
}

func (p *Preparser) runner(r *request, sj *subjob) func(ctx context.Context) {
	return func(ctx context.Context) {
		defer r.it.Release()

		start := time.Now()
		out := p.execute(ctx, r, sj.domain)
		out.elapsed = time.Since(start)

		metrics.SubjobDuration.WithLabelValues(sj.domain.String()).Observe(out.elapsed.Seconds())
		metrics.SubjobsTotal.WithLabelValues(sj.domain.String(), out.status.String()).Inc()
		p.report(r, sj.domain, out)
	}
}

func (p *Preparser) dropper(r *request, sj *subjob) func() {
	return func() {
		metrics.SubjobsTotal.WithLabelValues(sj.domain.String(), StatusInterrupted.String()).Inc()
		r.it.Release()
	}
}

// execute runs the worker for one domain. A worker panic becomes a failed
// outcome.
func (p *Preparser) execute(ctx context.Context, r *request, d Type) (out outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			metrics.SubjobPanics.WithLabelValues(d.String()).Inc()
			logging.Error("Preparser: %s worker panicked on %s: %v", d, r.it, rec)
			out.discard()
			out = outcome{status: StatusError, err: fmt.Errorf("%s worker panic: %v", d, rec)}
		}
	}()

	var err error
	switch d {
	case TypeParse:
		out.parsed, err = p.cfg.Parser.Parse(ctx, r.it, r.opts)
	case TypeFetchMetaLocal:
		err = p.cfg.LocalFetcher.FetchMeta(ctx, r.it, r.opts)
	case TypeFetchMetaNet:
		err = p.cfg.NetworkFetcher.FetchMeta(ctx, r.it, r.opts)
	case TypeThumbnail:
		out.thumb, err = p.cfg.Thumbnailer.Thumbnail(ctx, r.it, r.seek)
		if err == nil && out.thumb == nil {
			err = ErrNoThumbnail
		}
	}

	switch {
	case err == nil:
		out.status = StatusSuccess
	case ctx.Err() != nil:
		out.status = StatusInterrupted
	default:
		out.status = StatusError
	}
	if err != nil {
		out.err = fmt.Errorf("%s: %w", d, err)
		out.thumb = nil
		out.discard()
		logging.Debug("Preparser: request %d %s failed: %v", r.id, d, err)
	}
	return out
}

// report records a subjob outcome and finishes the request when it was the
// last one outstanding.
func (p *Preparser) report(r *request, d Type, out outcome) {
	r.mu.Lock()
	if r.terminal {
		r.mu.Unlock()
		out.discard()
		return
	}

	r.record(d, out)
	if r.pending > 0 {
		r.mu.Unlock()
		return
	}

	status := r.completedStatus()
	r.markTerminal()
	r.mu.Unlock()

	p.reg.remove(r.id)
	p.finish(r, status)
}

// finish delivers the callbacks of a terminal request and drops its item
// reference. It runs exactly once per request, never under a lock.
func (p *Preparser) finish(r *request, status Status) {
	defer p.pending.Done()
	defer r.it.Release()

	elapsed := time.Since(r.submitted)
	metrics.RequestsPending.Dec()
	metrics.RequestsTotal.WithLabelValues(r.kind.String(), status.String()).Inc()
	metrics.RequestDuration.WithLabelValues(r.kind.String()).Observe(elapsed.Seconds())
	logging.Debug("Preparser: request %d ended: %s after %v", r.id, status, elapsed)

	if r.kind == kindThumbnail {
		var thumb = r.thumb
		if status != StatusSuccess {
			thumb = nil
		}
		r.thumbCbs.OnEnded(r.it, status, thumb, r.data)
		return
	}

	if r.subtree != nil {
		if status == StatusSuccess && r.parseCbs.OnSubtreeAdded != nil {
			r.parseCbs.OnSubtreeAdded(r.it, r.subtree, r.data)
		}
		r.subtree.Release()
	}
	if status == StatusSuccess && len(r.attachments) > 0 && r.parseCbs.OnAttachmentsAdded != nil {
		r.parseCbs.OnAttachmentsAdded(r.it, r.attachments, r.data)
	}

	res := ParseResult{Status: status, Domains: r.domainResults()}
	if status == StatusSuccess {
		if tr, ok := res.Domains[TypeThumbnail]; ok && tr.Status == StatusSuccess {
			res.Thumbnail = r.thumb
		}
	}
	r.parseCbs.OnEnded(r.it, res, r.data)
}
