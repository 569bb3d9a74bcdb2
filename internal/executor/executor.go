package executor

import (
	"container/list"
	"context"
	"errors"
	"sync"

	"media-preparser/internal/logging"
	"media-preparser/internal/metrics"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("executor closed")

type taskState int

const (
	stateNew taskState = iota
	stateQueued
	stateRunning
	stateDone
)

// Task is one unit of work for an Executor.
type Task struct {
	run    func(ctx context.Context)
	onDrop func()

	ctx    context.Context
	cancel context.CancelFunc

	// guarded by the owning executor's mutex
	state taskState
	elem  *list.Element
}

// NewTask creates a task. run receives a context that is cancelled when the
// task is cancelled, when parent is done, or when the executor closes.
// onDrop, if non-nil, is called instead of run when the task is removed
// from the queue before it started.
func NewTask(parent context.Context, run func(ctx context.Context), onDrop func()) *Task {
	ctx, cancel := context.WithCancel(parent)
	return &Task{run: run, onDrop: onDrop, ctx: ctx, cancel: cancel}
}

// Executor runs tasks in FIFO order on a fixed number of goroutines.
type Executor struct {
	name    string
	threads int

	mu      sync.Mutex
	cond    *sync.Cond
	queue   *list.List
	running map[*Task]struct{}
	closed  bool

	wg sync.WaitGroup
}

// New starts an executor with the given number of worker goroutines.
// Values below 1 mean 1.
func New(name string, threads int) *Executor {
	if threads < 1 {
		threads = 1
	}

	e := &Executor{
		name:    name,
		threads: threads,
		queue:   list.New(),
		running: make(map[*Task]struct{}),
	}
	e.cond = sync.NewCond(&e.mu)

	metrics.ExecutorWorkers.WithLabelValues(name).Set(float64(threads))
	logging.Debug("Executor %s: starting %d workers", name, threads)

	for i := 0; i < threads; i++ {
		e.wg.Add(1)
		go e.worker(i)
	}
	return e
}

// Name returns the executor's name.
func (e *Executor) Name() string { return e.name }

// Threads returns the number of worker goroutines.
func (e *Executor) Threads() int { return e.threads }

// Submit appends t to the queue.
func (e *Executor) Submit(t *Task) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if t.state != stateNew {
		return errors.New("executor: task submitted twice")
	}

	t.state = stateQueued
	t.elem = e.queue.PushBack(t)
	metrics.ExecutorQueueDepth.WithLabelValues(e.name).Set(float64(e.queue.Len()))
	e.cond.Signal()
	return nil
}

// Cancel removes t from the queue if it has not started, calls its drop
// hook, and returns true. A running task has its context cancelled and
// Cancel returns false; the task is expected to notice and return.
func (e *Executor) Cancel(t *Task) bool {
	e.mu.Lock()
	switch t.state {
	case stateQueued:
		e.queue.Remove(t.elem)
		t.elem = nil
		t.state = stateDone
		metrics.ExecutorQueueDepth.WithLabelValues(e.name).Set(float64(e.queue.Len()))
		e.mu.Unlock()

		e.drop(t)
		return true
	case stateRunning:
		e.mu.Unlock()
		t.cancel()
		return false
	default:
		e.mu.Unlock()
		return false
	}
}

func (e *Executor) drop(t *Task) {
	t.cancel()
	metrics.ExecutorTasksDropped.WithLabelValues(e.name).Inc()
	if t.onDrop != nil {
		t.onDrop()
	}
}

// Pending returns the number of queued tasks.
func (e *Executor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queue.Len()
}

// Running returns the number of tasks currently executing.
func (e *Executor) Running() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.running)
}

// Close stops accepting tasks, drops everything still queued, cancels the
// running tasks and waits for all workers to exit.
func (e *Executor) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		e.wg.Wait()
		return
	}
	e.closed = true

	var dropped []*Task
	for el := e.queue.Front(); el != nil; el = el.Next() {
		t := el.Value.(*Task)
		t.elem = nil
		t.state = stateDone
		dropped = append(dropped, t)
	}
	e.queue.Init()
	for t := range e.running {
		t.cancel()
	}
	e.cond.Broadcast()
	e.mu.Unlock()

	for _, t := range dropped {
		e.drop(t)
	}

	e.wg.Wait()
	metrics.ExecutorQueueDepth.WithLabelValues(e.name).Set(0)
	metrics.ExecutorActiveWorkers.WithLabelValues(e.name).Set(0)
	logging.Debug("Executor %s: stopped (%d queued tasks dropped)", e.name, len(dropped))
}

func (e *Executor) worker(id int) {
	defer e.wg.Done()

	for {
		t := e.next()
		if t == nil {
			logging.Debug("Executor %s: worker %d exiting", e.name, id)
			return
		}

		t.run(t.ctx)

		e.mu.Lock()
		delete(e.running, t)
		t.state = stateDone
		active := len(e.running)
		e.mu.Unlock()

		t.cancel()
		metrics.ExecutorActiveWorkers.WithLabelValues(e.name).Set(float64(active))
	}
}

// next blocks until a task is available or the executor is closed.
func (e *Executor) next() *Task {
	e.mu.Lock()
	defer e.mu.Unlock()

	for e.queue.Len() == 0 && !e.closed {
		e.cond.Wait()
	}
	if e.queue.Len() == 0 {
		return nil
	}

	t := e.queue.Remove(e.queue.Front()).(*Task)
	t.elem = nil
	t.state = stateRunning
	e.running[t] = struct{}{}

	metrics.ExecutorQueueDepth.WithLabelValues(e.name).Set(float64(e.queue.Len()))
	metrics.ExecutorActiveWorkers.WithLabelValues(e.name).Set(float64(len(e.running)))
	return t
}
