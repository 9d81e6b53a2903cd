// Package workerpool runs CPU-bound embedding work on a dynamically sized set
// of workers.
//
// The pool is an explicit state machine. A single manager goroutine owns the
// task queue and the worker roster; workers and callers talk to it only
// through channels, so no state is shared across goroutines. Each worker is
// idle or busy and executes at most one task at a time:
//
//	idle -> busy -> idle        on success or a plain error
//	busy -> removed             on crash (panic in the execute function)
//
// Scheduling on every dispatch attempt: hand the oldest queued task to an idle
// worker; otherwise grow the roster if below the maximum; otherwise leave the
// task queued until a worker frees up. Completion order across workers is
// unspecified — callers needing order must track it themselves (the embedder
// does, by sub-batch submission order).
//
// A crashed worker fails only its own in-flight task; the pool removes it and
// re-attempts dispatch, creating a replacement on demand. An idle reaper
// terminates workers unused past the idle timeout, never shrinking below the
// configured minimum.
package workerpool

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/koopa0/localrag/internal/errs"
	"github.com/koopa0/localrag/internal/log"
)

// ExecFunc performs the actual embedding computation for one task's texts.
// A panic inside ExecFunc is treated as a worker crash.
type ExecFunc func(ctx context.Context, texts []string) ([][]float32, error)

// Config sizes the pool.
type Config struct {
	// MaxWorkers caps the roster. 0 resolves to available parallelism minus
	// one (at least 1).
	MaxWorkers int

	// MinWorkers is the floor the idle reaper never shrinks below.
	MinWorkers int

	// IdleTimeout is how long a worker may sit idle before the reaper
	// terminates it. 0 disables reaping.
	IdleTimeout time.Duration
}

// Stats is a point-in-time snapshot of the pool.
type Stats struct {
	Workers    int
	Busy       int
	Queued     int
	MaxWorkers int
}

type task struct {
	id     int64
	texts  []string
	result chan taskResult
}

type taskResult struct {
	vectors [][]float32
	err     error
}

// trackedWorker lives in the manager's roster; nothing else touches it.
type trackedWorker struct {
	id       int
	tasks    chan *task
	current  *task // nil when idle
	lastUsed time.Time
}

type event struct {
	workerID int
	done     *task // completed task (success or plain error)
	crashed  *task // in-flight task of a crashed worker
	cause    any   // recovered panic value on crash
}

// Pool schedules embedding tasks over its workers.
type Pool struct {
	cfg    Config
	exec   ExecFunc
	logger log.Logger

	submitCh chan *task
	eventCh  chan event
	statsCh  chan chan Stats
	stopped  chan struct{}
	finished chan struct{}

	destroyOnce sync.Once
}

// New creates and starts a pool. exec must not be nil.
func New(cfg Config, exec ExecFunc, logger log.Logger) *Pool {
	if logger == nil {
		logger = log.NewNop()
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = runtime.NumCPU() - 1
		if cfg.MaxWorkers < 1 {
			cfg.MaxWorkers = 1
		}
	}
	if cfg.MinWorkers < 0 {
		cfg.MinWorkers = 0
	}
	if cfg.MinWorkers > cfg.MaxWorkers {
		cfg.MinWorkers = cfg.MaxWorkers
	}

	p := &Pool{
		cfg:      cfg,
		exec:     exec,
		logger:   logger,
		submitCh: make(chan *task),
		eventCh:  make(chan event),
		statsCh:  make(chan chan Stats),
		stopped:  make(chan struct{}),
		finished: make(chan struct{}),
	}
	go p.manage()
	return p
}

// RunEmbed embeds a single text.
func (p *Pool) RunEmbed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.RunEmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, errs.Embedding(fmt.Sprintf("expected 1 vector, got %d", len(vectors)), nil)
	}
	return vectors[0], nil
}

// RunEmbedBatch embeds a batch of texts as one task and returns the vectors
// in input order.
func (p *Pool) RunEmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	t := &task{texts: texts, result: make(chan taskResult, 1)}

	select {
	case p.submitCh <- t:
	case <-p.stopped:
		return nil, errs.Embedding("pool destroyed", nil)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-t.result:
		return res.vectors, res.err
	case <-ctx.Done():
		// The task keeps running; its buffered result channel is simply
		// abandoned. No mid-flight cancellation exists.
		return nil, ctx.Err()
	}
}

// Stats reports the current roster and queue state.
func (p *Pool) Stats() Stats {
	reply := make(chan Stats, 1)
	select {
	case p.statsCh <- reply:
		return <-reply
	case <-p.stopped:
		return Stats{MaxWorkers: p.cfg.MaxWorkers}
	}
}

// Destroy terminates all workers and stops the manager. In-flight tasks are
// not drained: their results are still delivered to waiting callers, but
// queued tasks are rejected. Safe to call more than once.
func (p *Pool) Destroy() {
	p.destroyOnce.Do(func() {
		close(p.stopped)
	})
	<-p.finished
}

// manage is the owning goroutine for all pool state.
func (p *Pool) manage() {
	defer close(p.finished)

	var (
		queue    []*task
		workers  = make(map[int]*trackedWorker)
		nextWork = 1
		nextTask = int64(1)
	)

	var reapCh <-chan time.Time
	if p.cfg.IdleTimeout > 0 {
		ticker := time.NewTicker(p.cfg.IdleTimeout / 2)
		defer ticker.Stop()
		reapCh = ticker.C
	}

	dispatch := func() {
		for len(queue) > 0 {
			w := idleWorker(workers)
			if w == nil {
				if len(workers) >= p.cfg.MaxWorkers {
					return
				}
				w = p.spawn(nextWork)
				workers[nextWork] = w
				nextWork++
			}

			t := queue[0]
			queue = queue[1:]
			w.current = t
			w.tasks <- t // buffered; worker is idle so this never blocks
		}
	}

	for {
		select {
		case t := <-p.submitCh:
			t.id = nextTask
			nextTask++
			queue = append(queue, t)
			dispatch()

		case ev := <-p.eventCh:
			w, ok := workers[ev.workerID]
			if !ok {
				break // late event from a worker removed at destroy
			}
			switch {
			case ev.done != nil:
				w.current = nil
				w.lastUsed = time.Now()
			case ev.crashed != nil:
				ev.crashed.result <- taskResult{err: errs.Embedding(
					fmt.Sprintf("worker %d crashed", ev.workerID),
					fmt.Errorf("%v", ev.cause))}
				close(w.tasks)
				delete(workers, ev.workerID)
				p.logger.Warn("worker crashed, removed from pool",
					"worker_id", ev.workerID, "cause", ev.cause)
			}
			dispatch()

		case <-reapCh:
			now := time.Now()
			for id, w := range workers {
				if len(workers) <= p.cfg.MinWorkers {
					break
				}
				if w.current == nil && now.Sub(w.lastUsed) >= p.cfg.IdleTimeout {
					close(w.tasks)
					delete(workers, id)
					p.logger.Debug("reaped idle worker", "worker_id", id)
				}
			}

		case reply := <-p.statsCh:
			busy := 0
			for _, w := range workers {
				if w.current != nil {
					busy++
				}
			}
			reply <- Stats{
				Workers:    len(workers),
				Busy:       busy,
				Queued:     len(queue),
				MaxWorkers: p.cfg.MaxWorkers,
			}

		case <-p.stopped:
			for _, t := range queue {
				t.result <- taskResult{err: errs.Embedding("pool destroyed", nil)}
			}
			for _, w := range workers {
				close(w.tasks)
			}
			return
		}
	}
}

// spawn starts a worker goroutine bound to its own task channel.
func (p *Pool) spawn(id int) *trackedWorker {
	w := &trackedWorker{
		id:       id,
		tasks:    make(chan *task, 1),
		lastUsed: time.Now(),
	}
	p.logger.Debug("worker started", "worker_id", id)

	go func() {
		for t := range w.tasks {
			p.run(id, t)
		}
	}()
	return w
}

// run executes one task with crash recovery. A panic reports a crash event
// and ends the worker's life; a plain error is a normal task failure.
func (p *Pool) run(id int, t *task) {
	crashed := false
	func() {
		defer func() {
			if r := recover(); r != nil {
				crashed = true
				select {
				case p.eventCh <- event{workerID: id, crashed: t, cause: r}:
				case <-p.stopped:
					t.result <- taskResult{err: errs.Embedding("worker crashed during shutdown", fmt.Errorf("%v", r))}
				}
			}
		}()

		vectors, err := p.exec(context.Background(), t.texts)
		if err != nil {
			t.result <- taskResult{err: err}
		} else {
			t.result <- taskResult{vectors: vectors}
		}
	}()

	if crashed {
		// One crash ends this worker; the manager already removed it.
		runtime.Goexit()
	}

	select {
	case p.eventCh <- event{workerID: id, done: t}:
	case <-p.stopped:
		runtime.Goexit()
	}
}

func idleWorker(workers map[int]*trackedWorker) *trackedWorker {
	for _, w := range workers {
		if w.current == nil {
			return w
		}
	}
	return nil
}
