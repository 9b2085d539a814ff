// Package workpool runs named jobs on a fixed number of worker goroutines.
//
// The scheduler uses two shapes of pool. A persistent pool has no queue, so
// Submit blocks until a worker is free. An ephemeral pool is sized to hold a
// whole batch, so Submit never blocks, and it is thrown away with Terminate
// once the batch's results are collected or given up on.
package workpool

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"infoscreen/pkg/logx"
)

// Job is one unit of work. ctx carries the values of the context given to
// Submit but is never canceled: a job that has started runs to completion.
type Job func(ctx context.Context) error

// Handle tracks a submitted job.
type Handle struct {
	name string

	done     chan struct{}
	err      error
	started  time.Time
	finished time.Time
}

func (h *Handle) Name() string { return h.name }

func (h *Handle) Done() <-chan struct{} { return h.done }

// Ready reports whether the job has finished, without blocking.
func (h *Handle) Ready() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Err is the job's result. It is only meaningful once Ready is true.
func (h *Handle) Err() error {
	if !h.Ready() {
		return nil
	}
	return h.err
}

// Duration is how long the job ran. It may be read from onDone or once
// Ready; dropped jobs report zero.
func (h *Handle) Duration() time.Duration {
	if h.started.IsZero() || h.finished.IsZero() {
		return 0
	}
	return h.finished.Sub(h.started)
}

type task struct {
	h      *Handle
	ctx    context.Context
	job    Job
	onDone func(*Handle, error)
}

// Config sizes a pool.
type Config struct {
	Name    string
	Workers int
	// Queue is the number of jobs that may wait for a worker. 0 makes
	// Submit block until a worker picks the job up.
	Queue int
	Log   logx.Logger
}

type Pool struct {
	name string
	log  logx.Logger

	queue  chan task
	stopCh chan struct{}

	mu       sync.RWMutex
	closed   bool
	stopOnce sync.Once

	inFlight atomic.Int32
}

// New starts cfg.Workers goroutines.
func New(cfg Config) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	queue := cfg.Queue
	if queue < 0 {
		queue = 0
	}
	p := &Pool{
		name:   cfg.Name,
		log:    cfg.Log.With(logx.String("pool", cfg.Name)),
		queue:  make(chan task, queue),
		stopCh: make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) Name() string { return p.name }

// InFlight is the number of jobs currently running.
func (p *Pool) InFlight() int { return int(p.inFlight.Load()) }

// Submit hands job to the pool. onDone, if set, runs on the worker goroutine
// with the job's result, before the handle reports Ready.
//
// Submit blocks while every worker is busy and the queue is full.
func (p *Pool) Submit(ctx context.Context, name string, job Job, onDone func(*Handle, error)) (*Handle, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, ErrStopped
	}
	t := task{
		h:      &Handle{name: name, done: make(chan struct{})},
		ctx:    context.WithoutCancel(ctx),
		job:    job,
		onDone: onDone,
	}
	select {
	case <-p.stopCh:
		return nil, ErrStopped
	default:
	}
	select {
	case p.queue <- t:
		return t.h, nil
	case <-p.stopCh:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Terminate stops accepting work. Queued jobs complete with ErrDropped.
// Running jobs are neither interrupted nor waited for; they finish on their
// own and their handles become Ready then.
func (p *Pool) Terminate() {
	p.stopOnce.Do(func() {
		close(p.stopCh)

		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()

		for {
			select {
			case t := <-p.queue:
				p.drop(t)
			default:
				return
			}
		}
	})
}

func (p *Pool) worker() {
	for {
		select {
		case <-p.stopCh:
			return
		default:
		}
		select {
		case <-p.stopCh:
			return
		case t := <-p.queue:
			select {
			case <-p.stopCh:
				p.drop(t)
				return
			default:
			}
			p.run(t)
		}
	}
}

func (p *Pool) run(t task) {
	p.inFlight.Add(1)
	h := t.h
	h.started = time.Now()
	func() {
		defer func() {
			if r := recover(); r != nil {
				h.err = fmt.Errorf("panic: %v", r)
				p.log.Error("job panic", logx.String("job", h.name), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
			}
		}()
		h.err = t.job(t.ctx)
	}()
	h.finished = time.Now()
	p.inFlight.Add(-1)
	p.finish(t)
}

func (p *Pool) drop(t task) {
	t.h.err = ErrDropped
	p.finish(t)
}

func (p *Pool) finish(t task) {
	if t.onDone != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					p.log.Error("completion handler panic", logx.String("job", t.h.name), logx.Any("panic", r))
				}
			}()
			t.onDone(t.h, t.h.err)
		}()
	}
	close(t.h.done)
}
