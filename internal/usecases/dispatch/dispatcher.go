// Package dispatch routes opponent move computation onto category-specific
// bounded worker pools so a pile-up in one category cannot starve the rest.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/castlemind/chess-mcp-server/internal/domain"
	"github.com/castlemind/chess-mcp-server/internal/infrastructure/logging"
)

// ErrBackpressure is returned when a category's queue is full. Callers are
// expected to surface it as a retryable "temporarily unavailable" condition.
var ErrBackpressure = errors.New("opponent queue full")

// Job computes one move. Implementations should honor ctx cancellation.
type Job func(ctx context.Context) (string, error)

// Config sizes each category pool and the shared queue depth.
type Config struct {
	Workers    map[domain.OpponentCategory]int
	QueueDepth int
}

// DefaultConfig mirrors the resource profiles of the built-in categories.
func DefaultConfig() Config {
	return Config{
		Workers: map[domain.OpponentCategory]int{
			domain.CategoryHeavySearch:  8,
			domain.CategoryLearnedModel: 4,
			domain.CategoryHeuristic:    6,
		},
		QueueDepth: 32,
	}
}

type task struct {
	ctx context.Context
	job Job
	// result is buffered so a worker finishing after the submitter
	// detached never blocks and the stale value is simply dropped.
	result chan outcome
}

type outcome struct {
	move string
	err  error
}

type pool struct {
	queue    chan task
	inflight atomic.Int64
}

// Dispatcher owns one bounded worker pool per opponent category.
type Dispatcher struct {
	pools  map[domain.OpponentCategory]*pool
	wg     sync.WaitGroup
	cancel context.CancelFunc
	logger *logging.Logger
}

// New creates the dispatcher and starts its workers.
func New(cfg Config, logger *logging.Logger) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		pools:  make(map[domain.OpponentCategory]*pool),
		cancel: cancel,
		logger: logger,
	}
	for category, workers := range cfg.Workers {
		p := &pool{queue: make(chan task, cfg.QueueDepth)}
		d.pools[category] = p
		for i := 0; i < workers; i++ {
			d.wg.Add(1)
			go d.work(ctx, p)
		}
	}
	return d
}

func (d *Dispatcher) work(ctx context.Context, p *pool) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-p.queue:
			if t.ctx.Err() != nil {
				// Submitter already gave up while the task queued.
				t.result <- outcome{err: t.ctx.Err()}
				continue
			}
			p.inflight.Add(1)
			out := d.run(t)
			p.inflight.Add(-1)
			t.result <- out
		}
	}
}

// run executes one job. A panicking job becomes a failed outcome instead of
// taking the worker down with it.
func (d *Dispatcher) run(t task) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("opponent job panicked", logging.Fields{"panic": fmt.Sprint(r)})
			out = outcome{err: errors.Errorf("opponent job panicked: %v", r)}
		}
	}()
	move, err := t.job(t.ctx)
	return outcome{move: move, err: err}
}

// Submit queues a job on the category's pool and blocks until it completes
// or ctx expires. A full queue fails immediately with ErrBackpressure. When
// ctx expires first, Submit detaches: the job keeps its cancelled context
// and its eventual result is discarded.
func (d *Dispatcher) Submit(ctx context.Context, category domain.OpponentCategory, job Job) (string, error) {
	p, ok := d.pools[category]
	if !ok {
		return "", errors.Errorf("unknown opponent category %q", category)
	}

	t := task{ctx: ctx, job: job, result: make(chan outcome, 1)}
	select {
	case p.queue <- t:
	default:
		d.logger.Warn("opponent queue saturated", logging.Fields{"category": string(category)})
		return "", ErrBackpressure
	}

	select {
	case out := <-t.result:
		return out.move, out.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// InFlight reports the number of jobs currently executing in a category.
func (d *Dispatcher) InFlight(category domain.OpponentCategory) int {
	if p, ok := d.pools[category]; ok {
		return int(p.inflight.Load())
	}
	return 0
}

// QueueDepth reports the number of jobs waiting in a category's queue.
func (d *Dispatcher) QueueDepth(category domain.OpponentCategory) int {
	if p, ok := d.pools[category]; ok {
		return len(p.queue)
	}
	return 0
}

// Shutdown stops the workers and waits for them to exit.
func (d *Dispatcher) Shutdown() {
	d.cancel()
	d.wg.Wait()
}
