// Package worker drains the submission queue into the record store.
package worker

import (
	"context"
	"fmt"
	"hash/fnv"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/slashboard/internal/domain/model"
	"github.com/okian/slashboard/pkg/logger"
	"github.com/okian/slashboard/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	poolShutdownTimeout     = 30 * time.Second
	laneBuffer              = 16
)

// Item is what workers read off the queue.
type Item = model.Submission

// Upserter stores a submission under its record key.
type Upserter interface {
	Upsert(ctx context.Context, sub model.Submission) (model.ChallengeRecord, error)
}

// Queue defines how workers receive submissions.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Item
}

// Worker processes submissions until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled, Shutdown is called or
	// the queue is closed and drained.
	Run(ctx context.Context)

	// Shutdown stops the worker without draining the queue.
	Shutdown(ctx context.Context) error
}

// IngestWorker upserts every submission it receives.
type IngestWorker struct {
	queue    Queue
	store    Upserter
	name     string
	onStored func()

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewIngestWorker creates a new worker with configuration options.
func NewIngestWorker(queue Queue, store Upserter, opts ...Option) *IngestWorker {
	w := &IngestWorker{
		queue:    queue,
		store:    store,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *IngestWorker) Run(ctx context.Context) {
	defer close(w.done)

	items := w.queue.Dequeue(ctx)
	for {
		select {
		case <-w.shutdown:
			return
		default:
		}
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case sub, ok := <-items:
			if !ok {
				return
			}
			if err := w.process(ctx, sub); err != nil {
				w.logger.Error(ctx, "error processing submission", logger.Error(err))
			}
		}
	}
}

// Shutdown stops the worker loop.
func (w *IngestWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed when Run returns.
func (w *IngestWorker) Done() <-chan struct{} { return w.done }

// process stores a single submission. A failure affects only that submission.
func (w *IngestWorker) process(ctx context.Context, sub Item) error { //nolint:gocritic // hugeParam: Item is passed by value for channel semantics
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if _, err := w.store.Upsert(ctx, sub); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "upsert_error")
		return fmt.Errorf("store submission %s: %w", sub.Key(), err)
	}
	if w.onStored != nil {
		w.onStored()
	}
	return nil
}

// lane feeds a single worker.
type lane chan Item

func (l lane) Dequeue(context.Context) <-chan Item { return l }

// Pool manages multiple workers over one queue. A dispatcher routes every
// submission to a worker chosen by its record key, so submissions for one
// key are stored in the order they were accepted.
type Pool struct {
	workers []*IngestWorker
	lanes   []lane
	queue   Queue

	started    atomic.Bool
	stop       chan struct{}
	stopOnce   sync.Once
	dispatched chan struct{}

	processed atomic.Int64
	abandoned atomic.Int64

	logger logger.Logger
}

// NewPool creates a pool of workerCount workers. A non-positive count uses a
// multiple of the CPU count.
func NewPool(workerCount int, queue Queue, store Upserter) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	p := &Pool{
		workers:    make([]*IngestWorker, workerCount),
		lanes:      make([]lane, workerCount),
		queue:      queue,
		stop:       make(chan struct{}),
		dispatched: make(chan struct{}),
		logger:     logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		p.lanes[i] = make(lane, laneBuffer)
		p.workers[i] = NewIngestWorker(p.lanes[i], store,
			WithName("worker-"+strconv.Itoa(i)),
			withStoredHook(func() { p.processed.Add(1) }),
		)
	}
	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Processed returns how many submissions were stored since start.
func (p *Pool) Processed() int64 { return p.processed.Load() }

// Start starts the dispatcher and all workers. Only the first call has an
// effect.
func (p *Pool) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	go p.dispatch(ctx)
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// laneFor picks the worker responsible for a record key.
func (p *Pool) laneFor(s Item) int { //nolint:gocritic // hugeParam: Item is passed by value for channel semantics
	h := fnv.New32a()
	_, _ = h.Write([]byte(s.Key()))
	return int(h.Sum32() % uint32(len(p.lanes)))
}

func (p *Pool) dispatch(ctx context.Context) {
	defer close(p.dispatched)
	defer func() {
		for _, l := range p.lanes {
			close(l)
		}
	}()

	items := p.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case s, ok := <-items:
			if !ok {
				return
			}
			metrics.RecordQueueDequeue()
			select {
			case p.lanes[p.laneFor(s)] <- s:
			case <-ctx.Done():
				p.abandoned.Add(1)
				return
			case <-p.stop:
				p.abandoned.Add(1)
				return
			}
		}
	}
}

// halt stops the dispatcher and every worker without draining.
func (p *Pool) halt() {
	p.stopOnce.Do(func() { close(p.stop) })
	for _, w := range p.workers {
		w := w
		w.shutdownOnce.Do(func() { close(w.shutdown) })
	}
	if p.started.Load() {
		<-p.dispatched
	}
}

// pending counts submissions accepted but never handed to the store.
func (p *Pool) pending(ctx context.Context) int64 {
	n := p.abandoned.Load()
	for _, l := range p.lanes {
		n += int64(len(l))
	}
	if q, ok := p.queue.(interface{ Len(context.Context) int }); ok {
		n += int64(q.Len(ctx))
	}
	return n
}

// Shutdown closes the queue and waits for workers to drain it. Workers still
// running when ctx or the pool timeout expires are stopped without draining,
// and the submissions left behind are reported.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut int
	for i, w := range p.workers {
		select {
		case <-w.Done():
		case <-shutdownCtx.Done():
			timedOut++
			p.logger.Warn(ctx, "worker drain timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerCount(0)
	if timedOut == 0 {
		return nil
	}

	p.halt()
	lost := p.pending(ctx)
	p.logger.Warn(ctx, "submissions abandoned at shutdown", logger.Int64("count", lost))
	return fmt.Errorf("%d workers did not drain, %d submissions abandoned: %w", timedOut, lost, shutdownCtx.Err())
}
