package queue

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/account-service/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
	taskTimeout    = 5 * time.Second
)

type limiterOp int

const (
	opRecordFailure limiterOp = iota
	opReset
)

func (op limiterOp) String() string {
	if op == opReset {
		return "reset"
	}
	return "record_failure"
}

type limiterTask struct {
	op   limiterOp
	name string
}

// Dispatcher fronts a ports.LoginLimiter so throttle writes happen off the
// login path. Writes are routed to a fixed set of workers by hashing the
// account name, which keeps them ordered per name. Allowed stays synchronous.
type Dispatcher struct {
	workers []chan limiterTask
	limiter ports.LoginLimiter
	log     zerolog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, limiter ports.LoginLimiter, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan limiterTask, numWorkers),
		limiter: limiter,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan limiterTask, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers exit once Close drains them.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Close stops accepting writes and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, ch := range d.workers {
		close(ch)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) Allowed(ctx context.Context, name string) (bool, error) {
	return d.limiter.Allowed(ctx, name)
}

// RecordFailure queues a failed attempt for name. It blocks only when the
// worker's buffer is full.
func (d *Dispatcher) RecordFailure(_ context.Context, name string) error {
	d.enqueue(limiterTask{op: opRecordFailure, name: name})
	return nil
}

// Reset queues clearing the failure count for name.
func (d *Dispatcher) Reset(_ context.Context, name string) error {
	d.enqueue(limiterTask{op: opReset, name: name})
	return nil
}

func (d *Dispatcher) enqueue(task limiterTask) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.Warn().Str("op", task.op.String()).Msg("throttle dispatcher closed, write dropped")
		return
	}
	d.workers[d.shardIndex(task.name)] <- task
}

// shardIndex maps an account name deterministically to a worker index.
func (d *Dispatcher) shardIndex(name string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan limiterTask) {
	defer d.wg.Done()
	for task := range ch {
		d.apply(ctx, id, task)
	}
}

func (d *Dispatcher) apply(ctx context.Context, id int, task limiterTask) {
	ctx, cancel := context.WithTimeout(ctx, taskTimeout)
	defer cancel()

	var err error
	switch task.op {
	case opRecordFailure:
		err = d.limiter.RecordFailure(ctx, task.name)
	case opReset:
		err = d.limiter.Reset(ctx, task.name)
	}
	if err != nil {
		d.log.Error().Err(err).
			Str("op", task.op.String()).
			Int("worker_id", id).
			Msg("throttle write failed")
	}
}
