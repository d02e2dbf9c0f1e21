// Package asyncdriver runs another driver's calls on a dedicated worker
// goroutine. Callers receive result channels and may do unrelated work while
// the database I/O is in flight. Calls are served strictly in submission
// order, one at a time.
package asyncdriver

import (
	"context"
	"sync"

	"github.com/aqasim81/schemaledger/internal/driver"
	"github.com/aqasim81/schemaledger/internal/migration"
)

const defaultQueueSize = 16

// ExecResult is delivered once an Execute call finishes.
type ExecResult struct {
	Count int
	Err   error
}

// HistoryResult is delivered once a QueryHistory call finishes.
type HistoryResult struct {
	Records []migration.Applied
	Err     error
}

type job func()

// Driver is a driver.Driver whose calls run on a single worker goroutine.
type Driver struct {
	inner driver.Driver
	jobs  chan job

	mu      sync.RWMutex
	closed  bool
	stopped chan struct{}
}

// Option configures a Driver.
type Option func(*Driver)

// WithQueueSize sets how many calls may wait for the worker before
// submission blocks.
func WithQueueSize(n int) Option {
	return func(d *Driver) {
		if n >= 0 {
			d.jobs = make(chan job, n)
		}
	}
}

// New starts a worker serving inner. Close stops it.
func New(inner driver.Driver, opts ...Option) *Driver {
	d := &Driver{
		inner:   inner,
		jobs:    make(chan job, defaultQueueSize),
		stopped: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(d)
	}

	go d.loop()

	return d
}

func (d *Driver) loop() {
	defer close(d.stopped)

	for j := range d.jobs {
		j()
	}
}

// submit queues j unless the driver is closed.
func (d *Driver) submit(j job) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return false
	}

	d.jobs <- j

	return true
}

// ExecuteAsync queues batch and returns immediately. A call whose ctx is done
// by the time the worker reaches it is not started.
func (d *Driver) ExecuteAsync(ctx context.Context, batch []driver.Statement) <-chan ExecResult {
	out := make(chan ExecResult, 1)

	ok := d.submit(func() {
		if err := ctx.Err(); err != nil {
			out <- ExecResult{Err: err}
			return
		}

		n, err := d.inner.Execute(ctx, batch)
		out <- ExecResult{Count: n, Err: err}
	})
	if !ok {
		out <- ExecResult{Err: driver.ErrClosed}
	}

	return out
}

// QueryHistoryAsync queues a history read and returns immediately.
func (d *Driver) QueryHistoryAsync(ctx context.Context, query string) <-chan HistoryResult {
	out := make(chan HistoryResult, 1)

	ok := d.submit(func() {
		if err := ctx.Err(); err != nil {
			out <- HistoryResult{Err: err}
			return
		}

		records, err := d.inner.QueryHistory(ctx, query)
		out <- HistoryResult{Records: records, Err: err}
	})
	if !ok {
		out <- HistoryResult{Err: driver.ErrClosed}
	}

	return out
}

// Execute submits batch and waits for its outcome. It does not return early
// on cancellation: the inner transaction is bound to ctx, so the result is
// always a full commit or a full rollback and the caller learns which.
func (d *Driver) Execute(ctx context.Context, batch []driver.Statement) (int, error) {
	r := <-d.ExecuteAsync(ctx, batch)

	return r.Count, r.Err
}

// QueryHistory submits a history read and waits for it.
func (d *Driver) QueryHistory(ctx context.Context, query string) ([]migration.Applied, error) {
	r := <-d.QueryHistoryAsync(ctx, query)

	return r.Records, r.Err
}

// Close stops accepting calls, waits for queued calls to finish and closes the
// inner driver if it owns resources.
func (d *Driver) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}

	d.closed = true
	close(d.jobs)
	d.mu.Unlock()

	<-d.stopped

	if c, ok := d.inner.(driver.Closer); ok {
		return c.Close()
	}

	return nil
}
