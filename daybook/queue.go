/*
queue.go - Serialized "refresh for date X" requests

PURPOSE:
  RefreshForDate is synchronous and does not serialize concurrent calls for
  the same date; the sink's last-write-wins decides. Callers that need strict
  ordering (backdated tank readings, bulk imports, range refreshes) enqueue
  dates here instead. One worker goroutine runs them in FIFO order.

DESIGN:
  - Single background worker, started with Start(), stopped with Stop()
  - A date already waiting in the queue is not queued twice
  - A date currently being refreshed may be queued again: the second run
    sees whatever upstream state landed during the first
  - Failures are logged and counted, never retried

USAGE:
  q := NewRefreshQueue(engine, logger)
  q.Start()
  q.Enqueue(spirit.NewDate(2025, time.March, 3))
  q.Flush(ctx)
  q.Stop()
*/
package daybook

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/warp/spirit-ledger/spirit"
)

// Refresher is the part of Engine the queue depends on.
type Refresher interface {
	RefreshForDate(ctx context.Context, date spirit.Date) (spirit.DailyLedgerRow, error)
}

// QueueStats is a point-in-time view of the queue.
type QueueStats struct {
	Pending   int
	Processed int
	Failed    int
	LastError string
}

type RefreshQueue struct {
	Refresher Refresher
	Logger    zerolog.Logger

	mu        sync.Mutex
	cond      *sync.Cond
	pending   []spirit.Date
	queued    map[string]bool
	busy      bool
	running   bool
	processed int
	failed    int
	lastErr   string

	wake chan struct{}
	stop chan struct{}
	wg   sync.WaitGroup
}

func NewRefreshQueue(r Refresher, logger zerolog.Logger) *RefreshQueue {
	q := &RefreshQueue{
		Refresher: r,
		Logger:    logger,
		queued:    make(map[string]bool),
		wake:      make(chan struct{}, 1),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Start launches the worker. Calling Start twice is a no-op.
func (q *RefreshQueue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running {
		return
	}
	q.running = true
	q.stop = make(chan struct{})
	q.wg.Add(1)
	go q.run(q.stop)

	q.Logger.Info().Msg("refresh queue started")
}

// Stop halts the worker after the refresh in progress. Dates still waiting
// stay queued and run on the next Start.
func (q *RefreshQueue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	close(q.stop)
	q.mu.Unlock()

	q.wg.Wait()
	q.Logger.Info().Msg("refresh queue stopped")
}

// Enqueue adds dates in order. Zero dates are rejected before anything is queued.
func (q *RefreshQueue) Enqueue(dates ...spirit.Date) error {
	for _, d := range dates {
		if d.IsZero() {
			return fmt.Errorf("%w: enqueue", spirit.ErrInvalidDate)
		}
	}

	q.mu.Lock()
	for _, d := range dates {
		k := d.String()
		if q.queued[k] {
			continue
		}
		q.queued[k] = true
		q.pending = append(q.pending, d)
	}
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// Flush blocks until the queue is empty and idle, or ctx is done.
func (q *RefreshQueue) Flush(ctx context.Context) error {
	// Wake the waiter below when ctx ends so it can observe ctx.Err.
	release := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer release()

	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.pending) > 0 || q.busy {
		if err := ctx.Err(); err != nil {
			return err
		}
		q.cond.Wait()
	}
	return nil
}

func (q *RefreshQueue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{
		Pending:   len(q.pending),
		Processed: q.processed,
		Failed:    q.failed,
		LastError: q.lastErr,
	}
}

func (q *RefreshQueue) run(stop <-chan struct{}) {
	defer q.wg.Done()

	for {
		for q.next(stop) {
		}
		select {
		case <-q.wake:
		case <-stop:
			return
		}
	}
}

// next runs one queued date. It returns false when there is nothing to do
// or the queue is stopping.
func (q *RefreshQueue) next(stop <-chan struct{}) bool {
	select {
	case <-stop:
		return false
	default:
	}

	q.mu.Lock()
	if len(q.pending) == 0 {
		q.mu.Unlock()
		return false
	}
	date := q.pending[0]
	q.pending = q.pending[1:]
	delete(q.queued, date.String())
	q.busy = true
	q.mu.Unlock()

	row, err := q.Refresher.RefreshForDate(context.Background(), date)

	q.mu.Lock()
	q.busy = false
	if err != nil {
		q.failed++
		q.lastErr = err.Error()
		q.Logger.Error().Err(err).Str("date", date.String()).Msg("queued refresh failed")
	} else {
		q.processed++
		q.Logger.Debug().Str("date", date.String()).Str("status", string(row.Status)).Msg("queued refresh done")
	}
	q.cond.Broadcast()
	q.mu.Unlock()
	return true
}
