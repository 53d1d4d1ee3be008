package daybook_test

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/spirit-ledger/daybook"
	"github.com/warp/spirit-ledger/spirit"
	"github.com/warp/spirit-ledger/spirit/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// recorder captures the order dates are refreshed in.
type recorder struct {
	mu    sync.Mutex
	dates []string
	fail  map[string]error
	gate  chan struct{} // when set, each refresh waits for a token
}

func (r *recorder) RefreshForDate(_ context.Context, date spirit.Date) (spirit.DailyLedgerRow, error) {
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dates = append(r.dates, date.String())
	if err, ok := r.fail[date.String()]; ok {
		return spirit.DailyLedgerRow{}, err
	}
	return spirit.DailyLedgerRow{Date: date, Status: spirit.StatusOK}, nil
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.dates...)
}

func flush(t *testing.T, q *daybook.RefreshQueue) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Flush(ctx))
}

// =============================================================================
// QUEUE TESTS
// =============================================================================

func TestRefreshQueue_FIFO(t *testing.T) {
	rec := &recorder{}
	q := daybook.NewRefreshQueue(rec, zerolog.Nop())
	q.Start()
	defer q.Stop()

	require.NoError(t, q.Enqueue(march4, march2, march3))
	flush(t, q)

	assert.Equal(t, []string{"2025-03-04", "2025-03-02", "2025-03-03"}, rec.seen())
	stats := q.Stats()
	assert.Equal(t, 3, stats.Processed)
	assert.Equal(t, 0, stats.Pending)
}

func TestRefreshQueue_WaitingDateNotQueuedTwice(t *testing.T) {
	// GIVEN: A stopped queue
	// WHEN: The same date is enqueued twice
	// THEN: It waits once and runs once after Start

	rec := &recorder{}
	q := daybook.NewRefreshQueue(rec, zerolog.Nop())

	require.NoError(t, q.Enqueue(march3))
	require.NoError(t, q.Enqueue(march3, march4))
	assert.Equal(t, 2, q.Stats().Pending)

	q.Start()
	defer q.Stop()
	flush(t, q)

	assert.Equal(t, []string{"2025-03-03", "2025-03-04"}, rec.seen())
}

func TestRefreshQueue_InFlightDateCanBeRequeued(t *testing.T) {
	rec := &recorder{gate: make(chan struct{})}
	q := daybook.NewRefreshQueue(rec, zerolog.Nop())
	q.Start()
	defer q.Stop()

	require.NoError(t, q.Enqueue(march3))
	// Wait until the worker has taken march3 off the queue.
	require.Eventually(t, func() bool { return q.Stats().Pending == 0 }, time.Second, time.Millisecond)

	require.NoError(t, q.Enqueue(march3))
	assert.Equal(t, 1, q.Stats().Pending)

	rec.gate <- struct{}{}
	rec.gate <- struct{}{}
	flush(t, q)

	assert.Equal(t, []string{"2025-03-03", "2025-03-03"}, rec.seen())
}

func TestRefreshQueue_ZeroDate_NothingQueued(t *testing.T) {
	q := daybook.NewRefreshQueue(&recorder{}, zerolog.Nop())

	err := q.Enqueue(march3, spirit.Date{})

	assert.ErrorIs(t, err, spirit.ErrInvalidDate)
	assert.Equal(t, 0, q.Stats().Pending)
}

func TestRefreshQueue_FailureCountedNotRetried(t *testing.T) {
	boom := errors.New("store unavailable")
	rec := &recorder{fail: map[string]error{"2025-03-03": boom}}
	q := daybook.NewRefreshQueue(rec, zerolog.Nop())
	q.Start()
	defer q.Stop()

	require.NoError(t, q.Enqueue(march3, march4))
	flush(t, q)

	stats := q.Stats()
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, "store unavailable", stats.LastError)
	assert.Len(t, rec.seen(), 2)
}

func TestRefreshQueue_FlushHonoursContext(t *testing.T) {
	// GIVEN: Work waiting on a queue that was never started
	q := daybook.NewRefreshQueue(&recorder{}, zerolog.Nop())
	require.NoError(t, q.Enqueue(march3))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// THEN: Flush gives up when the context does
	assert.ErrorIs(t, q.Flush(ctx), context.DeadlineExceeded)
}

func TestRefreshQueue_AbandonedFlushLeavesNoWaiters(t *testing.T) {
	// GIVEN: Work waiting on a queue that was never started
	q := daybook.NewRefreshQueue(&recorder{}, zerolog.Nop())
	require.NoError(t, q.Enqueue(march3))
	before := runtime.NumGoroutine()

	// WHEN: Many flushes time out
	for i := 0; i < 50; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
		assert.ErrorIs(t, q.Flush(ctx), context.DeadlineExceeded)
		cancel()
	}

	// THEN: No goroutine is left behind waiting on the queue
	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before+2
	}, time.Second, 5*time.Millisecond)

	// AND: A cancelled flush still returns once work is done
	q.Start()
	defer q.Stop()
	require.NoError(t, q.Flush(context.Background()))
	assert.Equal(t, 0, q.Stats().Pending)
}

func TestRefreshQueue_StopKeepsPending_StartResumes(t *testing.T) {
	rec := &recorder{}
	q := daybook.NewRefreshQueue(rec, zerolog.Nop())
	q.Start()
	q.Start()
	q.Stop()
	q.Stop()

	require.NoError(t, q.Enqueue(march2))
	assert.Equal(t, 1, q.Stats().Pending)

	q.Start()
	defer q.Stop()
	flush(t, q)

	assert.Equal(t, []string{"2025-03-02"}, rec.seen())
}

func TestRefreshQueue_OverEngine(t *testing.T) {
	m := store.NewMemory()
	loadDayOne(t, m)
	q := daybook.NewRefreshQueue(newEngine(m), zerolog.Nop())
	q.Start()
	defer q.Stop()

	require.NoError(t, q.Enqueue(march3, march3, march4))
	flush(t, q)

	row, err := m.DailyLedger(context.Background(), march3)
	require.NoError(t, err)
	assertDec(t, "2.05", row.ChargeableExcessLoss)
	assert.Equal(t, 1, m.Upserts(march3))
	assert.Equal(t, 1, m.Upserts(march4))
}
