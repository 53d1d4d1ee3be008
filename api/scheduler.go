/*
scheduler.go - Automated day-close refresh scheduler

PURPOSE:
  Periodically queues a refresh of the most recent days so that the stored
  ledger catches up with tank readings and events written outside the API
  (bulk imports, direct database loads, late dips).

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each tick enqueues [today - Lookback, today] on the RefreshQueue
  - The queue coalesces a date that is already waiting, so overlapping
    ticks do not pile up work
  - The scheduler never refreshes directly; ordering stays with the queue

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Lookback:      Extra days behind today to refresh (default: 1)
  - Enabled:       Whether scheduler is active (default: true)

USAGE:
  scheduler := NewDayCloseScheduler(handler.Queue, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - daybook/queue.go: RefreshQueue
  - handlers.go: RefreshRange endpoint (manual range refresh)
*/
package api

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/warp/spirit-ledger/spirit"
)

// Enqueuer is the part of daybook.RefreshQueue the scheduler uses.
type Enqueuer interface {
	Enqueue(dates ...spirit.Date) error
}

// DayCloseScheduler queues recent days for refresh on a timer.
type DayCloseScheduler struct {
	Queue         Enqueuer
	Logger        zerolog.Logger
	CheckInterval time.Duration
	Lookback      int
	Enabled       bool

	// Now is the clock; tests replace it.
	Now func() time.Time

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewDayCloseScheduler creates a new scheduler.
func NewDayCloseScheduler(queue Enqueuer, logger zerolog.Logger) *DayCloseScheduler {
	return &DayCloseScheduler{
		Queue:         queue,
		Logger:        logger,
		CheckInterval: 1 * time.Hour,
		Lookback:      1,
		Enabled:       true,
		Now:           time.Now,
	}
}

// Start begins the scheduler.
func (s *DayCloseScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.Logger.Info().Msg("day-close scheduler disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan bool)
	s.wg.Add(1)

	go s.run()

	s.Logger.Info().Dur("interval", s.CheckInterval).Int("lookback_days", s.Lookback).Msg("day-close scheduler started")
}

// Stop stops the scheduler.
func (s *DayCloseScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		s.Logger.Info().Msg("day-close scheduler stopped")
	}
}

func (s *DayCloseScheduler) run() {
	defer s.wg.Done()

	// Run immediately on start
	s.Tick()

	for {
		select {
		case <-s.ticker.C:
			s.Tick()
		case <-s.stop:
			return
		}
	}
}

// Tick queues the days covered by one check and returns them.
func (s *DayCloseScheduler) Tick() []spirit.Date {
	today := spirit.DateOf(s.Now())
	lookback := s.Lookback
	if lookback < 0 {
		lookback = 0
	}

	days := spirit.DaysInRange(today.AddDays(-lookback), today)
	if err := s.Queue.Enqueue(days...); err != nil {
		s.Logger.Error().Err(err).Msg("day-close enqueue failed")
		return nil
	}

	s.Logger.Debug().
		Str("from", days[0].String()).
		Str("to", today.String()).
		Msg("day-close refresh queued")
	return days
}
