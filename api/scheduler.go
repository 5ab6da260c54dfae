/*
scheduler.go - Month-close rollup scheduler

PURPOSE:
  Periodically rolls up the most recently closed calendar month so the
  monthly commission table is populated without a manual call to
  POST /api/commissions/rollup.

DESIGN:
  - Runs a background goroutine with a configurable check interval
  - Each check targets the month before the current clock month
  - RollupMonth is idempotent, so repeated checks insert nothing new
  - The last run and its result are kept for inspection

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewRollupScheduler(handler.Engine, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RollupMonth endpoint (manual rollup)
  - commission/engine.go: RollupMonth
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/brokerage/brokerage"
	"github.com/warp/brokerage/commission"
)

// Roller is the part of commission.Engine the scheduler needs.
type Roller interface {
	RollupMonth(ctx context.Context, year int, month time.Month) (commission.RollupResult, error)
}

// RollupScheduler rolls up the previous month on a ticker.
type RollupScheduler struct {
	Engine        Roller
	CheckInterval time.Duration
	Enabled       bool

	logger *zap.Logger
	now    func() time.Time

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	lastRun    time.Time
	lastResult *commission.RollupResult
}

// NewRollupScheduler creates a scheduler with a one hour interval.
func NewRollupScheduler(engine Roller, logger *zap.Logger) *RollupScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RollupScheduler{
		Engine:        engine,
		CheckInterval: time.Hour,
		Enabled:       true,
		logger:        logger.Named("scheduler"),
		now:           time.Now,
	}
}

// Start begins the scheduler. It is a no-op when disabled or already running.
func (rs *RollupScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled || rs.CheckInterval <= 0 {
		rs.logger.Info("rollup scheduler disabled")
		return
	}
	if rs.ticker != nil {
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.stop = make(chan struct{})
	rs.wg.Add(1)

	go rs.run(rs.ticker, rs.stop)

	rs.logger.Info("rollup scheduler started", zap.Duration("interval", rs.CheckInterval))
}

// Stop stops the scheduler and waits for an in-flight check to finish.
func (rs *RollupScheduler) Stop() {
	rs.mu.Lock()
	if rs.ticker == nil {
		rs.mu.Unlock()
		return
	}
	rs.ticker.Stop()
	close(rs.stop)
	rs.ticker = nil
	rs.mu.Unlock()

	rs.wg.Wait()
	rs.logger.Info("rollup scheduler stopped")
}

func (rs *RollupScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer rs.wg.Done()

	// Run immediately on start
	rs.RunNow(context.Background())

	for {
		select {
		case <-ticker.C:
			rs.RunNow(context.Background())
		case <-stop:
			return
		}
	}
}

// RunNow rolls up the month before the clock's current month.
func (rs *RollupScheduler) RunNow(ctx context.Context) (commission.RollupResult, error) {
	now := rs.now()
	year, month := PreviousMonth(now)

	res, err := rs.Engine.RollupMonth(ctx, year, month)
	if err != nil {
		rs.logger.Error("scheduled rollup failed",
			zap.Int("year", year),
			zap.Int("month", int(month)),
			zap.Error(err),
		)
		return res, err
	}

	rs.mu.Lock()
	rs.lastRun = now
	rs.lastResult = &res
	rs.mu.Unlock()

	rs.logger.Info("scheduled rollup complete",
		zap.String("window", res.Window.String()),
		zap.Int("inserted", len(res.Inserted)),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

// LastRun returns the time of the last successful check and its result.
// The result is nil before the first run.
func (rs *RollupScheduler) LastRun() (time.Time, *commission.RollupResult) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.lastRun, rs.lastResult
}

// GetNextRunTime returns when the next check is due.
func (rs *RollupScheduler) GetNextRunTime() time.Time {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.lastRun.IsZero() {
		return rs.now()
	}
	return rs.lastRun.Add(rs.CheckInterval)
}

// PreviousMonth returns the calendar month before t's month.
func PreviousMonth(t time.Time) (int, time.Month) {
	first := brokerage.NewDate(t.Year(), t.Month(), 1).AddDate(0, -1, 0)
	return first.Year(), first.Month()
}
