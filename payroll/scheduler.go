/*
scheduler.go - Automated month-end payroll

PURPOSE:
  Periodically makes sure last month's payroll exists. Generation is
  idempotent, so every check simply runs the previous month again and
  already-settled stylists are skipped.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on Start
  - Acts as a system administrator principal

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (PAYROLL_AUTO_RUN)

USAGE:
  scheduler := NewScheduler(engine, clock, log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - engine.go: GenerateForMonth
*/
package payroll

import (
	"context"
	"sync"
	"time"

	"github.com/warp/salon-engine/logger"
	"github.com/warp/salon-engine/salon"
)

// SystemPrincipal is the caller recorded for scheduled runs.
var SystemPrincipal = salon.Principal{UserID: "payroll-scheduler", Role: salon.RoleAdmin}

type Scheduler struct {
	CheckInterval time.Duration
	Enabled       bool

	engine *Engine
	clock  salon.Clock
	log    *logger.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewScheduler(engine *Engine, clock salon.Clock, log *logger.Logger) *Scheduler {
	if clock == nil {
		clock = salon.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Scheduler{
		CheckInterval: time.Hour,
		Enabled:       true,
		engine:        engine,
		clock:         clock,
		log:           log,
	}
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.log.Info("payroll scheduler disabled")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.run(s.ticker, s.stop)

	s.log.Info("payroll scheduler started", "interval", s.CheckInterval.String())
}

// Stop stops the scheduler and waits for a running check to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.wg.Wait()
	s.ticker = nil
	s.log.Info("payroll scheduler stopped")
}

func (s *Scheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	s.RunNow(context.Background())
	for {
		select {
		case <-ticker.C:
			s.RunNow(context.Background())
		case <-stop:
			return
		}
	}
}

// RunNow generates payroll for the month before the current one.
func (s *Scheduler) RunNow(ctx context.Context) (*Result, error) {
	month := PreviousMonth(s.clock.Now())
	res, err := s.engine.GenerateForMonth(ctx, SystemPrincipal, month)
	if err != nil {
		s.log.Error("scheduled payroll failed", "month", month.Format("2006-01"), "error", err)
		return res, err
	}
	if res.Generated > 0 {
		s.log.Info("scheduled payroll generated", "month", month.Format("2006-01"), "generated", res.Generated)
	}
	return res, nil
}

// PreviousMonth returns the first day of the month before t's.
func PreviousMonth(t time.Time) time.Time {
	return salon.MonthOf(t).AddDate(0, -1, 0)
}
