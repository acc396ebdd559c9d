package etl

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Scheduler runs the full ETL batch once a day at a configured wall-clock
// time, in its own goroutine.
type Scheduler struct {
	proc *Processor
	log  *zap.Logger

	hour   int
	minute int

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	now func() time.Time
}

func NewScheduler(proc *Processor, hour, minute int, log *zap.Logger) *Scheduler {
	return &Scheduler{
		proc:   proc,
		log:    log,
		hour:   hour,
		minute: minute,
		now:    time.Now,
	}
}

// Start launches the scheduler loop. Calling Start on a running scheduler is
// a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.log.Warn("scheduler is already running")
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.wg.Add(1)
	go s.run(s.stopCh)

	s.log.Info("ETL scheduler started",
		zap.Int("hour", s.hour), zap.Int("minute", s.minute))
}

// Stop terminates the loop and waits for it to exit. A job already in flight
// runs to completion.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		s.log.Warn("scheduler is not running")
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info("ETL scheduler stopped")
}

// RunNow triggers the batch immediately, outside the schedule.
func (s *Scheduler) RunNow(ctx context.Context) error {
	s.log.Info("manual ETL job triggered")
	return s.proc.ProcessAll(ctx)
}

func (s *Scheduler) run(stopCh chan struct{}) {
	defer s.wg.Done()

	for {
		next := nextRun(s.now(), s.hour, s.minute)
		timer := time.NewTimer(next.Sub(s.now()))
		s.log.Debug("next scheduled ETL job", zap.Time("at", next))

		select {
		case <-timer.C:
			s.log.Info("running scheduled ETL job")
			if err := s.proc.ProcessAll(context.Background()); err != nil {
				s.log.Error("scheduled ETL job failed", zap.Error(err))
			}
		case <-stopCh:
			timer.Stop()
			return
		}
	}
}

// nextRun returns the next occurrence of hh:mm strictly after from.
func nextRun(from time.Time, hour, minute int) time.Time {
	next := time.Date(from.Year(), from.Month(), from.Day(), hour, minute, 0, 0, from.Location())
	if !next.After(from) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
