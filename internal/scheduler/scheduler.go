// Package scheduler drives periodic pipeline runs in daemon mode.
// The default deployment is one-shot under an external cron; this
// exists for hosts where self-scheduling is preferred.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"inbox2itsm/internal/pipeline"
)

// Scheduler runs the pipeline every N minutes. At most one run is in
// flight at a time; a tick that arrives mid-run is skipped, matching
// the non-overlap assumption the pipeline is built on.
type Scheduler struct {
	cron      *cron.Cron
	entryID   cron.EntryID
	interval  int
	runner    *pipeline.Runner
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	isRunning bool
	inFlight  bool
	lastRun   time.Time
	last      pipeline.Report
	mu        sync.RWMutex
}

// New creates a scheduler around the pipeline runner
func New(intervalMinutes int, runner *pipeline.Runner) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		interval: intervalMinutes,
		runner:   runner,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	// Stop cancels the run context; a restart needs a fresh one.
	if s.ctx.Err() != nil {
		s.ctx, s.cancel = context.WithCancel(context.Background())
	}

	schedule := fmt.Sprintf("0 */%d * * * *", s.interval)

	entryID, err := s.cron.AddFunc(schedule, s.runPipeline)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.entryID = entryID
	s.cron.Start()
	s.isRunning = true

	logrus.Infof("Scheduler started with interval: %d minutes", s.interval)
	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	s.cancel()

	ctx := s.cron.Stop()

	select {
	case <-ctx.Done():
		logrus.Info("Scheduler stopped gracefully")
	case <-time.After(30 * time.Second):
		logrus.Warn("Scheduler stop timeout, forcing shutdown")
	}

	s.isRunning = false
	return nil
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// runPipeline executes one run, skipping the tick if one is already
// in flight.
func (s *Scheduler) runPipeline() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	if s.inFlight {
		s.mu.Unlock()
		logrus.Warn("Previous run still in flight, skipping this tick")
		return
	}
	s.inFlight = true
	s.mu.Unlock()

	s.wg.Add(1)
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
	}()

	report, err := s.runner.Run(s.ctx)
	if err != nil {
		logrus.Errorf("Pipeline run failed: %v", err)
	}

	s.mu.Lock()
	s.lastRun = time.Now()
	s.last = report
	s.mu.Unlock()
}

// RunOnce triggers one run immediately. It returns an error when a
// run is already in flight.
func (s *Scheduler) RunOnce() error {
	s.mu.RLock()
	busy := s.inFlight
	s.mu.RUnlock()

	if busy {
		return fmt.Errorf("a run is already in flight")
	}

	s.runPipeline()
	return nil
}

// LastReport returns the time and report of the most recent run
func (s *Scheduler) LastReport() (time.Time, pipeline.Report) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRun, s.last
}

// GetNextRun returns the time of the next scheduled run
func (s *Scheduler) GetNextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return time.Time{}
	}

	entry := s.cron.Entry(s.entryID)
	return entry.Next
}

// Wait waits for any in-flight run to finish
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
