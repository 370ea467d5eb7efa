package service

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Scheduler fires billing cycles on a fixed cadence. At most one cycle runs
// at a time: a tick that arrives while a cycle is still in flight is skipped,
// so two overlapping cycles can never double-charge the same due set.
type Scheduler struct {
	cron     *cron.Cron
	schedule string
	cycle    func(context.Context) error
	log      *logrus.Logger
	running  atomic.Bool
}

// NewScheduler creates a scheduler that invokes cycle per the given cron
// schedule (standard 5-field spec or "@every <duration>").
func NewScheduler(schedule string, cycle func(context.Context) error, log *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithChain(cron.Recover(cron.PrintfLogger(log)))),
		schedule: schedule,
		cycle:    cycle,
		log:      log,
	}
}

// Start registers the billing job and starts ticking in the background.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.tick); err != nil {
		return fmt.Errorf("invalid billing schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()
	s.log.WithField("schedule", s.schedule).Info("billing scheduler started")
	return nil
}

// Stop halts ticking and blocks until any in-flight cycle finishes, so
// in-flight gateway calls complete rather than being cut off in an
// indeterminate charge state.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("billing scheduler stopped")
}

// tick runs one cycle unless the previous one is still in flight. A cycle
// failure is logged and does not stop the scheduler.
func (s *Scheduler) tick() {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn("previous billing cycle still running, skipping tick")
		return
	}
	defer s.running.Store(false)

	if err := s.cycle(context.Background()); err != nil {
		s.log.WithError(err).Error("billing cycle failed")
	}
}
