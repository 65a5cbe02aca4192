package jobs

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// LockFunc freezes assessments whose correction deadline expired and
// returns the ids it locked.
type LockFunc func(ctx context.Context, now time.Time) ([]string, error)

// Sweeper periodically locks expired assessments and notifies the
// approver about each one.
type Sweeper struct {
	cron       *cron.Cron
	schedule   string
	lock       LockFunc
	dispatcher Dispatcher
	clock      func() time.Time
}

// NewSweeper creates a sweeper on a cron schedule (standard 5-field
// spec, e.g. "*/10 * * * *").
func NewSweeper(schedule string, lock LockFunc, dispatcher Dispatcher) *Sweeper {
	return &Sweeper{
		cron:       cron.New(),
		schedule:   schedule,
		lock:       lock,
		dispatcher: dispatcher,
		clock:      time.Now,
	}
}

// Start registers the schedule and begins sweeping.
func (s *Sweeper) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		s.Sweep(ctx)
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep runs one pass: lock every expired assessment, then dispatch a
// deadline notification per locked assessment.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := s.clock().UTC()
	locked, err := s.lock(ctx, now)
	if err != nil {
		log.Printf("deadline sweep failed: %v", err)
		return
	}
	for _, assessmentID := range locked {
		err := s.dispatcher.Dispatch(ctx, Job{
			Name:         JobNotifyDeadline,
			AssessmentID: assessmentID,
		})
		if err != nil {
			log.Printf("dispatch deadline notification for %s: %v", assessmentID, err)
		}
	}
	if len(locked) > 0 {
		log.Printf("deadline sweep locked %d assessments", len(locked))
	}
}
