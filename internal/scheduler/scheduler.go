// Package scheduler fires periodic sync runs from a cron expression.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler drives a job on a cron schedule. A tick that arrives while the
// previous run is still going is dropped, not queued.
type Scheduler struct {
	cron    *cron.Cron
	entry   cron.EntryID
	running atomic.Bool
	timeout time.Duration
	job     func(context.Context) error
}

// New parses a standard 5-field cron spec and binds the job to it. A
// timeout of zero leaves runs unbounded.
func New(spec string, timeout time.Duration, job func(context.Context) error) (*Scheduler, error) {
	s := &Scheduler{timeout: timeout, job: job, cron: cron.New()}

	id, err := s.cron.AddFunc(spec, s.fire)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	s.entry = id
	return s, nil
}

// Start begins firing on schedule in a background goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Printf("[INFO] sync schedule active, next run %s", s.Next().Format(time.RFC3339))
}

// Stop halts scheduling and waits for an in-flight run to finish, or for
// ctx to give up on it.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next reports when the schedule fires next. Zero before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

func (s *Scheduler) fire() {
	if !s.running.CompareAndSwap(false, true) {
		log.Printf("[WARN] previous sync run still in progress; skipping this tick")
		return
	}
	defer s.running.Store(false)

	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if err := s.job(ctx); err != nil {
		log.Printf("[ERROR] scheduled sync run: %v", err)
	}
}
