// Package dispatcher runs the schedule loop and routes remote commands.
// Every cycle it re-reads the schedule file, fires whatever is due within
// the next cycle, and hands the activation to the actuator in its own
// goroutine so a long pump run never delays the lamp.
package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"autoplant/internal/logger"
	"autoplant/internal/model"
	"autoplant/internal/schedule"
	"autoplant/pkg/dedup"
)

// DefaultPollInterval matches cron granularity.
const DefaultPollInterval = time.Minute

// Activator is the device side of the dispatcher; *device.Actuator
// implements it.
type Activator interface {
	Activate(ctx context.Context, d model.Device, duration time.Duration, source model.ActivationSource) error
}

type Service struct {
	log          *logger.Logger
	actuator     Activator
	schedulePath string

	// PollInterval sets the loop cycle; tests shorten it.
	PollInterval time.Duration

	deduper *dedup.Deduper

	mu       sync.Mutex
	lastGood *schedule.Schedule
	fired    map[string]time.Time
	ctx      context.Context

	wg sync.WaitGroup
}

func New(log *logger.Logger, actuator Activator, schedulePath string) *Service {
	return &Service{
		log:          log,
		actuator:     actuator,
		schedulePath: schedulePath,
		PollInterval: DefaultPollInterval,
		deduper:      dedup.New(10*time.Minute, 20000),
		fired:        make(map[string]time.Time),
	}
}

// Run loads the schedule and polls until ctx is cancelled. The initial load
// must succeed; later reload failures fall back to the last good schedule.
func (s *Service) Run(ctx context.Context) error {
	// launch reads this from the command path concurrently
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	sched, lineErrs, err := schedule.Load(s.schedulePath)
	s.reportLineErrors(lineErrs)
	if err != nil {
		return fmt.Errorf("load schedule %s: %w", s.schedulePath, err)
	}
	s.setSchedule(sched)
	s.log.Infow("schedule loaded", "file", s.schedulePath, "entries", len(sched.Entries()))

	ticker := time.NewTicker(s.PollInterval)
	defer ticker.Stop()

	s.tick(time.Now())
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return ctx.Err()
		case now := <-ticker.C:
			s.reload()
			s.tick(now)
		}
	}
}

// reload refreshes the schedule from disk, keeping the previous one when the
// file went bad.
func (s *Service) reload() {
	sched, lineErrs, err := schedule.Load(s.schedulePath)
	s.reportLineErrors(lineErrs)
	if err != nil {
		reloadFailures.Inc()
		s.log.Errorw("schedule reload failed, keeping previous", "file", s.schedulePath, "err", err)
		return
	}
	s.setSchedule(sched)
}

// tick fires every job due within the next poll interval. A job instant is
// fired at most once even if two polls see it.
func (s *Service) tick(now time.Time) {
	sched := s.current()
	if sched == nil {
		return
	}
	for _, job := range sched.Due(now, s.PollInterval) {
		// keyed on what the entry does, not where it sits in the file:
		// a reload that renumbers lines must not refire a fired instant
		key := fmt.Sprintf("%s@%d", job.Entry, job.At.Unix())
		if !s.markFired(key, now) {
			continue
		}
		s.log.Infow("job due", "device", job.Entry.Device, "at", job.At, "duration", job.Entry.Duration)
		s.launch(job.Entry.Device, job.Entry.Duration, model.SourceSchedule)
	}
	s.pruneFired(now)
}

// launch runs one activation in the background.
func (s *Service) launch(d model.Device, duration time.Duration, source model.ActivationSource) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.actuator.Activate(ctx, d, duration, source); err != nil {
			s.log.Warnw("activation ended with error", "device", d, "source", source, "err", err)
			return
		}
		jobsFired.WithLabelValues(string(d), string(source)).Inc()
	}()
}

func (s *Service) setSchedule(sched *schedule.Schedule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastGood = sched
}

func (s *Service) current() *schedule.Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastGood
}

// markFired records a job instant, reporting whether it was new.
func (s *Service) markFired(key string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.fired[key]; ok {
		return false
	}
	s.fired[key] = now
	return true
}

func (s *Service) pruneFired(now time.Time) {
	cutoff := now.Add(-10 * s.PollInterval)
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, at := range s.fired {
		if at.Before(cutoff) {
			delete(s.fired, key)
		}
	}
}

func (s *Service) reportLineErrors(errs []schedule.LineError) {
	for _, e := range errs {
		s.log.Errorw("bad schedule line", "line", e.Line, "text", e.Text, "err", e.Err)
	}
}
