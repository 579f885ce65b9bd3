// Package scheduler fires backup cycles on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aelpxy/volsnap/internal/errkind"
	"github.com/juju/clock"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Accepts standard five field expressions, an optional leading seconds
// field, and descriptors such as @daily.
var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

type Job func(ctx context.Context) error

type Scheduler struct {
	expr     string
	schedule cron.Schedule
	clock    clock.Clock
	log      zerolog.Logger
	onNext   func(time.Time)
}

func ParseSchedule(expr string) (cron.Schedule, error) {
	sched, err := parser.Parse(strings.TrimSpace(expr))
	if err != nil {
		return nil, errkind.Wrap(errkind.Configuration, "parse cron", fmt.Errorf("invalid cron expression %q: %w", expr, err))
	}
	return sched, nil
}

func New(expr string, clk clock.Clock, log zerolog.Logger) (*Scheduler, error) {
	sched, err := ParseSchedule(expr)
	if err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.WallClock
	}

	return &Scheduler{
		expr:     expr,
		schedule: sched,
		clock:    clk,
		log:      log.With().Str("component", "scheduler").Str("cron", expr).Logger(),
	}, nil
}

// OnNext registers a callback invoked with every computed trigger time.
func (s *Scheduler) OnNext(fn func(time.Time)) {
	s.onNext = fn
}

// Next returns the first trigger strictly after t, or the zero time if the
// schedule never fires again.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// nextTrigger never returns an instant at or before last, so a clock that
// steps backwards cannot fire the same trigger twice.
func (s *Scheduler) nextTrigger(now, last time.Time) time.Time {
	next := s.schedule.Next(now)
	if next.IsZero() || last.IsZero() || next.After(last) {
		return next
	}
	s.log.Debug().Time("next", next).Time("last", last).Msg("trigger already fired, recomputing")
	return s.schedule.Next(last)
}

// Run blocks until ctx is done or job fails. A failing job ends the loop;
// there is no retry.
func (s *Scheduler) Run(ctx context.Context, job Job) error {
	var last time.Time
	for {
		now := s.clock.Now()
		next := s.nextTrigger(now, last)

		if next.IsZero() {
			s.log.Warn().Msg("schedule has no future occurrence, idling until stopped")
			<-ctx.Done()
			return ctx.Err()
		}

		s.log.Info().Time("next", next).Msg("next backup scheduled")
		if s.onNext != nil {
			s.onNext(next)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.clock.After(next.Sub(now)):
		}
		last = next

		if err := job(ctx); err != nil {
			return fmt.Errorf("scheduled backup at %s failed: %w", next.Format(time.RFC3339), err)
		}
	}
}
