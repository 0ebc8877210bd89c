// Package scheduler drives the two recurring jobs: the daily morning
// briefing and the insight poll cycle. Both run inside a single
// goroutine, so cycles never overlap.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// JobFunc is one scheduled unit of work.
type JobFunc func(ctx context.Context)

const jobTimeout = 5 * time.Minute

// Scheduler fires the briefing at a local wall-clock time and the
// insight poll at a fixed interval.
type Scheduler struct {
	briefingTime string // "HH:MM"
	pollInterval time.Duration
	loc          *time.Location
	briefing     JobFunc
	poll         JobFunc
	logger       *slog.Logger
}

// New creates a scheduler. briefingTime is "HH:MM" in loc; an empty
// string disables the briefing job. A zero pollInterval disables the
// poll job.
func New(briefingTime string, pollInterval time.Duration, loc *time.Location, briefing, poll JobFunc, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		briefingTime: briefingTime,
		pollInterval: pollInterval,
		loc:          loc,
		briefing:     briefing,
		poll:         poll,
		logger:       logger.With("component", "scheduler"),
	}
}

// Run blocks until ctx is cancelled, dispatching jobs serially.
func (s *Scheduler) Run(ctx context.Context) error {
	var pollCh <-chan time.Time
	if s.pollInterval > 0 {
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()
		pollCh = ticker.C
	}

	var briefingTimer *time.Timer
	var briefingCh <-chan time.Time
	if s.briefingTime != "" {
		next, err := nextWallClock(time.Now().In(s.loc), s.briefingTime)
		if err != nil {
			return fmt.Errorf("invalid briefing time %q: %w", s.briefingTime, err)
		}
		s.logger.Info("briefing scheduled", "at", next)
		briefingTimer = time.NewTimer(time.Until(next))
		defer briefingTimer.Stop()
		briefingCh = briefingTimer.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-pollCh:
			s.runJob(ctx, "insight_poll", s.poll)
		case <-briefingCh:
			s.runJob(ctx, "briefing", s.briefing)
			next, _ := nextWallClock(time.Now().In(s.loc), s.briefingTime)
			s.logger.Info("briefing scheduled", "at", next)
			briefingTimer.Reset(time.Until(next))
		}
	}
}

func (s *Scheduler) runJob(ctx context.Context, name string, job JobFunc) {
	if job == nil {
		return
	}
	jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	start := time.Now()
	job(jobCtx)
	s.logger.Debug("job completed", "job", name, "duration", time.Since(start))
}

// nextWallClock returns the first instant strictly after now whose local
// wall clock matches hhmm.
func nextWallClock(now time.Time, hhmm string) (time.Time, error) {
	hs, ms, ok := strings.Cut(hhmm, ":")
	if !ok {
		return time.Time{}, fmt.Errorf("want HH:MM")
	}
	hour, err := strconv.Atoi(hs)
	if err != nil || hour < 0 || hour > 23 {
		return time.Time{}, fmt.Errorf("bad hour %q", hs)
	}
	minute, err := strconv.Atoi(ms)
	if err != nil || minute < 0 || minute > 59 {
		return time.Time{}, fmt.Errorf("bad minute %q", ms)
	}

	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next, nil
}
