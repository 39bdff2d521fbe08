package cognitive

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/yaya56vv/cortex/internal/cache"
)

var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Schedule decides when the autonomous cycle ticks. Three forms are accepted:
// "every <duration>", "at <HH:MM>" (daily) and "cron <expression>".
type Schedule struct {
	kind  string
	every time.Duration
	hour  int
	min   int
	cron  cron.Schedule
	raw   string
}

// ParseSchedule parses a schedule expression.
func ParseSchedule(raw string) (Schedule, error) {
	s := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(s, "every "):
		d, err := time.ParseDuration(strings.TrimSpace(strings.TrimPrefix(s, "every ")))
		if err != nil {
			return Schedule{}, fmt.Errorf("cognitive: invalid interval in %q: %w", raw, err)
		}
		if d < time.Minute {
			return Schedule{}, fmt.Errorf("cognitive: interval %s is below the 1m floor", d)
		}
		return Schedule{kind: "every", every: d, raw: s}, nil

	case strings.HasPrefix(s, "at "):
		hour, min, err := parseClock(strings.TrimSpace(strings.TrimPrefix(s, "at ")))
		if err != nil {
			return Schedule{}, fmt.Errorf("cognitive: invalid time in %q: %w", raw, err)
		}
		return Schedule{kind: "at", hour: hour, min: min, raw: s}, nil

	case strings.HasPrefix(s, "cron "):
		expr := strings.TrimSpace(strings.TrimPrefix(s, "cron "))
		sched, err := cronParser.Parse(expr)
		if err != nil {
			return Schedule{}, fmt.Errorf("cognitive: invalid cron expression %q: %w", expr, err)
		}
		return Schedule{kind: "cron", cron: sched, raw: s}, nil
	}
	return Schedule{}, fmt.Errorf("cognitive: schedule %q must start with \"every\", \"at\" or \"cron\"", raw)
}

// Next returns the first tick strictly after now.
func (s Schedule) Next(now time.Time) time.Time {
	switch s.kind {
	case "every":
		return now.Add(s.every)
	case "at":
		next := time.Date(now.Year(), now.Month(), now.Day(), s.hour, s.min, 0, 0, now.Location())
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}
		return next
	case "cron":
		return s.cron.Next(now)
	}
	return time.Time{}
}

// String returns the expression the schedule was parsed from.
func (s Schedule) String() string {
	return s.raw
}

func parseClock(s string) (hour, min int, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("want HH:MM, got %q", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("bad hour %q", parts[0])
	}
	min, err = strconv.Atoi(parts[1])
	if err != nil || min < 0 || min > 59 {
		return 0, 0, fmt.Errorf("bad minute %q", parts[1])
	}
	return hour, min, nil
}

// activityWindow is how far back a session counts as recently active.
const activityWindow = 24 * time.Hour

// suggestionQuiet is how long a suggestion stays silenced once surfaced,
// so an unacted-on rule does not repeat every tick.
const suggestionQuiet = 6 * time.Hour

// Scheduler ticks the autonomous cycle over recently-active sessions and
// runs the retention sweep once per tick.
type Scheduler struct {
	engine    *Engine
	schedule  Schedule
	logger    *slog.Logger
	suggested *cache.Dedupe

	// now is swapped in tests for deterministic ticks.
	now func() time.Time
}

// NewScheduler builds a scheduler from a schedule expression.
func NewScheduler(engine *Engine, schedule string, logger *slog.Logger) (*Scheduler, error) {
	sched, err := ParseSchedule(schedule)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		engine:    engine,
		schedule:  sched,
		logger:    logger.With("component", "cognitive_scheduler"),
		suggested: cache.NewDedupe(256, suggestionQuiet),
		now:       time.Now,
	}, nil
}

// Run blocks until ctx is done, ticking per the schedule.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("cognitive scheduler started", "schedule", s.schedule.String())
	for {
		next := s.schedule.Next(s.now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("cognitive scheduler stopped")
			return
		case <-timer.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one full cycle pass: every recently-active session, then the
// retention sweep.
func (s *Scheduler) Tick(ctx context.Context) {
	cutoff := s.now().Add(-activityWindow)
	sessions, err := s.engine.ActiveSessions(ctx, cutoff)
	if err != nil {
		s.logger.Warn("listing active sessions failed", "error", err)
	}
	for _, id := range sessions {
		report := s.engine.RunAutonomousCycle(ctx, id)
		for _, msg := range report.Errors {
			s.logger.Warn("cycle step failed", "session_id", id, "error", msg)
		}
		for _, sug := range report.Suggestions {
			if s.suggested.Seen(id + ":" + sug.Type) {
				continue
			}
			s.logger.Info("housekeeping suggested",
				"session_id", id, "type", sug.Type, "reason", sug.Reason)
		}
		if ctx.Err() != nil {
			return
		}
	}
	if _, err := s.engine.Sweep(ctx); err != nil {
		s.logger.Warn("retention sweep failed", "error", err)
	}
}
