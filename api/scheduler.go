/*
scheduler.go - Daily reminder scheduler

PURPOSE:
  Runs the daily tick once per day at the configured local hour,
  evaluates every tracked entity and dispatches reminders through a
  pluggable notifier. The tick itself is pure; this file owns the clock
  and the side effects.

DESIGN:
  - Background goroutine with a short poll interval
  - Fires at most once per local calendar day, at or after ReminderHour
  - Per-entity failures are logged and skipped; the run continues
  - Dispatch goes through the Notifier interface so a chat transport
    can replace the default log-only implementation

USAGE:
  s := NewScheduler(tracker, notifier, log, metrics)
  s.Start()
  // ... later
  s.Stop()

SEE ALSO:
  - tracking/tick.go: The pure decision pass
  - handlers.go: Manual tick endpoint for operators
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/warp/readiness-engine/tracking"
	"github.com/warp/readiness-engine/window"
)

// =============================================================================
// NOTIFIER
// =============================================================================

// Notifier delivers one reminder to a linked chat identity.
type Notifier interface {
	Notify(ctx context.Context, d tracking.Decision) error
}

// LogNotifier writes reminders to the structured log. Used when no chat
// transport is configured.
type LogNotifier struct {
	Log zerolog.Logger
}

func (n LogNotifier) Notify(ctx context.Context, d tracking.Decision) error {
	n.Log.Info().
		Str("personnel_id", string(d.PersonnelID)).
		Int64("telegram_id", int64(d.TelegramID)).
		Str("status", string(d.Status.Kind)).
		Msg("reminder due")
	return nil
}

// =============================================================================
// SCHEDULER
// =============================================================================

// Scheduler fires the daily tick at the configured hour.
type Scheduler struct {
	Tracker  *tracking.Tracker
	Notifier Notifier
	Log      zerolog.Logger
	Metrics  *Metrics

	// PollInterval controls how often the clock is checked. The tick
	// still fires at most once per day.
	PollInterval time.Duration

	// Clock is overridable in tests.
	Clock func() time.Time

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	// lastRun has its own lock: Stop holds mu while waiting for the run
	// goroutine, which must stay free to check the day gate.
	runMu   sync.Mutex
	lastRun window.Date
}

// NewScheduler creates a scheduler around the tracker's configuration.
func NewScheduler(t *tracking.Tracker, n Notifier, log zerolog.Logger, metrics *Metrics) *Scheduler {
	loc, err := t.Config.Location()
	if err != nil {
		loc = time.UTC
	}
	return &Scheduler{
		Tracker:      t,
		Notifier:     n,
		Log:          log,
		Metrics:      metrics,
		PollInterval: time.Minute,
		Clock:        func() time.Time { return time.Now().In(loc) },
		stop:         make(chan struct{}),
	}
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ticker = time.NewTicker(s.PollInterval)
	s.wg.Add(1)
	go s.run()

	s.Log.Info().
		Int("reminder_hour", s.Tracker.Config.ReminderHour).
		Str("timezone", s.Tracker.Config.Timezone).
		Msg("scheduler started")
}

// Stop stops the scheduler and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.Log.Info().Msg("scheduler stopped")
	}
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	s.maybeTick()

	for {
		select {
		case <-s.ticker.C:
			s.maybeTick()
		case <-s.stop:
			return
		}
	}
}

// maybeTick runs the daily pass if the local hour has been reached and
// today's run has not happened yet.
func (s *Scheduler) maybeTick() {
	now := s.Clock()
	today := window.DateOf(now)

	s.runMu.Lock()
	due := now.Hour() >= s.Tracker.Config.ReminderHour && !s.lastRun.Equal(today)
	if due {
		s.lastRun = today
	}
	s.runMu.Unlock()
	if !due {
		return
	}

	s.RunOnce(context.Background(), today)
}

// RunOnce executes one tick and dispatches reminders. Exposed so the
// manual tick path and tests share the dispatch logic.
func (s *Scheduler) RunOnce(ctx context.Context, asOf window.Date) {
	decisions, err := s.Tracker.RunDailyTick(ctx, asOf)
	if err != nil {
		s.Log.Error().Err(err).Msg("daily tick failed")
		return
	}
	if s.Metrics != nil {
		s.Metrics.TicksTotal.Inc()
	}

	var sent, failed, skipped int
	for _, d := range decisions {
		if d.Err != nil {
			s.Log.Warn().Err(d.Err).
				Str("personnel_id", string(d.PersonnelID)).
				Msg("tick decision failed")
			skipped++
			continue
		}
		if !d.ShouldRemind {
			continue
		}
		if err := s.Notifier.Notify(ctx, d); err != nil {
			s.Log.Warn().Err(err).
				Str("personnel_id", string(d.PersonnelID)).
				Msg("reminder dispatch failed")
			failed++
			continue
		}
		sent++
	}
	if s.Metrics != nil {
		s.Metrics.RemindersTotal.Add(float64(sent))
	}

	s.Log.Info().
		Str("as_of", asOf.String()).
		Int("entities", len(decisions)).
		Int("reminders_sent", sent).
		Int("dispatch_failures", failed).
		Int("decision_failures", skipped).
		Msg("daily tick complete")
}
