package api_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/readiness-engine/api"
	"github.com/warp/readiness-engine/tracking"
	"github.com/warp/readiness-engine/tracking/store"
	"github.com/warp/readiness-engine/window"
)

// recordingNotifier captures dispatched reminders.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []tracking.PersonnelID
}

func (n *recordingNotifier) Notify(_ context.Context, d tracking.Decision) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, d.PersonnelID)
	return nil
}

func TestScheduler_RunOnce_DispatchesOnlyFiringDecisions(t *testing.T) {
	// GIVEN: One verified entity on a grid day, one completed entity
	// WHEN: A single scheduler pass runs
	// THEN: Exactly one reminder reaches the notifier
	tr := tracking.NewTracker(store.NewMemory(), tracking.DefaultConfig())
	ctx := context.Background()
	bd := window.NewDate(1990, time.July, 14)

	seed(t, tr, "P-1", bd)
	seed(t, tr, "P-2", bd)
	require.NoError(t, tr.Verify(ctx, 1001, "P-1", bd, frozenNow))
	require.NoError(t, tr.Verify(ctx, 1002, "P-2", bd, frozenNow))
	_, err := tr.Complete(ctx, "P-2", window.NewDate(2025, time.July, 20), false, frozenNow)
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	s := api.NewScheduler(tr, notifier, zerolog.Nop(), api.NewMetrics(prometheus.NewRegistry()))

	s.RunOnce(ctx, window.NewDate(2025, time.July, 24)) // day 10

	assert.Equal(t, []tracking.PersonnelID{"P-1"}, notifier.sent)
}

func TestScheduler_StartStop(t *testing.T) {
	// The background loop starts and shuts down cleanly without firing
	// before the configured hour.
	cfg := tracking.DefaultConfig()
	cfg.ReminderHour = 23
	tr := tracking.NewTracker(store.NewMemory(), cfg)

	notifier := &recordingNotifier{}
	s := api.NewScheduler(tr, notifier, zerolog.Nop(), api.NewMetrics(prometheus.NewRegistry()))
	s.PollInterval = 10 * time.Millisecond
	s.Clock = func() time.Time {
		return time.Date(2025, time.August, 1, 8, 0, 0, 0, time.UTC)
	}

	s.Start()
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	assert.Empty(t, notifier.sent)
}
