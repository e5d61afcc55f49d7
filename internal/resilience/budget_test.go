package resilience

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBudgetTrackerReserve(t *testing.T) {
	tracker := NewBudgetTracker(10, 100)

	require.NoError(t, tracker.Reserve("openai", 4))
	require.NoError(t, tracker.Reserve("openai", 4))

	err := tracker.Reserve("openai", 4)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBudgetExceeded))

	// A smaller call that still fits must pass.
	require.NoError(t, tracker.Reserve("openai", 2))

	// Other providers are unaffected.
	require.NoError(t, tracker.Reserve("anthropic", 9))
}

func TestBudgetTrackerMonthlyCeiling(t *testing.T) {
	tracker := NewBudgetTracker(0, 5)

	require.NoError(t, tracker.Reserve("gemini", 5))
	err := tracker.Reserve("gemini", 0.01)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBudgetExceeded))
}

func TestBudgetTrackerCommitAndRelease(t *testing.T) {
	tracker := NewBudgetTracker(10, 0)

	require.NoError(t, tracker.Reserve("openai", 6))
	// Actual cost came in lower than the estimate.
	tracker.Commit("openai", 6, 2)
	assert.InDelta(t, 2, tracker.Spent("openai"), 1e-9)

	require.NoError(t, tracker.Reserve("openai", 6))
	tracker.Release("openai", 6)
	assert.InDelta(t, 2, tracker.Spent("openai"), 1e-9)
}

func TestBudgetTrackerReleaseFreesAllowance(t *testing.T) {
	tracker := NewBudgetTracker(10, 0)

	// Reservation fills the ceiling; a failed call must hand it back.
	require.NoError(t, tracker.Reserve("openai", 10))
	require.Error(t, tracker.Reserve("openai", 1))

	tracker.Release("openai", 10)
	require.NoError(t, tracker.Reserve("openai", 10))
	assert.InDelta(t, 10, tracker.Spent("openai"), 1e-9)

	// Over-release never drives the ledger negative.
	tracker.Release("openai", 20)
	assert.InDelta(t, 0, tracker.Spent("openai"), 1e-9)
}

func TestBudgetTrackerConcurrentReserve(t *testing.T) {
	// Only ten of a hundred concurrent $1 reservations can fit a $10 ceiling.
	tracker := NewBudgetTracker(10, 0)

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tracker.Reserve("openai", 1) == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, granted)
	assert.InDelta(t, 10, tracker.Spent("openai"), 1e-9)
}

func TestBudgetTrackerDailyRollover(t *testing.T) {
	tracker := NewBudgetTracker(10, 100)

	current := time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return current }

	require.NoError(t, tracker.Reserve("openai", 10))
	require.Error(t, tracker.Reserve("openai", 1))

	// Next day: daily counter resets, monthly carries over.
	current = current.Add(2 * time.Hour)
	require.NoError(t, tracker.Reserve("openai", 10))

	daily, monthly := tracker.Remaining("openai")
	assert.InDelta(t, 0, daily, 1e-9)
	assert.InDelta(t, 80, monthly, 1e-9)
}
