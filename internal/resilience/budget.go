// internal/resilience/budget.go
package resilience

import (
	"fmt"
	"sync"
	"time"
)

// BudgetTracker enforces daily and monthly spend ceilings per provider.
//
// Reserve is a single atomic check-then-commit so two concurrent calls can
// never both pass a check that only one could satisfy. Callers reserve an
// estimate before dispatch, then Commit the actual cost (or Release on
// failure) once the call resolves.
//
// Periods roll over lazily: the ledger compares its day/month keys against
// the clock on every access and resets stale counters.
type BudgetTracker struct {
	mu           sync.Mutex
	dailyLimit   float64
	monthlyLimit float64
	ledgers      map[string]*budgetLedger
	now          func() time.Time
}

type budgetLedger struct {
	dayKey     string
	monthKey   string
	daySpent   float64
	monthSpent float64
}

// NewBudgetTracker creates a tracker with the given per-provider ceilings.
// A limit of 0 means unlimited for that period.
func NewBudgetTracker(dailyLimit, monthlyLimit float64) *BudgetTracker {
	return &BudgetTracker{
		dailyLimit:   dailyLimit,
		monthlyLimit: monthlyLimit,
		ledgers:      make(map[string]*budgetLedger),
		now:          time.Now,
	}
}

// Reserve atomically checks the remaining allowance for provider and, if
// cost fits within both periods, commits it. Returns ErrBudgetExceeded
// (wrapped with the provider name) otherwise.
func (b *BudgetTracker) Reserve(provider string, cost float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	ledger := b.ledger(provider)

	if b.dailyLimit > 0 && ledger.daySpent+cost > b.dailyLimit {
		return fmt.Errorf("provider %s daily budget: %w", provider, ErrBudgetExceeded)
	}
	if b.monthlyLimit > 0 && ledger.monthSpent+cost > b.monthlyLimit {
		return fmt.Errorf("provider %s monthly budget: %w", provider, ErrBudgetExceeded)
	}

	ledger.daySpent += cost
	ledger.monthSpent += cost
	return nil
}

// Commit replaces a reservation with the actual cost of the call.
func (b *BudgetTracker) Commit(provider string, reserved, actual float64) {
	b.adjust(provider, actual-reserved)
}

// Release returns a reservation after a failed call that incurred no cost.
func (b *BudgetTracker) Release(provider string, reserved float64) {
	b.adjust(provider, -reserved)
}

// adjust applies a signed correction to both period counters. Floors at
// zero so a refund racing a rollover cannot leave a negative ledger.
func (b *BudgetTracker) adjust(provider string, delta float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ledger := b.ledger(provider)
	ledger.daySpent += delta
	if ledger.daySpent < 0 {
		ledger.daySpent = 0
	}
	ledger.monthSpent += delta
	if ledger.monthSpent < 0 {
		ledger.monthSpent = 0
	}
}

// Remaining reports the unspent daily and monthly allowance for provider.
// Unlimited periods report -1.
func (b *BudgetTracker) Remaining(provider string) (daily, monthly float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ledger := b.ledger(provider)

	daily, monthly = -1, -1
	if b.dailyLimit > 0 {
		daily = b.dailyLimit - ledger.daySpent
		if daily < 0 {
			daily = 0
		}
	}
	if b.monthlyLimit > 0 {
		monthly = b.monthlyLimit - ledger.monthSpent
		if monthly < 0 {
			monthly = 0
		}
	}
	return daily, monthly
}

// Spent reports the running daily spend for provider.
func (b *BudgetTracker) Spent(provider string) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ledger(provider).daySpent
}

// ledger returns the provider's ledger, rolling over stale periods.
// Caller must hold b.mu.
func (b *BudgetTracker) ledger(provider string) *budgetLedger {
	now := b.now()
	dayKey := now.Format("2006-01-02")
	monthKey := now.Format("2006-01")

	ledger, ok := b.ledgers[provider]
	if !ok {
		ledger = &budgetLedger{dayKey: dayKey, monthKey: monthKey}
		b.ledgers[provider] = ledger
		return ledger
	}

	if ledger.dayKey != dayKey {
		ledger.dayKey = dayKey
		ledger.daySpent = 0
	}
	if ledger.monthKey != monthKey {
		ledger.monthKey = monthKey
		ledger.monthSpent = 0
	}
	return ledger
}
