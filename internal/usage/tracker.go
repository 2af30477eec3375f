package usage

import (
	"fmt"
	"sync"
)

// Which identifies the budget dimension a BudgetExceeded error tripped on.
type Which string

const (
	WhichCost             Which = "cost"
	WhichPromptTokens     Which = "prompt_tokens"
	WhichCompletionTokens Which = "completion_tokens"
)

// BudgetExceeded is raised by Tracker.CheckBudgets once a ceiling is crossed.
type BudgetExceeded struct {
	Which   Which
	Current float64
	Limit   float64
}

func (e *BudgetExceeded) Error() string {
	return fmt.Sprintf("budget exceeded: %s at %.4f, limit %.4f", e.Which, e.Current, e.Limit)
}

// Budgets is the subset of config.Config the tracker checks against,
// defined locally rather than importing internal/config so this package
// stays a leaf.
type Budgets struct {
	MaxMoneySpent        float64
	MaxCompletionTokens  int64
	MaxPromptTokens      int64
}

// Tracker is the process-wide singleton that aggregates usage across every
// agent in the tree and enforces the global ceilings. All mutation is
// serialized under a mutex so it is safe to call from the goroutines spawned
// for concurrent llm_query fan-out.
type Tracker struct {
	mu    sync.Mutex
	total Record
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Add records usage from one LLM response into the running total.
func (t *Tracker) Add(u Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total = t.total.Add(u)
}

// Total returns a snapshot of the cumulative usage.
func (t *Tracker) Total() Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// TotalPromptTokens returns the cumulative prompt token count.
func (t *Tracker) TotalPromptTokens() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total.PromptTokens
}

// TotalCompletionTokens returns the cumulative completion token count.
func (t *Tracker) TotalCompletionTokens() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total.CompletionTokens
}

// TotalCost returns the cumulative cost. Providers that never report cost
// leave this at zero, making the cost ceiling advisory rather than fatal.
func (t *Tracker) TotalCost() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total.CostOrZero()
}

// CheckBudgets inspects the current total against b and returns the first
// BudgetExceeded violation found, or nil if every ceiling still holds.
// A zero ceiling means "unbounded" for that dimension.
func (t *Tracker) CheckBudgets(b Budgets) error {
	t.mu.Lock()
	total := t.total
	t.mu.Unlock()

	cost := total.CostOrZero()
	if b.MaxMoneySpent > 0 && cost > b.MaxMoneySpent {
		return &BudgetExceeded{Which: WhichCost, Current: cost, Limit: b.MaxMoneySpent}
	}
	if b.MaxPromptTokens > 0 && total.PromptTokens > b.MaxPromptTokens {
		return &BudgetExceeded{
			Which:   WhichPromptTokens,
			Current: float64(total.PromptTokens),
			Limit:   float64(b.MaxPromptTokens),
		}
	}
	if b.MaxCompletionTokens > 0 && total.CompletionTokens > b.MaxCompletionTokens {
		return &BudgetExceeded{
			Which:   WhichCompletionTokens,
			Current: float64(total.CompletionTokens),
			Limit:   float64(b.MaxCompletionTokens),
		}
	}
	return nil
}
