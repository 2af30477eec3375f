// Package usage tracks token counts and monetary cost across the agent tree.
package usage

// Record is token usage and cost from a single LLM response. It forms an
// additive monoid: Add is associative and commutative, and Record{} is the
// identity. Cost is a pointer because not every provider reports it; a nil
// Cost contributes nothing when added and leaves the result nil only if
// both operands are nil.
type Record struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
	CachedTokens     int64
	ReasoningTokens  int64
	Cost             *float64
}

// Add returns the field-wise sum of r and other.
func (r Record) Add(other Record) Record {
	sum := Record{
		PromptTokens:     r.PromptTokens + other.PromptTokens,
		CompletionTokens: r.CompletionTokens + other.CompletionTokens,
		TotalTokens:      r.TotalTokens + other.TotalTokens,
		CachedTokens:     r.CachedTokens + other.CachedTokens,
		ReasoningTokens:  r.ReasoningTokens + other.ReasoningTokens,
	}
	if r.Cost == nil && other.Cost == nil {
		return sum
	}
	var total float64
	if r.Cost != nil {
		total += *r.Cost
	}
	if other.Cost != nil {
		total += *other.Cost
	}
	sum.Cost = &total
	return sum
}

// CostOrZero returns the cost, or 0 if the provider never reported one.
func (r Record) CostOrZero() float64 {
	if r.Cost == nil {
		return 0
	}
	return *r.Cost
}
