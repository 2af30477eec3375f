package agent

import "fmt"

// CallLimitExceeded aborts an agent that reached its step bound without
// ever reaching a terminal state.
type CallLimitExceeded struct {
	MaxCalls int
}

func (e *CallLimitExceeded) Error() string {
	return fmt.Sprintf("agent: reached max_calls_per_subagent (%d) without a final result", e.MaxCalls)
}

// MaxDepthExceeded is raised inside the caller's REPL when llm_query would
// spawn a child past cfg.max_depth. It is never returned from the loop
// itself — it surfaces as the error text inside the caller's captured
// step output, close to the offending call site.
type MaxDepthExceeded struct {
	Depth    int
	MaxDepth int
}

func (e *MaxDepthExceeded) Error() string {
	return fmt.Sprintf(
		"MAXIMUM DEPTH REACHED. You must solve this task on your own without calling llm_query (depth %d, max_depth %d).",
		e.Depth, e.MaxDepth,
	)
}

// NoCodeBlock is informational: it never aborts the loop. Loop never
// returns it; a turn without a code block appends the same reminder text
// (noCodeBlockReminder) to the transcript and the loop continues.
type NoCodeBlock struct{}

func (e *NoCodeBlock) Error() string {
	return noCodeBlockReminder
}
