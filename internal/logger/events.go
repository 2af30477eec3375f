// Package logger writes the append-only JSONL event stream that makes a
// recursive run's tree reconstructible after the fact. One JSON object per
// line, flushed synchronously at every event boundary.
package logger

import "github.com/windlass/recurse/internal/usage"

// EventType discriminates the five record shapes a Logger ever emits.
type EventType string

const (
	EventAgentStart     EventType = "agent_start"
	EventCodeGenerated  EventType = "code_generated"
	EventExecutionResult EventType = "execution_result"
	EventFinalResult    EventType = "final_result"
	EventAgentEnd       EventType = "agent_end"
)

// Event is the union of every field any record type may carry. Encoding
// omits whichever fields are empty/zero for a given EventType, so each
// record only carries the fields relevant to the event at hand.
type Event struct {
	Level        string    `json:"level"`
	Time         string    `json:"time"`
	Event        EventType `json:"event_type"`
	RunID        string    `json:"run_id"`
	ParentRunID  string    `json:"parent_run_id,omitempty"`
	Depth        int       `json:"depth"`

	// agent_start
	Query    string `json:"query,omitempty"`
	Model    string `json:"model,omitempty"`
	MaxSteps int    `json:"max_steps,omitempty"`

	// code_generated / execution_result share a step index. A pointer so
	// step 0 still serializes (indices are contiguous from 0) while
	// non-step events omit the field entirely.
	Step *int `json:"step,omitempty"`

	// code_generated / execution_result each carry the half of the
	// four-phase timestamp quad they know about.
	Timestamps *Timestamps `json:"timestamps,omitempty"`

	// code_generated
	Code      string  `json:"code,omitempty"`
	Reasoning string  `json:"reasoning,omitempty"`
	Usage     *Usage  `json:"usage,omitempty"`
	LLMMillis *int64  `json:"llm_duration_ms,omitempty"`

	// execution_result
	Output       string `json:"output,omitempty"`
	HasError     *bool  `json:"has_error,omitempty"`
	ExecMillis   *int64 `json:"exec_duration_ms,omitempty"`

	// final_result
	Result string `json:"result,omitempty"`

	// agent_end
	Status     string `json:"status,omitempty"`
	TotalSteps int    `json:"total_steps,omitempty"`
}

// Timestamps is the per-step phase quad: when the model call started and
// ended, and when the resulting code's execution started and ended. All
// four are ISO-8601 UTC with millisecond precision; a code_generated event
// carries only the first pair, an execution_result only the second. The
// run tree's timing invariants (child runs nesting inside their spawning
// step's execution window) are reconstructed from these.
type Timestamps struct {
	LLMCallStart   string `json:"llm_call_start,omitempty"`
	LLMCallEnd     string `json:"llm_call_end,omitempty"`
	ExecutionStart string `json:"execution_start,omitempty"`
	ExecutionEnd   string `json:"execution_end,omitempty"`
}

// Usage mirrors usage.Record for JSON encoding at the log boundary; it is a
// separate type (rather than reusing usage.Record directly) so the log
// schema is decoupled from the in-process accounting type.
type Usage struct {
	PromptTokens     int64    `json:"prompt_tokens"`
	CompletionTokens int64    `json:"completion_tokens"`
	TotalTokens      int64    `json:"total_tokens"`
	CachedTokens     int64    `json:"cached_tokens,omitempty"`
	ReasoningTokens  int64    `json:"reasoning_tokens,omitempty"`
	Cost             *float64 `json:"cost,omitempty"`
}

// FromRecord converts a usage.Record into its log-schema projection.
func FromRecord(r usage.Record) *Usage {
	return &Usage{
		PromptTokens:     r.PromptTokens,
		CompletionTokens: r.CompletionTokens,
		TotalTokens:      r.TotalTokens,
		CachedTokens:     r.CachedTokens,
		ReasoningTokens:  r.ReasoningTokens,
		Cost:             r.Cost,
	}
}
