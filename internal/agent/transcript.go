// Package agent implements the per-run step cycle: build prompt, call the
// model, extract a code block, execute it in the REPL, fold the result into
// the transcript, and repeat until a terminal condition is reached.
package agent

import (
	"fmt"

	"github.com/windlass/recurse/internal/llmclient"
)

// Transcript is the append-only ordered list of messages sent to the model
// on the next call. It grows by one assistant message and one user message
// per step; nothing is ever removed, only the output embedded in a user
// message is truncated before being appended.
type Transcript struct {
	messages []llmclient.Message
}

// NewTranscript seeds a transcript with a system prompt.
func NewTranscript(systemPrompt string) *Transcript {
	return &Transcript{messages: []llmclient.Message{{Role: llmclient.RoleSystem, Content: systemPrompt}}}
}

// Append adds a message to the end of the transcript.
func (t *Transcript) Append(role llmclient.Role, content string) {
	t.messages = append(t.messages, llmclient.Message{Role: role, Content: content})
}

// Messages returns the transcript in the shape Generate expects. The slice
// is copied so callers cannot mutate internal state through it.
func (t *Transcript) Messages() []llmclient.Message {
	out := make([]llmclient.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// TruncateText keeps the tail of output, bounded to truncateLen, with a
// marker naming what was cut. Truncation applies only when output is
// embedded back into the transcript for the model to read on the next
// call; the log always keeps the untruncated text, so this is never
// applied before logging.
func TruncateText(text string, truncateLen int) string {
	n := len(text)
	switch {
	case n == 0:
		return "[EMPTY OUTPUT]"
	case n > truncateLen:
		return fmt.Sprintf("[TRUNCATED: Last %d chars shown].. %s", truncateLen, text[n-truncateLen:])
	default:
		return fmt.Sprintf("[FULL OUTPUT SHOWN]... %s", text)
	}
}
