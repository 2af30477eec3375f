// Package llmclient wraps an OpenAI-compatible chat-completions endpoint
// (OpenRouter by default) and extracts the provider-extension fields the
// typed SDK does not model: per-call cost and reasoning-token counts.
package llmclient

import "fmt"

// Role is a chat message role.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the conversation sent to the model.
type Message struct {
	Role    Role
	Content string
}

// Result is everything Generate extracts from a single completion: the
// assistant's text, any reasoning trace the provider returned alongside it,
// and the usage for budget accounting.
type Result struct {
	Content   string
	Reasoning string
	Usage     Usage
}

// Usage is the token and cost breakdown read off a provider response,
// including the non-standard extension fields (CachedTokens,
// ReasoningTokens, Cost) that only surface in the raw JSON body, not the
// typed SDK struct.
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
	CachedTokens     int64
	ReasoningTokens  int64
	Cost             *float64
}

// TransportError wraps any failure from the underlying HTTP/SDK call:
// network errors, non-2xx responses, malformed JSON.
type TransportError struct {
	Model string
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("llmclient: transport error calling %s: %v", e.Model, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// EmptyResponse is returned when a completion has no usable content: no
// choices at all, or a choice whose content is empty even though a
// reasoning trace came back. A reasoning-only response is not usable code
// or a final answer, so it is treated the same as a fully empty one.
type EmptyResponse struct {
	Model string
}

func (e *EmptyResponse) Error() string {
	return fmt.Sprintf("llmclient: empty response from %s", e.Model)
}

// MissingAPIKey is returned by New when neither RLM_MODEL_API_KEY nor
// OPENROUTER_API_KEY is configured. Fatal at startup.
type MissingAPIKey struct{}

func (e *MissingAPIKey) Error() string {
	return "llmclient: no API key configured (set RLM_MODEL_API_KEY or OPENROUTER_API_KEY)"
}
