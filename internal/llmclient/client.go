package llmclient

import (
	"context"
	"errors"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/tidwall/gjson"
)

// The system prompts are supplied by the caller (internal/agent owns the
// prompt text as systemPrompt and leafSystemPrompt); Client only needs to
// know which messages to send.

// Client is a thin wrapper over an OpenAI-compatible chat-completions
// endpoint. It exists to centralize the one non-standard step every call
// needs: recovering `cost` and reasoning-token counts from the raw response
// body, since neither field is part of the OpenAI schema the typed SDK
// models and different OpenRouter-compatible providers place them in
// slightly different spots.
type Client struct {
	api *openai.Client
}

// New constructs a Client. apiKey must be non-empty; baseURL defaults to
// OpenRouter when empty.
func New(apiKey, baseURL string) (*Client, error) {
	if apiKey == "" {
		return nil, &MissingAPIKey{}
	}
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithBaseURL(baseURL)}
	api := openai.NewClient(opts...)
	return &Client{api: &api}, nil
}

// Generate sends messages to model and returns the extracted content,
// reasoning, and usage. It never returns a partial Result on error.
func (c *Client) Generate(ctx context.Context, messages []Message, model string) (Result, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: toSDKMessages(messages),
	}

	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return Result{}, &TransportError{Model: model, Err: err}
	}
	if len(resp.Choices) == 0 {
		return Result{}, &EmptyResponse{Model: model}
	}

	choice := resp.Choices[0]
	content := choice.Message.Content
	reasoning := extractReasoningText(resp.RawJSON())

	if content == "" {
		return Result{}, &EmptyResponse{Model: model}
	}

	return Result{
		Content:   content,
		Reasoning: reasoning,
		Usage:     extractUsage(resp.RawJSON(), resp.Usage),
	}, nil
}

func toSDKMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// extractReasoningText pulls the provider's reasoning trace out of the raw
// response body. Different OpenRouter-compatible providers surface it under
// slightly different keys (message.reasoning being the common one); gjson
// lets us probe several without a corresponding field on the typed SDK
// struct.
func extractReasoningText(raw string) string {
	if raw == "" {
		return ""
	}
	for _, path := range []string{"choices.0.message.reasoning", "choices.0.message.reasoning_content"} {
		if v := gjson.Get(raw, path); v.Exists() {
			return v.String()
		}
	}
	return ""
}

// extractUsage builds a Usage from the typed SDK usage struct plus the
// non-standard fields (cached/reasoning token breakdowns, cost) only
// present in the raw JSON.
func extractUsage(raw string, sdk openai.CompletionUsage) Usage {
	u := Usage{
		PromptTokens:     sdk.PromptTokens,
		CompletionTokens: sdk.CompletionTokens,
		TotalTokens:      sdk.TotalTokens,
	}
	if raw == "" {
		return u
	}
	if v := gjson.Get(raw, "usage.prompt_tokens_details.cached_tokens"); v.Exists() {
		u.CachedTokens = v.Int()
	}
	if v := gjson.Get(raw, "usage.completion_tokens_details.reasoning_tokens"); v.Exists() {
		u.ReasoningTokens = v.Int()
	}
	if v := gjson.Get(raw, "usage.cost"); v.Exists() {
		cost := v.Float()
		u.Cost = &cost
	}
	return u
}

// IsMissingAPIKey reports whether err is a MissingAPIKey, unwrapping
// through any wrapping errors.
func IsMissingAPIKey(err error) bool {
	var m *MissingAPIKey
	return errors.As(err, &m)
}
