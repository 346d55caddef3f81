// Package llm defines the Provider interface for the local language model
// used by the text cleaning stage.
//
// A provider wraps a local inference backend (e.g., an Ollama daemon or a
// llama.cpp server) and exposes a uniform chat-completion interface so the
// cleaner never couples to any specific SDK. Replies are returned as
// structured messages with explicit roles; callers must never recover the
// assistant's reply by searching the raw transcript for a role name.
//
// Implementations must be safe for concurrent use. Concurrency toward the
// underlying model is bounded by the pipeline, not by the provider.
package llm

import "context"

// Message is a single turn in a chat conversation.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}

// Usage holds token accounting information returned by the backend. Counts
// are in the model's native token unit.
type Usage struct {
	// PromptTokens is the number of tokens consumed by the input.
	PromptTokens int

	// CompletionTokens is the number of tokens generated in the reply.
	CompletionTokens int

	// TotalTokens is PromptTokens + CompletionTokens.
	TotalTokens int
}

// CompletionRequest carries everything the model needs to produce a reply.
// A zero-value request is invalid; at minimum Messages must be non-empty.
type CompletionRequest struct {
	// SystemPrompt is a high-priority instruction injected before the
	// conversation. Providers that lack a dedicated system field prepend it
	// as a "system"-role message.
	SystemPrompt string

	// Messages is the ordered conversation. The last message is typically
	// the "user" turn that drives the reply.
	Messages []Message

	// Temperature controls output randomness in [0.0, 2.0]. Zero requests
	// the provider default.
	Temperature float64

	// MaxTokens caps the number of completion tokens the model may generate.
	// Zero means use the provider default.
	MaxTokens int
}

// CompletionResponse is the model's full (non-streaming) reply.
type CompletionResponse struct {
	// Content is the text of the assistant message — and only the assistant
	// message, extracted by the backend from its own turn structure.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any local LLM backend.
//
// Implementations must be safe for concurrent use and must propagate context
// cancellation promptly.
type Provider interface {
	// Complete sends req to the model and waits for the full reply. Returns
	// an error if the request fails or ctx is cancelled first.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// CountTokens estimates how many tokens messages would consume in the
	// model's context window. The result need not be exact but should not
	// undercount; it is used to trim retry budgets after a failed call.
	CountTokens(messages []Message) (int, error)
}
