// Package mock provides a test double for the llm.Provider interface.
//
// Use Provider to script completion replies and to verify the requests the
// cleaner builds. Responses are consumed in order; when the scripted list is
// exhausted the last entry repeats.
package mock

import (
	"context"
	"sync"

	"github.com/voxdoc/voxdoc/pkg/provider/llm"
)

// Compile-time interface assertion.
var _ llm.Provider = (*Provider)(nil)

// CompleteCall records a single invocation of Complete.
type CompleteCall struct {
	// Ctx is the context passed to Complete.
	Ctx context.Context
	// Req is the request passed to Complete.
	Req llm.CompletionRequest
}

// Provider is a mock implementation of llm.Provider.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Responses is the sequence of replies returned by successive Complete
	// calls. When exhausted, the final entry is repeated.
	Responses []*llm.CompletionResponse

	// Errs is the sequence of errors returned by successive Complete calls,
	// paired positionally with Responses. A nil entry means success.
	Errs []error

	// CountTokensFn, if set, overrides the default token estimate
	// (len(content)/4 per message).
	CountTokensFn func(messages []llm.Message) (int, error)

	// --- Call records ---

	// CompleteCalls records every call to Complete in order.
	CompleteCalls []CompleteCall
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.CompleteCalls)
	p.CompleteCalls = append(p.CompleteCalls, CompleteCall{Ctx: ctx, Req: req})

	if err := p.errAt(n); err != nil {
		return nil, err
	}
	return p.responseAt(n), nil
}

// CountTokens implements llm.Provider.
func (p *Provider) CountTokens(messages []llm.Message) (int, error) {
	p.mu.Lock()
	fn := p.CountTokensFn
	p.mu.Unlock()

	if fn != nil {
		return fn(messages)
	}
	total := 0
	for _, m := range messages {
		total += len(m.Content) / 4
	}
	return total, nil
}

// Calls returns a copy of the recorded Complete calls.
func (p *Provider) Calls() []CompleteCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]CompleteCall, len(p.CompleteCalls))
	copy(out, p.CompleteCalls)
	return out
}

func (p *Provider) errAt(i int) error {
	if len(p.Errs) == 0 {
		return nil
	}
	if i >= len(p.Errs) {
		return p.Errs[len(p.Errs)-1]
	}
	return p.Errs[i]
}

func (p *Provider) responseAt(i int) *llm.CompletionResponse {
	if len(p.Responses) == 0 {
		return &llm.CompletionResponse{}
	}
	if i >= len(p.Responses) {
		return p.Responses[len(p.Responses)-1]
	}
	return p.Responses[i]
}
