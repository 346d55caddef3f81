// Package mock provides a test double for the tts.Provider interface.
//
// Use Provider to return controlled PCM segments and to verify the text,
// voice reference, and parameters each synthesis call receives.
//
// Example:
//
//	p := &mock.Provider{
//	    Segment: audio.Segment{Data: make([]int, 2400), SampleRate: 24000, Channels: 1},
//	}
//	seg, err := p.Synthesize(ctx, "Hello.", voice, tts.DefaultParams())
package mock

import (
	"context"
	"sync"

	"github.com/voxdoc/voxdoc/pkg/audio"
	"github.com/voxdoc/voxdoc/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	// Ctx is the context passed to Synthesize.
	Ctx context.Context
	// Text is the text passed to Synthesize.
	Text string
	// Voice is the VoiceReference passed to Synthesize.
	Voice tts.VoiceReference
	// Params is the SynthesisParams value passed to Synthesize.
	Params tts.SynthesisParams
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Segment is returned by Synthesize when SynthesizeFn is nil.
	Segment audio.Segment

	// SynthesizeErr, if non-nil, is returned by every Synthesize call
	// (unless SynthesizeFn is set).
	SynthesizeErr error

	// SynthesizeFn, if set, fully overrides Synthesize behaviour. Useful for
	// per-call failures keyed on the input text.
	SynthesizeFn func(ctx context.Context, text string, voice tts.VoiceReference, params tts.SynthesisParams) (audio.Segment, error)

	// PingErr is returned by Ping.
	PingErr error

	// --- Call records ---

	// SynthesizeCalls records every call to Synthesize in order.
	SynthesizeCalls []SynthesizeCall

	// PingCalls counts calls to Ping.
	PingCalls int
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.VoiceReference, params tts.SynthesisParams) (audio.Segment, error) {
	p.mu.Lock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Ctx: ctx, Text: text, Voice: voice, Params: params})
	fn := p.SynthesizeFn
	seg := p.Segment
	err := p.SynthesizeErr
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, text, voice, params)
	}
	if err != nil {
		return audio.Segment{}, err
	}
	return seg, nil
}

// Ping implements tts.Provider.
func (p *Provider) Ping(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.PingCalls++
	return p.PingErr
}

// Calls returns a copy of the recorded Synthesize calls.
func (p *Provider) Calls() []SynthesizeCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]SynthesizeCall, len(p.SynthesizeCalls))
	copy(out, p.SynthesizeCalls)
	return out
}
