// Package synth converts cleaned text units into PCM segments using a TTS
// provider, normalising every segment to one uniform output format so the
// assembler never has to deal with mixed sample rates or channel layouts.
//
// Synthesis output stays in memory from the provider all the way to the
// assembler; nothing is written to disk per unit.
package synth

import (
	"context"
	"fmt"
	"time"

	"github.com/voxdoc/voxdoc/internal/cleaner"
	"github.com/voxdoc/voxdoc/internal/resilience"
	"github.com/voxdoc/voxdoc/pkg/audio"
	"github.com/voxdoc/voxdoc/pkg/provider/tts"
)

const (
	// DefaultSampleRate matches the Chatterbox model's native output rate,
	// so the common case needs no resampling.
	DefaultSampleRate = 24000

	// DefaultChannels is mono; narration has no stereo content.
	DefaultChannels = 1

	// speakingCharsPerSecond approximates narration pace (~150 words/min at
	// ~6 characters per word including the space). Used to size substituted
	// silence proportionally to the text it replaces.
	speakingCharsPerSecond = 15

	// minSubstituteDuration floors substituted silence so even a failed
	// one-word unit leaves an audible pause in the narration.
	minSubstituteDuration = 250 * time.Millisecond
)

// Option configures a Synthesizer during construction.
type Option func(*Synthesizer)

// WithOutputFormat overrides the uniform output format all segments are
// converted to. Defaults to 24 kHz mono.
func WithOutputFormat(sampleRate, channels int) Option {
	return func(s *Synthesizer) {
		s.sampleRate = sampleRate
		s.channels = channels
	}
}

// WithRetrier replaces the default retrier used around provider calls.
func WithRetrier(r *resilience.Retrier) Option {
	return func(s *Synthesizer) { s.retrier = r }
}

// WithBreaker installs a circuit breaker around provider calls. When nil
// (the default), calls go straight to the provider.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(s *Synthesizer) { s.breaker = cb }
}

// Synthesizer turns cleaned units into uniformly-formatted PCM segments.
// It is safe for concurrent use; the pipeline bounds in-flight calls against
// the shared model.
type Synthesizer struct {
	provider   tts.Provider
	voice      tts.VoiceReference
	params     tts.SynthesisParams
	sampleRate int
	channels   int
	retrier    *resilience.Retrier
	breaker    *resilience.CircuitBreaker
}

// New constructs a Synthesizer for one narration run. voice and params are
// read-only for the lifetime of the run; params are clamped here, once.
func New(provider tts.Provider, voice tts.VoiceReference, params tts.SynthesisParams, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		provider:   provider,
		voice:      voice,
		params:     params.Clamp(),
		sampleRate: DefaultSampleRate,
		channels:   DefaultChannels,
		retrier:    resilience.NewRetrier(resilience.RetryConfig{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// OutputFormat returns the uniform sample rate and channel count every
// returned segment is guaranteed to have.
func (s *Synthesizer) OutputFormat() (sampleRate, channels int) {
	return s.sampleRate, s.channels
}

// Synthesize converts unit into a PCM segment carrying the unit's sequence
// index. Transient provider failures are retried with backoff; a persistent
// failure is returned to the caller, which decides between silence
// substitution and aborting the run.
func (s *Synthesizer) Synthesize(ctx context.Context, unit cleaner.CleanedUnit) (audio.Segment, error) {
	var seg audio.Segment

	call := func(ctx context.Context) error {
		raw, err := s.provider.Synthesize(ctx, unit.Text, s.voice, s.params)
		if err != nil {
			return err
		}
		seg = raw
		return nil
	}

	do := call
	if s.breaker != nil {
		do = func(ctx context.Context) error {
			return s.breaker.Execute(func() error { return call(ctx) })
		}
	}

	if err := s.retrier.Do(ctx, do); err != nil {
		return audio.Segment{}, fmt.Errorf("synthesize unit %d: %w", unit.Index, err)
	}

	out, err := audio.Convert(seg, s.sampleRate, s.channels)
	if err != nil {
		return audio.Segment{}, fmt.Errorf("synthesize unit %d: normalise format: %w", unit.Index, err)
	}
	out.Index = unit.Index
	return out, nil
}

// Substitute returns a silence segment standing in for a unit that failed
// synthesis. Its duration is proportional to the text length at narration
// pace, so downstream timing stays close to what the real audio would have
// occupied.
func (s *Synthesizer) Substitute(unit cleaner.CleanedUnit) audio.Segment {
	d := time.Duration(len(unit.Text)) * time.Second / speakingCharsPerSecond
	if d < minSubstituteDuration {
		d = minSubstituteDuration
	}
	seg := audio.Silence(d, s.sampleRate, s.channels)
	seg.Index = unit.Index
	return seg
}
