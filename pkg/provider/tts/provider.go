// Package tts defines the Provider interface for neural text-to-speech
// backends.
//
// A TTS provider wraps a local speech synthesis engine (e.g., a Chatterbox
// server) and converts one text unit at a time into an in-memory PCM buffer,
// optionally cloned from a short reference clip. Synthesis output is handed
// directly to the assembler; providers must never require callers to round-trip
// audio through durable storage.
//
// Implementations must be safe for concurrent use; the pipeline bounds how
// many synthesis calls are in flight against the shared model.
package tts

import (
	"context"

	"github.com/voxdoc/voxdoc/pkg/audio"
)

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize converts text into a PCM segment using the given voice
	// reference and generation parameters. Implementations clamp params to
	// their documented ranges rather than rejecting out-of-range values.
	//
	// The returned segment carries the backend's native sample rate and
	// channel count; format normalisation is the synthesiser stage's job.
	// The segment's Index field is left zero — the caller assigns it.
	//
	// Returns an error if synthesis fails or ctx is cancelled first.
	Synthesize(ctx context.Context, text string, voice VoiceReference, params SynthesisParams) (audio.Segment, error)

	// Ping probes the backend for availability. Used by readiness checks and
	// by the circuit breaker's recovery probes. Must respect ctx.
	Ping(ctx context.Context) error
}
