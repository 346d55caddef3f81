package tts

// VoiceReference identifies the voice a narration is cloned from. Voice
// sample storage and metadata are owned by the voice manager collaborator;
// the pipeline treats this value as read-only.
type VoiceReference struct {
	// ID is the speaker identifier assigned by the voice manager.
	ID string

	// ReferenceAudioPath is the path to a short (5–30 s) reference clip the
	// TTS model conditions on. Empty means the model's built-in default
	// voice — the cloning path is skipped entirely.
	ReferenceAudioPath string
}

// IsDefault reports whether v requests the model's built-in voice.
func (v VoiceReference) IsDefault() bool {
	return v.ReferenceAudioPath == ""
}

// Default synthesis parameter values, matching the Chatterbox model defaults.
const (
	DefaultExaggeration = 0.6
	DefaultCFGWeight    = 0.5
	DefaultTemperature  = 0.8
)

// Parameter bounds. Values outside these ranges are clamped, not rejected.
const (
	MinExaggeration = 0.25
	MaxExaggeration = 2.0

	MinCFGWeight = 0.0
	MaxCFGWeight = 1.0

	MinTemperature = 0.05
	MaxTemperature = 5.0
)

// SynthesisParams are the per-run generation controls. The zero value is not
// useful; obtain a populated value from DefaultParams and override fields as
// needed, then call Clamp before use.
type SynthesisParams struct {
	// Exaggeration scales emotional intensity.
	Exaggeration float64

	// CFGWeight trades adherence to the reference voice against stability.
	CFGWeight float64

	// Temperature controls sampling randomness.
	Temperature float64
}

// DefaultParams returns the documented default synthesis parameters.
func DefaultParams() SynthesisParams {
	return SynthesisParams{
		Exaggeration: DefaultExaggeration,
		CFGWeight:    DefaultCFGWeight,
		Temperature:  DefaultTemperature,
	}
}

// Clamp returns a copy of p with every field forced into its documented
// range. A zero field is replaced by its default rather than clamped to the
// range minimum, so partially-populated params behave predictably.
func (p SynthesisParams) Clamp() SynthesisParams {
	out := p
	if out.Exaggeration == 0 {
		out.Exaggeration = DefaultExaggeration
	}
	if out.CFGWeight == 0 {
		out.CFGWeight = DefaultCFGWeight
	}
	if out.Temperature == 0 {
		out.Temperature = DefaultTemperature
	}
	out.Exaggeration = clamp(out.Exaggeration, MinExaggeration, MaxExaggeration)
	out.CFGWeight = clamp(out.CFGWeight, MinCFGWeight, MaxCFGWeight)
	out.Temperature = clamp(out.Temperature, MinTemperature, MaxTemperature)
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
