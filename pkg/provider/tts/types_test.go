package tts_test

import (
	"testing"

	"github.com/voxdoc/voxdoc/pkg/provider/tts"
)

func TestVoiceReference_IsDefault(t *testing.T) {
	t.Parallel()

	if !(tts.VoiceReference{}).IsDefault() {
		t.Error("empty reference should be the default voice")
	}
	if (tts.VoiceReference{ID: "narrator", ReferenceAudioPath: "/tmp/clip.wav"}).IsDefault() {
		t.Error("reference with a clip path is not the default voice")
	}
}

func TestSynthesisParams_Clamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   tts.SynthesisParams
		want tts.SynthesisParams
	}{
		{
			name: "zero value selects defaults",
			in:   tts.SynthesisParams{},
			want: tts.DefaultParams(),
		},
		{
			name: "in-range values are kept",
			in:   tts.SynthesisParams{Exaggeration: 1.2, CFGWeight: 0.3, Temperature: 1.5},
			want: tts.SynthesisParams{Exaggeration: 1.2, CFGWeight: 0.3, Temperature: 1.5},
		},
		{
			name: "values above range are clamped down",
			in:   tts.SynthesisParams{Exaggeration: 10, CFGWeight: 3, Temperature: 100},
			want: tts.SynthesisParams{Exaggeration: tts.MaxExaggeration, CFGWeight: tts.MaxCFGWeight, Temperature: tts.MaxTemperature},
		},
		{
			name: "values below range are clamped up",
			in:   tts.SynthesisParams{Exaggeration: 0.01, CFGWeight: -1, Temperature: 0.001},
			want: tts.SynthesisParams{Exaggeration: tts.MinExaggeration, CFGWeight: tts.MinCFGWeight, Temperature: tts.MinTemperature},
		},
		{
			name: "partially populated fills remaining defaults",
			in:   tts.SynthesisParams{Temperature: 2},
			want: tts.SynthesisParams{Exaggeration: tts.DefaultExaggeration, CFGWeight: tts.DefaultCFGWeight, Temperature: 2},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.in.Clamp(); got != tc.want {
				t.Errorf("Clamp(%+v) = %+v, want %+v", tc.in, got, tc.want)
			}
		})
	}
}
