package audio_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/voxdoc/voxdoc/pkg/audio"
)

func TestSilence(t *testing.T) {
	t.Parallel()

	s := audio.Silence(500*time.Millisecond, 24000, 1)
	if s.Frames() != 12000 {
		t.Errorf("want 12000 frames, got %d", s.Frames())
	}
	if s.Duration() != 500*time.Millisecond {
		t.Errorf("want 500ms, got %v", s.Duration())
	}
	for i, v := range s.Data {
		if v != 0 {
			t.Fatalf("sample %d is %d, want 0", i, v)
		}
	}

	stereo := audio.Silence(time.Second, 8000, 2)
	if len(stereo.Data) != 16000 {
		t.Errorf("stereo second at 8 kHz: want 16000 samples, got %d", len(stereo.Data))
	}
}

func TestSegment_Duration(t *testing.T) {
	t.Parallel()

	s := audio.Segment{Data: make([]int, 48000), SampleRate: 24000, Channels: 2}
	if s.Frames() != 24000 {
		t.Errorf("want 24000 frames, got %d", s.Frames())
	}
	if s.Duration() != time.Second {
		t.Errorf("want 1s, got %v", s.Duration())
	}

	var zero audio.Segment
	if zero.Duration() != 0 || zero.Frames() != 0 {
		t.Errorf("zero segment should report zero frames and duration")
	}
}

func TestConvert_SameFormatIsNoop(t *testing.T) {
	t.Parallel()

	in := audio.Segment{Data: []int{1, 2, 3}, SampleRate: 24000, Channels: 1}
	out, err := audio.Convert(in, 24000, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if &out.Data[0] != &in.Data[0] {
		t.Error("same-format conversion should return the same backing slice")
	}
}

func TestConvert_MonoToStereo(t *testing.T) {
	t.Parallel()

	in := audio.Segment{Data: []int{10, -20, 30}, SampleRate: 24000, Channels: 1}
	out, err := audio.Convert(in, 24000, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []int{10, 10, -20, -20, 30, 30}
	if len(out.Data) != len(want) {
		t.Fatalf("want %d samples, got %d", len(want), len(out.Data))
	}
	for i := range want {
		if out.Data[i] != want[i] {
			t.Errorf("sample %d: want %d, got %d", i, want[i], out.Data[i])
		}
	}
}

func TestConvert_StereoToMono(t *testing.T) {
	t.Parallel()

	in := audio.Segment{Data: []int{10, 20, -30, -10}, SampleRate: 24000, Channels: 2}
	out, err := audio.Convert(in, 24000, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []int{15, -20}
	if len(out.Data) != len(want) {
		t.Fatalf("want %d samples, got %d", len(want), len(out.Data))
	}
	for i := range want {
		if out.Data[i] != want[i] {
			t.Errorf("frame %d: want %d, got %d", i, want[i], out.Data[i])
		}
	}
}

func TestConvert_Resample(t *testing.T) {
	t.Parallel()

	in := audio.Segment{Data: make([]int, 48000), SampleRate: 48000, Channels: 1}
	out, err := audio.Convert(in, 24000, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.SampleRate != 24000 {
		t.Errorf("want 24000 Hz, got %d", out.SampleRate)
	}
	if out.Frames() != 24000 {
		t.Errorf("halving the rate should halve the frames, got %d", out.Frames())
	}
	// Duration is preserved across resampling.
	if got, want := out.Duration(), in.Duration(); got != want {
		t.Errorf("duration changed: %v -> %v", want, got)
	}
}

func TestConvert_PreservesIndex(t *testing.T) {
	t.Parallel()

	in := audio.Segment{Index: 7, Data: []int{1, 2}, SampleRate: 48000, Channels: 1}
	out, err := audio.Convert(in, 24000, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Index != 7 {
		t.Errorf("index lost in conversion, got %d", out.Index)
	}
}

func TestConvert_InvalidTarget(t *testing.T) {
	t.Parallel()

	in := audio.Segment{Data: []int{1}, SampleRate: 24000, Channels: 1}
	if _, err := audio.Convert(in, 0, 1); err == nil {
		t.Error("want error for zero sample rate")
	}
	if _, err := audio.Convert(in, 24000, 0); err == nil {
		t.Error("want error for zero channels")
	}
}

func TestWAV_RoundTrip(t *testing.T) {
	t.Parallel()

	in := audio.Segment{
		Data:       []int{0, 1000, -1000, 32767, -32768, 42},
		SampleRate: 24000,
		Channels:   1,
	}

	path := filepath.Join(t.TempDir(), "out.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if err := audio.EncodeWAV(f, in); err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	out, err := audio.DecodeWAV(raw)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}

	if out.SampleRate != in.SampleRate || out.Channels != in.Channels {
		t.Errorf("format changed: %d Hz / %d ch", out.SampleRate, out.Channels)
	}
	if len(out.Data) != len(in.Data) {
		t.Fatalf("want %d samples, got %d", len(in.Data), len(out.Data))
	}
	for i := range in.Data {
		if out.Data[i] != in.Data[i] {
			t.Errorf("sample %d: want %d, got %d", i, in.Data[i], out.Data[i])
		}
	}
}

func TestDecodeWAV_Garbage(t *testing.T) {
	t.Parallel()

	if _, err := audio.DecodeWAV([]byte("not a wav file")); err == nil {
		t.Error("want error for non-WAV bytes")
	}
	if _, err := audio.DecodeWAV(nil); err == nil {
		t.Error("want error for empty input")
	}
}
