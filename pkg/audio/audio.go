// Package audio provides the in-memory PCM representation shared by the
// synthesis and assembly stages, together with the small set of signal
// operations the pipeline needs: silence generation, sample-rate conversion,
// and channel-layout conversion.
//
// All audio flowing through the pipeline is 16-bit signed PCM held as int
// samples, interleaved when multi-channel. Segments are plain values; none of
// the functions in this package mutate their inputs.
package audio

import (
	"fmt"
	"time"
)

// BitDepth is the PCM bit depth used throughout the pipeline. The synthesis
// backends emit 16-bit signed samples and the final WAV is written at the
// same depth.
const BitDepth = 16

// Segment is one contiguous run of PCM audio, typically the synthesis output
// for a single text unit. Samples are interleaved across channels.
type Segment struct {
	// Index is the 0-based sequence index of the text unit this segment was
	// synthesised from. It defines assembly order.
	Index int

	// Data holds interleaved 16-bit signed samples, one int per sample.
	Data []int

	// SampleRate in Hz.
	SampleRate int

	// Channels is the number of interleaved channels (1 = mono, 2 = stereo).
	Channels int
}

// Frames returns the number of sample frames (samples per channel).
func (s Segment) Frames() int {
	if s.Channels == 0 {
		return 0
	}
	return len(s.Data) / s.Channels
}

// Duration returns the playback duration of the segment.
func (s Segment) Duration() time.Duration {
	if s.SampleRate == 0 || s.Channels == 0 {
		return 0
	}
	return time.Duration(s.Frames()) * time.Second / time.Duration(s.SampleRate)
}

// Silence returns a segment of silence with the given duration and format.
// The duration is rounded down to a whole number of sample frames.
func Silence(d time.Duration, sampleRate, channels int) Segment {
	frames := int(d * time.Duration(sampleRate) / time.Second)
	if frames < 0 {
		frames = 0
	}
	return Segment{
		Data:       make([]int, frames*channels),
		SampleRate: sampleRate,
		Channels:   channels,
	}
}

// Convert returns a copy of s converted to the target sample rate and channel
// count. Channel conversion happens first (cheap), then resampling. A segment
// already in the target format is returned unchanged (same backing slice).
func Convert(s Segment, sampleRate, channels int) (Segment, error) {
	if sampleRate <= 0 || channels <= 0 {
		return Segment{}, fmt.Errorf("audio: invalid target format %d Hz / %d ch", sampleRate, channels)
	}
	if s.SampleRate == sampleRate && s.Channels == channels {
		return s, nil
	}

	out := s
	switch {
	case s.Channels == channels:
		// nothing to do
	case s.Channels == 1 && channels == 2:
		out = upmixMonoToStereo(out)
	case s.Channels == 2 && channels == 1:
		out = downmixStereoToMono(out)
	default:
		return Segment{}, fmt.Errorf("audio: unsupported channel conversion %d -> %d", s.Channels, channels)
	}

	if out.SampleRate != sampleRate {
		out = resample(out, sampleRate)
	}
	return out, nil
}

// upmixMonoToStereo duplicates each mono sample into both stereo channels.
func upmixMonoToStereo(s Segment) Segment {
	data := make([]int, len(s.Data)*2)
	for i, v := range s.Data {
		data[2*i] = v
		data[2*i+1] = v
	}
	return Segment{Index: s.Index, Data: data, SampleRate: s.SampleRate, Channels: 2}
}

// downmixStereoToMono averages each stereo frame into a single sample.
func downmixStereoToMono(s Segment) Segment {
	frames := len(s.Data) / 2
	data := make([]int, frames)
	for i := 0; i < frames; i++ {
		data[i] = (s.Data[2*i] + s.Data[2*i+1]) / 2
	}
	return Segment{Index: s.Index, Data: data, SampleRate: s.SampleRate, Channels: 1}
}

// resample converts s to the target rate using linear interpolation. Narration
// speech tolerates linear resampling well; a windowed-sinc kernel is not worth
// the dependency here.
func resample(s Segment, targetRate int) Segment {
	srcFrames := s.Frames()
	if srcFrames == 0 {
		return Segment{Index: s.Index, SampleRate: targetRate, Channels: s.Channels, Data: []int{}}
	}

	dstFrames := int(int64(srcFrames) * int64(targetRate) / int64(s.SampleRate))
	if dstFrames < 1 {
		dstFrames = 1
	}
	data := make([]int, dstFrames*s.Channels)

	ratio := float64(s.SampleRate) / float64(targetRate)
	for f := 0; f < dstFrames; f++ {
		srcPos := float64(f) * ratio
		i0 := int(srcPos)
		if i0 >= srcFrames-1 {
			i0 = srcFrames - 1
		}
		i1 := i0 + 1
		if i1 >= srcFrames {
			i1 = i0
		}
		frac := srcPos - float64(i0)
		for c := 0; c < s.Channels; c++ {
			a := float64(s.Data[i0*s.Channels+c])
			b := float64(s.Data[i1*s.Channels+c])
			data[f*s.Channels+c] = int(a + (b-a)*frac)
		}
	}
	return Segment{Index: s.Index, Data: data, SampleRate: targetRate, Channels: s.Channels}
}
