// Package assembler concatenates ordered PCM segments into one continuous
// audio stream with a fixed silence gap between consecutive segments.
//
// The output buffer is sized once up front and filled with a single linear
// pass. Growing an accumulator segment-by-segment would copy earlier audio
// again on every append and turn assembly quadratic in the number of chunks;
// the pre-sized build keeps it linear in total audio length.
package assembler

import (
	"errors"
	"fmt"
	"time"

	"github.com/voxdoc/voxdoc/pkg/audio"
)

// DefaultGap is the default silence inserted between consecutive segments so
// words do not run together across chunk boundaries.
const DefaultGap = 150 * time.Millisecond

// ErrNoSegments is returned when Assemble is called with an empty sequence.
var ErrNoSegments = errors.New("assembler: no segments")

// Assemble concatenates segments in slice order into a single segment,
// inserting gap of silence between consecutive segments (none after the
// last). All segments must share one sample rate and channel count; the
// total output duration is the sum of segment durations plus gap × (N−1),
// exact to the sample.
func Assemble(segments []audio.Segment, gap time.Duration) (audio.Segment, error) {
	if len(segments) == 0 {
		return audio.Segment{}, ErrNoSegments
	}
	if gap < 0 {
		gap = 0
	}

	rate := segments[0].SampleRate
	channels := segments[0].Channels
	if rate <= 0 || channels <= 0 {
		return audio.Segment{}, fmt.Errorf("assembler: segment 0 has invalid format %d Hz / %d ch", rate, channels)
	}

	gapFrames := int(gap * time.Duration(rate) / time.Second)
	gapSamples := gapFrames * channels

	total := 0
	for i, seg := range segments {
		if seg.SampleRate != rate || seg.Channels != channels {
			return audio.Segment{}, fmt.Errorf(
				"assembler: segment %d format %d Hz / %d ch differs from %d Hz / %d ch",
				i, seg.SampleRate, seg.Channels, rate, channels)
		}
		total += len(seg.Data)
	}
	total += gapSamples * (len(segments) - 1)

	data := make([]int, total)
	pos := 0
	for i, seg := range segments {
		if i > 0 {
			// The gap region is already zeroed by make.
			pos += gapSamples
		}
		pos += copy(data[pos:], seg.Data)
	}

	return audio.Segment{
		Data:       data,
		SampleRate: rate,
		Channels:   channels,
	}, nil
}
