package audio

import (
	"bytes"
	"fmt"
	"io"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// wavAudioFormat is the RIFF format tag for uncompressed PCM.
const wavAudioFormat = 1

// DecodeWAV parses a complete WAV file held in memory and returns its PCM
// content as a Segment. Only uncompressed PCM files are accepted; the bit
// depth is normalised to 16-bit by the decoder.
func DecodeWAV(data []byte) (Segment, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return Segment{}, fmt.Errorf("audio: not a valid WAV file")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Segment{}, fmt.Errorf("audio: decode wav: %w", err)
	}
	if buf.Format == nil {
		return Segment{}, fmt.Errorf("audio: wav missing format chunk")
	}

	return Segment{
		Data:       buf.Data,
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
	}, nil
}

// EncodeWAV writes s as a 16-bit PCM WAV file to w. The writer must support
// seeking because the RIFF header sizes are patched after the data chunk is
// written (an *os.File satisfies this).
func EncodeWAV(w io.WriteSeeker, s Segment) error {
	if s.SampleRate <= 0 || s.Channels <= 0 {
		return fmt.Errorf("audio: cannot encode segment with format %d Hz / %d ch", s.SampleRate, s.Channels)
	}

	enc := wav.NewEncoder(w, s.SampleRate, BitDepth, s.Channels, wavAudioFormat)
	buf := &gaudio.IntBuffer{
		Format: &gaudio.Format{
			NumChannels: s.Channels,
			SampleRate:  s.SampleRate,
		},
		Data:           s.Data,
		SourceBitDepth: BitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("audio: encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("audio: finalise wav: %w", err)
	}
	return nil
}
