// ABOUTME: WAV audio decoder
// ABOUTME: Decodes RIFF/WAVE payloads to int32 samples using go-audio
package decode

import (
	"bytes"
	"fmt"

	"github.com/clipdeck/clipdeck-go/pkg/audio"
	"github.com/go-audio/wav"
)

// DecodeWAV decodes a complete RIFF/WAVE payload into a clip.
func DecodeWAV(data []byte) (*audio.Clip, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not a valid WAV file", ErrInvalidData)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wav decode failed: %w", err)
	}

	bitDepth := int(dec.BitDepth)
	samples := make([]int32, len(buf.Data))
	for i, s := range buf.Data {
		switch bitDepth {
		case 24:
			samples[i] = audio.Clamp24(int64(s))
		case 8:
			// 8-bit WAV is unsigned
			samples[i] = audio.SampleFromInt16(int16((s - 128) << 8))
		default:
			samples[i] = audio.SampleFromInt16(int16(s))
		}
	}

	return &audio.Clip{
		Samples: samples,
		Format: audio.Format{
			Codec:      "wav",
			SampleRate: int(dec.SampleRate),
			Channels:   int(dec.NumChans),
			BitDepth:   bitDepth,
		},
	}, nil
}
