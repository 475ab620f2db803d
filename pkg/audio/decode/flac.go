// ABOUTME: FLAC audio decoder
// ABOUTME: Decodes full FLAC payloads to int32 samples using mewkiz/flac
package decode

import (
	"bytes"
	"fmt"
	"io"

	"github.com/clipdeck/clipdeck-go/pkg/audio"
	"github.com/mewkiz/flac"
)

// DecodeFLAC decodes a complete FLAC payload into a clip.
func DecodeFLAC(data []byte) (*audio.Clip, error) {
	stream, err := flac.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse flac stream: %w", err)
	}
	defer stream.Close()

	info := stream.Info
	bitDepth := int(info.BitsPerSample)
	channels := int(info.NChannels)

	var samples []int32
	for {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("flac frame decode failed: %w", err)
		}

		// Subframes are per-channel; interleave them
		blockSize := len(frame.Subframes[0].Samples)
		for i := 0; i < blockSize; i++ {
			for ch := 0; ch < channels; ch++ {
				samples = append(samples, promoteSample(frame.Subframes[ch].Samples[i], bitDepth))
			}
		}
	}

	return &audio.Clip{
		Samples: samples,
		Format: audio.Format{
			Codec:      "flac",
			SampleRate: int(info.SampleRate),
			Channels:   channels,
			BitDepth:   bitDepth,
		},
	}, nil
}

// promoteSample left-justifies a decoded sample into the 24-bit range.
func promoteSample(s int32, bitDepth int) int32 {
	switch bitDepth {
	case 24:
		return s
	case 8:
		return s << 16
	default:
		return s << 8
	}
}
