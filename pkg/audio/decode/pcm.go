// ABOUTME: PCM packet decoder
// ABOUTME: Decodes 16-bit and 24-bit little-endian PCM packets to int32 samples
package decode

import (
	"encoding/binary"
	"fmt"

	"github.com/clipdeck/clipdeck-go/pkg/audio"
)

// PCMDecoder decodes containerless little-endian PCM packets. Raw PCM
// carries no header, so the caller supplies the format up front.
type PCMDecoder struct {
	width   int // bytes per sample
	convert func(b []byte) int32
}

// NewPCM creates a packet-level PCM decoder for the given format.
func NewPCM(format audio.Format) (Decoder, error) {
	if format.Codec != "pcm" {
		return nil, fmt.Errorf("invalid codec for PCM decoder: %s", format.Codec)
	}

	switch format.BitDepth {
	case 16:
		return &PCMDecoder{
			width: 2,
			convert: func(b []byte) int32 {
				return audio.SampleFromInt16(int16(binary.LittleEndian.Uint16(b)))
			},
		}, nil
	case 24:
		return &PCMDecoder{
			width: 3,
			convert: func(b []byte) int32 {
				return audio.SampleFrom24Bit([3]byte{b[0], b[1], b[2]})
			},
		}, nil
	default:
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16, 24)", format.BitDepth)
	}
}

// Decode converts one PCM packet to int32 samples. The packet must hold
// a whole number of samples.
func (d *PCMDecoder) Decode(data []byte) ([]int32, error) {
	if len(data)%d.width != 0 {
		return nil, fmt.Errorf("%w: pcm packet length %d not a multiple of sample width %d",
			ErrInvalidData, len(data), d.width)
	}

	samples := make([]int32, 0, len(data)/d.width)
	for i := 0; i < len(data); i += d.width {
		samples = append(samples, d.convert(data[i:i+d.width]))
	}
	return samples, nil
}

// Close releases resources.
func (d *PCMDecoder) Close() error {
	return nil
}
