// ABOUTME: Opus audio decoders
// ABOUTME: Decodes Ogg/Opus payloads and raw Opus packets to int32 samples
package decode

import (
	"bytes"
	"fmt"
	"io"

	"github.com/clipdeck/clipdeck-go/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

// libopusfile always decodes at 48kHz regardless of the input rate.
const oggOpusSampleRate = 48000

// maxOpusFrame is the largest frame a single packet can carry: 120ms at
// 48kHz, per RFC 6716.
const maxOpusFrame = 5760

// opusHeadMagic marks the identification header packet of an Ogg/Opus
// stream, carried in the first Ogg page.
var opusHeadMagic = []byte("OpusHead")

// oggOpusChannelCount reads the output channel count from the OpusHead
// identification header. The header sits in the first Ogg page, so only
// the payload prefix is searched.
func oggOpusChannelCount(data []byte) (int, error) {
	window := data
	if len(window) > 512 {
		window = window[:512]
	}

	idx := bytes.Index(window, opusHeadMagic)
	if idx < 0 {
		return 0, fmt.Errorf("%w: missing OpusHead header", ErrInvalidData)
	}

	// OpusHead layout: magic (8), version (1), channel count (1)
	pos := idx + len(opusHeadMagic) + 1
	if pos >= len(data) {
		return 0, fmt.Errorf("%w: truncated OpusHead header", ErrInvalidData)
	}

	channels := int(data[pos])
	if channels < 1 || channels > 8 {
		return 0, fmt.Errorf("%w: OpusHead reports %d channels", ErrInvalidData, channels)
	}
	return channels, nil
}

// DecodeOggOpus decodes a complete Ogg/Opus payload into a clip.
func DecodeOggOpus(data []byte) (*audio.Clip, error) {
	channels, err := oggOpusChannelCount(data)
	if err != nil {
		return nil, err
	}

	stream, err := opus.NewStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open ogg/opus stream: %w", err)
	}
	defer stream.Close()

	var samples []int32
	pcm16 := make([]int16, 16384)
	for {
		n, err := stream.Read(pcm16)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ogg/opus decode failed: %w", err)
		}

		for _, s := range pcm16[:n*channels] {
			samples = append(samples, audio.SampleFromInt16(s))
		}
	}

	return &audio.Clip{
		Samples: samples,
		Format: audio.Format{
			Codec:      "opus",
			SampleRate: oggOpusSampleRate,
			Channels:   channels,
			BitDepth:   16,
		},
	}, nil
}

// OpusDecoder decodes containerless Opus packets, one packet per Decode
// call. The packet stream carries no header, so the caller supplies the
// format up front.
type OpusDecoder struct {
	dec      *opus.Decoder
	channels int
	scratch  []int16
}

// NewOpus creates a packet-level Opus decoder for the given format.
func NewOpus(format audio.Format) (Decoder, error) {
	if format.Codec != "opus" {
		return nil, fmt.Errorf("invalid codec for Opus decoder: %s", format.Codec)
	}

	dec, err := opus.NewDecoder(format.SampleRate, format.Channels)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus decoder: %w", err)
	}

	return &OpusDecoder{
		dec:      dec,
		channels: format.Channels,
		scratch:  make([]int16, maxOpusFrame*format.Channels),
	}, nil
}

// Decode converts one Opus packet to int32 samples.
func (d *OpusDecoder) Decode(pkt []byte) ([]int32, error) {
	frames, err := d.dec.Decode(pkt, d.scratch)
	if err != nil {
		return nil, fmt.Errorf("opus packet decode failed: %w", err)
	}

	out := make([]int32, frames*d.channels)
	for i := range out {
		out[i] = audio.SampleFromInt16(d.scratch[i])
	}
	return out, nil
}

// Close releases decoder resources.
func (d *OpusDecoder) Close() error {
	return nil
}
