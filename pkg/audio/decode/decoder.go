// ABOUTME: Decoder interface and format detection
// ABOUTME: Sniffs codec from magic bytes and decodes full payloads to clips
package decode

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/clipdeck/clipdeck-go/pkg/audio"
)

// Common decode errors
var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrInvalidData       = errors.New("invalid audio data")
)

// Decoder decodes audio packets in various formats to PCM int32 samples
type Decoder interface {
	// Decode converts encoded audio data to PCM samples
	Decode(data []byte) ([]int32, error)

	// Close releases decoder resources
	Close() error
}

// New creates a packet-level decoder for a containerless stream whose
// format is known out of band. Container payloads go through Bytes
// instead.
func New(format audio.Format) (Decoder, error) {
	switch format.Codec {
	case "pcm":
		return NewPCM(format)
	case "opus":
		return NewOpus(format)
	default:
		return nil, fmt.Errorf("%w: no packet decoder for codec %q", ErrUnsupportedFormat, format.Codec)
	}
}

// Detect sniffs the codec from the payload's magic bytes. Returns "" when
// the format is unknown. Raw PCM carries no signature and is never detected.
func Detect(data []byte) string {
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return "wav"
	case len(data) >= 4 && string(data[0:4]) == "fLaC":
		return "flac"
	case len(data) >= 4 && string(data[0:4]) == "OggS":
		// Ogg is only a container; require the Opus identification
		// header so Vorbis payloads stay unrecognized.
		window := data
		if len(window) > 512 {
			window = window[:512]
		}
		if bytes.Contains(window, opusHeadMagic) {
			return "opus"
		}
		return ""
	case len(data) >= 3 && string(data[0:3]) == "ID3":
		return "mp3"
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		// Bare MPEG frame sync
		return "mp3"
	default:
		return ""
	}
}

// Bytes sniffs and fully decodes an audio payload into a clip.
func Bytes(data []byte) (*audio.Clip, error) {
	codec := Detect(data)

	switch codec {
	case "wav":
		return DecodeWAV(data)
	case "mp3":
		return DecodeMP3(data)
	case "flac":
		return DecodeFLAC(data)
	case "opus":
		return DecodeOggOpus(data)
	default:
		return nil, fmt.Errorf("%w: unrecognized payload", ErrUnsupportedFormat)
	}
}
