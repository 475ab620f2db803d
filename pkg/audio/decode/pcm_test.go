// ABOUTME: Tests for the PCM packet decoder
// ABOUTME: Tests 16-bit and 24-bit decoding and format validation
package decode

import (
	"testing"

	"github.com/clipdeck/clipdeck-go/pkg/audio"
)

func TestNewPCMInvalidCodec(t *testing.T) {
	_, err := NewPCM(audio.Format{Codec: "mp3", BitDepth: 16})
	if err == nil {
		t.Fatal("expected error for non-pcm codec")
	}
}

func TestNewPCMInvalidBitDepth(t *testing.T) {
	_, err := NewPCM(audio.Format{Codec: "pcm", BitDepth: 32})
	if err == nil {
		t.Fatal("expected error for unsupported bit depth")
	}
}

func TestPCMDecode16Bit(t *testing.T) {
	dec, err := NewPCM(audio.Format{Codec: "pcm", BitDepth: 16})
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}

	// 0x00, 0x01 -> 0x0100 = 256; 0x02, 0x03 -> 0x0302 = 770
	input := []byte{0x00, 0x01, 0x02, 0x03}
	output, err := dec.Decode(input)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if len(output) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(output))
	}
	if output[0] != audio.SampleFromInt16(256) {
		t.Errorf("expected first sample %d, got %d", audio.SampleFromInt16(256), output[0])
	}
	if output[1] != audio.SampleFromInt16(770) {
		t.Errorf("expected second sample %d, got %d", audio.SampleFromInt16(770), output[1])
	}
}

func TestPCMDecodeRejectsPartialSample(t *testing.T) {
	dec, err := NewPCM(audio.Format{Codec: "pcm", BitDepth: 16})
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}

	_, err = dec.Decode([]byte{0x00, 0x01, 0x02})
	if err == nil {
		t.Fatal("expected error for packet with a partial sample")
	}
}

func TestPCMDecode24Bit(t *testing.T) {
	dec, err := NewPCM(audio.Format{Codec: "pcm", BitDepth: 24})
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}

	input := []byte{0x01, 0x00, 0x00, 0xFF, 0xFF, 0xFF}
	output, err := dec.Decode(input)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if len(output) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(output))
	}
	if output[0] != 1 {
		t.Errorf("expected first sample 1, got %d", output[0])
	}
	if output[1] != -1 {
		t.Errorf("expected second sample -1, got %d", output[1])
	}
}
