// ABOUTME: Tests for source rendering
// ABOUTME: Tests frame rendering, channel mapping, rate, loop, gain, effects
package engine

import (
	"encoding/binary"
	"io"
	"testing"

	"github.com/clipdeck/clipdeck-go/pkg/audio"
)

// testSource builds a source for render tests without an oto player.
func testSource(clip *audio.Clip, outChannels int) *otoSource {
	return &otoSource{
		id:          "test",
		clip:        clip,
		outChannels: outChannels,
		gain:        1.0,
		rate:        1.0,
		baseStep:    1.0,
		stopMonitor: make(chan struct{}),
		started:     true,
	}
}

func stereoClip(frames int) *audio.Clip {
	samples := make([]int32, frames*2)
	for i := range samples {
		samples[i] = int32(i + 1)
	}
	return &audio.Clip{
		Samples: samples,
		Format:  audio.Format{Codec: "pcm", SampleRate: 44100, Channels: 2, BitDepth: 16},
	}
}

func TestRenderPassthrough(t *testing.T) {
	clip := stereoClip(4)
	s := testSource(clip, 2)

	out := s.render(4)
	if len(out) != 8 {
		t.Fatalf("expected 8 samples, got %d", len(out))
	}
	for i, v := range out {
		if v != clip.Samples[i] {
			t.Errorf("sample %d: expected %d, got %d", i, clip.Samples[i], v)
		}
	}
}

func TestRenderStopsAtClipEnd(t *testing.T) {
	s := testSource(stereoClip(4), 2)

	out := s.render(10)
	if len(out) != 8 {
		t.Errorf("expected 8 samples (4 frames), got %d", len(out))
	}

	// Cursor is past the end; next render produces nothing
	if out = s.render(10); len(out) != 0 {
		t.Errorf("expected no samples past clip end, got %d", len(out))
	}
}

func TestRenderLoopWraps(t *testing.T) {
	s := testSource(stereoClip(4), 2)
	s.loop = true

	out := s.render(10)
	if len(out) != 20 {
		t.Fatalf("expected 20 samples with looping, got %d", len(out))
	}

	// Frame 4 wraps back to frame 0
	if out[8] != 1 || out[9] != 2 {
		t.Errorf("expected wrap to frames 1,2, got %d,%d", out[8], out[9])
	}
}

func TestRenderDoubleRateSkipsFrames(t *testing.T) {
	s := testSource(stereoClip(8), 2)
	s.rate = 2.0

	out := s.render(4)
	if len(out) != 8 {
		t.Fatalf("expected 8 samples, got %d", len(out))
	}

	// At rate 2.0 frames 0,2,4,6 are rendered; frame 2 starts at sample 5
	if out[2] != 5 {
		t.Errorf("expected second output frame to be clip frame 2 (sample 5), got %d", out[2])
	}
}

func TestRenderMonoToStereo(t *testing.T) {
	clip := &audio.Clip{
		Samples: []int32{100, 200, 300},
		Format:  audio.Format{Codec: "pcm", SampleRate: 44100, Channels: 1, BitDepth: 16},
	}
	s := testSource(clip, 2)

	out := s.render(3)
	if len(out) != 6 {
		t.Fatalf("expected 6 samples, got %d", len(out))
	}
	for i := 0; i < 3; i++ {
		if out[i*2] != out[i*2+1] {
			t.Errorf("frame %d: expected duplicated channels, got %d/%d", i, out[i*2], out[i*2+1])
		}
		if out[i*2] != clip.Samples[i] {
			t.Errorf("frame %d: expected %d, got %d", i, clip.Samples[i], out[i*2])
		}
	}
}

func TestReadAppliesGain(t *testing.T) {
	clip := &audio.Clip{
		Samples: []int32{audio.SampleFromInt16(1000), audio.SampleFromInt16(1000)},
		Format:  audio.Format{Codec: "pcm", SampleRate: 44100, Channels: 2, BitDepth: 16},
	}
	s := testSource(clip, 2)
	s.gain = 0.5

	buf := make([]byte, 4)
	n, err := s.Read(buf)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4 bytes, got %d", n)
	}

	got := int16(binary.LittleEndian.Uint16(buf))
	if got != 500 {
		t.Errorf("expected half-gain sample 500, got %d", got)
	}
}

func TestReadAppliesEffectsInOrder(t *testing.T) {
	clip := &audio.Clip{
		Samples: []int32{audio.SampleFromInt16(100), audio.SampleFromInt16(100)},
		Format:  audio.Format{Codec: "pcm", SampleRate: 44100, Channels: 2, BitDepth: 16},
	}
	s := testSource(clip, 2)

	double := func(samples []int32) []int32 {
		for i := range samples {
			samples[i] *= 2
		}
		return samples
	}
	addTen := func(samples []int32) []int32 {
		for i := range samples {
			samples[i] += audio.SampleFromInt16(10)
		}
		return samples
	}
	s.AddEffect(double)
	s.AddEffect(addTen)

	buf := make([]byte, 4)
	if _, err := s.Read(buf); err != nil {
		t.Fatalf("read failed: %v", err)
	}

	// (100*2)+10 = 210, order matters
	got := int16(binary.LittleEndian.Uint16(buf))
	if got != 210 {
		t.Errorf("expected 210 after effect chain, got %d", got)
	}
}

func TestReadEOFAfterExhaustion(t *testing.T) {
	s := testSource(stereoClip(1), 2)

	buf := make([]byte, 16)
	if _, err := s.Read(buf); err != nil {
		t.Fatalf("first read failed: %v", err)
	}

	_, err := s.Read(buf)
	if err != io.EOF {
		t.Errorf("expected io.EOF after exhaustion, got %v", err)
	}
	if !s.exhausted {
		t.Error("expected source to be marked exhausted")
	}
}

func TestReadEOFAfterStop(t *testing.T) {
	s := testSource(stereoClip(4), 2)
	s.stopped = true

	_, err := s.Read(make([]byte, 16))
	if err != io.EOF {
		t.Errorf("expected io.EOF on stopped source, got %v", err)
	}
}

func TestReadShortBuffer(t *testing.T) {
	s := testSource(stereoClip(4), 2)

	// A buffer smaller than one output frame must not return 0, nil
	n, err := s.Read(make([]byte, 3))
	if n != 0 {
		t.Errorf("expected 0 bytes, got %d", n)
	}
	if err != io.ErrShortBuffer {
		t.Errorf("expected io.ErrShortBuffer, got %v", err)
	}
}

func TestReadClampsGainOverflow(t *testing.T) {
	clip := &audio.Clip{
		Samples: []int32{audio.Max24Bit, audio.Max24Bit},
		Format:  audio.Format{Codec: "pcm", SampleRate: 44100, Channels: 2, BitDepth: 16},
	}
	s := testSource(clip, 2)
	s.gain = 4.0

	buf := make([]byte, 4)
	if _, err := s.Read(buf); err != nil {
		t.Fatalf("read failed: %v", err)
	}

	got := int16(binary.LittleEndian.Uint16(buf))
	want := audio.SampleToInt16(audio.Max24Bit)
	if got != want {
		t.Errorf("expected clamped sample %d, got %d", want, got)
	}
}
