// ABOUTME: Single-use playback source for the oto engine
// ABOUTME: Renders clip frames with rate, effects, and gain into 16-bit PCM
package engine

import (
	"encoding/binary"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/clipdeck/clipdeck-go/pkg/audio"
)

// otoSource streams one clip through an oto player. It implements
// io.Reader; oto pulls rendered PCM from Read on its own goroutine.
type otoSource struct {
	id          string
	engine      *Oto
	clip        *audio.Clip
	outChannels int
	baseStep    float64 // clip frames per output frame at rate 1.0

	mu        sync.Mutex
	player    *oto.Player
	gain      float64
	rate      float64
	loop      bool
	effects   []Effect
	cursor    float64 // fractional clip frame position
	started   bool
	stopped   bool
	exhausted bool
	onEnd     func()

	stopOnce    sync.Once
	stopMonitor chan struct{}
}

// ID returns the source's unique handle.
func (s *otoSource) ID() string { return s.id }

// Start begins playback at the given offset in seconds. A source can be
// started at most once.
func (s *otoSource) Start(offset float64) error {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return ErrSourceConsumed
	}
	s.started = true
	if offset < 0 {
		offset = 0
	}
	s.cursor = offset * float64(s.clip.Format.SampleRate)
	if int(s.cursor) >= s.clip.FrameCount() && !s.loop {
		s.exhausted = true
	}
	s.player = s.engine.otoCtx.NewPlayer(s)
	s.mu.Unlock()

	s.player.Play()
	go s.monitor()
	return nil
}

// Stop halts playback without firing the natural-end callback.
func (s *otoSource) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	player := s.player
	s.mu.Unlock()

	s.stopOnce.Do(func() { close(s.stopMonitor) })
	if player != nil {
		player.Close()
	}
	s.engine.forget(s.id)
}

// SetGain routes playback through a gain stage (1.0 = unity).
func (s *otoSource) SetGain(level float64) {
	if level < 0 {
		level = 0
	}
	s.mu.Lock()
	s.gain = level
	s.mu.Unlock()
}

// SetRate adjusts playback rate live (1.0 = normal speed).
func (s *otoSource) SetRate(rate float64) {
	if rate <= 0 {
		return
	}
	s.mu.Lock()
	s.rate = rate
	s.mu.Unlock()
}

// SetLoop toggles looping at the clip boundary.
func (s *otoSource) SetLoop(loop bool) {
	s.mu.Lock()
	s.loop = loop
	s.mu.Unlock()
}

// AddEffect splices a processing stage between source and output.
func (s *otoSource) AddEffect(e Effect) {
	if e == nil {
		return
	}
	s.mu.Lock()
	s.effects = append(s.effects, e)
	s.mu.Unlock()
}

// OnEnd registers the natural-end callback.
func (s *otoSource) OnEnd(fn func()) {
	s.mu.Lock()
	s.onEnd = fn
	s.mu.Unlock()
}

// Read renders the next block of frames into 16-bit little-endian PCM.
// Called by oto's playback goroutine.
func (s *otoSource) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return 0, io.EOF
	}

	bytesPerFrame := s.outChannels * 2
	frames := len(p) / bytesPerFrame
	if frames == 0 {
		// A 0, nil return would make the caller spin
		return 0, io.ErrShortBuffer
	}

	rendered := s.render(frames)
	if len(rendered) == 0 {
		s.exhausted = true
		return 0, io.EOF
	}

	for _, fx := range s.effects {
		rendered = fx(rendered)
	}

	for i, v := range rendered {
		scaled := audio.Clamp24(int64(float64(v) * s.gain))
		binary.LittleEndian.PutUint16(p[i*2:], uint16(audio.SampleToInt16(scaled)))
	}

	return len(rendered) * 2, nil
}

// render produces up to frames output frames, advancing the cursor by the
// effective step (clip rate conversion times playback rate). Must be
// called with the lock held.
func (s *otoSource) render(frames int) []int32 {
	total := s.clip.FrameCount()
	if total == 0 {
		return nil
	}

	step := s.baseStep * s.rate
	out := make([]int32, 0, frames*s.outChannels)

	for i := 0; i < frames; i++ {
		idx := int(s.cursor)
		if idx >= total {
			if !s.loop {
				break
			}
			s.cursor -= float64(total)
			idx = int(s.cursor)
			if idx >= total || idx < 0 {
				s.cursor = 0
				idx = 0
			}
		}
		out = appendFrame(out, s.clip, idx, s.outChannels)
		s.cursor += step
	}

	return out
}

// appendFrame copies one clip frame into the output, mapping channel
// counts: mono clips are duplicated across output channels, wider clips
// are truncated.
func appendFrame(out []int32, clip *audio.Clip, frame, outChannels int) []int32 {
	clipCh := clip.Format.Channels
	base := frame * clipCh

	for ch := 0; ch < outChannels; ch++ {
		src := ch
		if src >= clipCh {
			src = clipCh - 1
		}
		out = append(out, clip.Samples[base+src])
	}
	return out
}

// monitor watches for natural end of playback and fires the OnEnd
// callback once the player has drained.
func (s *otoSource) monitor() {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopMonitor:
			return
		case <-ticker.C:
			s.mu.Lock()
			done := s.exhausted && (s.player == nil || !s.player.IsPlaying())
			fn := s.onEnd
			player := s.player
			s.mu.Unlock()

			if !done {
				continue
			}

			s.mu.Lock()
			s.stopped = true
			s.mu.Unlock()

			s.stopOnce.Do(func() { close(s.stopMonitor) })
			if player != nil {
				player.Close()
			}
			s.engine.forget(s.id)
			if fn != nil {
				fn()
			}
			return
		}
	}
}
