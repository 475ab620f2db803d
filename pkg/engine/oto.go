// ABOUTME: Oto-backed audio engine implementation
// ABOUTME: Streams clip samples through per-source players with software gain
package engine

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/google/uuid"

	"github.com/clipdeck/clipdeck-go/pkg/audio"
	"github.com/clipdeck/clipdeck-go/pkg/audio/decode"
)

// Config holds engine configuration
type Config struct {
	// SampleRate is the output sample rate (default: 44100)
	SampleRate int

	// Channels is the output channel count (default: 2)
	Channels int
}

// sharedOto holds the process-wide oto context. Oto only allows one context
// per process, so Close suspends it and NewOto resumes it.
var sharedOto struct {
	mu         sync.Mutex
	ctx        *oto.Context
	sampleRate int
	channels   int
}

func acquireOtoContext(sampleRate, channels int) (*oto.Context, error) {
	sharedOto.mu.Lock()
	defer sharedOto.mu.Unlock()

	if sharedOto.ctx != nil {
		if sharedOto.sampleRate != sampleRate || sharedOto.channels != channels {
			log.Printf("Warning: format change requested (%dHz %dch -> %dHz %dch) but oto doesn't support reinitialization. Continuing with existing context.",
				sharedOto.sampleRate, sharedOto.channels, sampleRate, channels)
		}
		sharedOto.ctx.Resume()
		return sharedOto.ctx, nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-readyChan

	sharedOto.ctx = ctx
	sharedOto.sampleRate = sampleRate
	sharedOto.channels = channels

	log.Printf("Audio engine initialized: %dHz, %d channels", sampleRate, channels)
	return ctx, nil
}

// Oto is an audio engine backed by the oto library.
type Oto struct {
	cfg    Config
	otoCtx *oto.Context
	epoch  time.Time

	mu      sync.Mutex
	closed  bool
	sources map[string]*otoSource
}

// NewOto creates an oto-backed engine, reusing (and resuming) the
// process-wide oto context when one already exists.
func NewOto(cfg Config) (*Oto, error) {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 44100
	}
	if cfg.Channels == 0 {
		cfg.Channels = 2
	}

	ctx, err := acquireOtoContext(cfg.SampleRate, cfg.Channels)
	if err != nil {
		return nil, err
	}

	return &Oto{
		cfg:     cfg,
		otoCtx:  ctx,
		epoch:   time.Now(),
		sources: make(map[string]*otoSource),
	}, nil
}

// Decode converts an encoded audio payload into a clip.
func (e *Oto) Decode(data []byte) (*audio.Clip, error) {
	return decode.Bytes(data)
}

// NewSource creates a single-use playback source for a clip.
func (e *Oto) NewSource(clip *audio.Clip) (Source, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrEngineClosed
	}
	if clip == nil || clip.FrameCount() == 0 {
		return nil, fmt.Errorf("cannot create source from empty clip")
	}

	s := newOtoSource(e, clip)
	e.sources[s.id] = s
	return s, nil
}

// Clock returns monotonic engine time in seconds.
func (e *Oto) Clock() float64 {
	return time.Since(e.epoch).Seconds()
}

// Close stops all sources and suspends the shared oto context. Idempotent.
func (e *Oto) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true

	srcs := make([]*otoSource, 0, len(e.sources))
	for _, s := range e.sources {
		srcs = append(srcs, s)
	}
	e.sources = make(map[string]*otoSource)
	ctx := e.otoCtx
	e.mu.Unlock()

	for _, s := range srcs {
		s.Stop()
	}

	if ctx != nil {
		sharedOto.mu.Lock()
		ctx.Suspend()
		sharedOto.mu.Unlock()
	}

	return nil
}

// forget drops a finished source from the registry.
func (e *Oto) forget(id string) {
	e.mu.Lock()
	delete(e.sources, id)
	e.mu.Unlock()
}

// newOtoSource builds a source reading from the clip at unity gain and
// normal rate.
func newOtoSource(e *Oto, clip *audio.Clip) *otoSource {
	baseStep := 1.0
	if e.cfg.SampleRate > 0 && clip.Format.SampleRate > 0 {
		baseStep = float64(clip.Format.SampleRate) / float64(e.cfg.SampleRate)
	}

	return &otoSource{
		id:          uuid.New().String(),
		engine:      e,
		clip:        clip,
		outChannels: e.cfg.Channels,
		gain:        1.0,
		rate:        1.0,
		baseStep:    baseStep,
		stopMonitor: make(chan struct{}),
	}
}
