// ABOUTME: Audio engine capability definition
// ABOUTME: Interfaces for decoding, playback sources, and the engine clock
package engine

import (
	"errors"

	"github.com/clipdeck/clipdeck-go/pkg/audio"
)

// Common engine errors
var (
	// ErrEngineClosed is returned by operations on a closed engine.
	ErrEngineClosed = errors.New("engine closed")

	// ErrSourceConsumed is returned when starting a source that has already
	// been started or stopped. Sources are single-use; create a new one per
	// playback.
	ErrSourceConsumed = errors.New("source already consumed")
)

// Effect is a processing stage spliced between a source's samples and the
// output. It receives interleaved int32 PCM and returns the processed
// samples. Effects run in insertion order.
type Effect func(samples []int32) []int32

// Engine is the platform audio capability consumed by the session layer:
// payload decoding, playback source creation, and a monotonic clock.
type Engine interface {
	// Decode converts an encoded audio payload into a clip.
	Decode(data []byte) (*audio.Clip, error)

	// NewSource creates a single-use playback source for a clip.
	NewSource(clip *audio.Clip) (Source, error)

	// Clock returns monotonic engine time in seconds.
	Clock() float64

	// Close tears down the engine and stops all sources. Idempotent.
	Close() error
}

// Source is one active playback instantiation of a clip. A source cannot
// be restarted; Start may be called at most once.
type Source interface {
	// ID returns the source's unique handle.
	ID() string

	// Start begins playback at the given offset in seconds.
	Start(offset float64) error

	// Stop halts playback. The source cannot be started again.
	Stop()

	// SetGain routes playback through a gain stage (1.0 = unity).
	SetGain(level float64)

	// SetRate adjusts the playback rate live (1.0 = normal speed).
	SetRate(rate float64)

	// SetLoop toggles looping at the clip boundary.
	SetLoop(loop bool)

	// AddEffect splices a processing stage between source and output.
	AddEffect(e Effect)

	// OnEnd registers a callback fired once when playback ends naturally.
	// Not fired on Stop.
	OnEnd(fn func())
}
