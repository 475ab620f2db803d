// ABOUTME: Audio session manager
// ABOUTME: Tracks named clips, active sources, playback offsets, and listeners
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/clipdeck/clipdeck-go/internal/fetch"
	"github.com/clipdeck/clipdeck-go/pkg/audio"
	"github.com/clipdeck/clipdeck-go/pkg/audio/decode"
	"github.com/clipdeck/clipdeck-go/pkg/engine"
)

// ErrNotFound is returned when an operation references a name with no
// loaded clip.
var ErrNotFound = errors.New("clip not found")

// Config holds session configuration
type Config struct {
	// OffloadDecode routes Load through the background decode worker
	// instead of decoding inline.
	OffloadDecode bool

	// NewEngine builds the audio engine. Defaults to the oto-backed
	// engine. Called lazily, and again after Dispose.
	NewEngine func() (engine.Engine, error)

	// HTTPClient fetches http(s) byte sources. Defaults to
	// http.DefaultClient.
	HTTPClient *http.Client
}

// playback describes one active playing instantiation of a clip.
type playback struct {
	source    engine.Source
	startedAt float64 // engine clock at start
	offset    float64 // clip offset at start, seconds
	loop      bool
}

// Session is a name-indexed control surface over the audio engine. Clips
// are loaded under logical names and played through single-use sources;
// the session tracks per-name playback offsets across pause, seek, and
// stop, and fans out playback events to registered listeners.
//
// Multiple independent sessions can coexist; each owns its stores and
// its engine handle.
type Session struct {
	cfg     Config
	events  *dispatcher
	fetcher *fetch.Fetcher

	mu      sync.Mutex
	eng     engine.Engine
	worker  *worker
	clips   map[string]*audio.Clip
	playing map[string]*playback
	offsets map[string]float64
	pending map[string]struct{} // names with an in-flight offloaded decode
}

// New creates a session. The engine is not created until first needed.
func New(cfg Config) *Session {
	if cfg.NewEngine == nil {
		cfg.NewEngine = func() (engine.Engine, error) {
			return engine.NewOto(engine.Config{})
		}
	}

	return &Session{
		cfg:     cfg,
		events:  newDispatcher(),
		fetcher: fetch.New(cfg.HTTPClient),
		clips:   make(map[string]*audio.Clip),
		playing: make(map[string]*playback),
		offsets: make(map[string]float64),
		pending: make(map[string]struct{}),
	}
}

// ensureEngineLocked returns the live engine, creating one if absent or
// previously torn down. Caller must hold s.mu.
func (s *Session) ensureEngineLocked() (engine.Engine, error) {
	if s.eng != nil {
		return s.eng, nil
	}

	eng, err := s.cfg.NewEngine()
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	s.eng = eng
	return eng, nil
}

// ensureWorkerLocked returns the decode worker, starting one (and its
// result pump) if absent or torn down by Dispose. Caller must hold s.mu.
func (s *Session) ensureWorkerLocked() *worker {
	if s.worker == nil {
		s.worker = newWorker(s.fetcher.Fetch, decode.Bytes)
		go s.pumpResults(s.worker)
	}
	return s.worker
}

// pumpResults routes worker responses back into the session until the
// worker is closed.
func (s *Session) pumpResults(w *worker) {
	for {
		select {
		case <-w.ctx.Done():
			return
		case res := <-w.results:
			s.applyDecodeResult(res)
		}
	}
}

// applyDecodeResult reconciles one worker response with the session
// state. Responses for names no longer pending (unloaded or disposed
// since the request went out) are discarded.
func (s *Session) applyDecodeResult(res decodeResult) {
	s.mu.Lock()
	if _, ok := s.pending[res.name]; !ok {
		s.mu.Unlock()
		log.Printf("Discarding stale decode response for %q", res.name)
		return
	}
	delete(s.pending, res.name)

	if res.err != nil {
		s.mu.Unlock()
		s.events.emit(Event{Kind: EventError, Name: res.name, Err: res.err})
		return
	}

	s.clips[res.name] = res.clip
	s.mu.Unlock()

	s.events.emit(Event{Kind: EventLoaded, Name: res.name})
}

// Load fetches and decodes the byte source behind url, storing the clip
// under name (replacing any prior clip for that name).
//
// Failure policy: the error event is the canonical failure channel in
// both modes. Inline loads additionally return the error to the caller;
// offloaded loads return nil immediately and report only through the
// event channel.
//
// Concurrent loads for the same name are a known race: the last response
// to arrive wins. Callers should avoid overlapping loads per name.
func (s *Session) Load(ctx context.Context, name, url string) error {
	if s.cfg.OffloadDecode {
		s.mu.Lock()
		w := s.ensureWorkerLocked()
		s.pending[name] = struct{}{}
		s.mu.Unlock()

		w.submit(name, url)
		return nil
	}

	data, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		err = fmt.Errorf("fetch %q failed: %w", url, err)
		s.events.emit(Event{Kind: EventError, Name: name, Err: err})
		return err
	}

	s.mu.Lock()
	eng, err := s.ensureEngineLocked()
	if err != nil {
		s.mu.Unlock()
		s.events.emit(Event{Kind: EventError, Name: name, Err: err})
		return err
	}

	clip, err := eng.Decode(data)
	if err != nil {
		s.mu.Unlock()
		err = fmt.Errorf("decode %q failed: %w", name, err)
		s.events.emit(Event{Kind: EventError, Name: name, Err: err})
		return err
	}

	s.clips[name] = clip
	s.mu.Unlock()

	s.events.emit(Event{Kind: EventLoaded, Name: name})
	return nil
}

// LoadRaw decodes containerless audio packets through the packet decoder
// for format.Codec ("pcm" or "opus") and stores the concatenated result
// under name, replacing any prior clip. Raw streams carry no header, so
// the caller supplies the format Load would otherwise sniff. Decodes
// inline regardless of OffloadDecode; failures are reported through the
// error event and the return value.
func (s *Session) LoadRaw(name string, format audio.Format, packets ...[]byte) error {
	clip, err := decodePackets(format, packets)
	if err != nil {
		err = fmt.Errorf("raw decode %q failed: %w", name, err)
		s.events.emit(Event{Kind: EventError, Name: name, Err: err})
		return err
	}

	s.mu.Lock()
	s.clips[name] = clip
	s.mu.Unlock()

	s.events.emit(Event{Kind: EventLoaded, Name: name})
	return nil
}

// decodePackets runs a packet sequence through one decoder instance and
// assembles the samples into a clip.
func decodePackets(format audio.Format, packets [][]byte) (*audio.Clip, error) {
	dec, err := decode.New(format)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var samples []int32
	for i, pkt := range packets {
		out, err := dec.Decode(pkt)
		if err != nil {
			return nil, fmt.Errorf("packet %d: %w", i, err)
		}
		samples = append(samples, out...)
	}

	return &audio.Clip{Samples: samples, Format: format}, nil
}

// PlayOption configures a Play call
type PlayOption func(*playOptions)

type playOptions struct {
	loop    bool
	startAt *float64
}

// WithLoop makes playback loop at the clip boundary.
func WithLoop() PlayOption {
	return func(o *playOptions) { o.loop = true }
}

// StartAt starts playback at an explicit offset in seconds, overriding
// the stored playback offset.
func StartAt(seconds float64) PlayOption {
	return func(o *playOptions) { o.startAt = &seconds }
}

// Play starts playback of the named clip through a fresh source. The
// start position is the explicit StartAt option if given, else the
// stored offset from a prior pause or seek, else 0. Emits a play event
// on success; returns ErrNotFound when no clip is loaded under name.
func (s *Session) Play(name string, opts ...PlayOption) error {
	var o playOptions
	for _, opt := range opts {
		opt(&o)
	}

	s.mu.Lock()
	clip, ok := s.clips[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	// Replace any active source; a name holds at most one descriptor.
	if pb, active := s.playing[name]; active {
		pb.source.Stop()
		delete(s.playing, name)
	}

	eng, err := s.ensureEngineLocked()
	if err != nil {
		s.mu.Unlock()
		return err
	}

	src, err := eng.NewSource(clip)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to create source for %q: %w", name, err)
	}

	offset := 0.0
	if o.startAt != nil {
		offset = *o.startAt
	} else if stored, ok := s.offsets[name]; ok {
		offset = stored
	}

	src.SetLoop(o.loop)
	srcID := src.ID()
	src.OnEnd(func() { s.handleNaturalEnd(name, srcID) })

	if err := src.Start(offset); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to start %q: %w", name, err)
	}

	s.playing[name] = &playback{
		source:    src,
		startedAt: eng.Clock(),
		offset:    offset,
		loop:      o.loop,
	}
	s.mu.Unlock()

	s.events.emit(Event{Kind: EventPlay, Name: name, CurrentTime: offset})
	return nil
}

// handleNaturalEnd clears the descriptor and offset when a source drains
// on its own. The source ID guards against a stale callback racing a
// newer playback of the same name.
func (s *Session) handleNaturalEnd(name, srcID string) {
	s.mu.Lock()
	pb, ok := s.playing[name]
	if !ok || pb.source.ID() != srcID {
		s.mu.Unlock()
		return
	}
	delete(s.playing, name)
	delete(s.offsets, name)
	s.mu.Unlock()

	s.events.emit(Event{Kind: EventEnd, Name: name})
}

// Pause freezes the current elapsed time into the stored offset and
// stops the source. No-op when the name is not currently playing.
func (s *Session) Pause(name string) {
	s.mu.Lock()
	pb, ok := s.playing[name]
	if !ok {
		s.mu.Unlock()
		return
	}

	elapsed := s.elapsedLocked(pb)
	pb.source.Stop()
	delete(s.playing, name)
	s.offsets[name] = elapsed
	s.mu.Unlock()

	s.events.emit(Event{Kind: EventPause, Name: name, CurrentTime: elapsed})
}

// Stop halts playback and resets the stored offset to zero. No-op when
// the name is not currently playing.
func (s *Session) Stop(name string) {
	s.mu.Lock()
	pb, ok := s.playing[name]
	if !ok {
		s.mu.Unlock()
		return
	}

	pb.source.Stop()
	delete(s.playing, name)
	delete(s.offsets, name)
	s.mu.Unlock()

	s.events.emit(Event{Kind: EventEnd, Name: name})
}

// Seek moves the playback position. While playing, the active source is
// replaced by a fresh one starting at t; otherwise the stored offset is
// updated for the next Play. Returns ErrNotFound when no clip is loaded.
func (s *Session) Seek(name string, t float64) error {
	if t < 0 {
		t = 0
	}

	s.mu.Lock()
	clip, ok := s.clips[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	pb, active := s.playing[name]
	if !active {
		s.offsets[name] = t
		s.mu.Unlock()
		return nil
	}

	loop := pb.loop
	pb.source.Stop()
	delete(s.playing, name)

	eng, err := s.ensureEngineLocked()
	if err != nil {
		s.mu.Unlock()
		return err
	}

	src, err := eng.NewSource(clip)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to create source for %q: %w", name, err)
	}

	src.SetLoop(loop)
	srcID := src.ID()
	src.OnEnd(func() { s.handleNaturalEnd(name, srcID) })

	if err := src.Start(t); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to restart %q: %w", name, err)
	}

	s.playing[name] = &playback{
		source:    src,
		startedAt: eng.Clock(),
		offset:    t,
		loop:      loop,
	}
	s.mu.Unlock()

	return nil
}

// CurrentTime returns the effective elapsed time for a name: live clock
// arithmetic while playing, the frozen offset while paused, 0 when the
// name is unknown. Read-only; never mutates state.
func (s *Session) CurrentTime(name string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pb, ok := s.playing[name]; ok {
		return s.elapsedLocked(pb)
	}
	if stored, ok := s.offsets[name]; ok {
		return stored
	}
	return 0
}

// elapsedLocked computes engine clock minus start time plus the offset
// the source started from. Caller must hold s.mu with pb active.
func (s *Session) elapsedLocked(pb *playback) float64 {
	return s.eng.Clock() - pb.startedAt + pb.offset
}

// SetVolume routes the named playback through a gain stage (1.0 =
// unity). No-op when not playing.
func (s *Session) SetVolume(name string, level float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pb, ok := s.playing[name]; ok {
		pb.source.SetGain(level)
	}
}

// SetPlaybackRate adjusts the active source's rate live (1.0 = normal).
// No-op when not playing.
func (s *Session) SetPlaybackRate(name string, rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pb, ok := s.playing[name]; ok {
		pb.source.SetRate(rate)
	}
}

// AddEffect splices a processing stage between the active source and the
// output. No-op when not playing.
func (s *Session) AddEffect(name string, effect engine.Effect) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pb, ok := s.playing[name]; ok {
		pb.source.AddEffect(effect)
	}
}

// On registers a listener for the exact (kind, name) pair and returns a
// registration handle for Off.
func (s *Session) On(kind EventKind, name string, fn Listener) string {
	return s.events.add(kind, name, fn)
}

// Off removes a listener by its registration handle.
func (s *Session) Off(kind EventKind, name, id string) {
	s.events.remove(kind, name, id)
}

// Unload stops playback if active, removes the clip, offset, and
// descriptor for the name, purges it from every listener bucket, and
// forgets any pending decode so a late worker response is discarded.
func (s *Session) Unload(name string) {
	s.mu.Lock()
	pb, wasPlaying := s.playing[name]
	if wasPlaying {
		pb.source.Stop()
		delete(s.playing, name)
	}
	delete(s.clips, name)
	delete(s.offsets, name)
	delete(s.pending, name)
	s.mu.Unlock()

	if wasPlaying {
		s.events.emit(Event{Kind: EventEnd, Name: name})
	}
	s.events.purge(name)
}

// Dispose stops all active sources, tears down the engine and worker,
// and clears every store. Idempotent; subsequent operations lazily
// recreate the engine and worker rather than failing.
func (s *Session) Dispose() {
	s.mu.Lock()
	eng := s.eng
	s.eng = nil
	w := s.worker
	s.worker = nil

	srcs := make([]engine.Source, 0, len(s.playing))
	for _, pb := range s.playing {
		srcs = append(srcs, pb.source)
	}

	s.clips = make(map[string]*audio.Clip)
	s.playing = make(map[string]*playback)
	s.offsets = make(map[string]float64)
	s.pending = make(map[string]struct{})
	s.mu.Unlock()

	for _, src := range srcs {
		src.Stop()
	}
	if w != nil {
		w.close()
	}
	if eng != nil {
		if err := eng.Close(); err != nil {
			log.Printf("Engine close failed: %v", err)
		}
	}

	s.events.clear()
}
