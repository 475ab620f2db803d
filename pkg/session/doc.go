// ABOUTME: Package documentation for the audio session manager
// ABOUTME: Describes the control surface, event model, and decode offload

// Package session provides a name-indexed audio session manager: clips
// are loaded under logical names, played through single-use engine
// sources, and tracked with per-name playback offsets that stay correct
// across pause, seek, and stop.
//
// Decoding can run inline or be offloaded to a background worker
// (Config.OffloadDecode). Offloaded results are reconciled back into the
// session by name; responses may arrive in any order, and a response for
// a name that was unloaded or disposed in the meantime is discarded.
//
// Load failures are always reported through the error event; inline
// loads additionally return the error. There is no cancellation for an
// in-flight decode and no automatic retry.
package session
