// ABOUTME: Package documentation for the audio engine
// ABOUTME: Describes the engine capability and the oto-backed implementation

// Package engine provides the platform audio capability: decoding encoded
// payloads into clips and playing them through single-use sources with
// gain, rate, and effect stages.
//
// The default implementation (NewOto) is backed by the oto library. Oto
// only allows one audio context per process, so the context is shared and
// suspended on Close rather than destroyed; creating a new engine resumes
// it.
package engine
