// ABOUTME: Package documentation for audio types
// ABOUTME: Describes formats, clips, and sample conversion helpers

// Package audio defines the audio data types shared across clipdeck:
// stream formats, decoded clips, and sample width conversions between
// 16-bit, 24-bit, and the internal int32 representation.
package audio
