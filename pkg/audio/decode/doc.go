// ABOUTME: Package documentation for audio decoding
// ABOUTME: Describes supported codecs and the decoding entry points

// Package decode converts encoded audio payloads into PCM clips.
//
// Full-payload decoding (Bytes) sniffs the codec from magic bytes and
// supports WAV, MP3, FLAC, and Ogg/Opus. Packet-level decoders (PCM,
// Opus) implement the Decoder interface for callers that already know
// the stream format.
package decode
