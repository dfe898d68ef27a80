// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format, Buffer and the Provider contract
// Package audio provides the fundamental types shared by sinetone's streams,
// generators and outputs.
//
// This package defines:
//   - Format: Describes the stream format (sample rate, channels, float32 samples)
//   - Buffer: One period of interleaved little-endian float32 frames
//   - Provider: The contract a stream invokes once per period to fill a Buffer
//
// It also provides conversions from float32 samples to 16-bit PCM for outputs
// that cannot play float audio directly.
//
// Example:
//
//	format := audio.Format{SampleRate: 44100, Channels: 2}
//	buf := audio.NewBuffer(4096, format.Channels)
//	err := provider.Process(buf)
package audio
