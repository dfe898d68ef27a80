// ABOUTME: Tone generators package
// ABOUTME: Provides the sine oscillator used as the default sample provider
// Package tone provides sample providers that synthesize test tones.
//
// Sine reproduces the classic demo oscillator: a frame counter divided by a
// precomputed divisor and fed to sin, duplicated to every channel.
//
// Example:
//
//	sine := tone.NewSine(44100, tone.DefaultFrequency)
//	ctx.SetProvider(sine)
package tone
