// ABOUTME: Stream error taxonomy
// ABOUTME: Sentinel errors for configuration, device and callback failures
package stream

import "errors"

var (
	// ErrInvalidConfiguration is returned by New for unusable parameters
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrDeviceUnavailable is returned by Start when the output cannot be opened or started
	ErrDeviceUnavailable = errors.New("audio device unavailable")

	// ErrCallbackFailure wraps errors and panics raised by a provider
	ErrCallbackFailure = errors.New("callback failure")

	// ErrStopped is returned when starting or reading a stopped context
	ErrStopped = errors.New("stream stopped")
)
