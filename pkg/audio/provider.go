// ABOUTME: Sample provider contract
// ABOUTME: Invoked by a stream once per period to fill its buffer
package audio

// Provider fills one period of audio. Process runs on the output's audio
// goroutine and must populate the whole buffer before returning. It should
// not allocate, lock or block.
type Provider interface {
	Process(buf *Buffer) error
}

// ProviderFunc adapts a plain function to the Provider interface
type ProviderFunc func(buf *Buffer) error

// Process calls f(buf)
func (f ProviderFunc) Process(buf *Buffer) error {
	return f(buf)
}
