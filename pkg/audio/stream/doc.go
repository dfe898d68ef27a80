// ABOUTME: Stream context package
// ABOUTME: Owns an output stream and invokes a provider once per period
// Package stream implements the audio context: an output stream with a fixed
// buffer size and sample rate that asks a Provider to fill one block per
// period.
//
// The output pulls bytes from the Context; whenever the current block has
// been consumed the Context zeroes it and invokes the provider again. Device
// requests and blocks need not line up, so a block may be delivered across
// several device requests.
//
// Lifecycle: Created → Started → Stopped. Start on a started context is a
// no-op; a stopped context cannot be restarted.
//
// Example:
//
//	out, _ := output.New("oto", output.Options{})
//	ctx, err := stream.New(stream.Config{
//	    BufferSize: 4096,
//	    SampleRate: 44100,
//	    Output:     out,
//	    Provider:   tone.NewSine(44100, 440),
//	})
//	err = ctx.Start()
//	defer ctx.Stop()
package stream
