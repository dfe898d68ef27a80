// ABOUTME: Audio output package for playing audio
// ABOUTME: Provides the Output interface and device, network and file backends
// Package output provides the backends that pull float32 frames from a
// stream and deliver them somewhere: a sound card, a websocket, a WAV file,
// or nowhere at all.
//
// Supported backends:
//   - oto: ebitengine/oto (default)
//   - malgo: miniaudio via gen2brain/malgo
//   - portaudio: PortAudio (build with -tags portaudio)
//   - null: paced at the buffer period, discards audio
//   - websocket: paced at the buffer period, broadcasts blocks to listeners
//   - wav: renders a fixed number of frames to a file
//
// Example:
//
//	out, err := output.New("oto", output.Options{})
//	err = out.Open(audio.NewFormat(44100, 2), 4096, src)
//	err = out.Start()
package output
