package domain

import "context"

// SynthesisProvider converts one Chunk into a Clip. No type in this module
// implements it, and the engine does not accept one: engine.New takes a
// concrete *synth.Synthesizer, which always talks to the HTTP upstream.
type SynthesisProvider interface {
	Synthesize(ctx context.Context, chunk Chunk) (Clip, error)
}

// AudioSink plays decoded PCM through the host's native audio output.
// Configure and Write are called only from the Player's dedicated
// goroutine; Pause, Resume, and Clear may arrive from any goroutine while
// a Write is in flight, so implementations must synchronize internally.
type AudioSink interface {
	// Configure (re)opens the sink for the given sample rate and channel
	// count. Implementations may no-op if already configured identically.
	Configure(sampleRate, channels int) error

	// Write pushes interleaved PCM16 samples and blocks until they have
	// finished playing, honoring any Pause/Resume in the meantime. A Clear
	// call made while Write is blocked unblocks it early and discards the
	// remainder of the buffer.
	Write(samples []int16) error

	// Pause suspends output without discarding buffered samples.
	Pause()

	// Resume continues output from wherever Pause left off.
	Resume()

	// Clear discards any buffered-but-unplayed samples immediately.
	Clear()

	// Close releases the underlying device.
	Close() error
}
