// Package player implements the Player pipeline stage: a dedicated
// goroutine that drains Clips in order and pushes them through the host's
// native audio output, reconfiguring the sink on the fly when sample rate
// or channel count changes between clips.
package player

import (
	"bytes"
	"encoding/binary"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/hammamikhairi/nayru/internal/domain"
	"github.com/hammamikhairi/nayru/internal/logger"
)

// Sink is an oto-backed domain.AudioSink. Unlike a single fixed-format
// audio context, Configure may tear down and recreate the underlying
// oto.Context when the requested sample rate or channel count changes,
// since oto ties both to context creation.
type Sink struct {
	log *logger.Logger

	mu        sync.Mutex
	octx      *oto.Context
	rate      int
	channels  int
	cur       *oto.Player
	paused    bool
	cancelled bool
}

// NewSink constructs an unconfigured Sink. Configure must be called before
// the first Write.
func NewSink(log *logger.Logger) *Sink {
	if log != nil {
		log = log.With("player")
	}
	return &Sink{log: log}
}

// Configure (re)opens the oto context for sampleRate/channels. A no-op if
// already configured identically.
func (s *Sink) Configure(sampleRate, channels int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.octx != nil && s.rate == sampleRate && s.channels == channels {
		return nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return err
	}
	<-ready

	s.octx = ctx
	s.rate = sampleRate
	s.channels = channels
	if s.log != nil {
		s.log.Debug("sink reconfigured (rate=%d, channels=%d)", sampleRate, channels)
	}
	return nil
}

// Write plays samples to completion, polling for Pause/Resume and bailing
// out early if Clear is called mid-playback.
func (s *Sink) Write(samples []int16) error {
	s.mu.Lock()
	octx := s.octx
	s.cancelled = false
	s.mu.Unlock()

	if octx == nil {
		return domain.ErrSinkError
	}
	if len(samples) == 0 {
		return nil
	}

	pcm := make([]byte, len(samples)*2)
	for i, smp := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:i*2+2], uint16(smp))
	}

	p := octx.NewPlayer(bytes.NewReader(pcm))
	s.mu.Lock()
	s.cur = p
	paused := s.paused
	s.mu.Unlock()
	if !paused {
		p.Play()
	}

	for {
		s.mu.Lock()
		cancelled := s.cancelled
		paused := s.paused
		s.mu.Unlock()

		if cancelled {
			p.Close()
			return nil
		}
		if paused {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if !p.IsPlaying() {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	s.mu.Lock()
	s.cur = nil
	s.mu.Unlock()
	return p.Close()
}

// Pause suspends the in-flight player, if any.
func (s *Sink) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
	if s.cur != nil {
		s.cur.Pause()
	}
}

// Resume continues the in-flight player, if any.
func (s *Sink) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
	if s.cur != nil {
		s.cur.Play()
	}
}

// Clear discards the in-flight player immediately, unblocking Write.
func (s *Sink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = true
	s.paused = false
	if s.cur != nil {
		s.cur.Pause()
	}
}

// Close stops and releases the in-flight oto player, if any. The oto
// context itself is left open.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur != nil {
		s.cur.Close()
		s.cur = nil
	}
	return nil
}
