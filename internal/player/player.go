package player

import (
	"context"

	"github.com/hammamikhairi/nayru/internal/domain"
	"github.com/hammamikhairi/nayru/internal/logger"
)

// signalKind identifies a control-mailbox message. Only the latest signal
// matters — the mailbox has room for exactly one, and a new signal
// overwrites whatever hasn't been picked up yet.
type signalKind int

const (
	sigPause signalKind = iota
	sigResume
	sigStop
)

// Player is the third pipeline stage. It owns a single dedicated goroutine
// (Run) that drains Clips in order and writes them to an AudioSink,
// reconfiguring the sink between clips when format changes, and reacting
// to transport signals delivered through a single-slot mailbox so a
// backlog of stale signals can never build up.
type Player struct {
	sink domain.AudioSink
	log  *logger.Logger

	mailbox chan signalKind

	// paused is only touched on the Run goroutine.
	paused bool
}

// New constructs a Player around the given sink.
func New(sink domain.AudioSink, log *logger.Logger) *Player {
	if log != nil {
		log = log.With("player")
	}
	return &Player{
		sink:    sink,
		log:     log,
		mailbox: make(chan signalKind, 1),
	}
}

func (p *Player) signal(kind signalKind) {
	select {
	case p.mailbox <- kind:
	default:
		// Mailbox full: drain the stale signal and replace it. Latest
		// intent always wins over whatever the Player hasn't seen yet.
		select {
		case <-p.mailbox:
		default:
		}
		p.mailbox <- kind
	}
}

// Pause suspends playback immediately, mid-clip included: the sink call
// freezes the in-flight Write from this goroutine, and the mailbox signal
// tells the loop to stop dequeuing until Resume.
func (p *Player) Pause() {
	p.sink.Pause()
	p.signal(sigPause)
}

// Resume continues playback from wherever Pause left it.
func (p *Player) Resume() {
	p.sink.Resume()
	p.signal(sigResume)
}

// Skip abandons the clip currently in the sink; clearing it unblocks the
// in-flight Write and the loop naturally advances to the next clip.
func (p *Player) Skip() {
	p.sink.Clear()
}

// Stop abandons the in-flight clip and wakes a paused loop. Queued clips
// die on the epoch check, since every Stop is paired with an epoch bump.
func (p *Player) Stop() {
	p.sink.Clear()
	p.signal(sigStop)
}

// transport is the slice of the Control block the player thread owns: it
// is the single writer for state and current index, and it checks the
// epoch between clips so a clip from a superseded utterance never plays.
type transport interface {
	CurrentEpoch() uint64
	SetState(s domain.State)
	SetCurrentIndex(idx *int)
	FinishUtterance()
}

// Run drains in for the lifetime of the engine, writing each non-stale
// Clip to the sink in order. Stop and Skip only clear in-flight playback;
// the loop itself only ends when ctx is cancelled or in is closed, since
// one Player outlives any single utterance.
func (p *Player) Run(ctx context.Context, ctrl transport, in <-chan domain.Clip) {
	defer p.sink.Close()

	for {
		if p.paused {
			// A paused player consumes no clips; it waits for the next
			// transport signal.
			select {
			case <-ctx.Done():
				return
			case sig := <-p.mailbox:
				p.applySignal(sig)
			}
			continue
		}

		select {
		case <-ctx.Done():
			return
		case sig := <-p.mailbox:
			p.applySignal(sig)
		case clip, ok := <-in:
			if !ok {
				return
			}
			if clip.Epoch != ctrl.CurrentEpoch() {
				continue
			}
			p.playClip(ctrl, clip)
		}
	}
}

// playClip writes one clip to the sink, checking the mailbox once more
// first in case a signal arrived between the select branches above. After
// the last clip of an utterance drains (or is skipped), the transport
// returns to Idle.
func (p *Player) playClip(ctrl transport, clip domain.Clip) {
	defer func() {
		if clip.IsLast && clip.Epoch == ctrl.CurrentEpoch() {
			ctrl.FinishUtterance()
		}
	}()

	// Drain a pending signal first. A stop signal carries no drop decision
	// of its own: every stop is paired with an epoch bump, so the epoch
	// check below is what discards the superseded clip — a current-epoch
	// clip that merely arrived behind a stale stop still plays.
	select {
	case sig := <-p.mailbox:
		p.applySignal(sig)
	default:
	}

	// Re-verify the epoch at the state write: a stop() that landed after
	// the dequeue check must not see its Idle overwritten.
	if clip.Epoch != ctrl.CurrentEpoch() {
		return
	}
	idx := clip.Index
	ctrl.SetCurrentIndex(&idx)
	if !p.paused {
		ctrl.SetState(domain.Playing)
	}

	if len(clip.Samples) == 0 {
		return // placeholder clip for a chunk that failed synthesis
	}

	if err := p.sink.Configure(clip.SampleRate, clip.Channels); err != nil {
		if p.log != nil {
			p.log.Error("sink configure failed: %v", err)
		}
		return
	}

	if err := p.sink.Write(clip.Samples); err != nil && p.log != nil {
		p.log.Warn("sink write failed for clip %d: %v", clip.Index, err)
	}
}

// applySignal updates the loop's own bookkeeping. Sink calls already
// happened on the caller's goroutine; repeating them here would double
// up (a second Clear could cancel the clip that came after a Stop).
func (p *Player) applySignal(sig signalKind) {
	switch sig {
	case sigPause:
		p.paused = true
	case sigResume, sigStop:
		p.paused = false
	}
}
