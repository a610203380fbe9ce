// Package engine implements the Nayru voice engine façade: the single
// entry point embedders and the HTTP/CLI front ends call into. It wires
// the Preparer, Synthesizer, and Player stages around a shared Control
// block and exposes the eight operations described by the engine's
// public contract: Speak, Stop, Pause, Resume, Skip, Status, SetConfig,
// GetConfig.
package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hammamikhairi/nayru/internal/control"
	"github.com/hammamikhairi/nayru/internal/domain"
	"github.com/hammamikhairi/nayru/internal/logger"
	"github.com/hammamikhairi/nayru/internal/player"
	"github.com/hammamikhairi/nayru/internal/synth"
	"github.com/hammamikhairi/nayru/internal/textproc"
)

// Engine is the voice engine façade. It is safe for concurrent use: Speak,
// Stop, Pause, Resume, and Skip may be called from different goroutines
// (an HTTP handler and a CLI command, for instance) without external
// synchronization.
type Engine struct {
	ctrl   *control.Control
	prep   *textproc.Preparer
	synth  *synth.Synthesizer
	player *player.Player
	log    *logger.Logger

	clipCh chan domain.Clip
	runCtx context.Context
	cancel context.CancelFunc
}

// New wires a complete engine: it starts the Player's dedicated goroutine
// immediately, since the Player outlives any single speak() call.
func New(ctx context.Context, cfg domain.Config, syn *synth.Synthesizer, sink domain.AudioSink, log *logger.Logger) *Engine {
	if log != nil {
		log = log.With("engine")
	}
	runCtx, cancel := context.WithCancel(ctx)

	e := &Engine{
		ctrl:   control.New(cfg),
		prep:   textproc.New(log),
		synth:  syn,
		player: player.New(sink, log),
		log:    log,
		clipCh: make(chan domain.Clip, 4),
		runCtx: runCtx,
		cancel: cancel,
	}

	go e.player.Run(runCtx, e.ctrl, e.clipCh)
	return e
}

// Close stops the Player's dedicated goroutine. The Engine is unusable
// afterward.
func (e *Engine) Close() {
	e.cancel()
}

// Speak begins synthesizing and playing text. It cancels any utterance
// already in flight (a new epoch makes every stale Chunk/Clip from the
// previous one get dropped at the next pipeline boundary) and returns a
// status snapshot once the text has been segmented into chunks and handed
// to the Synthesizer — it does not block until playback finishes.
func (e *Engine) Speak(ctx context.Context, text string) (domain.Status, error) {
	if err := ctx.Err(); err != nil {
		return domain.Status{}, err
	}
	if strings.TrimSpace(text) == "" {
		return domain.Status{}, fmt.Errorf("%w: text must not be empty", domain.ErrInvalidInput)
	}

	corrID := uuid.New().String()
	cfg := e.ctrl.Config()

	// Equivalent to stop() then speak(): the bump invalidates everything
	// in flight, and the player reset cuts the clip currently in the sink
	// and wakes a paused loop so the new utterance actually plays.
	epoch := e.ctrl.NextEpoch()
	e.player.Stop()
	e.ctrl.Reset()

	chunks := e.prep.Prepare(epoch, text, cfg)
	if len(chunks) == 0 {
		e.ctrl.SetState(domain.Idle)
		return domain.Status{}, fmt.Errorf("%w: text produced no speakable content", domain.ErrInvalidInput)
	}

	e.ctrl.SetTotal(len(chunks))
	e.ctrl.SetState(domain.Converting)
	e.log.Info("[%s] speak: %d chunk(s) queued at epoch %d", corrID, len(chunks), epoch)

	chunkCh := make(chan domain.Chunk, len(chunks))
	for _, c := range chunks {
		chunkCh <- c
	}
	close(chunkCh)

	// Synthesis outlives the Speak call (and any HTTP request context it
	// arrived under), so it runs on the engine's own context; the epoch,
	// not ctx, is what cancels it when a new speak()/stop() lands.
	go func() {
		err := e.synth.Run(e.runCtx, e.ctrl, chunkCh, e.clipCh)
		if err != nil {
			e.ctrl.SetLastError(err.Error())
			if e.ctrl.CurrentEpoch() == epoch {
				e.ctrl.SetState(domain.Idle)
			}
			e.log.Error("[%s] synthesis failed: %v", corrID, err)
			return
		}
		e.log.Debug("[%s] synthesis stream drained", corrID)
	}()

	return e.Status(), nil
}

// Stop halts playback and abandons whatever is in flight. The pipeline
// returns to Idle; a subsequent Speak starts a fresh utterance.
func (e *Engine) Stop() {
	e.ctrl.NextEpoch()
	e.player.Stop()
	e.ctrl.FinishUtterance()
	e.log.Debug("stop")
}

// Pause suspends playback without discarding queued audio.
func (e *Engine) Pause() {
	if e.ctrl.State() != domain.Playing {
		return
	}
	e.player.Pause()
	e.ctrl.SetState(domain.Paused)
	e.log.Debug("pause")
}

// Resume continues playback after a Pause.
func (e *Engine) Resume() {
	if e.ctrl.State() != domain.Paused {
		return
	}
	e.player.Resume()
	e.ctrl.SetState(domain.Playing)
	e.log.Debug("resume")
}

// Skip abandons the currently playing clip and advances to the next one
// already in the pipeline. It does not advance the epoch, so upstream
// Chunks already queued for the current utterance keep flowing.
func (e *Engine) Skip() {
	e.player.Skip()
	e.log.Debug("skip")
}

// Status returns a point-in-time snapshot of the pipeline. The queue
// length reflects the number of decoded clips currently buffered ahead
// of the Player.
func (e *Engine) Status() domain.Status {
	st := e.ctrl.Status()
	st.QueueLength = len(e.clipCh)
	return st
}

// SetConfig replaces the live Config. It validates the new values and
// takes effect at the next chunk the Synthesizer issues, including chunks
// of the current utterance; chunks already in flight keep the Config
// snapshot they were issued with.
func (e *Engine) SetConfig(cfg domain.Config) error {
	if err := validate(cfg); err != nil {
		return err
	}
	e.ctrl.SetConfig(cfg)
	e.log.Debug("set_config: voice=%s speed=%.2f", cfg.Voice, cfg.Speed)
	return nil
}

// GetConfig returns the live Config.
func (e *Engine) GetConfig() domain.Config {
	return e.ctrl.Config()
}

func validate(cfg domain.Config) error {
	if cfg.KokoroURL == "" {
		return fmt.Errorf("%w: kokoro_url must not be empty", domain.ErrInvalidConfig)
	}
	if cfg.Voice == "" {
		return fmt.Errorf("%w: voice must not be empty", domain.ErrInvalidConfig)
	}
	if cfg.Speed < domain.MinSpeed || cfg.Speed > domain.MaxSpeed {
		return fmt.Errorf("%w: speed %.2f out of range [%.1f, %.1f]", domain.ErrInvalidConfig, cfg.Speed, domain.MinSpeed, domain.MaxSpeed)
	}
	return nil
}
