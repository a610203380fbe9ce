// Package control implements the Control block shared by every pipeline
// stage: the cancellation epoch, the live Config snapshot, transport
// state, and the bookkeeping behind status(). Every method is safe for
// concurrent use; the epoch itself is lock-free so a boundary check never
// contends with a concurrent speak()/stop().
package control

import (
	"sync"
	"sync/atomic"

	"github.com/hammamikhairi/nayru/internal/domain"
)

// Control is the shared state block threaded through Preparer, Synthesizer,
// and Player. A new epoch, bumped by Speak or Stop, invalidates every Chunk
// and Clip stamped with an older epoch — the O(1) cancellation mechanism
// described by the pipeline design.
type Control struct {
	epoch atomic.Uint64

	mu          sync.Mutex
	cfg         domain.Config
	state       domain.State
	total       int
	currentIdx  *int
	queueLength int
	lastError   string
}

// New constructs a Control block seeded with the given initial Config.
func New(cfg domain.Config) *Control {
	c := &Control{cfg: cfg, state: domain.Idle}
	return c
}

// CurrentEpoch returns the live epoch. Called from pipeline stages at
// every boundary crossing to decide whether an in-flight item is stale.
func (c *Control) CurrentEpoch() uint64 {
	return c.epoch.Load()
}

// NextEpoch atomically advances and returns the new epoch, invalidating
// everything stamped with the previous one.
func (c *Control) NextEpoch() uint64 {
	return c.epoch.Add(1)
}

// Config returns a snapshot of the live Config.
func (c *Control) Config() domain.Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// SetConfig replaces the live Config. It does not bump the epoch: the
// Synthesizer picks the change up at the next chunk it issues, while
// chunks already in flight keep the snapshot they were issued with.
func (c *Control) SetConfig(cfg domain.Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg
}

// SetState transitions the transport state.
func (c *Control) SetState(s domain.State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

// State returns the current transport state.
func (c *Control) State() domain.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetTotal records how many chunks the current utterance was split into,
// for inclusion in Status.
func (c *Control) SetTotal(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total = n
}

// SetCurrentIndex records the index of the clip currently playing, or nil
// when nothing is.
func (c *Control) SetCurrentIndex(idx *int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentIdx = idx
}

// SetQueueLength records a queue depth for inclusion in Status. The engine
// does not call it: Engine.Status reports the number of decoded clips
// buffered ahead of the Player instead.
func (c *Control) SetQueueLength(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queueLength = n
}

// SetLastError records the most recent pipeline error's message. Cleared
// by the next successful speak().
func (c *Control) SetLastError(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastError = msg
}

// Status returns a point-in-time snapshot for status()/HTTP/CLI responses.
func (c *Control) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	var idx *int
	if c.currentIdx != nil {
		v := *c.currentIdx
		idx = &v
	}

	return domain.Status{
		State:        c.state,
		CurrentIndex: idx,
		Total:        c.total,
		QueueLength:  c.queueLength,
		Voice:        c.cfg.Voice,
		Speed:        c.cfg.Speed,
		LastError:    c.lastError,
	}
}

// FinishUtterance transitions to Idle and clears the per-utterance
// playback position after the last clip drains or a stop(). Unlike Reset
// it keeps lastError, which status() must keep surfacing until the next
// successful speak().
func (c *Control) FinishUtterance() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = domain.Idle
	c.currentIdx = nil
	c.total = 0
	c.queueLength = 0
}

// Reset clears per-utterance bookkeeping (total, current index, last
// error) ahead of a new speak() call, leaving Config untouched.
func (c *Control) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total = 0
	c.currentIdx = nil
	c.lastError = ""
}
