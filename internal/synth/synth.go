// Package synth implements the Synthesizer pipeline stage: it turns
// ordered Chunks into ordered Clips, fanning requests out to a bounded pool
// of upstream HTTP workers and fanning the results back in in the original
// order, regardless of which worker finished first.
package synth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/hammamikhairi/nayru/internal/domain"
	"github.com/hammamikhairi/nayru/internal/logger"
	"github.com/hammamikhairi/nayru/internal/telemetry"
)

// retry policy: two retries, exponential backoff starting at 200ms.
var retryDelays = []time.Duration{200 * time.Millisecond, 400 * time.Millisecond}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithWorkers sets the upstream fan-out width. Default 2.
func WithWorkers(n int) Option {
	return func(s *Synthesizer) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithCache attaches a two-tier audio cache.
func WithCache(c *AudioCache) Option {
	return func(s *Synthesizer) { s.cache = c }
}

// WithRateLimit bounds upstream request rate. A nil limiter (the default)
// applies no limiting.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(s *Synthesizer) {
		if r > 0 {
			s.limiter = rate.NewLimiter(r, burst)
		}
	}
}

// WithTimeout sets the per-request upstream HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Synthesizer) { s.client = NewClient(d) }
}

// WithMetrics attaches telemetry instruments. A nil Metrics (the default)
// records nothing.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Synthesizer) { s.metrics = m }
}

// Synthesizer is the second pipeline stage. It owns the upstream HTTP
// client, the worker pool semaphore, and the audio cache; Run drives one
// utterance's Chunk stream to completion or cancellation.
type Synthesizer struct {
	client  *Client
	workers int
	cache   *AudioCache
	limiter *rate.Limiter
	metrics *telemetry.Metrics
	log     *logger.Logger
}

// New constructs a Synthesizer with sensible defaults (2 workers, 30s
// upstream timeout, no cache, no rate limit), overridden by opts.
func New(log *logger.Logger, opts ...Option) *Synthesizer {
	if log != nil {
		log = log.With("synth")
	}
	s := &Synthesizer{
		client:  NewClient(30 * time.Second),
		workers: 2,
		log:     log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// pipelineState exposes the slice of the Control block this stage needs:
// the cancellation epoch (checked before any expensive upstream call),
// the live Config (snapshotted once per chunk as it is issued to a
// worker), and the last_error field that status() surfaces when a chunk
// is skipped.
type pipelineState interface {
	CurrentEpoch() uint64
	Config() domain.Config
	SetLastError(msg string)
}

// Run consumes chunks from in and emits clips to out in strictly increasing
// Index order, fanned out across s.workers upstream workers. Run returns
// when in is closed and all in-flight work has drained, or when ctx is
// cancelled. Chunks whose Epoch no longer matches ctrl.CurrentEpoch() are
// dropped without incurring an upstream call.
func (s *Synthesizer) Run(ctx context.Context, ctrl pipelineState, in <-chan domain.Chunk, out chan<- domain.Clip) error {
	sem := semaphore.NewWeighted(int64(s.workers))

	var (
		mu        sync.Mutex
		pending   = make(map[int]domain.Clip)
		nextIndex int
		failures  int
		total     int
		wg        sync.WaitGroup
	)

	emitReady := func() {
		mu.Lock()
		defer mu.Unlock()
		for {
			clip, ok := pending[nextIndex]
			if !ok {
				return
			}
			delete(pending, nextIndex)
			nextIndex++
			// Last epoch check before the clip crosses into queue B.
			if clip.Epoch != ctrl.CurrentEpoch() {
				continue
			}
			select {
			case out <- clip:
			case <-ctx.Done():
				return
			}
		}
	}

	for chunk := range in {
		if ctrl.CurrentEpoch() != chunk.Epoch {
			continue // stale: dropped at the pipeline boundary
		}
		total++

		// Config takes effect at the chunk boundary: re-snapshot as the
		// chunk is issued, so a set_config mid-utterance applies from the
		// next chunk on while anything in flight keeps its own snapshot.
		if cfg := ctrl.Config(); cfg.KokoroURL != "" {
			chunk.Config = cfg
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		chunk := chunk
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			if s.limiter != nil {
				if err := s.limiter.Wait(ctx); err != nil {
					return
				}
			}

			// The upstream call is the expensive part; skip it when a new
			// epoch already invalidated this chunk while it sat in queue A.
			if ctrl.CurrentEpoch() != chunk.Epoch {
				return
			}

			clip, err := s.synthesizeWithRetry(ctx, chunk)
			if s.metrics != nil {
				s.metrics.RecordChunkResult(ctx, chunk.Config.Voice, err == nil)
			}
			if err != nil {
				mu.Lock()
				failures++
				mu.Unlock()
				// The utterance proceeds without this chunk; the skip is
				// visible through status() rather than a failed speak().
				// A chunk superseded mid-flight stays silent: its error
				// belongs to an utterance nobody can observe anymore.
				if ctrl.CurrentEpoch() == chunk.Epoch {
					ctrl.SetLastError(fmt.Sprintf("chunk %d skipped: %v", chunk.Index, err))
				}
				if s.log != nil {
					s.log.Warn("chunk %d failed permanently: %v", chunk.Index, err)
				}
				// Emit a silent placeholder so index ordering isn't broken;
				// the Player treats a zero-sample clip as a no-op.
				clip = domain.Clip{Epoch: chunk.Epoch, Index: chunk.Index, IsLast: chunk.IsLast}
			}

			mu.Lock()
			pending[clip.Index] = clip
			mu.Unlock()
			emitReady()
		}()
	}

	wg.Wait()
	emitReady()

	if total > 0 && failures == total {
		return fmt.Errorf("%w: all %d chunks failed", domain.ErrAllChunksFailed, total)
	}
	return nil
}

func (s *Synthesizer) synthesizeWithRetry(ctx context.Context, chunk domain.Chunk) (domain.Clip, error) {
	if s.cache != nil {
		if data, ok := s.cache.Get(chunk.Config.Voice, chunk.Config.Speed, chunk.Text); ok {
			if s.metrics != nil {
				s.metrics.CacheHits.Add(ctx, 1)
			}
			return s.toClip(chunk, data)
		}
		if s.metrics != nil {
			s.metrics.CacheMisses.Add(ctx, 1)
		}
	}

	var lastErr error
	attempts := 1 + len(retryDelays)
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if s.metrics != nil {
				s.metrics.ChunkRetries.Add(ctx, 1)
			}
			select {
			case <-time.After(retryDelays[attempt-1]):
			case <-ctx.Done():
				return domain.Clip{}, ctx.Err()
			}
		}

		start := time.Now()
		data, err := s.client.Synthesize(ctx, chunk.Config.KokoroURL, chunk)
		if s.metrics != nil {
			s.metrics.SynthesisDuration.Record(ctx, time.Since(start).Seconds())
		}
		if err == nil {
			if s.cache != nil {
				s.cache.Put(chunk.Config.Voice, chunk.Config.Speed, chunk.Text, data)
			}
			return s.toClip(chunk, data)
		}
		lastErr = err
		if isFatal(err) {
			break
		}
		if s.log != nil {
			s.log.Debug("chunk %d attempt %d failed: %v", chunk.Index, attempt+1, err)
		}
	}
	return domain.Clip{}, lastErr
}

func (s *Synthesizer) toClip(chunk domain.Chunk, wavData []byte) (domain.Clip, error) {
	decoded, err := decodeWAV(wavData)
	if err != nil {
		return domain.Clip{}, fmt.Errorf("%w: %v", domain.ErrUpstreamFatal, err)
	}
	return domain.Clip{
		Epoch:      chunk.Epoch,
		Index:      chunk.Index,
		SampleRate: decoded.SampleRate,
		Channels:   decoded.Channels,
		Samples:    decoded.Samples,
		IsLast:     chunk.IsLast,
	}, nil
}

func isFatal(err error) bool {
	return errors.Is(err, domain.ErrUpstreamFatal)
}
