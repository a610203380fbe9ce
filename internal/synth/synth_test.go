package synth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hammamikhairi/nayru/internal/domain"
	mocktest "github.com/hammamikhairi/nayru/internal/synth/testing"
)

// fixedEpoch pins the epoch and supplies no live config, so chunks keep
// the Config they were stamped with.
type fixedEpoch uint64

func (f fixedEpoch) CurrentEpoch() uint64 { return uint64(f) }

func (f fixedEpoch) Config() domain.Config { return domain.Config{} }

func (f fixedEpoch) SetLastError(string) {}

func newMockServer(m *mocktest.MockUpstream) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail, fatal := m.ShouldFail(); fail {
			if fatal {
				w.WriteHeader(http.StatusBadRequest)
			} else {
				w.WriteHeader(http.StatusServiceUnavailable)
			}
			return
		}
		w.Header().Set("Content-Type", "audio/wav")
		w.Write(m.WAV())
	}))
}

func TestSynthesizerRunEmitsInOrder(t *testing.T) {
	mock := mocktest.NewMockUpstream()
	srv := newMockServer(mock)
	defer srv.Close()

	s := New(nil, WithWorkers(4), WithTimeout(time.Second))

	in := make(chan domain.Chunk, 5)
	out := make(chan domain.Clip, 5)
	for i := 0; i < 5; i++ {
		in <- domain.Chunk{Epoch: 1, Index: i, Text: "hello", Config: domain.Config{KokoroURL: srv.URL, Voice: "af_heart", Speed: 1.0}, IsLast: i == 4}
	}
	close(in)

	err := s.Run(context.Background(), fixedEpoch(1), in, out)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	close(out)

	i := 0
	for clip := range out {
		if clip.Index != i {
			t.Errorf("clip out of order: got index %d at position %d", clip.Index, i)
		}
		i++
	}
	if i != 5 {
		t.Errorf("expected 5 clips, got %d", i)
	}
}

func TestSynthesizerDropsStaleEpoch(t *testing.T) {
	mock := mocktest.NewMockUpstream()
	srv := newMockServer(mock)
	defer srv.Close()

	s := New(nil, WithWorkers(2))

	in := make(chan domain.Chunk, 2)
	out := make(chan domain.Clip, 2)
	in <- domain.Chunk{Epoch: 1, Index: 0, Text: "stale", Config: domain.Config{KokoroURL: srv.URL, Voice: "v", Speed: 1.0}}
	close(in)

	// Current epoch is 2; the chunk stamped epoch 1 must be dropped without
	// an upstream call.
	if err := s.Run(context.Background(), fixedEpoch(2), in, out); err != nil {
		t.Fatalf("Run: %v", err)
	}
	close(out)

	if mock.Calls() != 0 {
		t.Errorf("expected no upstream calls for stale chunk, got %d", mock.Calls())
	}
	if _, ok := <-out; ok {
		t.Error("expected no clips emitted for stale chunk")
	}
}

func TestSynthesizerRetriesTransientThenSucceeds(t *testing.T) {
	mock := mocktest.NewMockUpstream()
	mock.FailNext(1, false)
	srv := newMockServer(mock)
	defer srv.Close()

	s := New(nil, WithWorkers(1))

	in := make(chan domain.Chunk, 1)
	out := make(chan domain.Clip, 1)
	in <- domain.Chunk{Epoch: 1, Index: 0, Text: "retry me", Config: domain.Config{KokoroURL: srv.URL, Voice: "v", Speed: 1.0}, IsLast: true}
	close(in)

	if err := s.Run(context.Background(), fixedEpoch(1), in, out); err != nil {
		t.Fatalf("Run: %v", err)
	}
	close(out)

	clip, ok := <-out
	if !ok {
		t.Fatal("expected a clip after transient retry succeeded")
	}
	if clip.SampleRate != mock.SampleRate {
		t.Errorf("SampleRate = %d, want %d", clip.SampleRate, mock.SampleRate)
	}
}

func TestSynthesizerFatalDoesNotRetry(t *testing.T) {
	mock := mocktest.NewMockUpstream()
	mock.FailNext(5, true)
	srv := newMockServer(mock)
	defer srv.Close()

	s := New(nil, WithWorkers(1))

	in := make(chan domain.Chunk, 1)
	out := make(chan domain.Clip, 1)
	in <- domain.Chunk{Epoch: 1, Index: 0, Text: "fatal", Config: domain.Config{KokoroURL: srv.URL, Voice: "v", Speed: 1.0}, IsLast: true}
	close(in)

	err := s.Run(context.Background(), fixedEpoch(1), in, out)
	if err == nil {
		t.Fatal("expected ErrAllChunksFailed for a single permanently-failing chunk")
	}
	if mock.Calls() != 1 {
		t.Errorf("expected exactly 1 call for a fatal error (no retry), got %d", mock.Calls())
	}
}

func TestSynthesizerCache(t *testing.T) {
	mock := mocktest.NewMockUpstream()
	srv := newMockServer(mock)
	defer srv.Close()

	cache := NewAudioCache("", false, nil)
	s := New(nil, WithWorkers(1), WithCache(cache))

	cfg := domain.Config{KokoroURL: srv.URL, Voice: "v", Speed: 1.0}
	for i := 0; i < 2; i++ {
		in := make(chan domain.Chunk, 1)
		out := make(chan domain.Clip, 1)
		in <- domain.Chunk{Epoch: 1, Index: 0, Text: "same text", Config: cfg, IsLast: true}
		close(in)
		if err := s.Run(context.Background(), fixedEpoch(1), in, out); err != nil {
			t.Fatalf("Run iteration %d: %v", i, err)
		}
		close(out)
		<-out
	}

	if mock.Calls() != 1 {
		t.Errorf("expected a single upstream call thanks to the cache, got %d", mock.Calls())
	}
}

func TestDecodeWAVRejectsMalformed(t *testing.T) {
	if _, err := decodeWAV([]byte("not a wav")); err == nil {
		t.Error("expected error decoding garbage input")
	}
}

func TestDecodeWAVRoundtrip(t *testing.T) {
	mock := mocktest.NewMockUpstream()
	mock.SampleRate = 22050
	mock.Channels = 2
	mock.SamplesToGen = 10

	decoded, err := decodeWAV(mock.WAV())
	if err != nil {
		t.Fatalf("decodeWAV: %v", err)
	}
	if decoded.SampleRate != 22050 || decoded.Channels != 2 {
		t.Errorf("got rate=%d channels=%d, want 22050/2", decoded.SampleRate, decoded.Channels)
	}
	if len(decoded.Samples) != 20 {
		t.Errorf("got %d samples, want 20", len(decoded.Samples))
	}
}

// liveState returns a real config, the way the engine's Control block
// does, so Run re-snapshots it at the chunk boundary.
type liveState struct {
	epoch uint64
	cfg   domain.Config
}

func (l liveState) CurrentEpoch() uint64  { return l.epoch }
func (l liveState) Config() domain.Config { return l.cfg }
func (l liveState) SetLastError(string)   {}

func TestSynthesizerSnapshotsConfigPerChunk(t *testing.T) {
	var mu sync.Mutex
	var speeds []float32
	mock := mocktest.NewMockUpstream()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Speed float32 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		mu.Lock()
		speeds = append(speeds, body.Speed)
		mu.Unlock()
		w.Write(mock.WAV())
	}))
	defer srv.Close()

	s := New(nil, WithWorkers(1))

	stamped := domain.Config{KokoroURL: srv.URL, Voice: "v", Speed: 1.5}
	live := liveState{epoch: 1, cfg: domain.Config{KokoroURL: srv.URL, Voice: "v", Speed: 0.75}}

	in := make(chan domain.Chunk, 1)
	out := make(chan domain.Clip, 1)
	in <- domain.Chunk{Epoch: 1, Index: 0, Text: "hi", Config: stamped, IsLast: true}
	close(in)

	if err := s.Run(context.Background(), live, in, out); err != nil {
		t.Fatalf("Run: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(speeds) != 1 || speeds[0] != 0.75 {
		t.Errorf("upstream saw speeds %v, want the live config's 0.75", speeds)
	}
}

// errRecorder behaves like fixedEpoch(1) but captures last_error writes.
type errRecorder struct {
	mu      sync.Mutex
	lastErr string
}

func (e *errRecorder) CurrentEpoch() uint64  { return 1 }
func (e *errRecorder) Config() domain.Config { return domain.Config{} }

func (e *errRecorder) SetLastError(msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastErr = msg
}

func (e *errRecorder) last() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

func TestSynthesizerPartialFailureRecordsLastError(t *testing.T) {
	mock := mocktest.NewMockUpstream()
	mock.FailNext(1, true) // first chunk fails fatally, the rest succeed
	srv := newMockServer(mock)
	defer srv.Close()

	s := New(nil, WithWorkers(1))
	rec := &errRecorder{}

	in := make(chan domain.Chunk, 2)
	out := make(chan domain.Clip, 2)
	cfg := domain.Config{KokoroURL: srv.URL, Voice: "v", Speed: 1.0}
	in <- domain.Chunk{Epoch: 1, Index: 0, Text: "fails", Config: cfg}
	in <- domain.Chunk{Epoch: 1, Index: 1, Text: "plays", Config: cfg, IsLast: true}
	close(in)

	if err := s.Run(context.Background(), rec, in, out); err != nil {
		t.Fatalf("Run should succeed when only some chunks fail: %v", err)
	}
	close(out)

	if got := rec.last(); got == "" {
		t.Error("expected last_error to mention the skipped chunk")
	} else if !strings.Contains(got, "chunk 0") {
		t.Errorf("last_error = %q, want it to name chunk 0", got)
	}

	var clips []domain.Clip
	for clip := range out {
		clips = append(clips, clip)
	}
	if len(clips) != 2 {
		t.Fatalf("got %d clips, want 2 (placeholder + real)", len(clips))
	}
	if len(clips[0].Samples) != 0 {
		t.Error("failed chunk should emit an empty placeholder clip")
	}
	if len(clips[1].Samples) == 0 {
		t.Error("surviving chunk should carry samples")
	}
}
