package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hammamikhairi/nayru/internal/domain"
	"github.com/hammamikhairi/nayru/internal/engine"
	mockplayer "github.com/hammamikhairi/nayru/internal/player/testing"
	"github.com/hammamikhairi/nayru/internal/synth"
	mocksynth "github.com/hammamikhairi/nayru/internal/synth/testing"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	mock := mocksynth.NewMockUpstream()
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(mock.WAV())
	}))
	t.Cleanup(upstream.Close)

	syn := synth.New(nil, synth.WithWorkers(2))
	cfg := domain.Config{KokoroURL: upstream.URL, Voice: "af_heart", Speed: 1.0}
	eng := engine.New(context.Background(), cfg, syn, mockplayer.NewMockSink(), nil)
	t.Cleanup(eng.Close)

	return New(eng, nil)
}

func TestHandleSpeakReturnsStatus(t *testing.T) {
	s := newTestServer(t)

	body, _ := json.Marshal(map[string]string{"text": "Hello. World."})
	req := httptest.NewRequest(http.MethodPost, "/speak", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		OK           bool `json:"ok"`
		QueuedChunks int  `json:"queued_chunks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !resp.OK || resp.QueuedChunks != 2 {
		t.Errorf("response = %+v, want ok with 2 queued chunks", resp)
	}
}

func TestHandleSpeakRejectsEmptyText(t *testing.T) {
	s := newTestServer(t)

	body, _ := json.Marshal(map[string]string{"text": ""})
	req := httptest.NewRequest(http.MethodPost, "/speak", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleStatusAndStop(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stop", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("stop status = %d", rec.Code)
	}
}

func TestHandlePreviewSplit(t *testing.T) {
	s := newTestServer(t)

	body, _ := json.Marshal(map[string]string{"text": "# Heading\n\nBody text.\n\n`code`"})
	req := httptest.NewRequest(http.MethodPost, "/preview_split", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Chunks []string `json:"chunks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(resp.Chunks) != 3 {
		t.Errorf("chunks = %v, want 3 entries", resp.Chunks)
	}
}

func TestHandleHealthz(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestHandleSetConfigGetConfig(t *testing.T) {
	s := newTestServer(t)

	body, _ := json.Marshal(configPayload{KokoroURL: "http://x", Voice: "af_heart", Speed: 1.25})
	req := httptest.NewRequest(http.MethodPost, "/set_config", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("set_config status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/get_config", nil))
	var cfg configPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &cfg); err != nil {
		t.Fatalf("decoding get_config: %v", err)
	}
	if cfg.Speed != 1.25 {
		t.Errorf("Speed = %v, want 1.25", cfg.Speed)
	}
}

func TestHandleSetConfigPartialPatchMerges(t *testing.T) {
	s := newTestServer(t)
	before := s.eng.GetConfig()

	req := httptest.NewRequest(http.MethodPost, "/set_config", bytes.NewReader([]byte(`{"speed": 1.2}`)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("set_config status = %d, body = %s", rec.Code, rec.Body.String())
	}

	after := s.eng.GetConfig()
	if after.Speed != 1.2 {
		t.Errorf("Speed = %v, want 1.2", after.Speed)
	}
	if after.KokoroURL != before.KokoroURL || after.Voice != before.Voice {
		t.Errorf("partial patch wiped untouched fields: %+v", after)
	}
}
