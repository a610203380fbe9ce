package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hammamikhairi/nayru/internal/domain"
)

var errMalformedWAV = errors.New("malformed wav")

// speechRequest is the JSON body posted to the upstream Kokoro server.
type speechRequest struct {
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	Speed          float32 `json:"speed"`
	ResponseFormat string  `json:"response_format"`
}

// Client is the HTTP client for the upstream Kokoro TTS server, mirroring
// the shape of a small synchronous synthesis call: build a request, send
// it, read the whole body back. Unlike a single cloud provider binding,
// the base URL is per-request, since a live set_config can change it
// mid-session.
type Client struct {
	httpClient *http.Client
}

// NewClient creates an upstream TTS client with the given request timeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{httpClient: &http.Client{Timeout: timeout}}
}

// Synthesize posts one chunk of text to the upstream server and returns the
// raw response bytes unchecked. Errors are classified as
// ErrUpstreamTransient (5xx, timeout, connection failure — worth retrying)
// or ErrUpstreamFatal (4xx, or a request that cannot be built — retrying
// would just fail again). A malformed WAV body is classified later, when
// the Synthesizer decodes it.
func (c *Client) Synthesize(ctx context.Context, baseURL string, chunk domain.Chunk) ([]byte, error) {
	body, err := json.Marshal(speechRequest{
		Input:          chunk.Text,
		Voice:          chunk.Config.Voice,
		Speed:          chunk.Config.Speed,
		ResponseFormat: "wav",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encoding request: %v", domain.ErrUpstreamFatal, err)
	}

	url := baseURL + "/v1/audio/speech"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", domain.ErrUpstreamFatal, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamTransient, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamTransient, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", domain.ErrUpstreamTransient, err)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: upstream returned %d", domain.ErrUpstreamTransient, resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: upstream returned %d: %s", domain.ErrUpstreamFatal, resp.StatusCode, truncate(string(data), 200))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: unexpected status %d", domain.ErrUpstreamTransient, resp.StatusCode)
	}

	return data, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
