package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/hammamikhairi/nayru/internal/domain"
)

// Client is the thin HTTP client every non-serve subcommand uses to talk
// to a running nayru serve process.
type Client struct {
	rc *resty.Client
}

// NewClient creates a client against addr (host:port or full URL).
func NewClient(addr string) *Client {
	base := addr
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	rc := resty.New().
		SetBaseURL(base).
		SetTimeout(10 * time.Second).
		SetHeader("Content-Type", "application/json")
	return &Client{rc: rc}
}

// SpeakResult is the server's response to /speak.
type SpeakResult struct {
	OK           bool   `json:"ok"`
	QueuedChunks int    `json:"queued_chunks"`
	Error        string `json:"error"`
}

// Speak submits text (and an optional voice override) for playback.
func (c *Client) Speak(text, voice string) (SpeakResult, error) {
	var result SpeakResult
	body := map[string]string{"text": text}
	if voice != "" {
		body["voice"] = voice
	}
	resp, err := c.rc.R().SetBody(body).SetResult(&result).SetError(&result).Post("/speak")
	if err != nil {
		return SpeakResult{}, err
	}
	if resp.IsError() {
		return result, fmt.Errorf("server returned %s: %s", resp.Status(), result.Error)
	}
	return result, nil
}

// Command issues one of the bodyless transport commands: stop, skip,
// pause, resume.
func (c *Client) Command(name string) error {
	resp, err := c.rc.R().Post("/" + name)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("server returned %s: %s", resp.Status(), resp.String())
	}
	return nil
}

// Status fetches the server's transport snapshot.
func (c *Client) Status() (domain.Status, error) {
	var st domain.Status
	resp, err := c.rc.R().SetResult(&st).Get("/status")
	if err != nil {
		return domain.Status{}, err
	}
	if resp.IsError() {
		return domain.Status{}, fmt.Errorf("server returned %s: %s", resp.Status(), resp.String())
	}
	return st, nil
}
