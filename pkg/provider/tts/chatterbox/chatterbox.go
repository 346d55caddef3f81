// Package chatterbox provides a tts.Provider backed by a locally-running
// Chatterbox TTS server.
//
// The server operates in batch mode: one HTTP call per utterance. Synthesis is
// performed via POST /tts with a JSON body carrying the text, an optional
// reference-clip path for voice cloning, and the Chatterbox generation
// controls (exaggeration, cfg_weight, temperature). The response body is a
// complete WAV file which is decoded in memory — no intermediate file is ever
// written.
//
// Typical usage:
//
//	p, err := chatterbox.New("http://localhost:8004",
//	    chatterbox.WithTimeout(2*time.Minute),
//	)
//	seg, err := p.Synthesize(ctx, "Hello there.", voice, tts.DefaultParams())
package chatterbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/voxdoc/voxdoc/pkg/audio"
	"github.com/voxdoc/voxdoc/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

const (
	// defaultTimeout bounds a single synthesis request. Chatterbox on CPU can
	// take tens of seconds per sentence, so this is deliberately generous.
	defaultTimeout = 3 * time.Minute

	ttsEndpoint    = "/tts"
	healthEndpoint = "/health"

	// maxResponseBytes caps how much WAV data is read from one response.
	// A minute of 24 kHz mono 16-bit PCM is ~2.9 MB; 64 MB is far beyond any
	// single-unit utterance.
	maxResponseBytes = 64 << 20
)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithTimeout sets the per-request HTTP timeout. Defaults to 3 minutes.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client entirely. Useful in
// tests and when the caller needs custom transport settings.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements tts.Provider against a Chatterbox TTS server.
// It is safe for concurrent use; the server itself serialises GPU access.
type Provider struct {
	serverURL  string
	httpClient *http.Client
}

// New creates a Provider targeting the Chatterbox server at serverURL
// (e.g., "http://localhost:8004"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("chatterbox: serverURL must not be empty")
	}
	p := &Provider{
		serverURL: strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// ttsRequest is the JSON body sent to POST /tts.
type ttsRequest struct {
	Text            string  `json:"text"`
	AudioPromptPath string  `json:"audio_prompt_path,omitempty"`
	Exaggeration    float64 `json:"exaggeration"`
	CFGWeight       float64 `json:"cfg_weight"`
	Temperature     float64 `json:"temperature"`
}

// errorResponse is the JSON body the server returns on failures.
type errorResponse struct {
	Detail string `json:"detail"`
}

// Synthesize implements tts.Provider. Params are clamped to their documented
// ranges before the request is sent.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.VoiceReference, params tts.SynthesisParams) (audio.Segment, error) {
	if strings.TrimSpace(text) == "" {
		return audio.Segment{}, errors.New("chatterbox: text must not be empty")
	}
	params = params.Clamp()

	body, err := json.Marshal(ttsRequest{
		Text:            text,
		AudioPromptPath: voice.ReferenceAudioPath,
		Exaggeration:    params.Exaggeration,
		CFGWeight:       params.CFGWeight,
		Temperature:     params.Temperature,
	})
	if err != nil {
		return audio.Segment{}, fmt.Errorf("chatterbox: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+ttsEndpoint, bytes.NewReader(body))
	if err != nil {
		return audio.Segment{}, fmt.Errorf("chatterbox: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/wav")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return audio.Segment{}, fmt.Errorf("chatterbox: synthesis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return audio.Segment{}, p.statusError(resp)
	}

	wavBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return audio.Segment{}, fmt.Errorf("chatterbox: read response: %w", err)
	}

	seg, err := audio.DecodeWAV(wavBytes)
	if err != nil {
		return audio.Segment{}, fmt.Errorf("chatterbox: %w", err)
	}
	return seg, nil
}

// Ping implements tts.Provider by probing GET /health.
func (p *Provider) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.serverURL+healthEndpoint, nil)
	if err != nil {
		return fmt.Errorf("chatterbox: build health request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("chatterbox: health request: %w", err)
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("chatterbox: health check returned %s", resp.Status)
	}
	return nil
}

// statusError turns a non-200 response into an error, preferring the server's
// own "detail" message when the body parses as JSON.
func (p *Provider) statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var er errorResponse
	if json.Unmarshal(body, &er) == nil && er.Detail != "" {
		return fmt.Errorf("chatterbox: server returned %s: %s", resp.Status, er.Detail)
	}
	return fmt.Errorf("chatterbox: server returned %s", resp.Status)
}
