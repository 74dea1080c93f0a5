// Package coqui provides a Coqui TTS server backed provider. It supports both
// the standard Coqui server (/api/tts) and XTTS streaming server
// (/tts_stream) HTTP APIs. It implements the tts.Provider interface.
package coqui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mockmate/mockmate/pkg/provider/tts"
)

// Mode selects which Coqui server API flavor to talk to.
type Mode string

const (
	// ModeStandard targets the stock Coqui TTS server (GET /api/tts).
	ModeStandard Mode = "standard"
	// ModeXTTS targets the XTTS streaming server (GET /tts_stream).
	ModeXTTS Mode = "xtts"
)

// Option is a functional option for configuring the Coqui Provider.
type Option func(*Provider)

// WithMode selects the server API flavor.
func WithMode(m Mode) Option {
	return func(p *Provider) {
		p.mode = m
	}
}

// WithLanguage sets the synthesis language passed to XTTS servers.
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// Provider implements tts.Provider backed by a self-hosted Coqui TTS server.
//
// Coqui's HTTP API is request/response, not streaming, so SynthesizeStream
// batches incoming text into sentences and issues one synthesis request per
// batch. Audio is returned as WAV bytes per batch.
type Provider struct {
	baseURL    string
	mode       Mode
	language   string
	httpClient *http.Client
}

var _ tts.Provider = (*Provider)(nil)

// New creates a new Coqui Provider talking to the server at baseURL
// (e.g., "http://localhost:5002").
func New(baseURL string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		return nil, errors.New("coqui: baseURL must not be empty")
	}
	p := &Provider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		mode:       ModeStandard,
		language:   "en",
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// sentenceEnd reports whether the fragment terminates a sentence.
func sentenceEnd(s string) bool {
	t := strings.TrimSpace(s)
	return strings.HasSuffix(t, ".") || strings.HasSuffix(t, "!") || strings.HasSuffix(t, "?")
}

// SynthesizeStream accumulates text fragments into sentences and synthesizes
// each completed sentence with one HTTP request. The returned channel yields
// one audio buffer per synthesized batch and is closed when the text channel
// closes or ctx is cancelled.
func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.VoiceProfile) (<-chan []byte, error) {
	audioCh := make(chan []byte, 8)

	go func() {
		defer close(audioCh)

		var pending strings.Builder
		flush := func() bool {
			batch := strings.TrimSpace(pending.String())
			pending.Reset()
			if batch == "" {
				return true
			}
			audio, err := p.synthesize(ctx, batch, voice)
			if err != nil {
				return false
			}
			select {
			case audioCh <- audio:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case fragment, ok := <-text:
				if !ok {
					flush()
					return
				}
				pending.WriteString(fragment)
				if sentenceEnd(fragment) {
					if !flush() {
						return
					}
				}
			}
		}
	}()

	return audioCh, nil
}

// synthesize issues a single synthesis request for text.
func (p *Provider) synthesize(ctx context.Context, text string, voice tts.VoiceProfile) ([]byte, error) {
	var endpoint string
	q := url.Values{}
	q.Set("text", text)

	switch p.mode {
	case ModeXTTS:
		endpoint = p.baseURL + "/tts_stream"
		q.Set("language", p.language)
		if voice.ID != "" {
			q.Set("speaker_wav", voice.ID)
		}
	default:
		endpoint = p.baseURL + "/api/tts"
		if voice.ID != "" {
			q.Set("speaker_id", voice.ID)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("coqui: build request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coqui: synthesize: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coqui: synthesize: unexpected status %d", resp.StatusCode)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coqui: read audio: %w", err)
	}
	return audio, nil
}

// ListVoices queries /api/speakers on standard servers. XTTS servers do not
// expose a speaker catalogue, so a single default profile is returned.
func (p *Provider) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	if p.mode == ModeXTTS {
		return []tts.VoiceProfile{{
			ID:       "default",
			Name:     "XTTS Default",
			Language: p.language,
			Provider: "coqui",
		}}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/speakers", nil)
	if err != nil {
		return nil, fmt.Errorf("coqui: build speakers request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coqui: list speakers: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// Single-speaker model.
		return []tts.VoiceProfile{{
			ID:       "",
			Name:     "Default",
			Language: p.language,
			Provider: "coqui",
		}}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coqui: list speakers: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coqui: read speakers: %w", err)
	}

	var voices []tts.VoiceProfile
	for _, line := range strings.Split(string(body), "\n") {
		name := strings.TrimSpace(line)
		if name == "" {
			continue
		}
		voices = append(voices, tts.VoiceProfile{
			ID:       name,
			Name:     name,
			Language: p.language,
			Provider: "coqui",
		})
	}
	if len(voices) == 0 {
		voices = append(voices, tts.VoiceProfile{Name: "Default", Language: p.language, Provider: "coqui"})
	}
	return voices, nil
}
