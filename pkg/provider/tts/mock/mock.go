// Package mock provides a scripted tts.Provider implementation for tests.
package mock

import (
	"context"
	"sync"

	"github.com/mockmate/mockmate/pkg/provider/tts"
)

// SynthesizeCall records one SynthesizeStream invocation.
type SynthesizeCall struct {
	Voice tts.VoiceProfile
	// Text holds every fragment read from the text channel, in order.
	Text []string
}

// Provider is a scripted TTS provider. Zero value is usable: it consumes
// text and emits one audio chunk per fragment.
type Provider struct {
	mu sync.Mutex

	// Chunks, when set, are emitted verbatim instead of the per-fragment
	// default.
	Chunks [][]byte
	// SynthesizeErr, when set, is returned by SynthesizeStream immediately.
	SynthesizeErr error
	// Voices is returned by ListVoices.
	Voices []tts.VoiceProfile
	// ListErr, when set, is returned by ListVoices.
	ListErr error
	// Delay, when set, is an optional hook run before each emitted chunk.
	Delay func()

	SynthesizeCalls []SynthesizeCall
	ListCalls       int
}

var _ tts.Provider = (*Provider)(nil)

func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.VoiceProfile) (<-chan []byte, error) {
	p.mu.Lock()
	if p.SynthesizeErr != nil {
		err := p.SynthesizeErr
		p.mu.Unlock()
		return nil, err
	}
	idx := len(p.SynthesizeCalls)
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Voice: voice})
	scripted := p.Chunks
	delay := p.Delay
	p.mu.Unlock()

	audioCh := make(chan []byte, 16)
	go func() {
		defer close(audioCh)
		var consumed int
		for {
			select {
			case <-ctx.Done():
				return
			case fragment, ok := <-text:
				if !ok {
					// Emit any scripted chunks not yet covered by fragments.
					for i := consumed; i < len(scripted); i++ {
						if delay != nil {
							delay()
						}
						select {
						case audioCh <- scripted[i]:
						case <-ctx.Done():
							return
						}
					}
					return
				}
				p.mu.Lock()
				p.SynthesizeCalls[idx].Text = append(p.SynthesizeCalls[idx].Text, fragment)
				p.mu.Unlock()

				var chunk []byte
				if consumed < len(scripted) {
					chunk = scripted[consumed]
				} else if scripted == nil {
					chunk = []byte(fragment)
				}
				consumed++
				if chunk == nil {
					continue
				}
				if delay != nil {
					delay()
				}
				select {
				case audioCh <- chunk:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return audioCh, nil
}

func (p *Provider) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ListCalls++
	if p.ListErr != nil {
		return nil, p.ListErr
	}
	return p.Voices, nil
}

// LastCall returns the most recent SynthesizeStream call, or nil.
func (p *Provider) LastCall() *SynthesizeCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.SynthesizeCalls) == 0 {
		return nil
	}
	return &p.SynthesizeCalls[len(p.SynthesizeCalls)-1]
}
