package resilience

import (
	"context"

	"github.com/mockmate/mockmate/pkg/provider/tts"
)

// TTSFallback implements [tts.Provider] with automatic failover across
// multiple speech synthesis backends.
type TTSFallback struct {
	group *FallbackGroup[tts.Provider]
}

// Compile-time interface assertion.
var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred
// backend.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional TTS provider as a fallback.
func (f *TTSFallback) AddFallback(name string, provider tts.Provider) {
	f.group.AddFallback(name, provider)
}

// Backends returns the configured backend names in try order.
func (f *TTSFallback) Backends() []string {
	return f.group.Names()
}

// SynthesizeStream opens a synthesis stream against the first healthy
// provider. Text fragments are buffered up front and each attempt receives a
// fresh replay channel: a primary that consumed part of the stream before
// failing must not leave later backends a drained channel that synthesizes
// silence. Only stream setup is covered by failover; mid-stream errors are
// the caller's responsibility.
func (f *TTSFallback) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.VoiceProfile) (<-chan []byte, error) {
	var fragments []string
drain:
	for {
		select {
		case frag, ok := <-text:
			if !ok {
				break drain
			}
			fragments = append(fragments, frag)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return ExecuteWithResult(f.group, func(p tts.Provider) (<-chan []byte, error) {
		replay := make(chan string, len(fragments))
		for _, frag := range fragments {
			replay <- frag
		}
		close(replay)
		return p.SynthesizeStream(ctx, replay, voice)
	})
}

// ListVoices returns available voices from the first healthy provider.
func (f *TTSFallback) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	return ExecuteWithResult(f.group, func(p tts.Provider) ([]tts.VoiceProfile, error) {
		return p.ListVoices(ctx)
	})
}
